package heavykeeper

import "github.com/seiflotfy/flowch/bitpacked"

// grid is the counterGrid surface Heavy-Keeper needs: CU/CM's counterGrid
// plus ResetCnt, since eviction overwrites a slot's counter outright
// instead of adding to it. *hierarchy.CH already satisfies this.
type grid interface {
	UpdateCnt(i uint64, delta int64) error
	GetEstCnt(i uint64) int64
	GetCnt(i uint64) int64
	ResetCnt(i uint64, v int64)
	Size() uint64
	Clear()
}

// plainGrid adapts a bare bitpacked.Array to grid for callers that don't
// need CH's carry hierarchy — Heavy-Keeper's own decay already bounds
// counter growth, so overflow is rare and, when it happens, saturates.
type plainGrid struct {
	arr *bitpacked.Array
}

func newPlainGrid(n uint64, width uint) *plainGrid {
	return &plainGrid{arr: bitpacked.New(uint(n), width)}
}

func (g *plainGrid) UpdateCnt(i uint64, delta int64) error {
	max := int64(uint64(1)<<g.arr.Width() - 1)
	cur := int64(g.arr.Get(uint(i)))
	next := cur + delta
	if next < 0 {
		next = 0
	}
	if next > max {
		next = max
	}
	g.arr.Set(uint(i), uint64(next))
	return nil
}

func (g *plainGrid) GetEstCnt(i uint64) int64 { return int64(g.arr.Get(uint(i))) }
func (g *plainGrid) GetCnt(i uint64) int64     { return int64(g.arr.Get(uint(i))) }
func (g *plainGrid) ResetCnt(i uint64, v int64) {
	max := int64(uint64(1)<<g.arr.Width() - 1)
	if v > max {
		v = max
	}
	if v < 0 {
		v = 0
	}
	g.arr.Set(uint(i), uint64(v))
}
func (g *plainGrid) Size() uint64 { return g.arr.Size() }
func (g *plainGrid) Clear()       { g.arr.Clear() }
