package cucm

import "github.com/seiflotfy/flowch/bitpacked"

// counterGrid is the minimal surface both a Counter Hierarchy and a bare
// bitpacked.Array need to provide so CM/CU's update and query logic runs
// identically over either backing store. *hierarchy.CH already satisfies
// this directly; plainGrid adapts a single bitpacked.Array for callers that
// don't need carry propagation at all.
type counterGrid interface {
	UpdateCnt(i uint64, delta int64) error
	GetEstCnt(i uint64) int64
	GetCnt(i uint64) int64
	Size() uint64
	Clear()
}

// plainGrid is a counterGrid with no overflow hierarchy behind it: a cell
// that would overflow its width instead saturates at the cell's maximum
// representable value, the same guard the classic count-min grid applies
// before every increment ("if sk.count[i][column] < uint(math.MaxUint32)").
type plainGrid struct {
	arr *bitpacked.Array
}

func newPlainGrid(n uint64, width uint) *plainGrid {
	return &plainGrid{arr: bitpacked.New(uint(n), width)}
}

func (g *plainGrid) UpdateCnt(i uint64, delta int64) error {
	if delta <= 0 {
		return nil
	}
	max := uint64(1)<<g.arr.Width() - 1
	cur := g.arr.Get(uint(i))
	if cur >= max {
		return nil
	}
	room := max - cur
	if uint64(delta) > room {
		delta = int64(room)
	}
	g.arr.Add(uint(i), uint64(delta))
	return nil
}

func (g *plainGrid) GetEstCnt(i uint64) int64 { return int64(g.arr.Get(uint(i))) }
func (g *plainGrid) GetCnt(i uint64) int64     { return int64(g.arr.Get(uint(i))) }
func (g *plainGrid) Size() uint64              { return g.arr.Size() }
func (g *plainGrid) Clear()                    { g.arr.Clear() }
