package hashpipe

import "github.com/seiflotfy/flowch/bitpacked"

// counterGrid is the minimal surface a HashPipe needs from its backing
// store: an estimate read for displacement comparisons, a raw-count read
// for query, an additive update, a direct overwrite for the slot the pipe's
// first row always evicts into, and the usual size/clear pair. Mirrors the
// small per-package grid interfaces in cucm/countsketch/heavykeeper.
type counterGrid interface {
	UpdateCnt(i uint64, delta int64) error
	ResetCnt(i uint64, v int64)
	GetEstCnt(i uint64) int64
	GetCnt(i uint64) int64
	Size() uint64
	Clear()
}

// plainGrid is a counterGrid with no overflow hierarchy behind it, for
// callers that don't need carry propagation.
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

func (g *plainGrid) ResetCnt(i uint64, v int64) {
	max := uint64(1)<<g.arr.Width() - 1
	if uint64(v) > max {
		v = int64(max)
	}
	g.arr.Set(uint(i), uint64(v))
}

func (g *plainGrid) GetEstCnt(i uint64) int64 { return int64(g.arr.Get(uint(i))) }
func (g *plainGrid) GetCnt(i uint64) int64     { return int64(g.arr.Get(uint(i))) }
func (g *plainGrid) Size() uint64              { return g.arr.Size() }
func (g *plainGrid) Clear()                    { g.arr.Clear() }
