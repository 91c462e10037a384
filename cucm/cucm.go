// Package cucm implements the Count-Min (CM) and Conservative-Update (CU)
// sketches: a d-row by w-column counter grid addressed by d independent
// hashes per key, differing only in how a row that already meets the
// incoming value is treated on update. Both sketches allocate their grid
// out of either a hierarchy.CH (absorbing overflow into higher layers) or a
// bare bitpacked.Array (saturating on overflow instead), so the same
// update/query code serves either backing store.
package cucm

import (
	"math"

	"github.com/seiflotfy/flowch/flowkey"
	"github.com/seiflotfy/flowch/hierarchy"
	"github.com/seiflotfy/flowch/sketchcore"
)

// mode picks the row-update rule: cm always adds to every row, cu only
// raises a row up to the post-update minimum.
type mode int

const (
	modeCM mode = iota
	modeCU
)

// Sketch is the shared CM/CU structure; NewCM and NewCU differ only in the
// mode they set and in what the name communicates to a caller.
type Sketch struct {
	depth  uint
	width  uint
	grid   counterGrid
	hasher flowkey.Hasher
	seed   uint64
	mode   mode
}

// NewCM builds a Count-Min sketch over a CH-backed grid sized depth*width,
// with cfg controlling the CH's own layer geometry (overflow absorption).
func NewCM(depth, width uint, cfg hierarchy.Config, hasher flowkey.Hasher) (*Sketch, error) {
	return newSketch(depth, width, cfg, hasher, modeCM)
}

// NewCU builds a Conservative-Update sketch over a CH-backed grid, per
// original_source CHCUSketch.h.
func NewCU(depth, width uint, cfg hierarchy.Config, hasher flowkey.Hasher) (*Sketch, error) {
	return newSketch(depth, width, cfg, hasher, modeCU)
}

func newSketch(depth, width uint, cfg hierarchy.Config, hasher flowkey.Hasher, m mode) (*Sketch, error) {
	w := uint(sketchcore.NextPrime(uint64(width)))
	ch, err := hierarchy.New(uint64(depth)*uint64(w), cfg)
	if err != nil {
		return nil, err
	}
	if hasher == nil {
		hasher = flowkey.FarmHasher{}
	}
	return &Sketch{depth: depth, width: w, grid: ch, hasher: hasher, seed: 1, mode: m}, nil
}

// NewCMPlain and NewCUPlain build the same sketches over a plain
// bitpacked.Array grid instead of a CH, for callers that don't need
// overflow absorption and would rather saturate at the grid's bit width.
func NewCMPlain(depth, width, cellWidth uint, hasher flowkey.Hasher) *Sketch {
	return newPlainSketch(depth, width, cellWidth, hasher, modeCM)
}

func NewCUPlain(depth, width, cellWidth uint, hasher flowkey.Hasher) *Sketch {
	return newPlainSketch(depth, width, cellWidth, hasher, modeCU)
}

func newPlainSketch(depth, width, cellWidth uint, hasher flowkey.Hasher, m mode) *Sketch {
	w := uint(sketchcore.NextPrime(uint64(width)))
	grid := newPlainGrid(uint64(depth)*uint64(w), cellWidth)
	if hasher == nil {
		hasher = flowkey.FarmHasher{}
	}
	return &Sketch{depth: depth, width: w, grid: grid, hasher: hasher, seed: 1, mode: m}
}

func (s *Sketch) cellIdx(row uint, key flowkey.FlowKey) uint64 {
	seed := flowkey.RowSeed(s.seed, int(row))
	return uint64(row)*uint64(s.width) + s.hasher.Hash(key.Bytes(), seed)%uint64(s.width)
}

// Update adds val to key's row estimates. In CM mode every row is
// incremented directly. In CU mode (original_source CHCUSketch.h's
// update()), the post-update minimum across rows is computed first and
// only rows whose current estimate falls below it are raised to meet it —
// this is what keeps CU's one-sided error smaller than CM's for skewed
// streams.
func (s *Sketch) Update(key flowkey.FlowKey, val int64) {
	idxs := make([]uint64, s.depth)
	est := make([]int64, s.depth)
	minEst := int64(math.MaxInt64)
	for r := uint(0); r < s.depth; r++ {
		idx := s.cellIdx(r, key)
		idxs[r] = idx
		v := s.grid.GetEstCnt(idx)
		est[r] = v
		if v < minEst {
			minEst = v
		}
	}

	if s.mode == modeCM {
		for r := uint(0); r < s.depth; r++ {
			_ = s.grid.UpdateCnt(idxs[r], val)
		}
		return
	}

	target := minEst + val
	for r := uint(0); r < s.depth; r++ {
		if est[r] < target {
			_ = s.grid.UpdateCnt(idxs[r], target-est[r])
		}
	}
}

// Query returns the minimum row estimate for key — the textbook Count-Min
// reconstruction, used by both modes (CHCUSketch.h's query() is identical
// to CM's: a min over ch.getCnt(idx) per row).
func (s *Sketch) Query(key flowkey.FlowKey) int64 {
	min := int64(math.MaxInt64)
	for r := uint(0); r < s.depth; r++ {
		v := s.grid.GetCnt(s.cellIdx(r, key))
		if v < min {
			min = v
		}
	}
	return min
}

// Size reports the grid's physical byte footprint.
func (s *Sketch) Size() uint64 { return s.grid.Size() }

// Clear zeroes the grid.
func (s *Sketch) Clear() { s.grid.Clear() }
