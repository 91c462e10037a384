// Package countsketch implements the (signed) Count Sketch: d rows of w
// columns, each row hashing a key to both a column and a random +1/-1
// sign, query returning the median of sign-corrected row estimates. The
// ± cancellation is what lets two colliding keys share a cell without one
// key's count polluting the other's estimate the way Count-Min's
// always-add does.
package countsketch

import (
	"sort"

	"github.com/seiflotfy/flowch/flowkey"
	"github.com/seiflotfy/flowch/hierarchy"
	"github.com/seiflotfy/flowch/sketchcore"
)

// counterGrid is the same minimal surface cucm depends on; kept local
// since neither package should import the other just to share an
// unexported interface.
type counterGrid interface {
	UpdateCnt(i uint64, delta int64) error
	GetCnt(i uint64) int64
	Size() uint64
	Clear()
}

// Sketch is a signed Count Sketch over a CH-backed grid; the CH must run in
// signed mode so that a row's cell can absorb a negative delta and be read
// back with the right sign.
type Sketch struct {
	depth  uint
	width  uint
	grid   counterGrid
	hasher flowkey.Hasher
	seed   uint64
}

// New builds a Count Sketch with d rows of w columns, backed by a CH
// constructed from cfg with SignedMode forced on regardless of what the
// caller passed, since an unsigned grid cannot represent this sketch's
// negative contributions at all.
func New(depth, width uint, cfg hierarchy.Config, hasher flowkey.Hasher) (*Sketch, error) {
	cfg.SignedMode = true
	w := uint(sketchcore.NextPrime(uint64(width)))
	ch, err := hierarchy.New(uint64(depth)*uint64(w), cfg)
	if err != nil {
		return nil, err
	}
	if hasher == nil {
		hasher = flowkey.FarmHasher{}
	}
	return &Sketch{depth: depth, width: w, grid: ch, hasher: hasher, seed: 1}, nil
}

// rowIdx and rowSign derive, from one row's seed, the column a key lands in
// and the +1/-1 sign attached to its contribution in that row. Two
// distinct seeds (one xored with a fixed salt) keep the two draws
// independent even though both come from the same underlying hasher.
func (s *Sketch) rowIdx(row uint, key flowkey.FlowKey) uint64 {
	seed := flowkey.RowSeed(s.seed, int(row))
	return uint64(row)*uint64(s.width) + s.hasher.Hash(key.Bytes(), seed)%uint64(s.width)
}

func (s *Sketch) rowSign(row uint, key flowkey.FlowKey) int64 {
	seed := flowkey.RowSeed(s.seed, int(row)) ^ 0x5bd1e995
	if s.hasher.Hash(key.Bytes(), seed)&1 == 0 {
		return 1
	}
	return -1
}

// Update adds val (signed) to key's row estimates, sign-corrected per row.
func (s *Sketch) Update(key flowkey.FlowKey, val int64) {
	for r := uint(0); r < s.depth; r++ {
		idx := s.rowIdx(r, key)
		sign := s.rowSign(r, key)
		_ = s.grid.UpdateCnt(idx, sign*val)
	}
}

// Query returns the median, across rows, of sign(row,key) * grid cell —
// the median cancels out the rows where an adversarial collision pushed
// one row's estimate away from the true value.
func (s *Sketch) Query(key flowkey.FlowKey) int64 {
	vals := make([]int64, s.depth)
	for r := uint(0); r < s.depth; r++ {
		idx := s.rowIdx(r, key)
		sign := s.rowSign(r, key)
		vals[r] = sign * s.grid.GetCnt(idx)
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	return vals[len(vals)/2]
}

// Size reports the grid's physical byte footprint.
func (s *Sketch) Size() uint64 { return s.grid.Size() }

// Clear zeroes the grid.
func (s *Sketch) Clear() { s.grid.Clear() }
