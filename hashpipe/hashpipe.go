// Package hashpipe implements a HashPipe residency sketch: a d-row pipe of
// (key, counter) slots where a new key always displaces row 0's current
// occupant, and the loser cascades down the remaining rows, stopping at the
// first match, the first empty slot, or the first row whose resident value
// is smaller than the cascading value (which it then displaces in turn).
// Grounded on original_source CHHashPipe.h (the single-CH, ch_depth==depth
// configuration).
package hashpipe

import (
	"github.com/seiflotfy/flowch/flowkey"
	"github.com/seiflotfy/flowch/hierarchy"
	"github.com/seiflotfy/flowch/sketchcore"
)

// Sketch is a HashPipe: depth rows of width slots, each slot holding a
// resident FlowKey and its counter value. The all-zero key marks an empty
// slot.
type Sketch struct {
	depth, width uint
	keys         [][]flowkey.FlowKey
	grid         counterGrid
	hasher       flowkey.Hasher
	seed         uint64
}

// New builds a HashPipe with depth rows of width slots each (width rounded
// up to the next prime), backed by a single CH constructed from cfg.
func New(depth, width uint, cfg hierarchy.Config, hasher flowkey.Hasher) (*Sketch, error) {
	w := uint(sketchcore.NextPrime(uint64(width)))
	ch, err := hierarchy.New(uint64(depth)*uint64(w), cfg)
	if err != nil {
		return nil, err
	}
	return newSketch(depth, w, ch, hasher), nil
}

// NewPlain builds a HashPipe over a bare bitpacked.Array grid (cellWidth
// bits per counter) instead of a CH.
func NewPlain(depth, width, cellWidth uint, hasher flowkey.Hasher) *Sketch {
	w := uint(sketchcore.NextPrime(uint64(width)))
	g := newPlainGrid(uint64(depth)*uint64(w), cellWidth)
	return newSketch(depth, w, g, hasher)
}

func newSketch(depth, width uint, g counterGrid, hasher flowkey.Hasher) *Sketch {
	if hasher == nil {
		hasher = flowkey.FarmHasher{}
	}
	keys := make([][]flowkey.FlowKey, depth)
	for i := range keys {
		keys[i] = make([]flowkey.FlowKey, width)
	}
	return &Sketch{depth: depth, width: width, keys: keys, grid: g, hasher: hasher, seed: 1}
}

func (s *Sketch) cellIdx(row uint, key flowkey.FlowKey) (chIdx uint64, col uint) {
	seed := flowkey.RowSeed(s.seed, int(row))
	col = uint(s.hasher.Hash(key.Bytes(), seed) % uint64(s.width))
	return uint64(row)*uint64(s.width) + uint64(col), col
}

// Update walks the pipe for key: row 0 either bumps an exact match, claims
// an empty slot, or evicts whatever it holds to make room for key outright;
// the evicted (key, value) pair then cascades through the remaining rows,
// each of which bumps a match, claims an empty slot, or — only if its own
// resident value is smaller than the cascading value — swaps the cascading
// pair in and continues with the row's former occupant. A cascade that
// reaches the last row without a match, an empty slot, or a displacement is
// simply dropped, the same as the original source.
func (s *Sketch) Update(key flowkey.FlowKey, val int64) {
	zero := flowkey.Zero()

	idx0, col0 := s.cellIdx(0, key)
	switch {
	case s.keys[0][col0].Equal(key):
		_ = s.grid.UpdateCnt(idx0, val)
		return
	case s.keys[0][col0].Equal(zero):
		s.keys[0][col0] = key
		_ = s.grid.UpdateCnt(idx0, val)
		return
	}

	cKey := s.keys[0][col0]
	cVal := s.grid.GetEstCnt(idx0)
	s.keys[0][col0] = key
	s.grid.ResetCnt(idx0, val)

	for row := uint(1); row < s.depth; row++ {
		idx, col := s.cellIdx(row, cKey)
		switch {
		case s.keys[row][col].Equal(cKey):
			_ = s.grid.UpdateCnt(idx, cVal)
			return
		case s.keys[row][col].Equal(zero):
			s.keys[row][col] = cKey
			_ = s.grid.UpdateCnt(idx, cVal)
			return
		}
		estVal := s.grid.GetEstCnt(idx)
		if estVal < cVal {
			cKey, s.keys[row][col] = s.keys[row][col], cKey
			s.grid.ResetCnt(idx, cVal)
			cVal = estVal
		}
	}
}

// Query sums the resident counter of every row whose slot for key's hash
// currently holds key — in a correctly sized pipe that is at most one row,
// but nothing stops two different rows' hashes from both landing on a slot
// key happens to occupy.
func (s *Sketch) Query(key flowkey.FlowKey) int64 {
	var ret int64
	for row := uint(0); row < s.depth; row++ {
		idx, col := s.cellIdx(row, key)
		if s.keys[row][col].Equal(key) {
			ret += s.grid.GetCnt(idx)
		}
	}
	return ret
}

// GetHeavyHitter returns every resident flow (across all rows, deduplicated)
// whose Query value is at least threshold.
func (s *Sketch) GetHeavyHitter(threshold float64) map[flowkey.FlowKey]int64 {
	zero := flowkey.Zero()
	checked := make(map[flowkey.FlowKey]bool)
	out := make(map[flowkey.FlowKey]int64)
	for row := uint(0); row < s.depth; row++ {
		for col := uint(0); col < s.width; col++ {
			k := s.keys[row][col]
			if k.Equal(zero) || checked[k] {
				continue
			}
			checked[k] = true
			if v := s.Query(k); float64(v) >= threshold {
				out[k] = v
			}
		}
	}
	return out
}

// Size reports the grid and resident-key table's physical byte footprint.
func (s *Sketch) Size() uint64 {
	return s.grid.Size() + uint64(s.depth)*uint64(s.width)*flowkey.KeyLen
}

// Clear resets the grid and every row's resident keys to empty.
func (s *Sketch) Clear() {
	s.grid.Clear()
	zero := flowkey.Zero()
	for row := range s.keys {
		for col := range s.keys[row] {
			s.keys[row][col] = zero
		}
	}
}
