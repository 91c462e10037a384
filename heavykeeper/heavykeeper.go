// Package heavykeeper implements the Heavy-Keeper top-K sketch: a d-row
// fingerprinted counter grid with probabilistic exponential-decay eviction,
// paired with a StreamSummary that tracks the current top-N candidates by
// estimate. Grounded on original_source CHHeavyKeeper.h.
package heavykeeper

import (
	"github.com/dgryski/go-pcgr"
	"github.com/seiflotfy/flowch/flowkey"
	"github.com/seiflotfy/flowch/hierarchy"
	"github.com/seiflotfy/flowch/sketchcore"
)

// Sketch is Heavy-Keeper: update is a three-pass process per key (hit an
// existing fingerprint match, claim a free slot, or probabilistically
// decay-and-maybe-evict the row minimum), and the StreamSummary tracks the
// N best-estimated flows seen so far.
type Sketch struct {
	depth, width uint
	b            float64
	grid         grid
	fp           [][]uint16
	hasher       flowkey.Hasher
	fpHasher     flowkey.Hasher
	seed         uint64
	ss           *streamSummary
	capacity     int
	nMin         int64
	rng          pcgr.Rand
}

// New builds a Heavy-Keeper tracking up to capacity flows, over a d-row,
// w-column CH-backed grid, with decay base b (per original_source, typ.
// 1.08). cfg configures the CH's own layer geometry.
func New(depth, width uint, capacity int, b float64, cfg hierarchy.Config, hasher flowkey.Hasher) (*Sketch, error) {
	w := uint(sketchcore.NextPrime(uint64(width)))
	ch, err := hierarchy.New(uint64(depth)*uint64(w), cfg)
	if err != nil {
		return nil, err
	}
	return newSketch(depth, w, capacity, b, ch, hasher), nil
}

// NewPlain builds Heavy-Keeper over a bare bitpacked.Array grid (cellWidth
// bits per counter) instead of a CH.
func NewPlain(depth, width uint, capacity int, b float64, cellWidth uint, hasher flowkey.Hasher) *Sketch {
	w := uint(sketchcore.NextPrime(uint64(width)))
	g := newPlainGrid(uint64(depth)*uint64(w), cellWidth)
	return newSketch(depth, w, capacity, b, g, hasher)
}

func newSketch(depth, width uint, capacity int, b float64, g grid, hasher flowkey.Hasher) *Sketch {
	if hasher == nil {
		hasher = flowkey.FarmHasher{}
	}
	fp := make([][]uint16, depth)
	for i := range fp {
		fp[i] = make([]uint16, width)
	}
	return &Sketch{
		depth:    depth,
		width:    width,
		b:        b,
		grid:     g,
		fp:       fp,
		hasher:   hasher,
		fpHasher: flowkey.FarmHasher{},
		seed:     1,
		ss:       newStreamSummary(capacity),
		capacity: capacity,
		rng:      pcgr.Rand{State: 0x0ddc0ffeebadf00d, Inc: 0xcafebabe},
	}
}

func (s *Sketch) cellIdx(row uint, key flowkey.FlowKey) (chIdx uint64, col uint) {
	seed := flowkey.RowSeed(s.seed, int(row))
	col = uint(s.hasher.Hash(key.Bytes(), seed) % uint64(s.width))
	return uint64(row)*uint64(s.width) + uint64(col), col
}

func (s *Sketch) fingerprint(key flowkey.FlowKey) uint16 {
	return uint16(s.fpHasher.Hash(key.Bytes(), s.seed^0x9e3779b9))
}

func (s *Sketch) decayDraw(c int64) bool {
	// increaseDecision-style exponential-decay probability, grounded on the
	// teacher's pcgr-seeded uniform draw (utils.go's randFloat): accept
	// eviction with probability b^-c.
	f := float64(s.rng.Next()%1000000) / 1000000
	return f < pow(s.b, -float64(c))
}

func pow(base, exp float64) float64 {
	if exp == 0 {
		return 1
	}
	neg := exp < 0
	if neg {
		exp = -exp
	}
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	frac := exp - float64(int(exp))
	if frac > 0 {
		result *= 1 + frac*(base-1) // linear interpolation for the fractional exponent
	}
	if neg {
		return 1 / result
	}
	return result
}

// Update records one occurrence of key (val is normally 1; the original
// source treats it as a generic per-event weight).
func (s *Sketch) Update(key flowkey.FlowKey, val int64) {
	trackedEntry, tracked := s.ss.find(key)
	flowFP := s.fingerprint(key)

	estimated := int64(-1)
	done := false

	// Pass 1: an existing fingerprint match in any row, if either the key
	// is already tracked or that row's count is currently below n_min — a
	// row below n_min can't possibly be masking a different, bigger flow
	// behind the same fingerprint slot without having already lost to it.
	for r := uint(0); r < s.depth; r++ {
		idx, col := s.cellIdx(r, key)
		c := s.grid.GetEstCnt(idx)
		if c > 0 && (tracked || c < s.nMin) && s.fp[r][col] == flowFP {
			newC := c + val
			if newC > estimated {
				estimated = newC
			}
			_ = s.grid.UpdateCnt(idx, val)
			done = true
		}
	}

	// Pass 2: claim the first free (zero) slot across rows.
	if !done {
		for r := uint(0); r < s.depth; r++ {
			idx, col := s.cellIdx(r, key)
			if s.grid.GetEstCnt(idx) == 0 {
				_ = s.grid.UpdateCnt(idx, val)
				s.fp[r][col] = flowFP
				estimated = 1
				done = true
				break
			}
		}
	}

	// Pass 3: no hit, no free slot — probabilistically decay the row with
	// the smallest current estimate, possibly evicting it outright.
	if !done {
		minRow := uint(0)
		minIdx, _ := s.cellIdx(0, key)
		minC := s.grid.GetEstCnt(minIdx)
		for r := uint(1); r < s.depth; r++ {
			idx, _ := s.cellIdx(r, key)
			c := s.grid.GetEstCnt(idx)
			if c < minC {
				minC = c
				minRow = r
				minIdx = idx
			}
		}
		if s.decayDraw(minC) {
			_, col := s.cellIdx(minRow, key)
			wouldEmpty := minC <= val
			_ = s.grid.UpdateCnt(minIdx, -val)
			if wouldEmpty {
				s.grid.ResetCnt(minIdx, val)
				s.fp[minRow][col] = flowFP
				estimated = 1
			}
		}
	}

	if estimated <= 0 {
		return
	}

	switch {
	case tracked:
		if estimated > trackedEntry.val {
			oldVal := trackedEntry.val
			s.ss.promote(trackedEntry, estimated)
			// Refresh n_min only when the promoted entry was itself the
			// minimum; any other promotion can't change which bucket is
			// smallest. See DESIGN.md for why this differs from a naive
			// port of the reference update rule.
			if oldVal == s.nMin {
				s.nMin = s.ss.leastVal()
			}
		}
	case s.ss.size() < s.capacity:
		s.ss.emplace(key, estimated)
		s.nMin = s.ss.leastVal()
	case estimated > s.nMin:
		if least, ok := s.ss.leastEntry(); ok {
			s.ss.evict(least)
		}
		s.ss.emplace(key, estimated)
		s.nMin = s.ss.leastVal()
	}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Query returns key's tracked estimate, or 0 if it isn't currently one of
// the capacity best-estimated flows — Heavy-Keeper only commits to an
// estimate for the flows worth remembering; anything that never displaced
// its way into the StreamSummary reports as untracked, not as whatever
// transient grid value it last touched.
func (s *Sketch) Query(key flowkey.FlowKey) int64 {
	if e, ok := s.ss.find(key); ok {
		return e.val
	}
	return 0
}

// GetHeavyHitter returns every tracked flow whose estimate is at least
// threshold.
func (s *Sketch) GetHeavyHitter(threshold float64) map[flowkey.FlowKey]int64 {
	out := make(map[flowkey.FlowKey]int64)
	for k, v := range s.ss.all() {
		if float64(v) >= threshold {
			out[k] = v
		}
	}
	return out
}

// Size reports the grid and fingerprint table's physical byte footprint.
func (s *Sketch) Size() uint64 {
	return s.grid.Size() + uint64(s.depth)*uint64(s.width)*2
}

// Clear resets the grid, fingerprints, and StreamSummary to empty.
func (s *Sketch) Clear() {
	s.grid.Clear()
	for r := range s.fp {
		for c := range s.fp[r] {
			s.fp[r][c] = 0
		}
	}
	s.ss = newStreamSummary(s.capacity)
	s.nMin = 0
}
