package hierarchy

import "github.com/seiflotfy/flowch/flowkey"

// compensation is the small count-min-like auxiliary CH may keep alongside
// the bit-packed layers: cm_r independent rows of cm_w signed accumulators,
// each updated with every raw (unsigned or signed) delta CH receives. It
// tracks the true delta stream exactly where it has no collisions, and acts
// as a tie-breaker for getEstCnt and for signed-mode sign recovery when it
// does.
type compensation struct {
	r, w   uint
	seed   uint64
	hasher flowkey.Hasher
	cells  [][]int64
}

func newCompensation(r, w uint, seed uint64, hasher flowkey.Hasher) *compensation {
	cells := make([][]int64, r)
	for i := range cells {
		cells[i] = make([]int64, w)
	}
	return &compensation{r: r, w: w, seed: seed, hasher: hasher, cells: cells}
}

// column reuses ch.hasher (the same carry-routing hash oracle hashDest
// addresses layer boundaries with) rather than a second mixing function, so
// the compensation auxiliary's own column choice goes through the one hash
// family the rest of CH already depends on.
func (c *compensation) column(row uint, idx uint64) uint {
	seed := c.seed + uint64(row)*0x9e3779b97f4a7c15
	return uint(c.hasher.Hash(idxBytes(idx), seed) % uint64(c.w))
}

func (c *compensation) add(idx uint64, delta int64) {
	for row := uint(0); row < c.r; row++ {
		col := c.column(row, idx)
		c.cells[row][col] += delta
	}
}

// estimate returns the compensation sketch's own estimate of the net signed
// delta routed to idx: the minimum-magnitude row value, a count-min-style
// read that is exact absent collisions.
func (c *compensation) estimate(idx uint64) int64 {
	best := c.cells[0][c.column(0, idx)]
	for row := uint(1); row < c.r; row++ {
		v := c.cells[row][c.column(row, idx)]
		if abs64(v) < abs64(best) {
			best = v
		}
	}
	return best
}

// guessSign heuristically decides whether the true value at idx is
// negative, consulting the compensation sketch's net estimate. Returns -1,
// 0, or 1.
func (c *compensation) guessSign(idx uint64) int8 {
	v := c.estimate(idx)
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

func (c *compensation) clear() {
	for i := range c.cells {
		for j := range c.cells[i] {
			c.cells[i][j] = 0
		}
	}
}

func (c *compensation) size() uint64 {
	return uint64(c.r) * uint64(c.w) * 8
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
