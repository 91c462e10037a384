package hierarchy

import (
	"math"

	"github.com/seiflotfy/flowch/bitpacked"
)

// decode runs the full iterative message-passing reconstruction over every
// layer transition, top layer down to layer 0, and caches the result until
// the next mutation. Right-side values at the top layer are exact (nothing
// overflows out of it without becoming a fatal Overflow); every layer below
// treats the layer above's already-decoded values as its right side.
func (ch *CH) decode() {
	if !ch.decodeDirty {
		return
	}
	ch.drainLazy()

	combined := make([][]int64, ch.L)
	top := ch.L - 1
	combined[top] = make([]int64, ch.noCnt[top])
	for r := range combined[top] {
		combined[top][r] = int64(ch.layers[top].Get(uint(r)))
	}

	for layer := ch.L - 2; layer >= 0; layer-- {
		combined[layer] = ch.decodeTransition(layer, combined[layer+1])
	}

	ch.decodeCache = combined
	ch.decodeDirty = false
}

// decodeTransition reconstructs layer's combined values (raw bits plus
// estimated higher-order bits) from rightVal, layer+1's already-decoded
// values, via alternating tight-upper/tight-lower message passing over the
// bipartite graph of live (status-bit-set) layer cells and their
// no_hash[layer] overflow destinations.
func (ch *CH) decodeTransition(layer int, rightVal []int64) []int64 {
	leftN := ch.noCnt[layer]
	w := ch.width[layer]

	live := make([]uint64, 0)
	neighbors := make(map[uint64][]uint64)
	rightNeighbors := make(map[uint64][]uint64)

	for i := uint64(0); i < leftN; i++ {
		if ch.status[layer].Get(uint(i)) == 0 {
			continue
		}
		live = append(live, i)
		dests := make([]uint64, ch.noHash[layer])
		for h := uint(0); h < ch.noHash[layer]; h++ {
			d := ch.hashDest(layer, i, h)
			dests[h] = d
			rightNeighbors[d] = append(rightNeighbors[d], i)
		}
		neighbors[i] = dests
	}

	x := make(map[uint64]float64, len(live))
	for _, j := range live {
		x[j] = 1
	}

	var prev, prevPrev map[uint64]float64
	for iter := uint(1); iter <= ch.iters && len(live) > 0; iter++ {
		msgs := make(map[uint64]map[uint64]float64, len(rightNeighbors))
		for r, js := range rightNeighbors {
			sum := 0.0
			for _, j := range js {
				sum += x[j]
			}
			a := float64(rightVal[r]) - sum
			m := make(map[uint64]float64, len(js))
			for _, j := range js {
				v := a + x[j]
				if v < 1 {
					v = 1
				}
				m[j] = v
			}
			msgs[r] = m
		}

		next := make(map[uint64]float64, len(live))
		takeMax := iter%2 == 1
		for _, j := range live {
			var agg float64
			first := true
			for _, r := range neighbors[j] {
				v := msgs[r][j]
				if first {
					agg = v
					first = false
					continue
				}
				if takeMax && v > agg {
					agg = v
				} else if !takeMax && v < agg {
					agg = v
				}
			}
			if agg < 1 {
				agg = 1
			}
			next[j] = agg
		}

		prevPrev = prev
		prev = x
		x = next
	}

	final := x
	if prevPrev != nil {
		final = make(map[uint64]float64, len(live))
		for _, j := range live {
			final[j] = (x[j] + prev[j]) / 2
		}
	}

	out := make([]int64, leftN)
	for i := uint64(0); i < leftN; i++ {
		raw := int64(ch.layers[layer].Get(uint(i)))
		if layer == 0 && ch.signed {
			raw = bitpacked.SignExtend(ch.layers[layer].Get(uint(i)), ch.width[0])
		}
		xi, ok := final[i]
		if !ok {
			out[i] = raw
			continue
		}
		units := int64(math.Round(xi))
		if units < 1 {
			units = 1
		}
		out[i] = (units << w) + raw
	}
	return out
}

// drainLazy applies every pending lazy carry, layer boundary by layer
// boundary, turning deferred overflow routing into the same bit-packed
// mutations eager mode would have applied immediately.
func (ch *CH) drainLazy() {
	if !ch.lazy {
		return
	}
	for layer := 0; layer < ch.L-1; layer++ {
		for _, e := range ch.carry[layer].Drain() {
			for h := uint(0); h < ch.noHash[layer]; h++ {
				dest := ch.hashDest(layer, uint64(e.Idx), h)
				// A top-layer overflow hit while draining is discarded:
				// GetCnt has no error return and lazy-mode UpdateCnt never
				// reaches the top layer, so it is not reported anywhere.
				// The top cell keeps only its wrapped value.
				_ = ch.updateLayer(layer+1, dest, e.Delta)
			}
		}
	}
}

// GetCnt is the authoritative read: the full iterative decode, concatenated
// bit-field by bit-field. Decoding never fails; it may simply return a
// lower-accuracy estimate when the hierarchy is heavily contended.
func (ch *CH) GetCnt(i uint64) int64 {
	ch.checkIdx(i)
	if ch.L == 1 {
		return ch.GetOriginalCnt(i)
	}
	ch.decode()
	val := ch.decodeCache[0][i]
	if ch.signed && ch.comp != nil {
		if sign := ch.comp.guessSign(i); sign < 0 && val > 0 {
			val = -val
		}
	}
	return val
}
