// Package hierarchy implements the Counter Hierarchy (CH): a multi-layer
// bit-packed logical counter store that absorbs per-cell overflow via
// hash-addressed carry propagation to higher, wider layers, and
// reconstructs values at query time either cheaply (getEstCnt) or
// authoritatively (getCnt, an iterative message-passing decode).
//
// The CH-backed sketch constructors in this module allocate their logical
// counter arrays out of a CH, which reads back like an array of wide
// integers; the Plain constructors use a bare bitpacked.Array instead.
// When overflow destinations are shared, GetCnt's decode may return an
// approximate value.
package hierarchy

import (
	"encoding/binary"

	"github.com/seiflotfy/flowch/bitpacked"
	"github.com/seiflotfy/flowch/carrymap"
	"github.com/seiflotfy/flowch/flowkey"
)

const defaultIterations = 10
const defaultSeed = 0x2545F4914F6CDD1D

// CH is a Counter Hierarchy: L layers of bit-packed counters, where layer 0
// is the logical counter array the owning sketch addresses and layers
// 1..L-1 absorb overflow carried up via hashed routing.
type CH struct {
	cfg    Config
	L      int
	noCnt  []uint64
	width  []uint
	noHash []uint
	signed bool
	lazy   bool

	layers []*bitpacked.Array // length L, value storage
	status []*bitpacked.Array // length L-1, 1 bit per cell: "has overflowed at least once"
	carry  []*carrymap.Map    // length L-1, lazy mode only

	hasher flowkey.Hasher
	seed   uint64
	iters  uint

	comp *compensation

	decodeCache    [][]int64 // cached combined values per layer from the last getCnt-triggered decode
	decodeDirty    bool
}

// New constructs a CH with no_cnt[0] = noCnt0 (rounded up to the next
// prime) as the logical layer-0 width, per the rest of cfg.
func New(noCnt0 uint64, cfg Config) (*CH, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	L := cfg.layers()

	noCnt := make([]uint64, L)
	noCnt[0] = flowkey.NextPrime(noCnt0)
	for i := 1; i < L; i++ {
		noCnt[i] = flowkey.NextPrime(uint64(ceilf(float64(noCnt[i-1]) * cfg.CntNoRatio)))
	}

	layers := make([]*bitpacked.Array, L)
	for i := 0; i < L; i++ {
		layers[i] = bitpacked.New(uint(noCnt[i]), cfg.WidthCnt[i])
	}
	status := make([]*bitpacked.Array, 0)
	carry := make([]*carrymap.Map, 0)
	if L > 1 {
		status = make([]*bitpacked.Array, L-1)
		carry = make([]*carrymap.Map, L-1)
		for i := 0; i < L-1; i++ {
			status[i] = bitpacked.New(uint(noCnt[i]), 1)
			carry[i] = carrymap.New()
		}
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = flowkey.FarmHasher{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = defaultSeed
	}
	iters := cfg.Iterations
	if iters == 0 {
		iters = defaultIterations
	}

	var comp *compensation
	if cfg.CmR > 0 {
		comp = newCompensation(cfg.CmR, cfg.CmW, seed^0xC0FFEE, hasher)
	}

	return &CH{
		cfg:         cfg,
		L:           L,
		noCnt:       noCnt,
		width:       cfg.WidthCnt,
		noHash:      cfg.NoHash,
		signed:      cfg.SignedMode,
		lazy:        cfg.Lazy,
		layers:      layers,
		status:      status,
		carry:       carry,
		hasher:      hasher,
		seed:        seed,
		iters:       iters,
		comp:        comp,
		decodeDirty: true,
	}, nil
}

// NoCnt0 returns the (prime-rounded) logical width of layer 0, the range
// of valid indices for UpdateCnt/GetCnt/etc.
func (ch *CH) NoCnt0() uint64 { return ch.noCnt[0] }

func ceilf(v float64) float64 {
	i := int64(v)
	if float64(i) < v {
		i++
	}
	return float64(i)
}

func (ch *CH) checkIdx(i uint64) {
	if i >= ch.noCnt[0] {
		panic((&IndexOutOfRangeError{Idx: i, N: ch.noCnt[0]}).Error())
	}
}

func idxBytes(i uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], i)
	return b[:]
}

// hashDest picks the h-th (0-indexed) overflow destination for cell idx at
// the boundary between layer and layer+1.
func (ch *CH) hashDest(layer int, idx uint64, h uint) uint64 {
	seed := ch.seed ^ (uint64(layer+1) * 0x9e3779b97f4a7c15) ^ (uint64(h) * 0xbf58476d1ce4e5b9)
	return ch.hasher.Hash(idxBytes(idx), seed) % ch.noCnt[layer+1]
}

// UpdateCnt adds delta to logical cell i, propagating overflow up through
// the hierarchy. In eager mode (the default) propagation happens inline;
// in lazy mode it is deferred to the next read through GetCnt.
func (ch *CH) UpdateCnt(i uint64, delta int64) error {
	ch.checkIdx(i)
	ch.decodeDirty = true
	if ch.comp != nil {
		ch.comp.add(i, delta)
	}
	return ch.updateLayer(0, i, delta)
}

// updateLayer adds delta to cell idx at layer, marks the status bit and
// routes the resulting overflow quantum to layer+1 if one occurred. In lazy
// mode, propagation past layer 0 is deferred into ch.carry[layer] instead
// of being applied immediately.
func (ch *CH) updateLayer(layer int, idx uint64, delta int64) error {
	overflow, err := ch.addAt(layer, idx, delta)
	if err != nil {
		return err
	}
	mag := overflow
	if mag < 0 {
		mag = -mag
	}
	if mag == 0 {
		return nil
	}
	if layer == ch.L-1 {
		return &OverflowError{Layer: layer, By: uint64(mag)}
	}
	ch.status[layer].Set(uint(idx), 1)
	if ch.lazy {
		ch.carry[layer].Add(uint32(idx), mag)
		return nil
	}
	for h := uint(0); h < ch.noHash[layer]; h++ {
		dest := ch.hashDest(layer, idx, h)
		if err := ch.updateLayer(layer+1, dest, mag); err != nil {
			return err
		}
	}
	return nil
}

// addAt applies delta to layer/idx's bit-packed cell and returns the
// resulting overflow quantum as a signed count of 2^w(layer) units (always
// non-negative except for layer 0 in signed mode, where a large negative
// delta can drive the cell below its representable range).
func (ch *CH) addAt(layer int, idx uint64, delta int64) (int64, error) {
	arr := ch.layers[layer]
	w := ch.width[layer]
	if layer == 0 && ch.signed {
		old := bitpacked.SignExtend(arr.Get(uint(idx)), w)
		newVal := old + delta
		trunc := bitpacked.Truncate(newVal, w)
		reconstructed := bitpacked.SignExtend(trunc, w)
		arr.Set(uint(idx), trunc)
		overflowUnits := (newVal - reconstructed) >> w
		return overflowUnits, nil
	}
	if delta < 0 {
		// Only layer 0 receives negative deltas (carried overflow is always a
		// non-negative magnitude). A decrement lowers this cell alone and
		// stops at zero; it never borrows from the shared higher layers.
		old := arr.Get(uint(idx))
		dec := uint64(-delta)
		if dec > old {
			dec = old
		}
		arr.Set(uint(idx), old-dec)
		return 0, nil
	}
	overflow := arr.Add(uint(idx), uint64(delta))
	return int64(overflow), nil
}

// GetOriginalCnt reads layer 0's raw value only (truncated mod
// 2^width_cnt[0]), performing no reconstruction.
func (ch *CH) GetOriginalCnt(i uint64) int64 {
	ch.checkIdx(i)
	raw := ch.layers[0].Get(uint(i))
	if ch.signed {
		return bitpacked.SignExtend(raw, ch.width[0])
	}
	return int64(raw)
}

// ResetCnt sets the layer-0 cell directly to v, clearing any propagated
// higher bits for that cell index (used by heavy-hitter eviction to reclaim
// a slot without inheriting a stale carry chain).
func (ch *CH) ResetCnt(i uint64, v int64) {
	ch.checkIdx(i)
	ch.decodeDirty = true
	if ch.signed {
		ch.layers[0].Set(uint(i), bitpacked.Truncate(v, ch.width[0]))
	} else {
		ch.layers[0].Set(uint(i), uint64(v))
	}
	if ch.L > 1 {
		ch.status[0].Set(uint(i), 0)
	}
	if ch.comp != nil {
		// Re-anchor the compensation sketch's view of idx to v by adding
		// the delta needed to bring its estimate to v.
		ch.comp.add(i, v-ch.comp.estimate(i))
	}
}

// GetEstCnt is the quick, single-pass reconstruction used inside hot
// update paths: layer 0's value plus, for each higher layer, the value at
// one chosen overflow destination. It never forces a lazy-mode drain, so
// it stays O(L) regardless of propagation mode.
func (ch *CH) GetEstCnt(i uint64) int64 {
	ch.checkIdx(i)
	val := ch.GetOriginalCnt(i)
	shift := ch.width[0]
	cur := i
	for layer := 0; layer < ch.L-1; layer++ {
		dest := ch.hashDest(layer, cur, 0)
		v := int64(ch.layers[layer+1].Get(uint(dest)))
		val += v << shift
		shift += ch.width[layer+1]
		cur = dest
	}
	if ch.signed && ch.comp != nil && ch.L > 1 {
		if sign := ch.comp.guessSign(i); sign < 0 && val > 0 {
			val = -val
		}
	}
	return val
}

// Clear returns the CH to its construction state: all layers, status bits,
// the lazy carry maps and the compensation sketch are zeroed.
func (ch *CH) Clear() {
	for _, l := range ch.layers {
		l.Clear()
	}
	for _, s := range ch.status {
		s.Clear()
	}
	for _, c := range ch.carry {
		c.Drain()
	}
	if ch.comp != nil {
		ch.comp.clear()
	}
	ch.decodeDirty = true
}

// Size returns the physical byte footprint: layers, status bits, any
// compensation sketch, and the carry maps' current pending entries.
func (ch *CH) Size() uint64 {
	var total uint64
	for _, l := range ch.layers {
		total += l.Size()
	}
	for _, s := range ch.status {
		total += s.Size()
	}
	for _, c := range ch.carry {
		total += uint64(c.Len()) * 12
	}
	if ch.comp != nil {
		total += ch.comp.size()
	}
	return total
}
