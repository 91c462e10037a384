package hierarchy

import (
	"strconv"

	"github.com/seiflotfy/flowch/flowkey"
)

// Config is the host-facing CH configuration: the geometry of every layer
// above layer 0, expressed as a ratio so that
// no_cnt[0] (fixed by the enclosing sketch, typically d*w) is the only
// thing the caller has to pick explicitly.
type Config struct {
	// WidthCnt holds the bit-width of every layer's cells, length L >= 1.
	// Sum(WidthCnt) must be < 64 so a fully reconstructed value still fits
	// in a machine word.
	WidthCnt []uint

	// CntNoRatio sizes each layer above the first: no_cnt[i] =
	// NextPrime(ceil(no_cnt[i-1] * CntNoRatio)). Must be in (0, 1).
	CntNoRatio float64

	// NoHash holds the number of carry-routing hashes used at each
	// layer boundary, length L-1: NoHash[i] hashes route overflow from
	// layer i to layer i+1.
	NoHash []uint

	// SignedMode interprets layer 0 as two's complement at its width.
	SignedMode bool

	// Lazy defers carry propagation to the next decode instead of
	// propagating eagerly inside UpdateCnt.
	Lazy bool

	// CmR, CmW size an optional compensation auxiliary (count-min-like,
	// CmR rows by CmW columns) that tracks the true delta stream
	// independently of bit-packing. Both zero disables it; exactly one zero
	// is rejected as ConfigInvalid.
	CmR, CmW uint

	// Hasher is the carry-routing hash oracle. Defaults to
	// flowkey.FarmHasher{} when nil.
	Hasher flowkey.Hasher

	// Seed seeds every internal hash family derived from Hasher. Defaults
	// to a fixed constant when zero, so tests are reproducible unless the
	// caller supplies their own.
	Seed uint64

	// Iterations is the number of message-passing rounds getCnt's decode
	// runs per layer transition. 10 is the de facto constant in practice;
	// kept as a construction knob here, default 10 when zero.
	Iterations uint
}

func (c Config) layers() int { return len(c.WidthCnt) }

func (c Config) validate() error {
	if len(c.WidthCnt) == 0 {
		return &ConfigInvalidError{Reason: "width_cnt must have at least one layer"}
	}
	sum := uint(0)
	for i, w := range c.WidthCnt {
		if w < 1 || w > 64 {
			return &ConfigInvalidError{Reason: "width_cnt[" + strconv.Itoa(i) + "] must be in [1, 64]"}
		}
		sum += w
	}
	if sum >= 64 {
		return &ConfigInvalidError{Reason: "sum of width_cnt must be < 64 so reconstructed values fit a machine word"}
	}
	if len(c.WidthCnt) > 1 {
		if c.CntNoRatio <= 0.0 || c.CntNoRatio >= 1.0 {
			return &ConfigInvalidError{Reason: "cnt_no_ratio must be in (0, 1)"}
		}
		if len(c.NoHash) != len(c.WidthCnt)-1 {
			return &ConfigInvalidError{Reason: "no_hash must have length len(width_cnt)-1"}
		}
		for i, h := range c.NoHash {
			if h < 1 {
				return &ConfigInvalidError{Reason: "no_hash[" + strconv.Itoa(i) + "] must be >= 1"}
			}
		}
	}
	if (c.CmR == 0) != (c.CmW == 0) {
		return &ConfigInvalidError{Reason: "cm_r and cm_w must both be zero or both positive"}
	}
	return nil
}

