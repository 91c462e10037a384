package hierarchy

import (
	"github.com/seiflotfy/flowch/bitpacked"
	"github.com/seiflotfy/flowch/carrymap"
	"github.com/seiflotfy/flowch/flowkey"
)

// fixedHasher lets a test pin down exact carry-routing destinations instead
// of going through flowkey.FarmHasher, for tests that need a known hash,
// e.g. "hash(i, seed) = i mod 2".
type fixedHasher struct {
	fn func(key []byte, seed uint64) uint64
}

func (f fixedHasher) Hash(key []byte, seed uint64) uint64 { return f.fn(key, seed) }

// newForTest builds a CH with an exact per-layer no_cnt vector, bypassing
// New's prime-rounding and cnt_no_ratio sizing, for tests that need to
// specify layer widths directly.
func newForTest(noCnt []uint64, widthCnt []uint, noHash []uint, signed, lazy bool, hasher flowkey.Hasher) *CH {
	L := len(widthCnt)
	layers := make([]*bitpacked.Array, L)
	for i := 0; i < L; i++ {
		layers[i] = bitpacked.New(uint(noCnt[i]), widthCnt[i])
	}
	var status []*bitpacked.Array
	var carry []*carrymap.Map
	if L > 1 {
		status = make([]*bitpacked.Array, L-1)
		carry = make([]*carrymap.Map, L-1)
		for i := 0; i < L-1; i++ {
			status[i] = bitpacked.New(uint(noCnt[i]), 1)
			carry[i] = carrymap.New()
		}
	}
	return &CH{
		L:           L,
		noCnt:       noCnt,
		width:       widthCnt,
		noHash:      noHash,
		signed:      signed,
		lazy:        lazy,
		layers:      layers,
		status:      status,
		carry:       carry,
		hasher:      hasher,
		seed:        1,
		iters:       defaultIterations,
		decodeDirty: true,
	}
}
