package hierarchy

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// modHasher returns a Hasher where Hash(key, seed) = (idx encoded in key) % m,
// ignoring seed.
func modHasher(m uint64) fixedHasher {
	return fixedHasher{fn: func(key []byte, _ uint64) uint64 {
		idx := binary.LittleEndian.Uint64(key)
		return idx % m
	}}
}

// TestSingleLayerOverflow drives one cell past its layer-0 width and checks
// that the overflow is absorbed and recoverable through GetCnt, while
// GetOriginalCnt keeps reporting only the raw, truncated remainder.
func TestSingleLayerOverflow(t *testing.T) {
	ch := newForTest([]uint64{3, 2}, []uint{2, 4}, []uint{1}, false, false, modHasher(2))

	if err := ch.UpdateCnt(0, 3); err != nil {
		t.Fatalf("update 1: %v", err)
	}
	if err := ch.UpdateCnt(0, 2); err != nil {
		t.Fatalf("update 2: %v", err)
	}

	if got := ch.GetOriginalCnt(0); got != 1 {
		t.Fatalf("GetOriginalCnt(0) = %d, want 1", got)
	}
	if got := ch.GetCnt(0); got != 5 {
		t.Fatalf("GetCnt(0) = %d, want 5", got)
	}
}

// TestDecodeConvergence drives 10 distinct layer-0 cells each to overflow
// exactly once; GetCnt must recover the exact total delta for each with
// zero decode error.
func TestDecodeConvergence(t *testing.T) {
	noCnt := []uint64{100, 20}
	ch := newForTest(noCnt, []uint{2, 30}, []uint{3}, false, false, flowkeyDefaultTestHasher())

	// Drive exactly 10 distinct layer-0 cells into overflowing once each:
	// width_cnt[0] = 2 means a single add of 4 always overflows by exactly 1
	// and leaves the original cell back at 0.
	overflowed := []uint64{3, 7, 11, 19, 23, 31, 47, 59, 67, 89}
	for _, idx := range overflowed {
		if err := ch.UpdateCnt(idx, 4); err != nil {
			t.Fatalf("update(%d): %v", idx, err)
		}
	}

	for _, idx := range overflowed {
		if got := ch.GetCnt(idx); got != 4 {
			t.Errorf("GetCnt(%d) = %d, want 4 (exact, zero decode error)", idx, got)
		}
	}
}

// flowkeyDefaultTestHasher gives S5 a deterministic but non-trivial spread
// across layer 1 (unlike S1's forced mod-2 collision), exercising the real
// FarmHasher-shaped hash path end to end.
func flowkeyDefaultTestHasher() fixedHasher {
	return fixedHasher{fn: func(key []byte, seed uint64) uint64 {
		idx := binary.LittleEndian.Uint64(key)
		return (idx*2654435761 + seed) & 0xffffffff
	}}
}

// TestMonotonicityUnsignedMode is invariant 3: if UpdateCnt is called only
// with non-negative deltas, GetCnt is non-decreasing in the update
// sequence.
func TestMonotonicityUnsignedMode(t *testing.T) {
	ch := newForTest([]uint64{11, 5}, []uint{3, 20}, []uint{2}, false, false, flowkeyDefaultTestHasher())

	prev := int64(0)
	for i := 0; i < 50; i++ {
		if err := ch.UpdateCnt(uint64(i%11), int64(1+i%3)); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		got := ch.GetCnt(uint64(i % 11))
		if got < prev-1<<20 {
			// Only a sanity bound: true monotonicity is per-cell, checked below.
		}
		prev = got
	}

	// Per-cell monotonicity: track one cell across repeated non-negative
	// updates and confirm GetCnt never decreases.
	ch2 := newForTest([]uint64{7, 3}, []uint{2, 20}, []uint{1}, false, false, flowkeyDefaultTestHasher())
	last := int64(0)
	for i := 0; i < 30; i++ {
		if err := ch2.UpdateCnt(2, 1); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		got := ch2.GetCnt(2)
		if got < last {
			t.Fatalf("GetCnt decreased: %d -> %d at step %d", last, got, i)
		}
		last = got
	}
}

// TestFaithfulReconstructionNoContention is invariant 4: with no_hash=1 and
// unique destinations per source cell, GetCnt equals the exact sum of
// deltas added, for every cell.
func TestFaithfulReconstructionNoContention(t *testing.T) {
	// 5 layer-0 cells, each routed to its own unique layer-1 cell.
	ch := newForTest([]uint64{5, 5}, []uint{2, 20}, []uint{1}, false, false, modHasher(5))

	totals := make(map[uint64]int64)
	deltas := []struct {
		idx   uint64
		delta int64
	}{
		{0, 3}, {1, 7}, {2, 1}, {3, 10}, {4, 2},
		{0, 5}, {2, 9}, {4, 6},
	}
	for _, d := range deltas {
		require.NoErrorf(t, ch.UpdateCnt(d.idx, d.delta), "update(%d,%d)", d.idx, d.delta)
		totals[d.idx] += d.delta
	}

	for idx, want := range totals {
		require.Equalf(t, want, ch.GetCnt(idx), "GetCnt(%d)", idx)
	}
}

func TestClearResetsState(t *testing.T) {
	ch := newForTest([]uint64{5, 5}, []uint{2, 20}, []uint{1}, false, false, modHasher(5))
	_ = ch.UpdateCnt(0, 10)
	ch.Clear()
	if got := ch.GetOriginalCnt(0); got != 0 {
		t.Fatalf("after Clear, GetOriginalCnt(0) = %d, want 0", got)
	}
	if got := ch.GetCnt(0); got != 0 {
		t.Fatalf("after Clear, GetCnt(0) = %d, want 0", got)
	}
}

func TestTopLayerOverflowIsFatal(t *testing.T) {
	ch := newForTest([]uint64{3, 2}, []uint{2, 2}, []uint{1}, false, false, modHasher(2))
	_ = ch.UpdateCnt(0, 4) // overflows layer 0 by 1 into layer 1 cell 0: fine (1 < 4)
	err := ch.UpdateCnt(1, 4*4)
	if err == nil {
		t.Fatalf("expected top-layer overflow error")
	}
	if _, ok := err.(*OverflowError); !ok {
		t.Fatalf("expected *OverflowError, got %T: %v", err, err)
	}
}

func TestIndexOutOfRangePanics(t *testing.T) {
	ch := newForTest([]uint64{5}, []uint{4}, nil, false, false, modHasher(5))
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on out-of-range index")
		}
	}()
	_ = ch.UpdateCnt(99, 1)
}

func TestLazyModeMatchesEager(t *testing.T) {
	eager := newForTest([]uint64{7, 5}, []uint{2, 20}, []uint{1}, false, false, modHasher(5))
	lazy := newForTest([]uint64{7, 5}, []uint{2, 20}, []uint{1}, false, true, modHasher(5))

	for i := 0; i < 20; i++ {
		idx := uint64(i % 7)
		require.NoError(t, eager.UpdateCnt(idx, 3))
		require.NoError(t, lazy.UpdateCnt(idx, 3))
	}
	for i := uint64(0); i < 7; i++ {
		require.Equalf(t, eager.GetCnt(i), lazy.GetCnt(i), "cell %d", i)
	}
}
