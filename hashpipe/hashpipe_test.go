package hashpipe

import (
	"encoding/binary"
	"testing"

	"github.com/seiflotfy/flowch/flowkey"
	"github.com/seiflotfy/flowch/hierarchy"
)

func testKey(n uint64) flowkey.FlowKey {
	var b [flowkey.KeyLen]byte
	binary.LittleEndian.PutUint64(b[:8], n)
	return flowkey.FlowKey(b)
}

// sameCellHasher sends every key to column 0, so that keys are sure to
// share a slot even though a requested width of 1 is rounded up to 2.
type sameCellHasher struct{}

func (sameCellHasher) Hash(key []byte, seed uint64) uint64 { return 0 }

// TestInvariant8AlwaysResidentAfterUpdate checks that after an update, the
// key is resident in at least one row. HashPipe always places the newcomer
// in row 0 outright, so this holds after every single update, full or not.
// Keys start at 1: the all-zero key is the pipe's empty-slot marker.
func TestInvariant8AlwaysResidentAfterUpdate(t *testing.T) {
	cfg := hierarchy.Config{WidthCnt: []uint{16}}
	hp, err := New(3, 8, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := uint64(0); i < 200; i++ {
		k := testKey(i + 1)
		hp.Update(k, 1)
		resident := false
		for row := uint(0); row < hp.depth; row++ {
			idx, col := hp.cellIdx(row, k)
			if hp.keys[row][col].Equal(k) {
				resident = true
				if got := hp.grid.GetCnt(idx); got <= 0 {
					t.Errorf("key %d resident in row %d with non-positive counter %d", i, row, got)
				}
			}
		}
		if !resident {
			t.Errorf("key %d not resident in any row immediately after its own update", i)
		}
	}
}

func TestMatchAccumulatesAcrossRepeatedUpdates(t *testing.T) {
	cfg := hierarchy.Config{WidthCnt: []uint{16}}
	hp, err := New(2, 8, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	k := testKey(1)
	for i := 0; i < 5; i++ {
		hp.Update(k, 2)
	}
	if got := hp.Query(k); got != 10 {
		t.Errorf("Query after 5 updates of weight 2 = %d, want 10", got)
	}
}

func TestDepthOneEvictsOutright(t *testing.T) {
	// A depth-1 pipe can't cascade anywhere: the second key to land on the
	// same slot always evicts the first outright (row 0 never compares
	// values), so the first key's query drops back to 0.
	cfg := hierarchy.Config{WidthCnt: []uint{16}}
	hp, err := New(1, 1, cfg, sameCellHasher{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, b := testKey(1), testKey(2)
	hp.Update(a, 100)
	if got := hp.Query(a); got != 100 {
		t.Fatalf("Query(a) = %d, want 100", got)
	}
	hp.Update(b, 1)
	if got := hp.Query(a); got != 0 {
		t.Errorf("Query(a) after eviction = %d, want 0", got)
	}
	if got := hp.Query(b); got != 1 {
		t.Errorf("Query(b) = %d, want 1", got)
	}
}

func TestClearResetsResidency(t *testing.T) {
	cfg := hierarchy.Config{WidthCnt: []uint{16}}
	hp, err := New(2, 8, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	k := testKey(1)
	hp.Update(k, 5)
	hp.Clear()
	if got := hp.Query(k); got != 0 {
		t.Fatalf("Query after Clear = %d, want 0", got)
	}
	for row := range hp.keys {
		for col := range hp.keys[row] {
			if !hp.keys[row][col].Equal(flowkey.Zero()) {
				t.Fatalf("row %d col %d not cleared", row, col)
			}
		}
	}
}
