package flowkey

import "testing"

func TestNextPrime(t *testing.T) {
	cases := []struct{ n, want uint64 }{
		{0, 2}, {1, 2}, {2, 2}, {3, 3}, {4, 5}, {17, 17}, {18, 19}, {100, 101},
	}
	for _, c := range cases {
		if got := NextPrime(c.n); got != c.want {
			t.Errorf("NextPrime(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestFlowKeyEqualAndBit(t *testing.T) {
	var a, b FlowKey
	a[0] = 0b00000101
	b[0] = 0b00000101
	if !a.Equal(b) {
		t.Fatalf("Equal = false, want true for identical keys")
	}
	b[1] = 1
	if a.Equal(b) {
		t.Fatalf("Equal = true, want false for differing keys")
	}
	if got := a.Bit(0); got != 1 {
		t.Errorf("Bit(0) = %d, want 1", got)
	}
	if got := a.Bit(1); got != 0 {
		t.Errorf("Bit(1) = %d, want 0", got)
	}
	if got := a.Bit(2); got != 1 {
		t.Errorf("Bit(2) = %d, want 1", got)
	}
}

func TestFromBytesRoundTrip(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5}
	k := FromBytes(src)
	got := k.Bytes()
	if len(got) != KeyLen {
		t.Fatalf("Bytes() length = %d, want %d", len(got), KeyLen)
	}
	for i, v := range src {
		if got[i] != v {
			t.Errorf("byte %d = %d, want %d", i, got[i], v)
		}
	}
	for i := len(src); i < KeyLen; i++ {
		if got[i] != 0 {
			t.Errorf("byte %d = %d, want 0 (zero-padded)", i, got[i])
		}
	}
}

func TestRowSeedDiffersPerRow(t *testing.T) {
	base := uint64(42)
	seen := make(map[uint64]bool)
	for row := 0; row < 8; row++ {
		s := RowSeed(base, row)
		if seen[s] {
			t.Errorf("RowSeed(%d, %d) collided with an earlier row", base, row)
		}
		seen[s] = true
	}
}

func TestFarmHasherDeterministic(t *testing.T) {
	h := FarmHasher{}
	k := testKey(7)
	a := h.Hash(k.Bytes(), 1)
	b := h.Hash(k.Bytes(), 1)
	if a != b {
		t.Fatalf("Hash not deterministic for same key/seed: %d != %d", a, b)
	}
	if c := h.Hash(k.Bytes(), 2); c == a {
		t.Errorf("Hash(seed=1) == Hash(seed=2); seeds should usually diverge")
	}
}

func testKey(n uint64) FlowKey {
	var k FlowKey
	k[0] = byte(n)
	k[1] = byte(n >> 8)
	return k
}
