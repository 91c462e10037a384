// Package flowkey defines the fixed-width key type shared by every sketch
// in this module, plus the hash/prime-sizing contract a host must supply.
//
// The byte layout of a flow key (5-tuple, IP prefix, or whatever else a host
// chooses to encode) is explicitly out of scope for this module: it
// consumes only a fixed-width key with bit access and a hash(key, seed) ->
// u64 oracle. Width is fixed at KeyLen, sized for the common case (an IPv4
// 5-tuple: 4+4+2+2+1 bytes); a host needing a different width recompiles
// against a different KeyLen.
package flowkey

import "github.com/dgryski/go-farm"

// KeyLen is the fixed width, in bytes, of every FlowKey in this build.
const KeyLen = 13

// FlowKey is a compile-time-fixed byte sequence: a 5-tuple, an IP-header
// prefix, or any other flow identifier a host chooses to encode. It is
// value-typed, comparable, and cheap to copy, which makes it usable
// directly as a map key for top-K bookkeeping.
type FlowKey [KeyLen]byte

// Zero returns the canonical all-zero key.
func Zero() FlowKey {
	var z FlowKey
	return z
}

// Equal reports whether two keys have identical bytes.
func (f FlowKey) Equal(other FlowKey) bool {
	return f == other
}

// Bit returns bit i of the key, 0 <= i < 8*KeyLen, little-endian over the
// byte array (byte 0's least significant bit is bit 0).
func (f FlowKey) Bit(i int) uint8 {
	byteIdx := i / 8
	bitIdx := uint(i % 8)
	return (f[byteIdx] >> bitIdx) & 1
}

// Bytes returns the key's underlying bytes as a slice, suitable for hashing.
func (f FlowKey) Bytes() []byte {
	b := make([]byte, len(f))
	copy(b, f[:])
	return b
}

// FromBytes builds a FlowKey from a byte slice, zero-padding or truncating
// to KeyLen as needed.
func FromBytes(b []byte) FlowKey {
	var f FlowKey
	copy(f[:], b)
	return f
}

// Hasher produces a seeded 64-bit hash of a flow key. A sketch calls it once
// per (row, key) pair with a distinct seed per row to emulate an independent
// hash family out of a single mixing function.
type Hasher interface {
	Hash(key []byte, seed uint64) uint64
}

// FarmHasher is the default Hasher, backed by farmhash's 64-bit mix.
type FarmHasher struct{}

// Hash returns farmhash's seeded 64-bit digest of key, so each seed gives a
// distinct, well-distributed hash; key is rehashed on every call.
func (FarmHasher) Hash(key []byte, seed uint64) uint64 {
	return farm.Hash64WithSeed(key, seed)
}

// RowSeed derives a per-row seed from a base seed and row index, used by
// every multi-row sketch to turn one Hasher into d independent ones.
func RowSeed(base uint64, row int) uint64 {
	return base*0x9e3779b97f4a7c15 + uint64(row)
}
