// Package sketchcore declares the thin contract every sketch in this
// module implements a subset of, segregated by family so a caller can
// depend on exactly the capability it needs. It also re-exports the one
// sizing helper every concrete sketch's constructor needs regardless of
// family, so that dependency on flowkey's hashing internals stays confined
// to sketchcore and the sketches themselves.
package sketchcore

import "github.com/seiflotfy/flowch/flowkey"

// NextPrime rounds n up to the next prime at or above it, the width every
// concrete sketch constructor uses to turn a caller-requested row/column
// count into one that distributes evenly under modulo hashing.
func NextPrime(n uint64) uint64 {
	return flowkey.NextPrime(n)
}

// CountingSketch is the base contract: update a key's frequency, query an
// estimate of it. Every counting/heavy-hitter sketch embeds this.
type CountingSketch[T int64 | float64] interface {
	Update(key flowkey.FlowKey, val T)
	Query(key flowkey.FlowKey) T
	Size() uint64
	Clear()
}

// HeavySketch adds best-effort heavy-hitter enumeration to CountingSketch.
type HeavySketch[T int64 | float64] interface {
	CountingSketch[T]
	GetHeavyHitter(threshold float64) map[flowkey.FlowKey]T
}

// BloomFilter is the set-membership family: insert/lookup, no frequency.
type BloomFilter interface {
	Insert(key flowkey.FlowKey)
	Lookup(key flowkey.FlowKey) bool
	Size() uint64
	Clear()
}

// DecodingSketch adds bulk decode to CountingSketch (CounterBraids/FlowRadar
// family); decode may return fewer keys than were inserted if the counter
// system is underdetermined — that is a property of the stream, not an
// error.
type DecodingSketch[T int64 | float64] interface {
	CountingSketch[T]
	Decode() (map[flowkey.FlowKey]T, error)
}
