// Package bloomfilter implements a Counting Bloom Filter over a shared
// Counter Hierarchy: nhash rows per key, insert only increments every row
// when at least one of them currently reads zero (a genuinely new
// membership), lookup is an AND over every row being nonzero, and remove
// is the symmetric decrement guarded by every row already being nonzero.
// Grounded on original_source CHCountingBloomFilter.h.
package bloomfilter

import (
	"github.com/seiflotfy/flowch/flowkey"
	"github.com/seiflotfy/flowch/hierarchy"
	"github.com/seiflotfy/flowch/sketchcore"
)

// counterGrid is the minimal surface the filter needs from its backing
// store.
type counterGrid interface {
	UpdateCnt(i uint64, delta int64) error
	GetEstCnt(i uint64) int64
	GetCnt(i uint64) int64
	Size() uint64
	Clear()
}

// Filter is a Counting Bloom Filter: nhash independent row hashes into one
// shared counter array of width ncnt.
type Filter struct {
	ncnt   uint64
	nhash  uint
	grid   counterGrid
	hasher flowkey.Hasher
	seed   uint64
}

// New builds a Filter over ncnt counters (rounded up to the next prime) and
// nhash hash rows, backed by a CH constructed from cfg.
func New(ncnt uint64, nhash uint, cfg hierarchy.Config, hasher flowkey.Hasher) (*Filter, error) {
	n := sketchcore.NextPrime(ncnt)
	ch, err := hierarchy.New(n, cfg)
	if err != nil {
		return nil, err
	}
	if hasher == nil {
		hasher = flowkey.FarmHasher{}
	}
	return &Filter{ncnt: ch.NoCnt0(), nhash: nhash, grid: ch, hasher: hasher, seed: 1}, nil
}

func (f *Filter) idx(row uint, key flowkey.FlowKey) uint64 {
	seed := flowkey.RowSeed(f.seed, int(row))
	return f.hasher.Hash(key.Bytes(), seed) % f.ncnt
}

// Insert adds key to the filter. If every one of its nhash rows is already
// nonzero, key is treated as already a member and nothing changes (so a
// repeated Insert doesn't inflate a shared counter indefinitely); otherwise
// every row is incremented by one, per CHCountingBloomFilter.h's insert().
func (f *Filter) Insert(key flowkey.FlowKey) {
	anyZero := false
	for r := uint(0); r < f.nhash; r++ {
		if f.grid.GetEstCnt(f.idx(r, key)) == 0 {
			anyZero = true
			break
		}
	}
	if !anyZero {
		return
	}
	for r := uint(0); r < f.nhash; r++ {
		_ = f.grid.UpdateCnt(f.idx(r, key), 1)
	}
}

// Lookup reports whether every one of key's nhash rows is currently
// nonzero — a true negative is exact (no false negatives); a positive may
// be a false positive from a row shared with other keys.
func (f *Filter) Lookup(key flowkey.FlowKey) bool {
	for r := uint(0); r < f.nhash; r++ {
		if f.grid.GetCnt(f.idx(r, key)) == 0 {
			return false
		}
	}
	return true
}

// Remove decrements every row by one, but only if every row is currently
// nonzero — the symmetric guard to Insert's "only increment on a genuinely
// new member", so Remove never takes a shared counter negative on key's
// behalf.
func (f *Filter) Remove(key flowkey.FlowKey) {
	for r := uint(0); r < f.nhash; r++ {
		if f.grid.GetCnt(f.idx(r, key)) == 0 {
			return
		}
	}
	for r := uint(0); r < f.nhash; r++ {
		_ = f.grid.UpdateCnt(f.idx(r, key), -1)
	}
}

// Size reports the grid's physical byte footprint.
func (f *Filter) Size() uint64 { return f.grid.Size() }

// Clear zeroes the grid.
func (f *Filter) Clear() { f.grid.Clear() }
