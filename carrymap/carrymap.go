// Package carrymap implements the transient delta map CounterHierarchy uses
// to batch carry propagation between layers in lazy mode.
package carrymap

// Map is a mapping from cell index to a pending signed delta. Deltas are
// signed so that negative carries originating from a signed-mode layer-0
// mutation can be represented, even though unsigned CH carries are always
// positive.
type Map struct {
	deltas map[uint32]int64
}

// New returns an empty CarryMap.
func New() *Map {
	return &Map{deltas: make(map[uint32]int64)}
}

// Add accumulates delta onto whatever is pending for idx.
func (m *Map) Add(idx uint32, delta int64) {
	m.deltas[idx] += delta
}

// Each calls fn once per (idx, delta) pair currently pending. Iteration
// order is unspecified.
func (m *Map) Each(fn func(idx uint32, delta int64)) {
	for idx, delta := range m.deltas {
		fn(idx, delta)
	}
}

// Len reports how many distinct cell indices have a pending delta.
func (m *Map) Len() int { return len(m.deltas) }

// Drain returns all pending (idx, delta) pairs and empties the map, for a
// caller that wants to propagate them layer by layer and then discard them.
func (m *Map) Drain() []Entry {
	out := make([]Entry, 0, len(m.deltas))
	for idx, delta := range m.deltas {
		out = append(out, Entry{Idx: idx, Delta: delta})
	}
	m.deltas = make(map[uint32]int64)
	return out
}

// Entry is one pending (cell index, delta) pair produced by Drain.
type Entry struct {
	Idx   uint32
	Delta int64
}
