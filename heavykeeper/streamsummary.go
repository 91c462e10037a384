package heavykeeper

import (
	"container/list"

	"github.com/seiflotfy/flowch/flowkey"
)

// entry is one tracked flow's slot in the summary: its key, current
// estimate, and a pointer back to the bucket it currently lives in.
type entry struct {
	key        flowkey.FlowKey
	val        int64
	bucketElem *list.Element // *list.Element whose Value is *bucketNode
}

// bucketNode groups every currently-tracked entry that shares the same
// estimate, mirroring the original hash-table/bucket-list split: moving an
// entry between two equal-valued flows costs nothing beyond a map
// operation, and the bucket list itself stays exactly as long as the
// number of distinct values in play.
type bucketNode struct {
	val     int64
	members map[flowkey.FlowKey]*entry
}

// streamSummary is a fixed-capacity top-K tracker: a hash table
// (byKey) for O(1) membership/lookup, and a list of buckets kept sorted
// ascending by value so the minimum-valued tracked entry is always the
// list's head.
type streamSummary struct {
	buckets   *list.List
	bucketIdx map[int64]*list.Element
	byKey     map[flowkey.FlowKey]*entry
	capacity  int
}

func newStreamSummary(capacity int) *streamSummary {
	return &streamSummary{
		buckets:   list.New(),
		bucketIdx: make(map[int64]*list.Element),
		byKey:     make(map[flowkey.FlowKey]*entry),
		capacity:  capacity,
	}
}

func (s *streamSummary) size() int { return len(s.byKey) }

func (s *streamSummary) find(key flowkey.FlowKey) (*entry, bool) {
	e, ok := s.byKey[key]
	return e, ok
}

// insertBucket creates a new bucket for val at its sorted position,
// scanning from the list head — the summary's capacity is small (it is a
// top-K tracker, not a general-purpose index), so a linear scan over the
// distinct-value buckets is cheap in practice.
func (s *streamSummary) insertBucket(val int64) *list.Element {
	el := s.buckets.Front()
	for el != nil && el.Value.(*bucketNode).val < val {
		el = el.Next()
	}
	node := &bucketNode{val: val, members: make(map[flowkey.FlowKey]*entry)}
	var inserted *list.Element
	if el == nil {
		inserted = s.buckets.PushBack(node)
	} else {
		inserted = s.buckets.InsertBefore(node, el)
	}
	s.bucketIdx[val] = inserted
	return inserted
}

func (s *streamSummary) bucketFor(val int64) *list.Element {
	if el, ok := s.bucketIdx[val]; ok {
		return el
	}
	return s.insertBucket(val)
}

func (s *streamSummary) removeFromBucket(e *entry) {
	node := e.bucketElem.Value.(*bucketNode)
	delete(node.members, e.key)
	if len(node.members) == 0 {
		delete(s.bucketIdx, node.val)
		s.buckets.Remove(e.bucketElem)
	}
}

// emplace inserts a brand-new tracked entry for key at val.
func (s *streamSummary) emplace(key flowkey.FlowKey, val int64) *entry {
	el := s.bucketFor(val)
	node := el.Value.(*bucketNode)
	e := &entry{key: key, val: val, bucketElem: el}
	node.members[key] = e
	s.byKey[key] = e
	return e
}

// promote moves an already-tracked entry to a new (higher) value's bucket.
func (s *streamSummary) promote(e *entry, newVal int64) {
	s.removeFromBucket(e)
	el := s.bucketFor(newVal)
	node := el.Value.(*bucketNode)
	e.val = newVal
	e.bucketElem = el
	node.members[e.key] = e
}

// evict removes e from the summary entirely.
func (s *streamSummary) evict(e *entry) {
	s.removeFromBucket(e)
	delete(s.byKey, e.key)
}

// leastEntry returns an arbitrary member of the lowest-valued bucket, or
// false if the summary is empty.
func (s *streamSummary) leastEntry() (*entry, bool) {
	front := s.buckets.Front()
	if front == nil {
		return nil, false
	}
	node := front.Value.(*bucketNode)
	for _, e := range node.members {
		return e, true
	}
	return nil, false
}

// leastVal returns the current minimum tracked value, or 0 if empty —
// matching the original's "n_min_ = 0 when nothing is tracked yet".
func (s *streamSummary) leastVal() int64 {
	front := s.buckets.Front()
	if front == nil {
		return 0
	}
	return front.Value.(*bucketNode).val
}

// all returns every tracked (key, value) pair, used by GetHeavyHitter.
func (s *streamSummary) all() map[flowkey.FlowKey]int64 {
	out := make(map[flowkey.FlowKey]int64, len(s.byKey))
	for k, e := range s.byKey {
		out[k] = e.val
	}
	return out
}
