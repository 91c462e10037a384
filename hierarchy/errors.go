package hierarchy

import "fmt"

// ConfigInvalidError is returned by New when a ChConfig violates one of the
// layer/width/ratio invariants. It is never recovered from; the caller must
// fix the configuration and reconstruct.
type ConfigInvalidError struct {
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("hierarchy: invalid config: %s", e.Reason)
}

// OverflowError is returned by UpdateCnt when the top CH layer itself
// overflows. This means the geometry was sized too tightly for the
// workload; it is fatal to the stream and the caller must resize.
type OverflowError struct {
	Layer int
	By    uint64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("hierarchy: top layer %d overflowed by %d", e.Layer, e.By)
}

// IndexOutOfRangeError marks a programming bug: an operation addressed a
// cell index outside [0, no_cnt[0]). CH panics with this error's message
// string rather than returning it: this is never a recoverable stream
// condition.
type IndexOutOfRangeError struct {
	Idx uint64
	N   uint64
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("hierarchy: index %d out of range [0, %d)", e.Idx, e.N)
}
