// Package lerr is the shared error taxonomy (§7) every other package
// returns instead of printing. The core never logs; it returns one of
// these typed errors and lets the caller (ultimately the CLI) decide
// how to present it.
package lerr

import "fmt"

// FormatError reports malformed bytes in a morsel, seal, or offsets
// file. Not recoverable; ByteOffset locates the first bad byte.
type FormatError struct {
	ByteOffset int64
	Msg        string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error at byte offset %d: %s", e.ByteOffset, e.Msg)
}

// HashConflict reports that the recomputed row hash for row N disagrees
// with a stored value. The CLI suggests fix-offsets or rollback.
type HashConflict struct {
	Row int64
}

func (e *HashConflict) Error() string {
	return fmt.Sprintf("hash conflict at row %d", e.Row)
}

// OffsetConflict reports that an offsets-file checkpoint disagrees with
// a re-scan, while the row hash at that row still matches. Recoverable
// via fix-offsets.
type OffsetConflict struct {
	Row            int64
	ExpectedOffset int64
}

func (e *OffsetConflict) Error() string {
	return fmt.Sprintf("offset conflict at row %d: expected offset %d", e.Row, e.ExpectedOffset)
}

// OutOfRange reports a row number outside [1, size()]. A programmer
// error that propagates rather than being swallowed.
type OutOfRange struct {
	Row  int64
	Size int64
}

func (e *OutOfRange) Error() string {
	return fmt.Sprintf("row %d out of range [1,%d]", e.Row, e.Size)
}

// NotCovered reports that a path lacks the hash of row N. A programmer
// error: the caller built or received an insufficiently covering path.
type NotCovered struct {
	Row int64
}

func (e *NotCovered) Error() string {
	return fmt.Sprintf("row %d is not covered by this path", e.Row)
}

// IoError wraps an underlying storage read/write failure. The ledger
// may need to become read-only until close.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error during %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// NetworkError reports a failed witness submission. Recoverable by
// retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NotTracked reports that an operation needs a tracking directory that
// does not exist.
type NotTracked struct {
	Path string
}

func (e *NotTracked) Error() string {
	return fmt.Sprintf("%s is not a tracked journal", e.Path)
}
