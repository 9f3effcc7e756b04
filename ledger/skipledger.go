// Package ledger implements the skip-ledger core (§4.C): an append-only
// row table where each row's hash fuses its input hash with the hashes
// of a logarithmic number of predecessor rows ("skip pointers"),
// enabling the short membership and connectivity proofs the path
// package builds on.
package ledger

import (
	"math/bits"
	"sync"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/lerr"
)

// SkipCount returns s(n) = 1 + v2(n), the number of predecessor rows
// that row n's hash references (§3 Data model). s(n) for n = 2^k·m (m
// odd) is k+1; s(1) = 1.
func SkipCount(n int64) int {
	if n < 1 {
		return 0
	}
	return 1 + bits.TrailingZeros64(uint64(n))
}

// Row is one committed entry of a skip-ledger.
type Row struct {
	N         int64
	InputHash hashcodec.Hash
	RowHash   hashcodec.Hash
}

// ComputeRowHash computes h_row(n) = H(h_in ‖ h_row(n-2^0) ‖ ... ‖
// h_row(n-2^{s(n)-1})) given a function to fetch any predecessor's row
// hash (§3). Exported so components that compute row hashes without a
// live ledger in front of them — the journal player replaying a text
// source, in particular — share this one implementation of the
// formula rather than re-deriving it.
func ComputeRowHash(n int64, inputHash hashcodec.Hash, predecessor func(m int64) (hashcodec.Hash, error)) (hashcodec.Hash, error) {
	s := SkipCount(n)
	parts := make([][]byte, 0, s+1)
	parts = append(parts, inputHash[:])
	for p := 0; p < s; p++ {
		m := n - (int64(1) << uint(p))
		h, err := predecessor(m)
		if err != nil {
			return hashcodec.Hash{}, err
		}
		parts = append(parts, h[:])
	}
	return hashcodec.Sum(parts...), nil
}

// SkipLedger is the append-only, hash-linked row table (§3, §4.C). It is
// single-writer, multi-reader (§5): Append/AppendBatch/Trim take an
// exclusive lock, while GetRow/RowHash/Size take a brief shared lock.
type SkipLedger struct {
	mu    sync.RWMutex
	store RowStore
}

// New wraps store as a SkipLedger. store must already reflect any
// previously committed rows (e.g. a FileRowStore opened against an
// existing row table).
func New(store RowStore) *SkipLedger {
	return &SkipLedger{store: store}
}

// NewInMemory is a convenience constructor for tests and short-lived
// ledgers.
func NewInMemory() *SkipLedger {
	return New(NewMemoryRowStore())
}

// Size returns N, the number of committed rows.
func (l *SkipLedger) Size() (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.Size()
}

// rowHashLocked returns h_row(m) for 0 <= m <= size, assuming the
// caller already holds at least a read lock. Row 0 is the sentinel.
func (l *SkipLedger) rowHashLocked(m int64) (hashcodec.Hash, error) {
	if m == 0 {
		return hashcodec.Sentinel, nil
	}
	rec, err := l.store.Get(m)
	if err != nil {
		return hashcodec.Hash{}, err
	}
	return rec.RowHash, nil
}

// GetRow performs a random-access read of row n, 1 <= n <= size().
func (l *SkipLedger) GetRow(n int64) (Row, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	size, err := l.store.Size()
	if err != nil {
		return Row{}, err
	}
	if n < 1 || n > size {
		return Row{}, &lerr.OutOfRange{Row: n, Size: size}
	}
	rec, err := l.store.Get(n)
	if err != nil {
		return Row{}, err
	}
	return Row{N: n, InputHash: rec.InputHash, RowHash: rec.RowHash}, nil
}

// RowHash returns h_row(n); row 0 returns the sentinel.
func (l *SkipLedger) RowHash(n int64) (hashcodec.Hash, error) {
	if n == 0 {
		return hashcodec.Sentinel, nil
	}
	row, err := l.GetRow(n)
	if err != nil {
		return hashcodec.Hash{}, err
	}
	return row.RowHash, nil
}

// StateHash returns h_row(size()), the ledger's current commitment.
func (l *SkipLedger) StateHash() (hashcodec.Hash, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	size, err := l.store.Size()
	if err != nil {
		return hashcodec.Hash{}, err
	}
	return l.rowHashLocked(size)
}

// Append computes h_row(N+1) from inputHash and the existing ledger,
// extends the row table by one, and returns the new row number.
func (l *SkipLedger) Append(inputHash hashcodec.Hash) (int64, error) {
	last, err := l.AppendBatch([]hashcodec.Hash{inputHash})
	if err != nil {
		return 0, err
	}
	return last, nil
}

// AppendBatch atomically appends len(inputHashes) rows, returning the
// new final row number.
func (l *SkipLedger) AppendBatch(inputHashes []hashcodec.Hash) (int64, error) {
	if len(inputHashes) == 0 {
		size, err := l.Size()
		return size, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	size, err := l.store.Size()
	if err != nil {
		return 0, err
	}

	// predecessor must see both already-committed rows (via the store)
	// and rows earlier in this same batch (not yet flushed).
	pending := make(map[int64]hashcodec.Hash, len(inputHashes))
	predecessor := func(m int64) (hashcodec.Hash, error) {
		if h, ok := pending[m]; ok {
			return h, nil
		}
		return l.rowHashLocked(m)
	}

	recs := make([]Record, len(inputHashes))
	n := size
	for i, in := range inputHashes {
		n++
		h, err := ComputeRowHash(n, in, predecessor)
		if err != nil {
			return 0, errors.Wrapf(err, "ledger: computing row hash for row %d", n)
		}
		pending[n] = h
		recs[i] = Record{InputHash: in, RowHash: h}
	}
	if err := l.store.Append(recs...); err != nil {
		return 0, &lerr.IoError{Op: "append", Err: err}
	}
	return n, nil
}

// Trim truncates the ledger to newSize rows, 0 <= newSize <= size().
// Surviving rows' hashes are unaffected (§4.C invariant).
func (l *SkipLedger) Trim(newSize int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	size, err := l.store.Size()
	if err != nil {
		return err
	}
	if newSize < 0 || newSize > size {
		return &lerr.OutOfRange{Row: newSize, Size: size}
	}
	if err := l.store.Trim(newSize); err != nil {
		return &lerr.IoError{Op: "trim", Err: err}
	}
	return nil
}

// Close releases the underlying row store.
func (l *SkipLedger) Close() error {
	return l.store.Close()
}

// VerifyRow recomputes h_row(n) from the store and reports whether it
// matches the stored value, without mutating anything (§8 invariant 1).
// On mismatch it returns *lerr.HashConflict.
func (l *SkipLedger) VerifyRow(n int64) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	size, err := l.store.Size()
	if err != nil {
		return err
	}
	if n < 1 || n > size {
		return &lerr.OutOfRange{Row: n, Size: size}
	}
	rec, err := l.store.Get(n)
	if err != nil {
		return err
	}
	got, err := ComputeRowHash(n, rec.InputHash, l.rowHashLocked)
	if err != nil {
		return err
	}
	if got != rec.RowHash {
		return &lerr.HashConflict{Row: n}
	}
	return nil
}
