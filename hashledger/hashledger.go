// Package hashledger composes a skip-ledger with a witnessed-row repo
// (§4.F): the two components share a joint invariant — no trailed row
// outlives the ledger it was cut from — and a trim on one cascades to
// the other.
package hashledger

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/ledger"
	"github.com/crums-io/skipledger-sub005/lerr"
	"github.com/crums-io/skipledger-sub005/trail"
)

// HashLedger is a skip-ledger paired with its witnessed-row repo.
type HashLedger struct {
	mu     sync.RWMutex
	ledger *ledger.SkipLedger
	trails trail.Repo
}

// New pairs an already-open ledger and trail repo. trim calls cascade
// from l to t; Close closes both.
func New(l *ledger.SkipLedger, t trail.Repo) *HashLedger {
	return &HashLedger{ledger: l, trails: t}
}

func (h *HashLedger) Ledger() *ledger.SkipLedger { return h.ledger }
func (h *HashLedger) Trails() trail.Repo         { return h.trails }

// Append appends an input hash to the skip-ledger.
func (h *HashLedger) Append(inputHash hashcodec.Hash) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ledger.Append(inputHash)
}

// Trim trims the skip-ledger to newSize and cascades to the trail repo,
// dropping every trailed row past the new size (§4.F).
func (h *HashLedger) Trim(newSize int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ledger.Trim(newSize); err != nil {
		return err
	}
	return h.trails.TrimAfter(newSize)
}

// LastWitnessedN returns the row number of the most recently trailed
// row, or 0 if none has been witnessed yet.
func (h *HashLedger) LastWitnessedN() (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	last, ok, err := h.trails.Last()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last.N, nil
}

// UnwitnessedCount returns size() - last_witnessed_n() (§4.F).
func (h *HashLedger) UnwitnessedCount() (int64, error) {
	h.mu.RLock()
	size, err := h.ledger.Size()
	h.mu.RUnlock()
	if err != nil {
		return 0, err
	}
	last, err := h.LastWitnessedN()
	if err != nil {
		return 0, err
	}
	return size - last, nil
}

// AddTrail enforces the joint invariant (trailed.N <= ledger size())
// before delegating to the repo's own monotonic checks.
func (h *HashLedger) AddTrail(trailed trail.Trailed) (bool, error) {
	h.mu.RLock()
	size, err := h.ledger.Size()
	h.mu.RUnlock()
	if err != nil {
		return false, err
	}
	if trailed.N > size {
		return false, errors.Wrapf(&lerr.OutOfRange{Row: trailed.N, Size: size}, "hashledger: cannot trail a row past the ledger's size")
	}
	return h.trails.Add(trailed)
}

func (h *HashLedger) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	err1 := h.ledger.Close()
	err2 := h.trails.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
