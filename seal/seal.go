// Package seal implements the single-row morsel-lite attestation
// (§4.I): the minimum artifact able to prove the state of a write-once
// log — a row count, its row hash, the grammar that produced it, and
// an optional crumtrail.
package seal

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/journal"
	"github.com/crums-io/skipledger-sub005/ledger"
	"github.com/crums-io/skipledger-sub005/trail"
	"github.com/crums-io/skipledger-sub005/witness"
)

// Extension names for a seal file on disk: pending seals and complete
// seals carry different extensions (§6 "Seal files") so a directory
// listing alone tells a caller which state it's in.
const (
	PendingExt  = ".pseal"
	CompleteExt = ".seal"
)

// Seal is the in-memory form of a sealed journal state (§4.I): the size
// at the moment of sealing, that row's hash, the grammar that produced
// it, and — once witnessed — the crumtrail attesting to it externally.
type Seal struct {
	N       int64
	RowHash hashcodec.Hash
	Grammar journal.Grammar
	Trail   *trail.Crumtrail
}

// Pending reports whether this seal has not yet been witnessed.
func (s *Seal) Pending() bool { return s.Trail == nil }

// appendObserver feeds every ledgerable row of a from-scratch replay
// into an in-memory ledger, exactly the way journal.Engine's own
// appendObserver does for a tracked one (journal/engine.go) — the
// difference is this ledger is never persisted; it exists only long
// enough to produce the final row hash.
type appendObserver struct {
	ledger *ledger.SkipLedger
}

func (o *appendObserver) ObserveRow(pre journal.State, inputHash hashcodec.Hash, cells []journal.CellToken, start, end, lineNo int64) error {
	_, err := o.ledger.Append(inputHash)
	return err
}

// Compute computes the current state of r under grammar g and returns a
// pending seal for it. The replay never touches any persisted ledger;
// it builds one in memory purely to derive h_row(n) (§4.I "seal(journal,
// grammar) computes state and writes a pending seal file").
func Compute(ctx context.Context, r io.Reader, g journal.Grammar, saltSeed [32]byte) (*Seal, error) {
	mem := ledger.NewInMemory()
	obs := &appendObserver{ledger: mem}
	state, err := journal.Play(ctx, r, g, journal.InitialState(), saltSeed, mem, obs)
	if err != nil {
		return nil, errors.Wrap(err, "seal: replaying journal")
	}
	if state.N == 0 {
		return nil, errors.New("seal: journal has no ledgerable rows")
	}
	return &Seal{N: state.N, RowHash: state.RowHash, Grammar: g}, nil
}

// Submitter is the witness-client surface Witness needs.
type Submitter interface {
	SubmitWithDeadline(ctx context.Context, hashes []hashcodec.Hash, deadline, backoff time.Duration) ([]witness.CrumRecord, error)
}

// Witness submits s's row hash to sub and returns a copy of s upgraded
// to complete if a crumtrail came back, or s unchanged (still pending)
// otherwise (§4.I "witness(journal) submits the seal's h_row ... and
// either (a) upgrades the pending seal to a complete one ... or (b)
// leaves it pending").
func Witness(ctx context.Context, s *Seal, sub Submitter, deadline, backoff time.Duration) (*Seal, error) {
	if !s.Pending() {
		return s, nil
	}
	recs, err := sub.SubmitWithDeadline(ctx, []hashcodec.Hash{s.RowHash}, deadline, backoff)
	if err != nil {
		return nil, err
	}
	if len(recs) != 1 {
		return nil, errors.Errorf("seal: witness submission returned %d records, want 1", len(recs))
	}
	if recs[0].Pending {
		return s, nil
	}
	out := *s
	trailCopy := recs[0].Trail
	out.Trail = &trailCopy
	return &out, nil
}

// Verify replays r under s's own grammar and confirms the row hash it
// recomputes for row s.N still matches s.RowHash (§4.I "verify(journal)
// replays the journal with the seal's grammar and checks that its
// h_row still matches").
func Verify(ctx context.Context, r io.Reader, s *Seal, saltSeed [32]byte) error {
	mem := ledger.NewInMemory()
	obs := &appendObserver{ledger: mem}
	state, err := journal.Play(ctx, r, s.Grammar, journal.InitialState(), saltSeed, mem, obs)
	if err != nil {
		return errors.Wrap(err, "seal: replaying journal")
	}
	if state.N < s.N {
		return errors.Errorf("seal: journal now has only %d rows, seal covers %d", state.N, s.N)
	}
	got, err := mem.RowHash(s.N)
	if err != nil {
		return err
	}
	if got != s.RowHash {
		return errors.Errorf("seal: row %d hash no longer matches the sealed value", s.N)
	}
	return nil
}
