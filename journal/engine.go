package journal

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/hashledger"
	"github.com/crums-io/skipledger-sub005/lerr"
)

// Engine ties a text journal to a hash ledger and its offsets file: it
// is the object the CLI's status/update/fixoffs/verify/rollback
// commands drive (§4.G, §6).
type Engine struct {
	HashLedger *hashledger.HashLedger
	Offsets    OffsetsStore
	Grammar    Grammar
	SaltSeed   [32]byte
	Dex        Dex
}

// startState returns the latest checkpoint at or before resumeRow (or
// the sentinel initial state if none exists / checkpointing is
// disabled), the starting point for a partial replay (§4.G).
func (e *Engine) startState(resumeRow int64) (State, error) {
	if e.Dex.Disabled() {
		return InitialState(), nil
	}
	cp, ok, err := e.Offsets.Nearest(resumeRow)
	if err != nil {
		return State{}, err
	}
	if !ok {
		return InitialState(), nil
	}
	return State{N: cp.N, LineNo: cp.LineNo, EolOffset: cp.EolOffset, RowHash: cp.RowHash}, nil
}

// appendObserver drives Update: every ledgerable row past the
// ledger's current size is appended, and checkpointed if it falls on a
// dex boundary.
type appendObserver struct {
	e         *Engine
	ledgerEnd int64 // ledger size when Update started
}

func (o *appendObserver) ObserveRow(pre State, inputHash hashcodec.Hash, cells []CellToken, start, end, lineNo int64) error {
	n := pre.N + 1
	if n <= o.ledgerEnd {
		return nil // already tracked; nothing to do
	}
	newN, err := o.e.HashLedger.Append(inputHash)
	if err != nil {
		return errors.Wrapf(err, "journal: appending row %d", n)
	}
	if newN != n {
		return errors.Errorf("journal: ledger append produced row %d, expected %d", newN, n)
	}
	if o.e.Dex.ShouldCheckpoint(n) {
		rowHash, err := o.e.HashLedger.Ledger().RowHash(n)
		if err != nil {
			return err
		}
		if err := o.e.Offsets.Append(Checkpoint{N: n, LineNo: lineNo, EolOffset: end, RowHash: rowHash}); err != nil {
			return err
		}
	}
	return nil
}

// Update appends every untracked ledgerable row found in r, replaying
// from the latest checkpoint (§4.G "Update"). Returns the new end
// state.
func (e *Engine) Update(ctx context.Context, r io.Reader) (State, error) {
	size, err := e.HashLedger.Ledger().Size()
	if err != nil {
		return State{}, err
	}
	from, err := e.startState(size)
	if err != nil {
		return State{}, err
	}
	obs := &appendObserver{e: e, ledgerEnd: size}
	return Play(ctx, r, e.Grammar, from, e.SaltSeed, e.HashLedger.Ledger(), obs)
}

// fixOffsetsObserver re-derives offsets/line-nos for already-tracked
// rows. Play itself computes each row's h_row against the ledger as
// its HashSource, so a row whose content changed since it was first
// tracked surfaces here as a ledger.RowHash/GetRow lookup that still
// reflects the OLD content; comparing the ledger's stored hash against
// what Play just (re)computed for that same row number catches the
// disagreement (§4.G "Fix-offsets").
type fixOffsetsObserver struct {
	e *Engine
}

func (o *fixOffsetsObserver) ObserveRow(pre State, inputHash hashcodec.Hash, cells []CellToken, start, end, lineNo int64) error {
	n := pre.N + 1
	size, err := o.e.HashLedger.Ledger().Size()
	if err != nil {
		return err
	}
	if n > size {
		return errors.Errorf("journal: fix-offsets found untracked row %d (ledger has %d rows); run update first", n, size)
	}
	storedRow, err := o.e.HashLedger.Ledger().GetRow(n)
	if err != nil {
		return err
	}
	if storedRow.InputHash != inputHash {
		return &lerr.HashConflict{Row: n}
	}
	if o.e.Dex.ShouldCheckpoint(n) {
		if err := o.e.Offsets.Append(Checkpoint{N: n, LineNo: lineNo, EolOffset: end, RowHash: storedRow.RowHash}); err != nil {
			return err
		}
	}
	return nil
}

// FixOffsets re-scans from startRow, re-deriving offsets/line-nos while
// verifying each row's h_in still matches the one the ledger recorded
// for it (§4.G "Fix-offsets"). The scan resumes from the latest
// checkpoint at or before startRow; checkpoints after that one are
// discarded first and replaced as the scan proceeds.
func (e *Engine) FixOffsets(ctx context.Context, r io.Reader, startRow int64) (State, error) {
	from, err := e.startState(startRow)
	if err != nil {
		return State{}, err
	}
	if err := e.Offsets.TrimAfter(from.N); err != nil {
		return State{}, err
	}
	obs := &fixOffsetsObserver{e: e}
	return Play(ctx, r, e.Grammar, from, e.SaltSeed, e.HashLedger.Ledger(), obs)
}

// verifyObserver re-scans from the beginning, checking every tracked
// row's input hash against the ledger and every checkpoint's recorded
// offset against the replay (§4.G "Verify").
type verifyObserver struct {
	e           *Engine
	checkpoints map[int64]Checkpoint
}

func (o *verifyObserver) ObserveRow(pre State, inputHash hashcodec.Hash, cells []CellToken, start, end, lineNo int64) error {
	n := pre.N + 1
	size, err := o.e.HashLedger.Ledger().Size()
	if err != nil {
		return err
	}
	if n > size {
		return nil // not yet tracked; nothing stored to verify against
	}
	storedRow, err := o.e.HashLedger.Ledger().GetRow(n)
	if err != nil {
		return err
	}
	if storedRow.InputHash != inputHash {
		return &lerr.HashConflict{Row: n}
	}
	cp, tracked := o.checkpoints[n]
	if !tracked {
		return nil
	}
	if cp.LineNo != lineNo || cp.EolOffset != end {
		return &lerr.OffsetConflict{Row: n, ExpectedOffset: end}
	}
	return nil
}

// Verify re-scans the whole journal from the start and asserts every
// tracked row and every checkpoint still agrees with it (§4.G
// "Verify").
func (e *Engine) Verify(ctx context.Context, r io.Reader) error {
	checkpoints, err := e.Offsets.All()
	if err != nil {
		return err
	}
	byRow := make(map[int64]Checkpoint, len(checkpoints))
	for _, cp := range checkpoints {
		byRow[cp.N] = cp
	}
	obs := &verifyObserver{e: e, checkpoints: byRow}
	_, err = Play(ctx, r, e.Grammar, InitialState(), e.SaltSeed, e.HashLedger.Ledger(), obs)
	return err
}

// Rollback trims the ledger, offsets file, and (via HashLedger.Trim)
// the witnessed-row repo down to newSize (§4.G "Rollback"). Interactive
// confirmation is the CLI's concern, not this method's.
func (e *Engine) Rollback(newSize int64) error {
	if newSize < 1 {
		return errors.New("journal: rollback size must be >= 1")
	}
	if err := e.HashLedger.Trim(newSize); err != nil {
		return err
	}
	return e.Offsets.TrimAfter(newSize)
}
