package journal

import (
	"github.com/crums-io/skipledger-sub005/hashcodec"
)

// State is the quadruple (n, line_no, eol_offset, h_row(n)) that
// fast-forward replay resumes from (§4.G). The sentinel initial state
// is the zero value.
type State struct {
	N         int64
	LineNo    int64
	EolOffset int64
	RowHash   hashcodec.Hash
}

// InitialState is the sentinel starting point: row 0, nothing read yet.
func InitialState() State {
	return State{RowHash: hashcodec.Sentinel}
}

// HashSource supplies h_row(m) for a row outside the current replay's
// traversal frontier — the ledger itself, or a saved offsets table
// (§4.G step 2).
type HashSource interface {
	RowHash(n int64) (hashcodec.Hash, error)
}

// Observer is notified of each ledgerable row as play/replay advances
// through it (§4.G streaming replay contract, step 3). inputHash is
// the row's already-computed h_in, passed along so an observer that
// persists rows (e.g. appending to a ledger) never has to recompute it.
type Observer interface {
	ObserveRow(preState State, inputHash hashcodec.Hash, cells []CellToken, startOffset, endOffset, lineNo int64) error
}

// CellToken is one whitespace/delimiter-separated token from a
// ledgerable line, destined to become a salted string cell (§4.G
// "Tokenization").
type CellToken struct {
	Text string
}

// Checkpoint is one offsets-file entry: (row_no, eol_offset, h_row),
// recorded every 2^dex rows (§4.G "Offsets file").
type Checkpoint struct {
	N         int64
	LineNo    int64
	EolOffset int64
	RowHash   hashcodec.Hash
}
