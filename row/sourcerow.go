package row

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
)

// SourceRow is a structured input to the skip-ledger: an ordered list of
// typed cells, an optional row-wide salt, and the salt scheme governing
// which cells are salted (§3 Data model, §4.B).
type SourceRow struct {
	N       int64
	Cells   []Cell
	RowSalt *hashcodec.Hash
	Scheme  SaltScheme

	// IsHole marks a row standing in for a gap in a source's primary
	// key sequence. Its input hash is always the sentinel, regardless
	// of Cells (§4.J).
	IsHole bool
}

// HoleRow returns the distinguished placeholder a SQL source adapter
// returns for a primary-key gap at row n (§4.J).
func HoleRow(n int64) SourceRow {
	return SourceRow{N: n, IsHole: true}
}

// saltFor returns the 32-byte salt to mix into cell k's terminal hash,
// or nil if the cell is unsalted under the row's scheme. A cell's own
// Salt takes precedence; otherwise, if the row carries a row-salt, the
// per-cell salt is derived as H(row-salt ‖ k-as-4-byte-big-endian) so
// that revealing t_k never leaks salt_j for j != k.
func (r SourceRow) saltFor(k int) (*hashcodec.Hash, error) {
	if !r.Scheme.SaltedAt(k) {
		return nil, nil
	}
	if r.Cells[k].Salt != nil {
		return r.Cells[k].Salt, nil
	}
	if r.RowSalt == nil {
		return nil, errors.Errorf("row: cell %d requires a salt but neither a per-cell salt nor a row-salt is set", k)
	}
	var kb [4]byte
	binary.BigEndian.PutUint32(kb[:], uint32(k))
	derived := hashcodec.Sum(r.RowSalt[:], kb[:])
	return &derived, nil
}

// TerminalHash computes t_k, the terminal hash of the cell at index k,
// per §4.B step 1.
func (r SourceRow) TerminalHash(k int) (hashcodec.Hash, error) {
	if k < 0 || k >= len(r.Cells) {
		return hashcodec.Hash{}, errors.Errorf("row: cell index %d out of range [0,%d)", k, len(r.Cells))
	}
	c := r.Cells[k]
	switch c.Kind {
	case Redacted:
		return c.Terminal, nil
	case HashCell:
		return c.HashVal, nil
	case Null:
		salt, err := r.saltFor(k)
		if err != nil {
			return hashcodec.Hash{}, err
		}
		if salt == nil {
			return hashcodec.Sum(), nil
		}
		return hashcodec.Sum(salt[:]), nil
	default:
		payload := c.payload()
		salt, err := r.saltFor(k)
		if err != nil {
			return hashcodec.Hash{}, err
		}
		if salt == nil {
			return hashcodec.Sum(payload), nil
		}
		return hashcodec.Sum(salt[:], payload), nil
	}
}

// InputHash computes h_in = H(t_0 ‖ t_1 ‖ ... ‖ t_{m-1}), the row's
// commitment to its content (§4.B step 2).
func (r SourceRow) InputHash() (hashcodec.Hash, error) {
	if r.IsHole {
		return hashcodec.Sentinel, nil
	}
	terms := make([][]byte, len(r.Cells))
	for k := range r.Cells {
		t, err := r.TerminalHash(k)
		if err != nil {
			return hashcodec.Hash{}, errors.Wrapf(err, "row: computing terminal hash for cell %d", k)
		}
		b := make([]byte, hashcodec.Size)
		copy(b, t[:])
		terms[k] = b
	}
	return hashcodec.Sum(terms...), nil
}

// Redact replaces the revealed cell at index k with its precomputed
// terminal hash, leaving the row's input hash unchanged (§8 invariant
// 5: "redact_cell(srcRow, k) has the same input_hash as srcRow").
func (r *SourceRow) Redact(k int) error {
	if k < 0 || k >= len(r.Cells) {
		return errors.Errorf("row: cell index %d out of range [0,%d)", k, len(r.Cells))
	}
	if r.Cells[k].Kind == Redacted {
		return nil
	}
	t, err := r.TerminalHash(k)
	if err != nil {
		return errors.Wrapf(err, "row: redacting cell %d", k)
	}
	r.Cells[k] = RedactedCell(t)
	return nil
}
