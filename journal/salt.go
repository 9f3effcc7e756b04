package journal

import (
	"encoding/binary"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/row"
)

// deriveRowSalt computes the deterministic per-row salt a journal row
// carries, so that independently replaying the same file always
// reproduces the same row-salt (and hence the same input hash) without
// persisting salts anywhere: salt(n) = H(seed ‖ n-as-8-byte-big-endian).
// seed is the configured source salt seed (§4.K).
func deriveRowSalt(seed [32]byte, n int64) hashcodec.Hash {
	var nb [8]byte
	binary.BigEndian.PutUint64(nb[:], uint64(n))
	return hashcodec.Sum(seed[:], nb[:])
}

// DeriveRowSalt exports deriveRowSalt for callers outside this package
// that need a journal row's salt on its own. BuildSourceRow applies the
// same salt; the morsel-extraction path in cmd/ledger goes through
// BuildSourceRow rather than calling this directly.
func DeriveRowSalt(seed [32]byte, n int64) hashcodec.Hash {
	return deriveRowSalt(seed, n)
}

// BuildSourceRow assembles the all-salted source row a tokenized
// journal line becomes (§4.G "Tokenization"): one string cell per
// token, salted with this row's deterministic salt.
func BuildSourceRow(n int64, tokens []string, saltSeed [32]byte) row.SourceRow {
	salt := deriveRowSalt(saltSeed, n)
	cells := make([]row.Cell, len(tokens))
	for i, tok := range tokens {
		cells[i] = row.StringCell(tok)
	}
	return row.SourceRow{N: n, Cells: cells, RowSalt: &salt, Scheme: row.SaltScheme{Kind: row.AllSalted}}
}
