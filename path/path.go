package path

import (
	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/ledger"
	"github.com/crums-io/skipledger-sub005/lerr"
)

// Row is one entry of a Path: a ledger row plus the full set of
// predecessor ("skip pointer") hashes its own row hash was built from.
// Carrying SkipHashes alongside (InputHash, RowHash) is what lets a Path
// be verified, and answer coverage queries, without a live ledger —
// it's the in-memory/on-wire counterpart of the ledger's random-access
// reads a verifier would otherwise have to perform one at a time.
type Row struct {
	N          int64
	InputHash  hashcodec.Hash
	RowHash    hashcodec.Hash
	SkipHashes []hashcodec.Hash // SkipHashes[p] = h_row(N - 2^p), len == ledger.SkipCount(N)
}

// Verify recomputes h_row(N) from InputHash and SkipHashes and compares
// it against the stored RowHash (§8 invariant 1).
func (r Row) Verify() error {
	want := ledger.SkipCount(r.N)
	if len(r.SkipHashes) != want {
		return &lerr.FormatError{Msg: "path row has wrong skip-hash count"}
	}
	parts := make([][]byte, 0, want+1)
	parts = append(parts, r.InputHash[:])
	for _, h := range r.SkipHashes {
		parts = append(parts, h[:])
	}
	got := hashcodec.Sum(parts...)
	if got != r.RowHash {
		return &lerr.HashConflict{Row: r.N}
	}
	return nil
}

// hashAt returns h_row(N - 2^p) for 0 <= p < len(SkipHashes).
func (r Row) hashAt(p int) (hashcodec.Hash, bool) {
	if p < 0 || p >= len(r.SkipHashes) {
		return hashcodec.Hash{}, false
	}
	return r.SkipHashes[p], true
}

// Path is a non-empty, strictly ascending sequence of rows connected by
// skip pointers (§3).
type Path struct {
	Rows []Row
}

// First and Last return the path's endpoint row numbers.
func (p Path) First() int64 { return p.Rows[0].N }
func (p Path) Last() int64  { return p.Rows[len(p.Rows)-1].N }

// RowNumbers returns the ascending row numbers making up the path.
func (p Path) RowNumbers() []int64 {
	out := make([]int64, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.N
	}
	return out
}

// Validate checks every row's own hash (§8 invariant 1) and, for each
// adjacent pair, that the step is a legal skip-pointer jump whose
// target equals the predecessor's row hash (§4.D "Path validation").
// Structural problems (empty path, non-ascending numbers, non-power-of-
// two steps) return *lerr.FormatError; hash mismatches return
// *lerr.HashConflict.
func (p Path) Validate() error {
	if len(p.Rows) == 0 {
		return &lerr.FormatError{Msg: "path has no rows"}
	}
	for i, r := range p.Rows {
		if r.N < 1 {
			return &lerr.FormatError{Msg: "path row number must be >= 1"}
		}
		if err := r.Verify(); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		prev := p.Rows[i-1]
		if r.N <= prev.N {
			return &lerr.FormatError{Msg: "path row numbers must be strictly ascending"}
		}
		d := r.N - prev.N
		level := stepLevel(d)
		if level < 0 {
			return &lerr.FormatError{Msg: "path step length is not a power of two"}
		}
		if r.N%d != 0 {
			return &lerr.FormatError{Msg: "path step length does not divide the next row number"}
		}
		target, ok := r.hashAt(level)
		if !ok {
			return &lerr.FormatError{Msg: "path row is missing the skip pointer its predecessor step requires"}
		}
		if target != prev.RowHash {
			return &lerr.HashConflict{Row: r.N}
		}
	}
	return nil
}

// Coverage returns the set of row numbers whose hash this path can
// attest to: every row it directly contains, plus every row reachable
// as a skip-pointer target from a contained row (§4.D).
func (p Path) Coverage() map[int64]bool {
	cov := make(map[int64]bool, len(p.Rows)*2)
	for _, r := range p.Rows {
		cov[r.N] = true
		for pwr := 0; pwr < len(r.SkipHashes); pwr++ {
			m := r.N - (int64(1) << uint(pwr))
			if m >= 1 {
				cov[m] = true
			}
		}
	}
	return cov
}

// GetRowHash returns h_row(m) if m is covered by this path, either
// because a row numbered m is present directly or because some
// contained row's skip pointer reaches it. Row 0 always resolves to the
// sentinel. Fails with *lerr.NotCovered otherwise.
func (p Path) GetRowHash(m int64) (hashcodec.Hash, error) {
	if m == 0 {
		return hashcodec.Sentinel, nil
	}
	for _, r := range p.Rows {
		if r.N == m {
			return r.RowHash, nil
		}
	}
	for _, r := range p.Rows {
		for pwr := 0; pwr < len(r.SkipHashes); pwr++ {
			if r.N-(int64(1)<<uint(pwr)) == m {
				return r.SkipHashes[pwr], nil
			}
		}
	}
	return hashcodec.Hash{}, &lerr.NotCovered{Row: m}
}

// GetRow returns the path's own Row entry for row number n, if present
// directly (not merely covered).
func (p Path) GetRow(n int64) (Row, error) {
	for _, r := range p.Rows {
		if r.N == n {
			return r, nil
		}
	}
	return Row{}, errors.Errorf("path: row %d is not directly present in this path", n)
}
