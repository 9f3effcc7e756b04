package journal

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crums-io/skipledger-sub005/hashledger"
	"github.com/crums-io/skipledger-sub005/ledger"
	"github.com/crums-io/skipledger-sub005/lerr"
	"github.com/crums-io/skipledger-sub005/trail"
)

const s3Journal = "# header\n\nalpha beta\ngamma  delta epsilon\n"

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	g, err := NewGrammar("#", nil)
	require.NoError(t, err)
	return &Engine{
		HashLedger: hashledger.New(ledger.NewInMemory(), trail.NewMemoryRepo(nil)),
		Offsets:    NewMemoryOffsetsStore(),
		Grammar:    g,
		Dex:        2,
	}
}

// S3: comment/blank lines are skipped, ledgerable lines tokenize in order.
func TestGrammarClassificationAndTokenization(t *testing.T) {
	g, err := NewGrammar("#", nil)
	require.NoError(t, err)

	require.False(t, g.IsLedgerable("# header"))
	require.False(t, g.IsLedgerable(""))
	require.False(t, g.IsLedgerable("   "))
	require.True(t, g.IsLedgerable("alpha beta"))

	toks, err := g.Tokenize("gamma  delta epsilon")
	require.NoError(t, err)
	require.Equal(t, []string{"gamma", "delta", "epsilon"}, toks)
}

func TestPlayAppendsOnlyLedgerableRows(t *testing.T) {
	e := newTestEngine(t)
	state, err := e.Update(context.Background(), bytes.NewReader([]byte(s3Journal)))
	require.NoError(t, err)
	require.Equal(t, int64(2), state.N)

	size, err := e.HashLedger.Ledger().Size()
	require.NoError(t, err)
	require.Equal(t, int64(2), size)

	row1, err := e.HashLedger.Ledger().GetRow(1)
	require.NoError(t, err)
	expect1 := BuildSourceRow(1, []string{"alpha", "beta"}, e.SaltSeed)
	h1, err := expect1.InputHash()
	require.NoError(t, err)
	require.Equal(t, h1, row1.InputHash)

	row2, err := e.HashLedger.Ledger().GetRow(2)
	require.NoError(t, err)
	expect2 := BuildSourceRow(2, []string{"gamma", "delta", "epsilon"}, e.SaltSeed)
	h2, err := expect2.InputHash()
	require.NoError(t, err)
	require.Equal(t, h2, row2.InputHash)
}

func TestUpdateIsIncremental(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Update(context.Background(), bytes.NewReader([]byte("first line\n")))
	require.NoError(t, err)

	size, err := e.HashLedger.Ledger().Size()
	require.NoError(t, err)
	require.Equal(t, int64(1), size)

	// Re-running Update against the same content appends nothing new.
	state, err := e.Update(context.Background(), bytes.NewReader([]byte("first line\n")))
	require.NoError(t, err)
	require.Equal(t, int64(1), state.N)

	size, err = e.HashLedger.Ledger().Size()
	require.NoError(t, err)
	require.Equal(t, int64(1), size)
}

// S4: inserting a comment line between ledgerable lines changes offsets
// but not row hashes; fix-offsets succeeds without a HashConflict.
func TestFixOffsetsAfterCommentInsertion(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Update(context.Background(), bytes.NewReader([]byte(s3Journal)))
	require.NoError(t, err)

	row2Before, err := e.HashLedger.Ledger().GetRow(2)
	require.NoError(t, err)

	revised := "# header\n\nalpha beta\n# inserted\ngamma  delta epsilon\n"
	_, err = e.FixOffsets(context.Background(), bytes.NewReader([]byte(revised)), 1)
	require.NoError(t, err)

	row2After, err := e.HashLedger.Ledger().GetRow(2)
	require.NoError(t, err)
	require.Equal(t, row2Before, row2After)
}

func TestFixOffsetsDetectsHashConflict(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Update(context.Background(), bytes.NewReader([]byte(s3Journal)))
	require.NoError(t, err)

	// Changing ledgerable content (not just comments/whitespace) must
	// surface as a HashConflict rather than being silently accepted.
	tampered := "# header\n\nalpha beta\nGAMMA  delta epsilon\n"
	_, err = e.FixOffsets(context.Background(), bytes.NewReader([]byte(tampered)), 1)
	require.Error(t, err)
	var hc *lerr.HashConflict
	require.True(t, errors.As(err, &hc))
}

func TestVerifyRoundTrips(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Update(context.Background(), bytes.NewReader([]byte(s3Journal)))
	require.NoError(t, err)
	require.NoError(t, e.Verify(context.Background(), bytes.NewReader([]byte(s3Journal))))
}

func TestRollbackTrimsLedgerAndOffsets(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Update(context.Background(), bytes.NewReader([]byte(s3Journal)))
	require.NoError(t, err)

	require.NoError(t, e.Rollback(1))

	size, err := e.HashLedger.Ledger().Size()
	require.NoError(t, err)
	require.Equal(t, int64(1), size)
}

func TestDexShouldCheckpoint(t *testing.T) {
	var d Dex = 2
	require.False(t, d.ShouldCheckpoint(1))
	require.False(t, d.ShouldCheckpoint(3))
	require.True(t, d.ShouldCheckpoint(4))
	require.True(t, d.ShouldCheckpoint(8))

	var disabled Dex = 63
	require.True(t, disabled.Disabled())
	require.False(t, disabled.ShouldCheckpoint(0))
}
