package seal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/journal"
	"github.com/crums-io/skipledger-sub005/trail"
	"github.com/crums-io/skipledger-sub005/witness"
)

const testJournal = "first entry\nsecond entry\n# a comment\nthird entry\n"

func TestComputeAndEncodeRoundTrip(t *testing.T) {
	var saltSeed [32]byte
	g, err := journal.NewGrammar("#", nil)
	require.NoError(t, err)

	s, err := Compute(context.Background(), strings.NewReader(testJournal), g, saltSeed)
	require.NoError(t, err)
	require.Equal(t, int64(3), s.N)
	require.True(t, s.Pending())

	buf, err := Encode(s)
	require.NoError(t, err)

	got, note, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, s.N, got.N)
	require.Equal(t, s.RowHash, got.RowHash)
	require.Equal(t, s.Grammar, got.Grammar)
	require.True(t, got.Pending())
	require.Equal(t, "0.3", note.Version)
}

func TestVerifyDetectsTamperedJournal(t *testing.T) {
	var saltSeed [32]byte
	g, err := journal.NewGrammar("#", nil)
	require.NoError(t, err)

	s, err := Compute(context.Background(), strings.NewReader(testJournal), g, saltSeed)
	require.NoError(t, err)

	require.NoError(t, Verify(context.Background(), strings.NewReader(testJournal), s, saltSeed))

	tampered := "first entry\nsecond entry CHANGED\n# a comment\nthird entry\n"
	err = Verify(context.Background(), strings.NewReader(tampered), s, saltSeed)
	require.Error(t, err)
}

type fakeSubmitter struct {
	recs []witness.CrumRecord
	err  error
}

func (f *fakeSubmitter) SubmitWithDeadline(ctx context.Context, hashes []hashcodec.Hash, deadline, backoff time.Duration) ([]witness.CrumRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recs, nil
}

func TestWitnessUpgradesToComplete(t *testing.T) {
	var saltSeed [32]byte
	g, err := journal.NewGrammar("#", nil)
	require.NoError(t, err)
	s, err := Compute(context.Background(), strings.NewReader(testJournal), g, saltSeed)
	require.NoError(t, err)

	sub := &fakeSubmitter{recs: []witness.CrumRecord{{
		Hash: s.RowHash,
		Trail: trail.Crumtrail{
			Crum:      trail.Crum{Hash: s.RowHash, Utc: 1700000000000},
			LeafCount: 1,
			LeafIndex: 0,
		},
	}}}

	witnessed, err := Witness(context.Background(), s, sub, time.Second, time.Millisecond)
	require.NoError(t, err)
	require.False(t, witnessed.Pending())

	buf, err := Encode(witnessed)
	require.NoError(t, err)
	got, _, err := Decode(buf)
	require.NoError(t, err)
	require.False(t, got.Pending())
	require.Equal(t, witnessed.Trail.Crum.Utc, got.Trail.Crum.Utc)
}

func TestWitnessLeavesPendingOnPendingRecord(t *testing.T) {
	var saltSeed [32]byte
	g, err := journal.NewGrammar("#", nil)
	require.NoError(t, err)
	s, err := Compute(context.Background(), strings.NewReader(testJournal), g, saltSeed)
	require.NoError(t, err)

	sub := &fakeSubmitter{recs: []witness.CrumRecord{{Hash: s.RowHash, Pending: true}}}
	witnessed, err := Witness(context.Background(), s, sub, time.Second, time.Millisecond)
	require.NoError(t, err)
	require.True(t, witnessed.Pending())
}
