package hashledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/ledger"
	"github.com/crums-io/skipledger-sub005/trail"
	"github.com/crums-io/skipledger-sub005/witness"
)

func fillHash(b byte) hashcodec.Hash {
	var h hashcodec.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func newTestHashLedger(t *testing.T, n int) *HashLedger {
	t.Helper()
	l := ledger.NewInMemory()
	for i := byte(1); i <= byte(n); i++ {
		_, err := l.Append(fillHash(i))
		require.NoError(t, err)
	}
	return New(l, trail.NewMemoryRepo(nil))
}

func TestToothedCandidates(t *testing.T) {
	require.Equal(t, []int64{4, 8, 12}, ToothedCandidates(14, 2, false))
	require.Equal(t, []int64{4, 8, 12, 14}, ToothedCandidates(14, 2, true))
	require.Equal(t, []int64{8}, ToothedCandidates(8, 3, true))
	require.Nil(t, ToothedCandidates(0, 2, true))
}

func TestUnwitnessedCount(t *testing.T) {
	hl := newTestHashLedger(t, 10)
	n, err := hl.UnwitnessedCount()
	require.NoError(t, err)
	require.Equal(t, int64(10), n)

	ok, err := hl.AddTrail(trail.Trailed{N: 4, Crumtrail: trail.Crumtrail{Crum: trail.Crum{Hash: fillHash(4), Utc: 100}, LeafCount: 1}})
	require.NoError(t, err)
	require.True(t, ok)

	n, err = hl.UnwitnessedCount()
	require.NoError(t, err)
	require.Equal(t, int64(6), n)
}

func TestAddTrailRejectsRowPastLedgerSize(t *testing.T) {
	hl := newTestHashLedger(t, 5)
	_, err := hl.AddTrail(trail.Trailed{N: 6, Crumtrail: trail.Crumtrail{Crum: trail.Crum{Hash: fillHash(6), Utc: 1}, LeafCount: 1}})
	require.Error(t, err)
}

func TestTrimCascadesToTrails(t *testing.T) {
	hl := newTestHashLedger(t, 10)
	for _, n := range []int64{2, 5, 8} {
		ok, err := hl.AddTrail(trail.Trailed{N: n, Crumtrail: trail.Crumtrail{Crum: trail.Crum{Hash: fillHash(byte(n)), Utc: n * 10}, LeafCount: 1}})
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.NoError(t, hl.Trim(6))
	last, ok, err := hl.Trails().Last()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(5), last.N)
}

type fakeSubmitter struct {
	recs map[string]witness.CrumRecord
}

func (f *fakeSubmitter) SubmitWithDeadline(ctx context.Context, hashes []hashcodec.Hash, deadline, backoff time.Duration) ([]witness.CrumRecord, error) {
	out := make([]witness.CrumRecord, len(hashes))
	for i, h := range hashes {
		out[i] = f.recs[h.Base64()]
	}
	return out, nil
}

func TestWitnessRowsAddsTrailedAndSkipsPending(t *testing.T) {
	hl := newTestHashLedger(t, 8)

	h2, _ := hl.Ledger().RowHash(2)
	h4, _ := hl.Ledger().RowHash(4)
	h8, _ := hl.Ledger().RowHash(8)

	sub := &fakeSubmitter{recs: map[string]witness.CrumRecord{
		h2.Base64(): {Hash: h2, Pending: true},
		h4.Base64(): {Hash: h4, Pending: false, Trail: trail.Crumtrail{Crum: trail.Crum{Hash: h4, Utc: 500}, LeafCount: 1}},
		h8.Base64(): {Hash: h8, Pending: false, Trail: trail.Crumtrail{Crum: trail.Crum{Hash: h8, Utc: 900}, LeafCount: 1}},
	}}

	n, err := hl.WitnessRows(context.Background(), sub, []int64{2, 4, 8}, time.Second, time.Millisecond, nil)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	count, err := hl.Trails().Count()
	require.NoError(t, err)
	require.Equal(t, 2, count)

	last, ok, err := hl.Trails().Last()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(8), last.N)
}

func TestSortAndFilterTrailedTieBreak(t *testing.T) {
	in := []trail.Trailed{
		{N: 10, Crumtrail: trail.Crumtrail{Crum: trail.Crum{Utc: 500}}},
		{N: 4, Crumtrail: trail.Crumtrail{Crum: trail.Crum{Utc: 500}}},
		{N: 6, Crumtrail: trail.Crumtrail{Crum: trail.Crum{Utc: 200}}},
	}
	out := sortAndFilterTrailed(in)
	require.Len(t, out, 2)
	require.Equal(t, int64(6), out[0].N)
	require.Equal(t, int64(4), out[1].N)
}
