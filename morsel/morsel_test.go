package morsel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/ledger"
	"github.com/crums-io/skipledger-sub005/lerr"
	"github.com/crums-io/skipledger-sub005/path"
	"github.com/crums-io/skipledger-sub005/row"
	"github.com/crums-io/skipledger-sub005/trail"
)

func buildTestLedger(t *testing.T, n int) *ledger.SkipLedger {
	t.Helper()
	l := ledger.NewInMemory()
	for i := 1; i <= n; i++ {
		sr := row.SourceRow{
			N:      int64(i),
			Cells:  []row.Cell{row.LongCell(int64(i)), row.StringCell("row")},
			Scheme: row.SaltScheme{Kind: row.NoneSalted},
		}
		ih, err := sr.InputHash()
		require.NoError(t, err)
		_, err = l.Append(ih)
		require.NoError(t, err)
	}
	return l
}

func TestBuildAndParseRoundTrip(t *testing.T) {
	l := buildTestLedger(t, 10)

	p, err := path.BuildSkipPath(l, 1, 8)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 4, 8}, p.RowNumbers())

	revealed := row.SourceRow{
		N:     4,
		Cells: []row.Cell{row.LongCell(4), row.StringCell("row")},
	}
	trailed := trail.Trailed{
		N: 8,
		Crumtrail: trail.Crumtrail{
			Crum:      trail.Crum{Hash: hashcodec.Sum([]byte("root-leaf")), Utc: 1700000000000},
			LeafCount: 1,
			LeafIndex: 0,
			Chain:     nil,
		},
	}

	buf, err := NewBuilder(p).
		WithSources(SourceEntry{Row: revealed}).
		WithTrails(trailed).
		WithComment("scenario S6").
		Build()
	require.NoError(t, err)

	pack, note, err := Parse(buf)
	require.NoError(t, err)
	require.Equal(t, VersionCurrent, note.Class)
	require.Equal(t, "scenario S6", pack.Comment)
	require.Len(t, pack.Sources, 1)
	require.Equal(t, int64(4), pack.Sources[0].Row.N)
	require.Len(t, pack.Trails, 1)
	require.Equal(t, int64(8), pack.Trails[0].N)

	for _, r := range pack.Path.Rows {
		require.NoError(t, r.Verify())
	}

	want, err := l.RowHash(8)
	require.NoError(t, err)
	got, err := pack.Path.GetRowHash(8)
	require.NoError(t, err)
	require.Equal(t, want, got)

	// Row 3's hash is covered through row 4's skip pointer (s(4)=3
	// reaches back to row 3); row 5 genuinely is not.
	want3, err := l.RowHash(3)
	require.NoError(t, err)
	got3, err := pack.Path.GetRowHash(3)
	require.NoError(t, err)
	require.Equal(t, want3, got3)

	_, err = pack.Path.GetRowHash(5)
	require.Error(t, err)
	var notCovered *lerr.NotCovered
	require.ErrorAs(t, err, &notCovered)
}

func TestBuildRejectsSourceRowOutsidePath(t *testing.T) {
	l := buildTestLedger(t, 10)
	p, err := path.BuildSkipPath(l, 1, 8)
	require.NoError(t, err)

	_, err = NewBuilder(p).
		WithSources(SourceEntry{Row: row.SourceRow{N: 3, Cells: []row.Cell{row.NullCell()}}}).
		Build()
	require.Error(t, err)
}

func TestParseRejectsUnrecognizedPreamble(t *testing.T) {
	_, _, err := Parse([]byte("not a morsel file at all"))
	require.Error(t, err)
	var fe *lerr.FormatError
	require.ErrorAs(t, err, &fe)
}

func TestParseRejectsTruncatedBuffer(t *testing.T) {
	l := buildTestLedger(t, 10)
	p, err := path.BuildSkipPath(l, 1, 8)
	require.NoError(t, err)
	buf, err := NewBuilder(p).Build()
	require.NoError(t, err)

	_, _, err = Parse(buf[:len(buf)-1])
	require.Error(t, err)
}

func TestHoleRowRoundTrips(t *testing.T) {
	l := ledger.NewInMemory()

	hole := row.HoleRow(1)
	holeHash, err := hole.InputHash()
	require.NoError(t, err)
	_, err = l.Append(holeHash)
	require.NoError(t, err)

	sr := row.SourceRow{N: 2, Cells: []row.Cell{row.NullCell()}, Scheme: row.SaltScheme{Kind: row.NoneSalted}}
	srHash, err := sr.InputHash()
	require.NoError(t, err)
	_, err = l.Append(srHash)
	require.NoError(t, err)

	p, err := path.BuildSkipPath(l, 1, 2)
	require.NoError(t, err)

	buf, err := NewBuilder(p).
		WithSources(SourceEntry{Row: row.HoleRow(1)}).
		Build()
	require.NoError(t, err)

	pack, _, err := Parse(buf)
	require.NoError(t, err)
	require.True(t, pack.Sources[0].Row.IsHole)
}
