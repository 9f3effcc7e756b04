package sqlsrc

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/crums-io/skipledger-sub005/row"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE entries (n INTEGER PRIMARY KEY, name TEXT, amount INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO entries VALUES (1, 'alice', 100), (3, 'carol', 300)`)
	require.NoError(t, err)
	return db
}

func TestSQLiteSourceSizeAndGetRow(t *testing.T) {
	db := openTestDB(t)
	scheme, err := row.NewIndexScheme(row.SaltedIndices, nil)
	require.NoError(t, err)

	src := NewSQLiteSource(db, `SELECT COALESCE(MAX(n), 0) FROM entries`, `SELECT n, name, amount FROM entries WHERE n = ?`, scheme)

	size, err := src.Size()
	require.NoError(t, err)
	require.Equal(t, int64(3), size)

	r1, err := src.GetRow(1)
	require.NoError(t, err)
	require.False(t, r1.IsHole)
	require.Len(t, r1.Cells, 3)
	require.Equal(t, row.String, r1.Cells[1].Kind)

	r1Hash, err := r1.InputHash()
	require.NoError(t, err)
	require.False(t, r1Hash.IsSentinel())
}

func TestSQLiteSourceGetRowHoleOnGap(t *testing.T) {
	db := openTestDB(t)
	scheme, err := row.NewIndexScheme(row.SaltedIndices, nil)
	require.NoError(t, err)
	src := NewSQLiteSource(db, `SELECT COALESCE(MAX(n), 0) FROM entries`, `SELECT n, name, amount FROM entries WHERE n = ?`, scheme)

	hole, err := src.GetRow(2)
	require.NoError(t, err)
	require.True(t, hole.IsHole)

	holeHash, err := hole.InputHash()
	require.NoError(t, err)
	require.True(t, holeHash.IsSentinel())
}

func TestSQLiteSourceUpdateSizeRereadsCounter(t *testing.T) {
	db := openTestDB(t)
	scheme, err := row.NewIndexScheme(row.SaltedIndices, nil)
	require.NoError(t, err)
	src := NewSQLiteSource(db, `SELECT COALESCE(MAX(n), 0) FROM entries`, `SELECT n, name, amount FROM entries WHERE n = ?`, scheme)

	_, err = src.Size()
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO entries VALUES (4, 'dave', 400)`)
	require.NoError(t, err)

	n, err := src.UpdateSize()
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
}
