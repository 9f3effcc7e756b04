package trail

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/crums-io/skipledger-sub005/hashcodec"
)

func fillHash(b byte) hashcodec.Hash {
	var h hashcodec.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func trailed(n int64, utc int64) Trailed {
	return Trailed{
		N: n,
		Crumtrail: Crumtrail{
			Crum:      Crum{Hash: fillHash(byte(n)), Utc: utc},
			LeafCount: 1,
			LeafIndex: 0,
			Chain:     nil,
		},
	}
}

func TestCrumtrailMerkleRootSingleLeaf(t *testing.T) {
	ct := Crumtrail{Crum: Crum{Hash: fillHash(7), Utc: 100}, LeafCount: 1, LeafIndex: 0}
	root, err := ct.MerkleRoot()
	require.NoError(t, err)
	require.Equal(t, ct.Crum.Hash, root)
}

func TestCrumtrailMerkleRootTwoLeaves(t *testing.T) {
	left := fillHash(1)
	right := fillHash(2)
	wantRoot := hashcodec.Sum(left[:], right[:])

	ct0 := Crumtrail{Crum: Crum{Hash: left}, LeafCount: 2, LeafIndex: 0, Chain: []hashcodec.Hash{right}}
	got0, err := ct0.MerkleRoot()
	require.NoError(t, err)
	require.Equal(t, wantRoot, got0)

	ct1 := Crumtrail{Crum: Crum{Hash: right}, LeafCount: 2, LeafIndex: 1, Chain: []hashcodec.Hash{left}}
	got1, err := ct1.MerkleRoot()
	require.NoError(t, err)
	require.Equal(t, wantRoot, got1)
}

func TestCrumtrailChainLength(t *testing.T) {
	cases := map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4}
	for c, want := range cases {
		require.Equalf(t, want, ChainLength(c), "c=%d", c)
	}
}

func testMemoryRepoMonotonicity(t *testing.T, newRepo func() Repo) {
	var rejected []Trailed
	repo := newRepo()

	ok, err := repo.Add(trailed(5, 1000))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Add(trailed(5, 1001))
	require.NoError(t, err)
	require.False(t, ok, "non-increasing row number must be rejected")

	ok, err = repo.Add(trailed(10, 999))
	require.NoError(t, err)
	require.False(t, ok, "decreasing utc must be rejected")

	ok, err = repo.Add(trailed(10, 1000))
	require.NoError(t, err)
	require.True(t, ok, "equal utc with increasing row number is allowed")

	n, err := repo.Count()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_ = rejected
}

func TestMemoryRepoMonotonicity(t *testing.T) {
	testMemoryRepoMonotonicity(t, func() Repo {
		return NewMemoryRepo(nil)
	})
}

func TestMemoryRepoNearestAndTrim(t *testing.T) {
	repo := NewMemoryRepo(nil)
	for _, n := range []int64{2, 4, 8, 16} {
		ok, err := repo.Add(trailed(n, n*100))
		require.NoError(t, err)
		require.True(t, ok)
	}

	got, ok, err := repo.Nearest(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(8), got.N)

	_, ok, err = repo.Nearest(17)
	require.NoError(t, err)
	require.False(t, ok)

	last, ok, err := repo.Last()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(16), last.N)

	require.NoError(t, repo.TrimAfter(4))
	n, err := repo.Count()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLRepoMonotonicity(t *testing.T) {
	testMemoryRepoMonotonicity(t, func() Repo {
		repo, err := OpenSQLRepo(openTestDB(t))
		require.NoError(t, err)
		return repo
	})
}

func TestSQLRepoRoundTripsChain(t *testing.T) {
	repo, err := OpenSQLRepo(openTestDB(t))
	require.NoError(t, err)

	want := Trailed{
		N: 8,
		Crumtrail: Crumtrail{
			Crum:      Crum{Hash: fillHash(8), Utc: 12345},
			LeafCount: 5,
			LeafIndex: 2,
			Chain:     []hashcodec.Hash{fillHash(1), fillHash(2), fillHash(3)},
		},
	}
	ok, err := repo.Add(want)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.Get(0)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSQLRepoTrimAfterRemovesChains(t *testing.T) {
	repo, err := OpenSQLRepo(openTestDB(t))
	require.NoError(t, err)

	for _, n := range []int64{1, 2, 3} {
		ok, err := repo.Add(Trailed{
			N: n,
			Crumtrail: Crumtrail{
				Crum:      Crum{Hash: fillHash(byte(n)), Utc: n * 10},
				LeafCount: 2,
				LeafIndex: 0,
				Chain:     []hashcodec.Hash{fillHash(byte(n + 100))},
			},
		})
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.NoError(t, repo.TrimAfter(1))
	n, err := repo.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := repo.Get(0)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.N)
}
