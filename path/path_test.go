package path

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/ledger"
	"github.com/crums-io/skipledger-sub005/lerr"
)

func fill32(b byte) hashcodec.Hash {
	var h hashcodec.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func buildTestLedger(t *testing.T, n int) *ledger.SkipLedger {
	t.Helper()
	l := ledger.NewInMemory()
	for i := 1; i <= n; i++ {
		_, err := l.Append(fill32(byte(i)))
		require.NoError(t, err)
	}
	return l
}

// TestSkipPathEndpoints is scenario S2 from §8.
func TestSkipPathEndpoints(t *testing.T) {
	got, err := SkipPath(5, 12)
	require.NoError(t, err)
	require.Equal(t, []int64{5, 6, 8, 12}, got)
}

func TestSkipPathTinyChain(t *testing.T) {
	got, err := SkipPath(1, 3)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, got)
}

func TestSkipPathSingleRow(t *testing.T) {
	got, err := SkipPath(7, 7)
	require.NoError(t, err)
	require.Equal(t, []int64{7}, got)
}

func TestSkipPathIsMinimalAndWellFormed(t *testing.T) {
	for lo := int64(1); lo <= 40; lo++ {
		for hi := lo; hi <= 40; hi++ {
			p, err := SkipPath(lo, hi)
			require.NoError(t, err)
			require.Equal(t, lo, p[0])
			require.Equal(t, hi, p[len(p)-1])
			for i := 1; i < len(p); i++ {
				d := p[i] - p[i-1]
				require.Greater(t, d, int64(0))
				require.Zero(t, d&(d-1), "step %d must be a power of two", d)
				require.Zero(t, p[i]%d, "step must divide the next row number")
			}
		}
	}
}

func TestBuildSkipPathValidates(t *testing.T) {
	l := buildTestLedger(t, 12)
	p, err := BuildSkipPath(l, 5, 12)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	require.Equal(t, []int64{5, 6, 8, 12}, p.RowNumbers())
}

// TestMorselCoverageScenario mirrors S6: a path over rows [1,2,4,8] of a
// 10-row ledger covers row 8's hash directly, and row 3's through row
// 4's skip pointer (s(4)=3 reaches back to row 3), but not row 5's —
// coverage({1,2,4,8}) = {1,2,3,4,6,7,8}.
func TestMorselCoverageScenario(t *testing.T) {
	l := buildTestLedger(t, 10)
	p, err := Stitch(l, []int64{1, 2, 4, 8})
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	want8, err := l.RowHash(8)
	require.NoError(t, err)
	got8, err := p.GetRowHash(8)
	require.NoError(t, err)
	require.Equal(t, want8, got8)

	want3, err := l.RowHash(3)
	require.NoError(t, err)
	got3, err := p.GetRowHash(3)
	require.NoError(t, err)
	require.Equal(t, want3, got3)

	_, err = p.GetRowHash(5)
	require.Error(t, err)
	var notCovered *lerr.NotCovered
	require.ErrorAs(t, err, &notCovered)
}

func TestPathValidateDetectsTamper(t *testing.T) {
	l := buildTestLedger(t, 12)
	p, err := BuildSkipPath(l, 5, 12)
	require.NoError(t, err)

	p.Rows[1].InputHash[0] ^= 0xff
	err = p.Validate()
	require.Error(t, err)
}

func TestStitchSingleAnchor(t *testing.T) {
	l := buildTestLedger(t, 10)
	p, err := Stitch(l, []int64{7})
	require.NoError(t, err)
	require.Equal(t, []int64{7}, p.RowNumbers())
	require.NoError(t, p.Validate())
}

func TestStitchDeduplicatesAndSorts(t *testing.T) {
	l := buildTestLedger(t, 20)
	p, err := Stitch(l, []int64{10, 1, 10, 20})
	require.NoError(t, err)
	nums := p.RowNumbers()
	for i := 1; i < len(nums); i++ {
		require.Less(t, nums[i-1], nums[i])
	}
	require.NoError(t, p.Validate())
}
