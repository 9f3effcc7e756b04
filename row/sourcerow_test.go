package row

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crums-io/skipledger-sub005/hashcodec"
)

func TestInputHashUnsalted(t *testing.T) {
	r := SourceRow{
		N:      1,
		Cells:  []Cell{StringCell("alpha"), StringCell("beta")},
		Scheme: SaltScheme{Kind: NoneSalted},
	}
	h, err := r.InputHash()
	require.NoError(t, err)

	t0 := hashcodec.Sum([]byte("alpha"))
	t1 := hashcodec.Sum([]byte("beta"))
	want := hashcodec.Sum(t0[:], t1[:])
	require.Equal(t, want, h)
}

func TestInputHashAllSaltedRequiresSalt(t *testing.T) {
	r := SourceRow{
		N:      1,
		Cells:  []Cell{StringCell("alpha")},
		Scheme: SaltScheme{Kind: AllSalted},
	}
	_, err := r.InputHash()
	require.Error(t, err)
}

func TestRedactionPreservesInputHash(t *testing.T) {
	salt := hashcodec.Sum([]byte("row-salt-seed"))
	r := SourceRow{
		N: 4,
		Cells: []Cell{
			StringCell("one"),
			LongCell(42),
			StringCell("three"),
		},
		RowSalt: &salt,
		Scheme:  SaltScheme{Kind: AllSalted},
	}
	before, err := r.InputHash()
	require.NoError(t, err)

	require.NoError(t, r.Redact(1))
	require.Equal(t, Redacted, r.Cells[1].Kind)

	after, err := r.InputHash()
	require.NoError(t, err)
	require.Equal(t, before, after, "redaction must not change the row's input hash")
}

func TestRedactionWithIndexScheme(t *testing.T) {
	scheme, err := NewIndexScheme(SaltedIndices, []int{2})
	require.NoError(t, err)
	salt := hashcodec.Sum([]byte("seed"))
	r := SourceRow{
		Cells: []Cell{
			StringCell("a"),
			StringCell("b"),
			StringCell("c"), // salted
		},
		RowSalt: &salt,
		Scheme:  scheme,
	}
	before, err := r.InputHash()
	require.NoError(t, err)
	require.NoError(t, r.Redact(2))
	after, err := r.InputHash()
	require.NoError(t, err)
	require.Equal(t, before, after)

	// Redacting an unsalted cell must also be a no-op on the input hash.
	require.NoError(t, r.Redact(0))
	after2, err := r.InputHash()
	require.NoError(t, err)
	require.Equal(t, before, after2)
}

func TestHashCellTerminalIsValueItself(t *testing.T) {
	v := hashcodec.Sum([]byte("precomputed"))
	r := SourceRow{Cells: []Cell{HashValueCell(v)}, Scheme: SaltScheme{Kind: NoneSalted}}
	term, err := r.TerminalHash(0)
	require.NoError(t, err)
	require.Equal(t, v, term)
}

func TestHoleRowInputHashIsSentinel(t *testing.T) {
	r := HoleRow(7)
	h, err := r.InputHash()
	require.NoError(t, err)
	require.Equal(t, hashcodec.Sentinel, h)
}

func TestSaltSchemeSaltedAt(t *testing.T) {
	idx, err := NewIndexScheme(SaltedIndices, []int{3, 1, 1, 2})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, idx.Indices)
	require.True(t, idx.SaltedAt(1))
	require.False(t, idx.SaltedAt(0))

	unsalted, err := NewIndexScheme(UnsaltedIndices, []int{0})
	require.NoError(t, err)
	require.False(t, unsalted.SaltedAt(0))
	require.True(t, unsalted.SaltedAt(1))
}
