package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crums-io/skipledger-sub005/hashcodec"
)

func fill32(b byte) hashcodec.Hash {
	var h hashcodec.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestSkipCount(t *testing.T) {
	cases := map[int64]int{1: 1, 2: 2, 3: 1, 4: 3, 5: 1, 6: 2, 8: 4, 12: 3}
	for n, want := range cases {
		require.Equalf(t, want, SkipCount(n), "n=%d", n)
	}
}

// TestTinyChain is scenario S1 from §8: three rows, known input hashes,
// and the exact expected row hashes.
func TestTinyChain(t *testing.T) {
	l := NewInMemory()
	h1 := fill32(0xaa)
	h2 := fill32(0xbb)
	h3 := fill32(0xcc)

	n1, err := l.Append(h1)
	require.NoError(t, err)
	require.Equal(t, int64(1), n1)
	n2, err := l.Append(h2)
	require.NoError(t, err)
	require.Equal(t, int64(2), n2)
	n3, err := l.Append(h3)
	require.NoError(t, err)
	require.Equal(t, int64(3), n3)

	row1Hash := hashcodec.Sum(h1[:], hashcodec.Sentinel[:])
	got1, err := l.RowHash(1)
	require.NoError(t, err)
	require.Equal(t, row1Hash, got1)

	row2Hash := hashcodec.Sum(h2[:], row1Hash[:], hashcodec.Sentinel[:])
	got2, err := l.RowHash(2)
	require.NoError(t, err)
	require.Equal(t, row2Hash, got2)

	row3Hash := hashcodec.Sum(h3[:], row2Hash[:])
	got3, err := l.RowHash(3)
	require.NoError(t, err)
	require.Equal(t, row3Hash, got3)
}

func TestAppendBatchMatchesSequentialAppend(t *testing.T) {
	hashes := []hashcodec.Hash{fill32(1), fill32(2), fill32(3), fill32(4), fill32(5)}

	batched := NewInMemory()
	last, err := batched.AppendBatch(hashes)
	require.NoError(t, err)
	require.Equal(t, int64(5), last)

	sequential := NewInMemory()
	for _, h := range hashes {
		_, err := sequential.Append(h)
		require.NoError(t, err)
	}

	for n := int64(1); n <= 5; n++ {
		a, err := batched.RowHash(n)
		require.NoError(t, err)
		b, err := sequential.RowHash(n)
		require.NoError(t, err)
		require.Equal(t, b, a)
	}
}

func TestGetRowOutOfRange(t *testing.T) {
	l := NewInMemory()
	_, err := l.Append(fill32(1))
	require.NoError(t, err)

	_, err = l.GetRow(0)
	require.Error(t, err)
	_, err = l.GetRow(2)
	require.Error(t, err)
}

// TestTrimCommutesWithAppend is §8 invariant 8.
func TestTrimCommutesWithAppend(t *testing.T) {
	l := NewInMemory()
	for i := byte(1); i <= 8; i++ {
		_, err := l.Append(fill32(i))
		require.NoError(t, err)
	}
	var before [5]hashcodec.Hash
	for n := int64(1); n <= 5; n++ {
		h, err := l.RowHash(n)
		require.NoError(t, err)
		before[n-1] = h
	}

	require.NoError(t, l.Trim(5))
	size, err := l.Size()
	require.NoError(t, err)
	require.Equal(t, int64(5), size)

	for n := int64(1); n <= 5; n++ {
		h, err := l.RowHash(n)
		require.NoError(t, err)
		require.Equal(t, before[n-1], h)
	}

	// Appending past the trim point must reproduce what a ledger built
	// straight to that point would have.
	_, err = l.Append(fill32(6))
	require.NoError(t, err)
	fresh := NewInMemory()
	for i := byte(1); i <= 6; i++ {
		_, err := fresh.Append(fill32(i))
		require.NoError(t, err)
	}
	got, err := l.RowHash(6)
	require.NoError(t, err)
	want, err := fresh.RowHash(6)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestVerifyRowDetectsTamper(t *testing.T) {
	store := NewMemoryRowStore()
	l := New(store)
	_, err := l.Append(fill32(1))
	require.NoError(t, err)
	_, err = l.Append(fill32(2))
	require.NoError(t, err)

	require.NoError(t, l.VerifyRow(1))
	require.NoError(t, l.VerifyRow(2))

	// Corrupt row 1's stored hash directly through the store.
	rec, err := store.Get(1)
	require.NoError(t, err)
	rec.RowHash[0] ^= 0xff
	store.rows[0] = rec

	err = l.VerifyRow(2)
	require.Error(t, err)
}
