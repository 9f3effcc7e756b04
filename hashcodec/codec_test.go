package hashcodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWidthFor(t *testing.T) {
	cases := []struct {
		n    uint64
		want Width
	}{
		{0, Width1},
		{255, Width1},
		{256, Width2},
		{65535, Width2},
		{65536, Width3},
		{16777215, Width3},
		{16777216, Width4},
	}
	for _, c := range cases {
		require.Equalf(t, c.want, WidthFor(c.n), "n=%d", c.n)
	}
}

func TestAppendReadLengthRoundTrip(t *testing.T) {
	for _, w := range []Width{Width1, Width2, Width3, Width4} {
		n := w.Max()
		buf, err := AppendLength(nil, w, n)
		require.NoError(t, err)
		require.Len(t, buf, int(w))

		got, consumed, err := ReadLength(buf, w)
		require.NoError(t, err)
		require.Equal(t, int(w), consumed)
		require.Equal(t, n, got)
	}
}

func TestAppendLengthOverflow(t *testing.T) {
	_, err := AppendLength(nil, Width1, 256)
	require.Error(t, err)
}

func TestReadLengthShortBuffer(t *testing.T) {
	_, _, err := ReadLength([]byte{1, 2}, Width3)
	require.Error(t, err)
}
