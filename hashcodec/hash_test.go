package hashcodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelIsZero(t *testing.T) {
	require.True(t, Sentinel.IsSentinel())
	var h Hash
	require.Equal(t, Sentinel, h)
}

func TestSumDeterministic(t *testing.T) {
	a := Sum([]byte("alpha"), []byte("beta"))
	b := Sum([]byte("alpha"), []byte("beta"))
	require.Equal(t, a, b)

	c := Sum([]byte("alphabeta"))
	require.Equal(t, a, c, "Sum must match hashing the concatenation directly")

	d := Sum([]byte("beta"), []byte("alpha"))
	require.NotEqual(t, a, d)
}

func TestBase64RoundTrip(t *testing.T) {
	h := Sum([]byte("row content"))
	text := h.Base64()
	require.Len(t, text, 43)

	back, err := ParseBase64(text)
	require.NoError(t, err)
	require.Equal(t, h, back)
}

func TestParseBase64Invalid(t *testing.T) {
	_, err := ParseBase64("not-valid-base64!!!")
	require.Error(t, err)

	short := Sum([]byte("x")).Base64()[:10]
	_, err = ParseBase64(short)
	require.Error(t, err)
}

func TestNewFromBytes(t *testing.T) {
	_, err := NewFromBytes(make([]byte, 10))
	require.Error(t, err)

	h, err := NewFromBytes(make([]byte, Size))
	require.NoError(t, err)
	require.Equal(t, Sentinel, h)
}
