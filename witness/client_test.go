package witness

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crums-io/skipledger-sub005/hashcodec"
)

func fillHash(b byte) hashcodec.Hash {
	var h hashcodec.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestSubmitParsesPendingAndTrailed(t *testing.T) {
	h1 := fillHash(1)
	h2 := fillHash(2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Hashes, 2)

		resp := []wireCrum{
			{Hash: h1.Base64(), Pending: true},
			{
				Hash: h2.Base64(), Pending: false, Utc: 9999,
				LeafCount: 2, LeafIndex: 1,
				Chain: []string{fillHash(9).Base64()},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	recs, err := c.Submit(context.Background(), []hashcodec.Hash{h1, h2})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.True(t, recs[0].Pending)
	require.Equal(t, h1, recs[0].Hash)

	require.False(t, recs[1].Pending)
	require.Equal(t, h2, recs[1].Hash)
	require.Equal(t, int64(9999), recs[1].Trail.Crum.Utc)
	require.Equal(t, 2, recs[1].Trail.LeafCount)
	require.Equal(t, 1, recs[1].Trail.LeafIndex)
	require.Len(t, recs[1].Trail.Chain, 1)
}

func TestSubmitNonOKStatusIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Submit(context.Background(), []hashcodec.Hash{fillHash(1)})
	require.Error(t, err)
}

func TestSubmitWithDeadlineRetriesThenSucceeds(t *testing.T) {
	h1 := fillHash(1)
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode([]wireCrum{{Hash: h1.Base64(), Pending: true}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	recs, err := c.SubmitWithDeadline(context.Background(), []hashcodec.Hash{h1}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.GreaterOrEqual(t, attempts, 2)
}

func TestSubmitWithDeadlineExpires(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.SubmitWithDeadline(context.Background(), []hashcodec.Hash{fillHash(1)}, 30*time.Millisecond, 5*time.Millisecond)
	require.Error(t, err)
}
