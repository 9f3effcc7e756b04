// Package witness is a client for the external timestamp service (§6):
// submit a batch of row hashes, get back either a pending acknowledgment
// or a complete crumtrail for each: a small HTTP POST of hashes out, a
// JSON array of records back.
package witness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/lerr"
	"github.com/crums-io/skipledger-sub005/trail"
)

// CrumRecord is one hash's outcome from a submission: either pending
// (Trail is the zero value) or witnessed (Trail populated).
type CrumRecord struct {
	Hash    hashcodec.Hash
	Pending bool
	Trail   trail.Crumtrail
}

// Client submits batches of hashes to a remote timestamping service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a witness client pointed at baseURL (e.g.
// "https://crums.io/api"). httpClient may be nil to use http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type submitRequest struct {
	Hashes []string `json:"hashes"`
}

type wireCrum struct {
	Hash      string   `json:"hash"`
	Pending   bool     `json:"pending"`
	Utc       int64    `json:"utc,omitempty"`
	LeafCount int      `json:"leafCount,omitempty"`
	LeafIndex int      `json:"leafIndex,omitempty"`
	Chain     []string `json:"chain,omitempty"`
}

// Submit posts hashes in one request and parses the returned records,
// preserving input order. A transport failure or non-200 status is
// wrapped as *lerr.NetworkError.
func (c *Client) Submit(ctx context.Context, hashes []hashcodec.Hash) ([]CrumRecord, error) {
	req := submitRequest{Hashes: make([]string, len(hashes))}
	for i, h := range hashes {
		req.Hashes[i] = h.Base64()
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "witness: encoding submit request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/crum", bytes.NewReader(body))
	if err != nil {
		return nil, &lerr.NetworkError{Op: "submit", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &lerr.NetworkError{Op: "submit", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &lerr.NetworkError{Op: "submit", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &lerr.NetworkError{Op: "submit", Err: fmt.Errorf("status %d: %s", resp.StatusCode, respBody)}
	}

	var wire []wireCrum
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, &lerr.NetworkError{Op: "submit", Err: err}
	}

	out := make([]CrumRecord, len(wire))
	for i, w := range wire {
		h, err := hashcodec.ParseBase64(w.Hash)
		if err != nil {
			return nil, &lerr.NetworkError{Op: "submit", Err: errors.Wrap(err, "decoding returned hash")}
		}
		rec := CrumRecord{Hash: h, Pending: w.Pending}
		if !w.Pending {
			chain := make([]hashcodec.Hash, len(w.Chain))
			for j, s := range w.Chain {
				ch, err := hashcodec.ParseBase64(s)
				if err != nil {
					return nil, &lerr.NetworkError{Op: "submit", Err: errors.Wrap(err, "decoding chain node")}
				}
				chain[j] = ch
			}
			rec.Trail = trail.Crumtrail{
				Crum:      trail.Crum{Hash: h, Utc: w.Utc},
				LeafCount: w.LeafCount,
				LeafIndex: w.LeafIndex,
				Chain:     chain,
			}
		}
		out[i] = rec
	}
	return out, nil
}

// SubmitWithDeadline retries Submit on network failure until ctx carries
// no more budget against deadline, per §5's "bounded-deadline retry loop"
// requirement for the sole networked operation in this system.
func (c *Client) SubmitWithDeadline(ctx context.Context, hashes []hashcodec.Hash, deadline time.Duration, backoff time.Duration) ([]CrumRecord, error) {
	deadlineCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var lastErr error
	for {
		recs, err := c.Submit(deadlineCtx, hashes)
		if err == nil {
			return recs, nil
		}
		lastErr = err
		select {
		case <-deadlineCtx.Done():
			return nil, &lerr.NetworkError{Op: "submit", Err: errors.Wrap(lastErr, "deadline expired")}
		case <-time.After(backoff):
		}
	}
}
