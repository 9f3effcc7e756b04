package hashledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/trail"
	"github.com/crums-io/skipledger-sub005/witness"
)

// Submitter is the witness.Client surface the batcher needs; tests
// substitute a fake.
type Submitter interface {
	SubmitWithDeadline(ctx context.Context, hashes []hashcodec.Hash, deadline, backoff time.Duration) ([]witness.CrumRecord, error)
}

// ToothedCandidates returns the row numbers in [1, size] divisible by
// 2^exponent, plus size itself if includeLast is true (§4.F).
func ToothedCandidates(size int64, exponent uint, includeLast bool) []int64 {
	if size < 1 {
		return nil
	}
	step := int64(1) << exponent
	var out []int64
	for n := step; n <= size; n += step {
		out = append(out, n)
	}
	if includeLast && (len(out) == 0 || out[len(out)-1] != size) {
		out = append(out, size)
	}
	return out
}

// WitnessChunkSize bounds how many hashes go in one HTTP round trip;
// larger candidate sets fan out across concurrent chunk submissions.
const WitnessChunkSize = 256

// RejectLogger is called, outside any lock, whenever a surviving
// crumtrail record is rejected by the repo's monotonic invariant.
type RejectLogger func(trail.Trailed)

// WitnessRows submits the rows returned by ToothedCandidates to sub, in
// chunks of WitnessChunkSize submitted concurrently, then applies §4.F's
// sort/filter rule and adds surviving records to the ledger's repo.
// Returns the number of rows newly trailed.
func (h *HashLedger) WitnessRows(ctx context.Context, sub Submitter, rowNumbers []int64, deadline, backoff time.Duration, onReject RejectLogger) (int, error) {
	if len(rowNumbers) == 0 {
		return 0, nil
	}

	h.mu.RLock()
	hashes := make([]hashcodec.Hash, len(rowNumbers))
	for i, n := range rowNumbers {
		hash, err := h.ledger.RowHash(n)
		if err != nil {
			h.mu.RUnlock()
			return 0, err
		}
		hashes[i] = hash
	}
	h.mu.RUnlock()

	var chunks [][]int64
	var hashChunks [][]hashcodec.Hash
	for i := 0; i < len(rowNumbers); i += WitnessChunkSize {
		end := i + WitnessChunkSize
		if end > len(rowNumbers) {
			end = len(rowNumbers)
		}
		chunks = append(chunks, rowNumbers[i:end])
		hashChunks = append(hashChunks, hashes[i:end])
	}

	results := make([][]witness.CrumRecord, len(chunks))
	var mu sync.Mutex
	group, gctx := errgroup.WithContext(ctx)
	for i := range chunks {
		i := i
		group.Go(func() error {
			recs, err := sub.SubmitWithDeadline(gctx, hashChunks[i], deadline, backoff)
			if err != nil {
				return errors.Wrapf(err, "hashledger: submitting chunk starting at row %d", chunks[i][0])
			}
			mu.Lock()
			results[i] = recs
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}

	var trailed []trail.Trailed
	for ci, recs := range results {
		for ri, rec := range recs {
			if rec.Pending {
				continue
			}
			trailed = append(trailed, trail.Trailed{N: chunks[ci][ri], Crumtrail: rec.Trail})
		}
	}

	trailed = sortAndFilterTrailed(trailed)

	count := 0
	for _, t := range trailed {
		ok, err := h.AddTrail(t)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		} else if onReject != nil {
			onReject(t)
		}
	}
	return count, nil
}

// sortAndFilterTrailed implements §4.F: sort by crum.utc ascending,
// larger row number first on a utc tie, then within the batch keep only
// the lowest row number for each repeated utc.
func sortAndFilterTrailed(in []trail.Trailed) []trail.Trailed {
	sort.Slice(in, func(i, j int) bool {
		if in[i].Crumtrail.Crum.Utc != in[j].Crumtrail.Crum.Utc {
			return in[i].Crumtrail.Crum.Utc < in[j].Crumtrail.Crum.Utc
		}
		return in[i].N > in[j].N
	})

	out := make([]trail.Trailed, 0, len(in))
	seenUtc := make(map[int64]int64) // utc -> lowest N kept so far
	for _, t := range in {
		if lowestN, ok := seenUtc[t.Crumtrail.Crum.Utc]; ok {
			if t.N < lowestN {
				seenUtc[t.Crumtrail.Crum.Utc] = t.N
				for i := range out {
					if out[i].Crumtrail.Crum.Utc == t.Crumtrail.Crum.Utc {
						out[i] = t
						break
					}
				}
			}
			continue
		}
		seenUtc[t.Crumtrail.Crum.Utc] = t.N
		out = append(out, t)
	}

	return out
}
