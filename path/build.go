package path

import (
	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/ledger"
)

// rowSource is the minimal read surface build.go needs from a live
// ledger. ledger.SkipLedger satisfies it; tests can substitute a fake.
type rowSource interface {
	RowHash(n int64) (hashcodec.Hash, error)
	GetRow(n int64) (ledger.Row, error)
}

// BuildRow fetches row n from src along with every skip-pointer hash
// its own row hash depends on, producing a self-contained Row.
func BuildRow(src rowSource, n int64) (Row, error) {
	row, err := src.GetRow(n)
	if err != nil {
		return Row{}, errors.Wrapf(err, "path: fetching row %d", n)
	}
	s := ledger.SkipCount(n)
	skip := make([]hashcodec.Hash, s)
	for p := 0; p < s; p++ {
		pred := n - (int64(1) << uint(p))
		h, err := src.RowHash(pred)
		if err != nil {
			return Row{}, errors.Wrapf(err, "path: fetching predecessor %d of row %d", pred, n)
		}
		skip[p] = h
	}
	return Row{N: n, InputHash: row.InputHash, RowHash: row.RowHash, SkipHashes: skip}, nil
}

// BuildSkipPath constructs the minimal skip-path from lo to hi as a
// self-contained Path read from src.
func BuildSkipPath(src rowSource, lo, hi int64) (Path, error) {
	nums, err := SkipPath(lo, hi)
	if err != nil {
		return Path{}, err
	}
	return buildRows(src, nums)
}

// Stitch builds the union of skip-paths between each consecutive pair
// of anchors (plus the endpoints themselves), deduplicated and
// ascending, as a single self-contained Path (§4.D "Stitching").
func Stitch(src rowSource, anchors []int64) (Path, error) {
	if len(anchors) == 0 {
		return Path{}, errors.New("path: stitch requires at least one anchor")
	}
	sorted := append([]int64(nil), anchors...)
	dedupedAnchors := dedupSortedUnion(sorted)

	if len(dedupedAnchors) == 1 {
		return buildRows(src, dedupedAnchors)
	}

	var segments [][]int64
	for i := 0; i+1 < len(dedupedAnchors); i++ {
		seg, err := SkipPath(dedupedAnchors[i], dedupedAnchors[i+1])
		if err != nil {
			return Path{}, err
		}
		segments = append(segments, seg)
	}
	union := dedupSortedUnion(segments...)
	return buildRows(src, union)
}

func buildRows(src rowSource, nums []int64) (Path, error) {
	rows := make([]Row, len(nums))
	for i, n := range nums {
		r, err := BuildRow(src, n)
		if err != nil {
			return Path{}, err
		}
		rows[i] = r
	}
	return Path{Rows: rows}, nil
}
