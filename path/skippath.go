// Package path implements the path algebra (§4.D): construction of the
// unique minimum-length skip-path between two rows, path validation,
// stitching multiple anchors together, and the coverage-set semantics
// that let a path answer "what is h_row(m)" for rows it never stored
// directly.
package path

import (
	"sort"

	"github.com/pkg/errors"
)

// SkipPath returns the unique minimum-length ascending sequence of row
// numbers lo = r_0 < r_1 < ... < r_t = hi such that each step's length
// is a power of two dividing the next row number (§4.D, proved unique;
// §8 invariant 3).
//
// Construction: from r_k, r_{k+1} = min(hi, r_k + 2^p) for the largest
// p with (r_k + 2^p) divisible by 2^p and <= hi — trying the largest
// step first realizes the "prefer the larger step" tie-break directly.
func SkipPath(lo, hi int64) ([]int64, error) {
	if lo < 1 {
		return nil, errors.Errorf("path: lo must be >= 1, got %d", lo)
	}
	if hi < lo {
		return nil, errors.Errorf("path: hi (%d) must be >= lo (%d)", hi, lo)
	}
	out := []int64{lo}
	r := lo
	for r < hi {
		step := bestStep(r, hi)
		r += step
		out = append(out, r)
	}
	return out, nil
}

// bestStep returns the largest power of two 2^p such that r+2^p is
// divisible by 2^p and does not exceed hi. p=0 (step 1) always
// qualifies whenever r < hi, so this always terminates.
func bestStep(r, hi int64) int64 {
	for p := uint(62); ; p-- {
		step := int64(1) << p
		next := r + step
		if next <= hi && next%step == 0 {
			return step
		}
		if p == 0 {
			return 1
		}
	}
}

// stepLevel returns log2(d) for a power-of-two d, or -1 if d is not a
// power of two.
func stepLevel(d int64) int {
	if d <= 0 || d&(d-1) != 0 {
		return -1
	}
	level := 0
	for v := d; v > 1; v >>= 1 {
		level++
	}
	return level
}

// dedupSortedUnion merges and sorts ascending, removing duplicates.
func dedupSortedUnion(sets ...[]int64) []int64 {
	seen := make(map[int64]bool)
	var all []int64
	for _, s := range sets {
		for _, n := range s {
			if !seen[n] {
				seen[n] = true
				all = append(all, n)
			}
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	return all
}
