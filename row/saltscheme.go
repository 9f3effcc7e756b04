package row

import (
	"sort"

	"github.com/pkg/errors"
)

// SchemeKind enumerates the four salt schemes a source row's cells may
// follow (§3 Data model).
type SchemeKind int

const (
	AllSalted SchemeKind = iota
	NoneSalted
	SaltedIndices
	UnsaltedIndices
)

// SaltScheme selects, per cell index, whether a revealed cell's terminal
// hash is salted. Indices is only meaningful for SaltedIndices and
// UnsaltedIndices and must be a sorted set of zero-based cell indices
// with no duplicates.
type SaltScheme struct {
	Kind    SchemeKind
	Indices []int
}

// NewIndexScheme builds a SaltedIndices or UnsaltedIndices scheme,
// sorting and de-duplicating idx. kind must be SaltedIndices or
// UnsaltedIndices.
func NewIndexScheme(kind SchemeKind, idx []int) (SaltScheme, error) {
	if kind != SaltedIndices && kind != UnsaltedIndices {
		return SaltScheme{}, errors.Errorf("row: kind %v does not take indices", kind)
	}
	sorted := append([]int(nil), idx...)
	sort.Ints(sorted)
	unique := make([]int, 0, len(sorted))
	for i, k := range sorted {
		if i == 0 || k != sorted[i-1] {
			unique = append(unique, k)
		}
	}
	return SaltScheme{Kind: kind, Indices: unique}, nil
}

// SaltedAt reports whether the cell at zero-based index k should be
// salted under this scheme.
func (s SaltScheme) SaltedAt(k int) bool {
	switch s.Kind {
	case AllSalted:
		return true
	case NoneSalted:
		return false
	case SaltedIndices:
		return s.contains(k)
	case UnsaltedIndices:
		return !s.contains(k)
	default:
		return false
	}
}

func (s SaltScheme) contains(k int) bool {
	i := sort.SearchInts(s.Indices, k)
	return i < len(s.Indices) && s.Indices[i] == k
}
