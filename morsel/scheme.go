package morsel

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/row"
)

// Schema bits, exactly as named in §4.H ("schema_code : u64 // bitfield:
// {ISO_COUNT=1, SALTED_IDX=2, UNSALTED_IDX=4}"). Validation requires
// schema_code < 8 (§4.H "Validation on load"), so the salt-scheme tag
// has to fit in the two bits SALTED_IDX/UNSALTED_IDX leave it. AllSalted
// and NoneSalted — which carry no index list of their own — are
// canonicalized onto the index-bearing schemes they are mathematically
// identical to: NoneSalted is "no bits, no indices"; AllSalted is
// UNSALTED_IDX with an empty index set ("unsalted nowhere" == "salted
// everywhere", true regardless of how many cells a row has).
const (
	schemaISOCount    uint64 = 1
	schemaSaltedIdx   uint64 = 2
	schemaUnsaltedIdx uint64 = 4
	schemaMax         uint64 = 8
)

// schemeToWire reduces a row.SaltScheme to the SALTED_IDX/UNSALTED_IDX
// bits and the index list that travel on the wire.
func schemeToWire(s row.SaltScheme) (bits uint64, indices []int, err error) {
	switch s.Kind {
	case row.NoneSalted:
		return 0, nil, nil
	case row.AllSalted:
		return schemaUnsaltedIdx, []int{}, nil
	case row.SaltedIndices:
		return schemaSaltedIdx, s.Indices, nil
	case row.UnsaltedIndices:
		return schemaUnsaltedIdx, s.Indices, nil
	default:
		return 0, nil, errors.Errorf("morsel: unrecognized salt scheme kind %v", s.Kind)
	}
}

// wireToScheme is schemeToWire's inverse. A schema_code setting both
// index bits is rejected as malformed (§4.H validation: the two bits
// name mutually exclusive schemes).
func wireToScheme(bits uint64, indices []int) (row.SaltScheme, error) {
	salted := bits&schemaSaltedIdx != 0
	unsalted := bits&schemaUnsaltedIdx != 0
	switch {
	case salted && unsalted:
		return row.SaltScheme{}, errors.New("morsel: schema_code sets both SALTED_IDX and UNSALTED_IDX")
	case salted:
		return row.SaltScheme{Kind: row.SaltedIndices, Indices: indices}, nil
	case unsalted:
		if len(indices) == 0 {
			return row.SaltScheme{Kind: row.AllSalted}, nil
		}
		return row.SaltScheme{Kind: row.UnsaltedIndices, Indices: indices}, nil
	default:
		return row.SaltScheme{Kind: row.NoneSalted}, nil
	}
}

// cellCode maps a row.Kind to the §4.H wire tag for a revealed cell
// (type+1); Kind's own iota order (Null..HashCell then Redacted) lines
// up with the spec's "0 => redacted, type+1 => revealed of that type"
// rule directly, so no separate lookup table is needed.
func cellCode(k row.Kind) byte {
	if k == row.Redacted {
		return 0
	}
	return byte(k) + 1
}

// kindFromCellCode is cellCode's inverse; ok is false for an out-of-
// range code.
func kindFromCellCode(code byte) (row.Kind, bool) {
	if code == 0 {
		return row.Redacted, true
	}
	k := row.Kind(code - 1)
	if k < row.Null || k > row.HashCell {
		return 0, false
	}
	return k, true
}

func sortedAscendingInts(idx []int) []int {
	out := append([]int(nil), idx...)
	sort.Ints(out)
	return out
}
