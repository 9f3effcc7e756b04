// Package trail implements the witness-attestation subsystem (§4.E):
// crumtrails binding a ledger row's hash to an external trusted
// timestamp, and a repo that stores them ordered by row number.
package trail

import (
	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
)

// Crum is the atomic claim a timestamping service makes: "this hash
// existed no later than this UTC time."
type Crum struct {
	Hash hashcodec.Hash
	Utc  int64 // milliseconds since epoch
}

// Crumtrail is a Merkle-inclusion proof binding a Crum to the root the
// timestamping service published at Utc. LeafCount and LeafIndex fix
// the shape of the tree the proof was cut from; Chain holds the
// sibling hashes from the leaf level up to (but not including) the
// root, length ceil(log2(LeafCount)).
type Crumtrail struct {
	Crum      Crum
	LeafCount int
	LeafIndex int
	Chain     []hashcodec.Hash
}

// ChainLength returns ceil(log2(c)) for c leaves, the expected length
// of Chain for a tree with LeafCount leaves (§3 Crumtrail invariant).
func ChainLength(leafCount int) int {
	if leafCount <= 1 {
		return 0
	}
	n := 0
	for c := leafCount - 1; c > 0; c >>= 1 {
		n++
	}
	return n
}

// MerkleRoot derives the tree root this trail attests to, by folding
// Crum.Hash up through Chain according to LeafIndex/LeafCount, per the
// standard append-only Merkle audit-path algorithm (RFC 6962 §2.1.1,
// adapted to this system's single-hash combinator H(a‖b) = sha256(a‖b)
// rather than a domain-separated one).
func (c Crumtrail) MerkleRoot() (hashcodec.Hash, error) {
	if c.LeafCount < 1 {
		return hashcodec.Hash{}, errors.New("trail: crumtrail leaf count must be >= 1")
	}
	if c.LeafIndex < 0 || c.LeafIndex >= c.LeafCount {
		return hashcodec.Hash{}, errors.Errorf("trail: leaf index %d out of range [0,%d)", c.LeafIndex, c.LeafCount)
	}
	want := ChainLength(c.LeafCount)
	if len(c.Chain) != want {
		return hashcodec.Hash{}, errors.Errorf("trail: chain length %d, want %d for %d leaves", len(c.Chain), want, c.LeafCount)
	}

	fn := c.LeafIndex
	sn := c.LeafCount - 1
	r := c.Crum.Hash
	for _, p := range c.Chain {
		if fn == sn || fn%2 == 1 {
			r = hashcodec.Sum(p[:], r[:])
			for fn%2 == 0 && fn != 0 {
				fn /= 2
				sn /= 2
			}
		} else {
			r = hashcodec.Sum(r[:], p[:])
		}
		fn /= 2
		sn /= 2
	}
	if sn != 0 {
		return hashcodec.Hash{}, errors.New("trail: chain too short to reach a single root")
	}
	return r, nil
}

// Trailed pairs a row number with the crumtrail attesting to its hash.
type Trailed struct {
	N         int64
	Crumtrail Crumtrail
}
