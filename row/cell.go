// Package row implements the source-row model (§4.B): typed cells, the
// four salt schemes, and the input-hash derivation that turns a
// structured row into the 32-byte commitment the skip-ledger appends.
package row

import (
	"encoding/binary"
	"math"

	"github.com/crums-io/skipledger-sub005/hashcodec"
)

// Kind tags the variant a Cell holds, replacing the dynamic-polymorphism
// over cell type the original design used (§9: "becomes a tagged variant
// ... with a single trait/interface for terminal_hash").
type Kind int

const (
	Null Kind = iota
	Long
	Double
	Date
	String
	Bytes
	HashCell
	Redacted
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Long:
		return "long"
	case Double:
		return "double"
	case Date:
		return "date"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	case HashCell:
		return "hash"
	case Redacted:
		return "redacted"
	default:
		return "unknown"
	}
}

// Cell is one typed value in a source row. Exactly the fields relevant
// to Kind are meaningful; the rest are zero. Salt, when non-nil, is the
// cell's own 32-byte per-cell salt (as opposed to one derived from the
// row-salt).
type Cell struct {
	Kind Kind

	LongVal   int64
	DoubleVal float64
	DateVal   int64 // UTC milliseconds
	StrVal    string
	BytesVal  []byte
	HashVal   hashcodec.Hash // Kind == HashCell: the cell's terminal value directly
	Terminal  hashcodec.Hash // Kind == Redacted: the precomputed terminal hash t_k

	Salt *hashcodec.Hash
}

func NullCell() Cell                     { return Cell{Kind: Null} }
func LongCell(v int64) Cell              { return Cell{Kind: Long, LongVal: v} }
func DoubleCell(v float64) Cell          { return Cell{Kind: Double, DoubleVal: v} }
func DateCell(utcMillis int64) Cell      { return Cell{Kind: Date, DateVal: utcMillis} }
func StringCell(v string) Cell           { return Cell{Kind: String, StrVal: v} }
func BytesCell(v []byte) Cell            { return Cell{Kind: Bytes, BytesVal: v} }
func HashValueCell(v hashcodec.Hash) Cell { return Cell{Kind: HashCell, HashVal: v} }
func RedactedCell(terminal hashcodec.Hash) Cell {
	return Cell{Kind: Redacted, Terminal: terminal}
}

// WithSalt returns a copy of c carrying its own per-cell salt.
func (c Cell) WithSalt(salt hashcodec.Hash) Cell {
	c.Salt = &salt
	return c
}

// payload returns the canonical byte encoding of a revealed, non-hash,
// non-redacted cell's value (§4.B step 1, "else" branch). Fixed-width
// types use big-endian encoding; string and bytes are encoded as-is.
func (c Cell) payload() []byte {
	switch c.Kind {
	case Long, Date:
		var buf [8]byte
		v := c.LongVal
		if c.Kind == Date {
			v = c.DateVal
		}
		binary.BigEndian.PutUint64(buf[:], uint64(v))
		return buf[:]
	case Double:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(c.DoubleVal))
		return buf[:]
	case String:
		return []byte(c.StrVal)
	case Bytes:
		return c.BytesVal
	default:
		return nil
	}
}
