package morsel

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/path"
	"github.com/crums-io/skipledger-sub005/row"
	"github.com/crums-io/skipledger-sub005/trail"
)

// Row-flag bits within a source row entry (§4.H "row_flags"). holeBit is
// this package's own addition, needed to round-trip §4.J's primary-key
// "hole" rows (whose input hash is the sentinel regardless of cells)
// through a pack without reinterpreting an empty cell list as one.
const (
	flagHasRowSalt         = 1
	flagWhitespaceTokenize = 2
	flagHole               = 4
)

func put64(buf *bytes.Buffer, v int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	buf.Write(tmp[:])
}

func put32(buf *bytes.Buffer, v int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	buf.Write(tmp[:])
}

func put16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func encodePack(
	p path.Path,
	sources []SourceEntry,
	trails []trail.Trailed,
	comment string,
	assets map[string][]byte,
	scheme row.SaltScheme,
	iso bool,
	isoCount int,
	countWidth hashcodec.Width,
	varWidth hashcodec.Width,
) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(header[:])

	// Body, in §4.H's literal field order: schema_code, salt_indices,
	// cell_count, var_size_width, row_count, rows (the revealed source
	// rows — §4.H's "rows[row_count]" table is this one, not the
	// skip-path row bag, which follows below as pack-level data outside
	// that layout, alongside the trails/comment/assets sections).
	schemaBits, indices, err := schemeToWire(scheme)
	if err != nil {
		return nil, err
	}
	schemaCode := schemaBits
	if iso {
		schemaCode |= schemaISOCount
	}
	put64(&buf, schemaCode)
	if schemaBits&(schemaSaltedIdx|schemaUnsaltedIdx) != 0 {
		sorted := sortedAscendingInts(indices)
		if len(sorted) > math.MaxUint16 {
			return nil, errors.New("morsel: too many salted indices")
		}
		put16(&buf, uint16(len(sorted)))
		for _, idx := range sorted {
			put16(&buf, uint16(idx))
		}
	}
	if iso {
		buf.WriteByte(byte(isoCount))
	} else {
		buf.WriteByte(byte(countWidth))
	}
	buf.WriteByte(byte(varWidth))

	put32(&buf, int32(len(sources)))
	for _, e := range sources {
		put64(&buf, e.Row.N)
		cc := len(e.Row.Cells)
		if !iso {
			lb, err := hashcodec.AppendLength(nil, countWidth, uint64(cc))
			if err != nil {
				return nil, errors.Wrapf(err, "morsel: row %d cell count", e.Row.N)
			}
			buf.Write(lb)
		} else if cc != isoCount {
			return nil, errors.Errorf("morsel: row %d has %d cells, want iso count %d", e.Row.N, cc, isoCount)
		}

		flags := byte(0)
		if e.Row.RowSalt != nil {
			flags |= flagHasRowSalt
		}
		if e.Tokenized {
			flags |= flagWhitespaceTokenize
		}
		if e.Row.IsHole {
			flags |= flagHole
		}
		buf.WriteByte(flags)
		if e.Row.RowSalt != nil {
			buf.Write(e.Row.RowSalt[:])
		}
		for _, c := range e.Row.Cells {
			if err := encodeCell(&buf, c, varWidth); err != nil {
				return nil, errors.Wrapf(err, "morsel: encoding row %d", e.Row.N)
			}
		}
	}

	// Row bag: the skip-path, hash-only. Not part of §4.H's literal
	// layout table, which covers only the revealed-rows body above;
	// carried alongside trails/comment/assets as the rest of the pack.
	put32(&buf, int32(len(p.Rows)))
	for _, r := range p.Rows {
		put64(&buf, r.N)
		buf.Write(r.InputHash[:])
		buf.Write(r.RowHash[:])
		if len(r.SkipHashes) > 255 {
			return nil, errors.Errorf("morsel: row %d has %d skip hashes, more than fit in a byte", r.N, len(r.SkipHashes))
		}
		buf.WriteByte(byte(len(r.SkipHashes)))
		for _, h := range r.SkipHashes {
			buf.Write(h[:])
		}
	}

	// Crumtrails.
	put32(&buf, int32(len(trails)))
	for _, t := range trails {
		put64(&buf, t.N)
		put64(&buf, t.Crumtrail.Crum.Utc)
		put32(&buf, int32(t.Crumtrail.LeafCount))
		put32(&buf, int32(t.Crumtrail.LeafIndex))
		if len(t.Crumtrail.Chain) > 255 {
			return nil, errors.Errorf("morsel: trail for row %d has a chain longer than 255", t.N)
		}
		buf.WriteByte(byte(len(t.Crumtrail.Chain)))
		for _, h := range t.Crumtrail.Chain {
			buf.Write(h[:])
		}
		buf.Write(t.Crumtrail.Crum.Hash[:])
	}

	// Comment.
	if comment == "" {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		cb := []byte(comment)
		if len(cb) > math.MaxUint16 {
			return nil, errors.New("morsel: comment too long")
		}
		put16(&buf, uint16(len(cb)))
		buf.Write(cb)
	}

	// Assets, in a deterministic (sorted) name order.
	names := make([]string, 0, len(assets))
	for name := range assets {
		names = append(names, name)
	}
	sortStrings(names)
	put32(&buf, int32(len(names)))
	for _, name := range names {
		nb := []byte(name)
		if len(nb) > math.MaxUint16 {
			return nil, errors.Errorf("morsel: asset name %q too long", name)
		}
		put16(&buf, uint16(len(nb)))
		buf.Write(nb)
		data := assets[name]
		put32(&buf, int32(len(data)))
		buf.Write(data)
	}

	return buf.Bytes(), nil
}

func encodeCell(buf *bytes.Buffer, c row.Cell, varWidth hashcodec.Width) error {
	buf.WriteByte(cellCode(c.Kind))
	switch c.Kind {
	case row.Redacted:
		buf.Write(c.Terminal[:])
	case row.HashCell:
		buf.Write(c.HashVal[:])
	case row.Null:
		// no payload
	case row.Long:
		put64(buf, c.LongVal)
	case row.Date:
		put64(buf, c.DateVal)
	case row.Double:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(c.DoubleVal))
		buf.Write(tmp[:])
	case row.String:
		b := []byte(c.StrVal)
		lb, err := hashcodec.AppendLength(nil, varWidth, uint64(len(b)))
		if err != nil {
			return err
		}
		buf.Write(lb)
		buf.Write(b)
	case row.Bytes:
		lb, err := hashcodec.AppendLength(nil, varWidth, uint64(len(c.BytesVal)))
		if err != nil {
			return err
		}
		buf.Write(lb)
		buf.Write(c.BytesVal)
	default:
		return errors.Errorf("morsel: unrecognized cell kind %v", c.Kind)
	}
	return nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
