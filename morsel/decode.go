package morsel

import (
	"encoding/binary"
	"math"
	"regexp"
	"strings"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/lerr"
	"github.com/crums-io/skipledger-sub005/path"
	"github.com/crums-io/skipledger-sub005/row"
	"github.com/crums-io/skipledger-sub005/trail"
)

// reader walks buf front-to-back, tracking the offset lerr.FormatError
// needs to name the first bad byte (§7).
type reader struct {
	buf []byte
	off int64
}

func (r *reader) fail(msg string) error {
	return &lerr.FormatError{ByteOffset: r.off, Msg: msg}
}

func (r *reader) need(n int64) error {
	if int64(len(r.buf))-r.off < n {
		return r.fail("unexpected end of buffer")
	}
	return nil
}

func (r *reader) bytes(n int64) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) i64() (int64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *reader) hash() (hashcodec.Hash, error) {
	b, err := r.bytes(hashcodec.Size)
	if err != nil {
		return hashcodec.Hash{}, err
	}
	return hashcodec.FromBytesUnsafe(b), nil
}

func (r *reader) length(w hashcodec.Width) (uint64, error) {
	if err := r.need(int64(w)); err != nil {
		return 0, err
	}
	n, consumed, err := hashcodec.ReadLength(r.buf[r.off:], w)
	if err != nil {
		return 0, r.fail(err.Error())
	}
	r.off += int64(consumed)
	return n, nil
}

var versionPattern = regexp.MustCompile(`^\d+\.\d+$`)

// ParseHeader reads and classifies the 10-byte version preamble without
// decoding the rest of the pack (§6). An unrecognized "MRSL" tag (wrong
// bytes entirely) is the only fatal case; a recognized tag with an
// unexpected version string still parses, classified for the caller to
// log.
func ParseHeader(buf []byte) (LoadNote, error) {
	if len(buf) < HeaderSize {
		return LoadNote{}, &lerr.FormatError{ByteOffset: 0, Msg: "buffer shorter than the morsel header"}
	}
	if string(buf[:len(headerPrefix)]) != headerPrefix {
		return LoadNote{}, &lerr.FormatError{ByteOffset: 0, Msg: "unrecognized morsel preamble"}
	}
	version := strings.TrimSpace(string(buf[len(headerPrefix):HeaderSize]))
	note := LoadNote{Version: version}
	switch {
	case !versionPattern.MatchString(version):
		note.Class = VersionNonStandard
		note.Level = NoteWarning
		note.Message = "morsel version string is not a recognized dotted version"
	case version == CurrentVersion:
		note.Class = VersionCurrent
		note.Level = NoteDebug
		note.Message = "morsel is at the current version"
	case version < CurrentVersion:
		note.Class = VersionOlder
		note.Level = NoteDebug
		note.Message = "morsel predates the current version"
	default:
		note.Class = VersionNewer
		note.Level = NoteInfo
		note.Message = "morsel is newer than the current version"
	}
	return note, nil
}

// Parse decodes and validates a complete morsel pack (§4.H "Validation
// on load"). It returns the version LoadNote alongside the pack so the
// CLI can log it; decoding itself never fails on a non-current version,
// only on an unrecognized preamble or a structural problem.
func Parse(buf []byte) (*Pack, LoadNote, error) {
	note, err := ParseHeader(buf)
	if err != nil {
		return nil, LoadNote{}, err
	}

	r := &reader{buf: buf, off: HeaderSize}

	// Body, in §4.H's literal field order: schema_code, salt_indices,
	// cell_count, var_size_width, row_count, rows. The skip-path row bag
	// follows this body (see below), mirroring encode.go.
	schemaCode, err := r.i64()
	if err != nil {
		return nil, note, err
	}
	if uint64(schemaCode) >= schemaMax {
		return nil, note, r.fail("schema_code must be < 8")
	}
	var indices []int
	if uint64(schemaCode)&(schemaSaltedIdx|schemaUnsaltedIdx) != 0 {
		count, err := r.u16()
		if err != nil {
			return nil, note, err
		}
		indices = make([]int, count)
		prevIdx := -1
		for i := range indices {
			idx, err := r.u16()
			if err != nil {
				return nil, note, err
			}
			if int(idx) <= prevIdx {
				return nil, note, r.fail("salt indices must be strictly ascending")
			}
			prevIdx = int(idx)
			indices[i] = int(idx)
		}
	}
	scheme, err := wireToScheme(uint64(schemaCode), indices)
	if err != nil {
		return nil, note, r.fail(err.Error())
	}

	iso := uint64(schemaCode)&schemaISOCount != 0
	ccByte, err := r.byte()
	if err != nil {
		return nil, note, err
	}
	isoCount := 0
	countWidth := hashcodec.Width1
	if iso {
		isoCount = int(ccByte)
	} else {
		countWidth = hashcodec.Width(ccByte)
		if !countWidth.Valid() {
			return nil, note, r.fail("invalid cell-count width")
		}
	}
	varWidthByte, err := r.byte()
	if err != nil {
		return nil, note, err
	}
	varWidth := hashcodec.Width(varWidthByte)
	if varWidth != hashcodec.Width2 && varWidth != hashcodec.Width3 && varWidth != hashcodec.Width4 {
		return nil, note, r.fail("var_size_width must be 2, 3, or 4")
	}

	sourceCount, err := r.u32()
	if err != nil {
		return nil, note, err
	}
	sources := make([]SourceEntry, sourceCount)
	prevSrcN := int64(0)
	for i := range sources {
		n, err := r.i64()
		if err != nil {
			return nil, note, err
		}
		if n <= prevSrcN {
			return nil, note, r.fail("source row numbers must be strictly ascending")
		}
		prevSrcN = n

		var cc int
		if iso {
			cc = isoCount
		} else {
			n64, err := r.length(countWidth)
			if err != nil {
				return nil, note, err
			}
			cc = int(n64)
		}

		flags, err := r.byte()
		if err != nil {
			return nil, note, err
		}
		var rowSalt *hashcodec.Hash
		if flags&flagHasRowSalt != 0 {
			h, err := r.hash()
			if err != nil {
				return nil, note, err
			}
			rowSalt = &h
		}

		cells := make([]row.Cell, cc)
		for k := range cells {
			c, err := decodeCell(r, varWidth)
			if err != nil {
				return nil, note, err
			}
			cells[k] = c
		}

		sources[i] = SourceEntry{
			Row: row.SourceRow{
				N:       n,
				Cells:   cells,
				RowSalt: rowSalt,
				Scheme:  scheme,
				IsHole:  flags&flagHole != 0,
			},
			Tokenized: flags&flagWhitespaceTokenize != 0,
		}
	}

	// Row bag: the skip-path, hash-only. Not part of §4.H's literal
	// layout table; carried after the revealed-rows body, mirroring
	// encode.go.
	pathRowCount, err := r.u32()
	if err != nil {
		return nil, note, err
	}
	if pathRowCount == 0 {
		return nil, note, r.fail("morsel path must have at least one row")
	}
	pathRows := make([]path.Row, pathRowCount)
	prevN := int64(0)
	for i := range pathRows {
		n, err := r.i64()
		if err != nil {
			return nil, note, err
		}
		if n <= prevN {
			return nil, note, r.fail("path row numbers must be strictly ascending")
		}
		prevN = n
		in, err := r.hash()
		if err != nil {
			return nil, note, err
		}
		rh, err := r.hash()
		if err != nil {
			return nil, note, err
		}
		scLen, err := r.byte()
		if err != nil {
			return nil, note, err
		}
		skip := make([]hashcodec.Hash, scLen)
		for p := range skip {
			h, err := r.hash()
			if err != nil {
				return nil, note, err
			}
			skip[p] = h
		}
		pathRows[i] = path.Row{N: n, InputHash: in, RowHash: rh, SkipHashes: skip}
	}
	p := path.Path{Rows: pathRows}
	if err := p.Validate(); err != nil {
		return nil, note, err
	}
	present := make(map[int64]bool, len(pathRows))
	for _, row := range pathRows {
		present[row.N] = true
	}
	for _, e := range sources {
		if !present[e.Row.N] {
			return nil, note, r.fail("source row is not a row of the path")
		}
	}

	trailCount, err := r.u32()
	if err != nil {
		return nil, note, err
	}
	trails := make([]trail.Trailed, trailCount)
	prevTrailN := int64(0)
	for i := range trails {
		n, err := r.i64()
		if err != nil {
			return nil, note, err
		}
		if n <= prevTrailN {
			return nil, note, r.fail("trailed row numbers must be strictly ascending")
		}
		prevTrailN = n
		if !present[n] {
			return nil, note, r.fail("trailed row is not a row of the path")
		}
		utc, err := r.i64()
		if err != nil {
			return nil, note, err
		}
		leafCount, err := r.u32()
		if err != nil {
			return nil, note, err
		}
		leafIndex, err := r.u32()
		if err != nil {
			return nil, note, err
		}
		chainLen, err := r.byte()
		if err != nil {
			return nil, note, err
		}
		chain := make([]hashcodec.Hash, chainLen)
		for j := range chain {
			h, err := r.hash()
			if err != nil {
				return nil, note, err
			}
			chain[j] = h
		}
		crumHash, err := r.hash()
		if err != nil {
			return nil, note, err
		}
		trails[i] = trail.Trailed{
			N: n,
			Crumtrail: trail.Crumtrail{
				Crum:      trail.Crum{Hash: crumHash, Utc: utc},
				LeafCount: int(leafCount),
				LeafIndex: int(leafIndex),
				Chain:     chain,
			},
		}
	}

	commentPresent, err := r.byte()
	if err != nil {
		return nil, note, err
	}
	var comment string
	if commentPresent != 0 {
		n, err := r.u16()
		if err != nil {
			return nil, note, err
		}
		b, err := r.bytes(int64(n))
		if err != nil {
			return nil, note, err
		}
		comment = string(b)
	}

	assetCount, err := r.u32()
	if err != nil {
		return nil, note, err
	}
	assets := make(map[string][]byte, assetCount)
	for i := uint32(0); i < assetCount; i++ {
		nameLen, err := r.u16()
		if err != nil {
			return nil, note, err
		}
		nameBytes, err := r.bytes(int64(nameLen))
		if err != nil {
			return nil, note, err
		}
		dataLen, err := r.u32()
		if err != nil {
			return nil, note, err
		}
		data, err := r.bytes(int64(dataLen))
		if err != nil {
			return nil, note, err
		}
		assets[string(nameBytes)] = append([]byte(nil), data...)
	}

	if r.off != int64(len(buf)) {
		return nil, note, r.fail("trailing bytes after a well-formed morsel")
	}

	return &Pack{
		Path:    p,
		Sources: sources,
		Trails:  trails,
		Comment: comment,
		Assets:  assets,
	}, note, nil
}

func decodeCell(r *reader, varWidth hashcodec.Width) (row.Cell, error) {
	code, err := r.byte()
	if err != nil {
		return row.Cell{}, err
	}
	kind, ok := kindFromCellCode(code)
	if !ok {
		return row.Cell{}, r.fail("invalid cell code")
	}
	switch kind {
	case row.Redacted:
		h, err := r.hash()
		if err != nil {
			return row.Cell{}, err
		}
		return row.RedactedCell(h), nil
	case row.HashCell:
		h, err := r.hash()
		if err != nil {
			return row.Cell{}, err
		}
		return row.HashValueCell(h), nil
	case row.Null:
		return row.NullCell(), nil
	case row.Long:
		v, err := r.i64()
		if err != nil {
			return row.Cell{}, err
		}
		return row.LongCell(v), nil
	case row.Date:
		v, err := r.i64()
		if err != nil {
			return row.Cell{}, err
		}
		return row.DateCell(v), nil
	case row.Double:
		raw, err := r.i64()
		if err != nil {
			return row.Cell{}, err
		}
		return row.DoubleCell(math.Float64frombits(uint64(raw))), nil
	case row.String:
		n, err := r.length(varWidth)
		if err != nil {
			return row.Cell{}, err
		}
		b, err := r.bytes(int64(n))
		if err != nil {
			return row.Cell{}, err
		}
		return row.StringCell(string(b)), nil
	case row.Bytes:
		n, err := r.length(varWidth)
		if err != nil {
			return row.Cell{}, err
		}
		b, err := r.bytes(int64(n))
		if err != nil {
			return row.Cell{}, err
		}
		return row.BytesCell(append([]byte(nil), b...)), nil
	default:
		return row.Cell{}, r.fail("unreachable cell kind")
	}
}
