package seal

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/journal"
	"github.com/crums-io/skipledger-sub005/lerr"
	"github.com/crums-io/skipledger-sub005/morsel"
	"github.com/crums-io/skipledger-sub005/trail"
)

const headerPrefix = "SEAL"
const headerSize = 10
const currentVersion = "0.3"

var header = [headerSize]byte{'S', 'E', 'A', 'L', ' ', ' ', '0', '.', '3', ' '}

const (
	statusPending  = 0
	statusComplete = 1
)

// Encode serializes s as a complete or pending seal body, mirroring
// morsel's own header-then-body layout (§4.H, §4.I) at a much smaller
// scale: one row instead of a bag of them.
func Encode(s *Seal) ([]byte, error) {
	var buf []byte
	buf = append(buf, header[:]...)

	if s.Pending() {
		buf = append(buf, statusPending)
	} else {
		buf = append(buf, statusComplete)
	}

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(s.N))
	buf = append(buf, n[:]...)
	buf = append(buf, s.RowHash[:]...)

	gb, err := encodeGrammar(s.Grammar)
	if err != nil {
		return nil, err
	}
	buf = append(buf, gb...)

	if !s.Pending() {
		buf = append(buf, encodeCrumtrail(*s.Trail)...)
	}

	return buf, nil
}

func encodeGrammar(g journal.Grammar) ([]byte, error) {
	var buf []byte
	cp := []byte(g.CommentPrefix)
	if len(cp) > math.MaxUint16 {
		return nil, errors.New("seal: comment prefix too long")
	}
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(cp)))
	buf = append(buf, l[:]...)
	buf = append(buf, cp...)

	if len(g.Delimiters) > math.MaxUint16 {
		return nil, errors.New("seal: too many token delimiters")
	}
	var dc [2]byte
	binary.BigEndian.PutUint16(dc[:], uint16(len(g.Delimiters)))
	buf = append(buf, dc[:]...)
	for _, r := range g.Delimiters {
		var rb [4]byte
		binary.BigEndian.PutUint32(rb[:], uint32(r))
		buf = append(buf, rb[:]...)
	}
	return buf, nil
}

func encodeCrumtrail(c trail.Crumtrail) []byte {
	var buf []byte
	var utc [8]byte
	binary.BigEndian.PutUint64(utc[:], uint64(c.Crum.Utc))
	buf = append(buf, utc[:]...)
	var lc, li [4]byte
	binary.BigEndian.PutUint32(lc[:], uint32(c.LeafCount))
	binary.BigEndian.PutUint32(li[:], uint32(c.LeafIndex))
	buf = append(buf, lc[:]...)
	buf = append(buf, li[:]...)
	buf = append(buf, byte(len(c.Chain)))
	for _, h := range c.Chain {
		buf = append(buf, h[:]...)
	}
	buf = append(buf, c.Crum.Hash[:]...)
	return buf
}

// reader mirrors morsel's own small cursor, tracking the offset a
// FormatError needs to name.
type reader struct {
	buf []byte
	off int64
}

func (r *reader) fail(msg string) error {
	return &lerr.FormatError{ByteOffset: r.off, Msg: msg}
}

func (r *reader) bytes(n int64) ([]byte, error) {
	if int64(len(r.buf))-r.off < n {
		return nil, r.fail("unexpected end of buffer")
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

// parseHeader classifies the 10-byte version preamble, reusing morsel's
// version-classification vocabulary (§6) since both formats share the
// same lexicographic-version-compare rule.
func parseHeader(buf []byte) (morsel.LoadNote, error) {
	if len(buf) < headerSize {
		return morsel.LoadNote{}, &lerr.FormatError{ByteOffset: 0, Msg: "buffer shorter than the seal header"}
	}
	if string(buf[:len(headerPrefix)]) != headerPrefix {
		return morsel.LoadNote{}, &lerr.FormatError{ByteOffset: 0, Msg: "unrecognized seal preamble"}
	}
	version := strings.TrimSpace(string(buf[len(headerPrefix):headerSize]))
	note := morsel.LoadNote{Version: version}
	switch {
	case version == currentVersion:
		note.Class = morsel.VersionCurrent
		note.Level = morsel.NoteDebug
		note.Message = "seal is at the current version"
	case version < currentVersion:
		note.Class = morsel.VersionOlder
		note.Level = morsel.NoteDebug
		note.Message = "seal predates the current version"
	default:
		note.Class = morsel.VersionNewer
		note.Level = morsel.NoteInfo
		note.Message = "seal is newer than the current version"
	}
	return note, nil
}

// Decode is Encode's inverse, validating every field it reads and
// returning a version LoadNote alongside the seal.
func Decode(buf []byte) (*Seal, morsel.LoadNote, error) {
	note, err := parseHeader(buf)
	if err != nil {
		return nil, morsel.LoadNote{}, err
	}

	r := &reader{buf: buf, off: headerSize}

	status, err := r.byte()
	if err != nil {
		return nil, note, err
	}
	if status != statusPending && status != statusComplete {
		return nil, note, r.fail("invalid seal status byte")
	}

	n, err := r.i64()
	if err != nil {
		return nil, note, err
	}
	if n < 1 {
		return nil, note, r.fail("seal row number must be >= 1")
	}
	rowHash, err := r.hash()
	if err != nil {
		return nil, note, err
	}

	g, err := decodeGrammar(r)
	if err != nil {
		return nil, note, err
	}

	s := &Seal{N: n, RowHash: rowHash, Grammar: g}

	if status == statusComplete {
		ct, err := decodeCrumtrail(r)
		if err != nil {
			return nil, note, err
		}
		s.Trail = &ct
	}

	if r.off != int64(len(buf)) {
		return nil, note, r.fail("trailing bytes after a well-formed seal")
	}

	return s, note, nil
}

func decodeGrammar(r *reader) (journal.Grammar, error) {
	cpLen, err := r.u16()
	if err != nil {
		return journal.Grammar{}, err
	}
	cpBytes, err := r.bytes(int64(cpLen))
	if err != nil {
		return journal.Grammar{}, err
	}
	delimCount, err := r.u16()
	if err != nil {
		return journal.Grammar{}, err
	}
	var delims []rune
	if delimCount > 0 {
		delims = make([]rune, delimCount)
		for i := range delims {
			v, err := r.u32()
			if err != nil {
				return journal.Grammar{}, err
			}
			delims[i] = rune(v)
		}
	}
	return journal.NewGrammar(string(cpBytes), delims)
}

func decodeCrumtrail(r *reader) (trail.Crumtrail, error) {
	utc, err := r.i64()
	if err != nil {
		return trail.Crumtrail{}, err
	}
	leafCount, err := r.u32()
	if err != nil {
		return trail.Crumtrail{}, err
	}
	leafIndex, err := r.u32()
	if err != nil {
		return trail.Crumtrail{}, err
	}
	chainLen, err := r.byte()
	if err != nil {
		return trail.Crumtrail{}, err
	}
	chain := make([]hashcodec.Hash, chainLen)
	for i := range chain {
		h, err := r.hash()
		if err != nil {
			return trail.Crumtrail{}, err
		}
		chain[i] = h
	}
	crumHash, err := r.hash()
	if err != nil {
		return trail.Crumtrail{}, err
	}
	return trail.Crumtrail{
		Crum:      trail.Crum{Hash: crumHash, Utc: utc},
		LeafCount: int(leafCount),
		LeafIndex: int(leafIndex),
		Chain:     chain,
	}, nil
}
