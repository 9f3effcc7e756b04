// Package morsel implements the morsel pack (§4.H): a self-contained,
// verifiable binary extract of a skip-ledger — a path of rows, optional
// source-row values with selective redaction, and optional crumtrails,
// all bundled behind one 10-byte version header.
package morsel

import (
	"github.com/crums-io/skipledger-sub005/path"
	"github.com/crums-io/skipledger-sub005/row"
	"github.com/crums-io/skipledger-sub005/trail"
)

// headerPrefix is the fixed 4-byte tag every morsel file starts with;
// an unrecognized preamble aborts with a FormatError regardless of what
// follows it (§6).
const headerPrefix = "MRSL"

// HeaderSize is the fixed width of the version header (§4.H, §6): the
// 10-byte ASCII preamble "MRSL  0.3 ". Its two trailing spaces are
// byte-alignment ritual, not semantic (§9); parsing here trims
// whitespace around the version substring rather than depending on it.
const HeaderSize = 10

// CurrentVersion is the version substring this package writes and
// reads natively.
const CurrentVersion = "0.3"

// header is the literal 10-byte preamble this package emits.
var header = [HeaderSize]byte{'M', 'R', 'S', 'L', ' ', ' ', '0', '.', '3', ' '}

// VersionClass classifies a loaded morsel's version against
// CurrentVersion (§6 "Version compare is lexicographic...").
type VersionClass int

const (
	// VersionCurrent is exactly CurrentVersion.
	VersionCurrent VersionClass = iota
	// VersionOlder sorts lexicographically before CurrentVersion.
	VersionOlder
	// VersionNewer sorts lexicographically after CurrentVersion.
	VersionNewer
	// VersionNonStandard is well-formed (recognized preamble) but its
	// version substring doesn't look like a dotted two-part number.
	VersionNonStandard
)

// NoteLevel is the severity LoadNote carries for a recognized-but-
// non-current version (§6: debug/info/warning).
type NoteLevel int

const (
	NoteDebug NoteLevel = iota
	NoteInfo
	NoteWarning
)

// LoadNote reports a non-fatal observation about a loaded pack's
// version header, for the CLI to log (the core itself never prints,
// per §7's propagation policy).
type LoadNote struct {
	Class   VersionClass
	Level   NoteLevel
	Version string
	Message string
}

// SourceEntry pairs a revealed-or-redacted source row with whether it
// was produced by whitespace/delimiter tokenization (journal rows) as
// opposed to a relational source (§4.H row_flags bit 2).
type SourceEntry struct {
	Row       row.SourceRow
	Tokenized bool
}

// Pack is a fully validated, in-memory morsel: a path together with
// whatever subset of source rows and crumtrails the builder chose to
// include, plus an optional comment and named assets (§3 Data model).
type Pack struct {
	Path    path.Path
	Sources []SourceEntry
	Trails  []trail.Trailed
	Comment string
	Assets  map[string][]byte
}
