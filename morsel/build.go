package morsel

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/path"
	"github.com/crums-io/skipledger-sub005/row"
	"github.com/crums-io/skipledger-sub005/trail"
)

// Builder assembles a morsel pack from a path and the optional material
// riding along with it, in the teacher's sticky-error idiom: each
// With* call is chainable, and any error is latched and returned by
// Build (and every With* call made after it).
type Builder struct {
	path    path.Path
	sources []SourceEntry
	trails  []trail.Trailed
	comment string
	assets  map[string][]byte
	err     error
}

// NewBuilder starts a Builder over a path. The path is re-validated at
// Build time regardless of whether the caller already checked it.
func NewBuilder(p path.Path) *Builder {
	return &Builder{path: p, assets: map[string][]byte{}}
}

// WithSources adds revealed-or-redacted source rows to the pack. Every
// entry's row number must belong to the path (checked at Build).
func (b *Builder) WithSources(entries ...SourceEntry) *Builder {
	if b.err != nil {
		return b
	}
	b.sources = append(b.sources, entries...)
	return b
}

// WithTrails adds crumtrails to the pack. Every entry's row number must
// belong to the path (checked at Build).
func (b *Builder) WithTrails(trails ...trail.Trailed) *Builder {
	if b.err != nil {
		return b
	}
	b.trails = append(b.trails, trails...)
	return b
}

// WithComment sets the pack's free-text annotation.
func (b *Builder) WithComment(comment string) *Builder {
	if b.err != nil {
		return b
	}
	b.comment = comment
	return b
}

// WithAsset attaches a named byte blob to the pack. A duplicate name
// latches an error.
func (b *Builder) WithAsset(name string, data []byte) *Builder {
	if b.err != nil {
		return b
	}
	if _, exists := b.assets[name]; exists {
		b.err = errors.Errorf("morsel: duplicate asset name %q", name)
		return b
	}
	b.assets[name] = data
	return b
}

// Error returns the first error latched by a With* call, if any.
func (b *Builder) Error() error {
	return b.err
}

// Build validates the accumulated path, sources, and trails against
// each other (§3 Morsel pack invariants) and serializes the result.
func (b *Builder) Build() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.path.Validate(); err != nil {
		return nil, errors.Wrap(err, "morsel: path fails validation")
	}

	present := make(map[int64]bool, len(b.path.Rows))
	for _, r := range b.path.Rows {
		present[r.N] = true
	}

	sources := append([]SourceEntry(nil), b.sources...)
	sort.Slice(sources, func(i, j int) bool { return sources[i].Row.N < sources[j].Row.N })
	for i, e := range sources {
		if !present[e.Row.N] {
			return nil, errors.Errorf("morsel: source row %d is not a row of the path", e.Row.N)
		}
		if i > 0 && sources[i-1].Row.N == e.Row.N {
			return nil, errors.Errorf("morsel: duplicate source row %d", e.Row.N)
		}
	}

	trails := append([]trail.Trailed(nil), b.trails...)
	sort.Slice(trails, func(i, j int) bool { return trails[i].N < trails[j].N })
	for i, t := range trails {
		if !present[t.N] {
			return nil, errors.Errorf("morsel: trailed row %d is not a row of the path", t.N)
		}
		if i > 0 && trails[i-1].N == t.N {
			return nil, errors.Errorf("morsel: duplicate trail for row %d", t.N)
		}
	}

	scheme, iso, isoCount, countWidth, err := planCellSchema(sources)
	if err != nil {
		return nil, err
	}
	varWidth := planVarWidth(sources)

	return encodePack(b.path, sources, trails, b.comment, b.assets, scheme, iso, isoCount, countWidth, varWidth)
}

// planCellSchema decides whether every source row shares one cell
// count (ISO_COUNT, §4.H) or needs a per-row variable-width count, and
// resolves one common salt scheme across all of them — a morsel pack
// fixes its schema_code once for the whole container.
func planCellSchema(sources []SourceEntry) (row.SaltScheme, bool, int, hashcodec.Width, error) {
	if len(sources) == 0 {
		return row.SaltScheme{Kind: row.NoneSalted}, true, 0, hashcodec.Width1, nil
	}
	scheme := sources[0].Row.Scheme
	maxCells := 0
	iso := true
	first := len(sources[0].Row.Cells)
	for _, e := range sources {
		if !sameScheme(e.Row.Scheme, scheme) {
			return row.SaltScheme{}, false, 0, 0, errors.New("morsel: all source rows in one pack must share the same salt scheme")
		}
		if len(e.Row.Cells) != first {
			iso = false
		}
		if len(e.Row.Cells) > maxCells {
			maxCells = len(e.Row.Cells)
		}
	}
	if iso && first <= 255 {
		return scheme, true, first, hashcodec.Width1, nil
	}
	return scheme, false, 0, hashcodec.WidthFor(uint64(maxCells)), nil
}

func sameScheme(a, b row.SaltScheme) bool {
	if a.Kind != b.Kind {
		return false
	}
	if len(a.Indices) != len(b.Indices) {
		return false
	}
	for i := range a.Indices {
		if a.Indices[i] != b.Indices[i] {
			return false
		}
	}
	return true
}

// planVarWidth picks the narrowest width in {2,3,4} able to hold the
// longest revealed string/bytes cell payload across all source rows
// (§4.H "var_size_width : u8 in {2,3,4}").
func planVarWidth(sources []SourceEntry) hashcodec.Width {
	var maxLen int
	for _, e := range sources {
		for _, c := range e.Row.Cells {
			var n int
			switch c.Kind {
			case row.String:
				n = len(c.StrVal)
			case row.Bytes:
				n = len(c.BytesVal)
			default:
				continue
			}
			if n > maxLen {
				maxLen = n
			}
		}
	}
	w := hashcodec.WidthFor(uint64(maxLen))
	if w == hashcodec.Width1 {
		return hashcodec.Width2
	}
	return w
}
