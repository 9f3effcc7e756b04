// Package journal implements the contexted state hasher (§4.G): it
// turns a text journal into the sequence of input hashes a skip-ledger
// appends, via a pluggable grammar, a streaming replay contract, and
// offset checkpoints that make status/verify O(tail) on large logs.
package journal

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Grammar is the pair of rules that turn journal lines into ledgerable
// rows (§4.G): an optional comment prefix and an optional token
// delimiter set. A zero Grammar has no comment prefix and delimits
// tokens by ASCII whitespace.
type Grammar struct {
	CommentPrefix string
	Delimiters    []rune // nil means "ASCII whitespace"
}

// NewGrammar validates Delimiters has no duplicates (§4.G) and returns
// a Grammar ready to use.
func NewGrammar(commentPrefix string, delimiters []rune) (Grammar, error) {
	if len(delimiters) > 0 {
		seen := make(map[rune]bool, len(delimiters))
		for _, r := range delimiters {
			if seen[r] {
				return Grammar{}, errors.Errorf("journal: duplicate token delimiter %q", r)
			}
			seen[r] = true
		}
	}
	return Grammar{CommentPrefix: commentPrefix, Delimiters: delimiters}, nil
}

func isASCIIWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n', '\f':
		return true
	default:
		return false
	}
}

// IsLedgerable reports whether line is ledgerable: non-empty,
// non-blank, and (if a comment prefix is set) not starting with it
// (§4.G "Line classification").
func (g Grammar) IsLedgerable(line string) bool {
	if line == "" {
		return false
	}
	if g.CommentPrefix != "" && strings.HasPrefix(line, g.CommentPrefix) {
		return false
	}
	for _, r := range line {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

// Tokenize splits a ledgerable line into its ordered, non-empty token
// list, by Delimiters if set or ASCII whitespace otherwise (§4.G
// "Tokenization").
func (g Grammar) Tokenize(line string) ([]string, error) {
	var splitFn func(rune) bool
	if len(g.Delimiters) == 0 {
		splitFn = isASCIIWhitespace
	} else {
		set := make(map[rune]bool, len(g.Delimiters))
		for _, r := range g.Delimiters {
			set[r] = true
		}
		splitFn = func(r rune) bool { return set[r] }
	}
	tokens := strings.FieldsFunc(line, splitFn)
	if len(tokens) == 0 {
		return nil, errors.New("journal: ledgerable line produced no tokens")
	}
	return tokens, nil
}
