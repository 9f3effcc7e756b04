package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/journal"
	"github.com/crums-io/skipledger-sub005/lerr"
	"github.com/crums-io/skipledger-sub005/morsel"
	"github.com/crums-io/skipledger-sub005/path"
	"github.com/crums-io/skipledger-sub005/row"
	"github.com/crums-io/skipledger-sub005/trail"
)

func newMorselCmd() *cobra.Command {
	var srcRows []string
	var redSpecs []string
	var comment string
	var dest string
	var fromRepo bool

	cmd := &cobra.Command{
		Use:   "morsel LO HI",
		Short: "build a morsel pack covering the skip-path from LO to HI (§4.H)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lo, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return invalidArgs("ledger: LO must be an integer: %v", err)
			}
			hi, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return invalidArgs("ledger: HI must be an integer: %v", err)
			}
			if dest == "" {
				return invalidArgs("ledger: --dest is required")
			}

			return runInterruptible(cmd.Context(), func(ctx context.Context) error {
				eng, cfg, closer, err := openEngine()
				if err != nil {
					return err
				}
				defer closer()

				p, err := path.BuildSkipPath(eng.HashLedger.Ledger(), lo, hi)
				if err != nil {
					return err
				}

				targetRows, err := parseRowNumbers(srcRows)
				if err != nil {
					return err
				}

				var sources map[int64]row.SourceRow
				if len(targetRows) > 0 {
					f, err := openJournalFile(cfg)
					if err != nil {
						return err
					}
					sources, err = extractSourceRows(ctx, f, eng.Grammar, eng.SaltSeed, targetRows)
					f.Close()
					if err != nil {
						return err
					}
				}

				redactions, err := parseRedactions(redSpecs)
				if err != nil {
					return err
				}
				for n, indices := range redactions {
					sr, ok := sources[n]
					if !ok {
						return invalidArgs("ledger: --red row %d is not among --src rows", n)
					}
					for _, idx := range indices {
						if err := sr.Redact(idx); err != nil {
							return err
						}
					}
					sources[n] = sr
				}

				builder := morsel.NewBuilder(p)
				for _, n := range sortedKeys(sources) {
					builder = builder.WithSources(morsel.SourceEntry{Row: sources[n], Tokenized: true})
				}
				if comment != "" {
					builder = builder.WithComment(comment)
				}

				if fromRepo {
					trails, err := trailsCovering(eng.HashLedger.Trails(), p)
					if err != nil {
						return err
					}
					builder = builder.WithTrails(trails...)
				}

				buf, err := builder.Build()
				if err != nil {
					return err
				}
				if err := os.WriteFile(dest, buf, 0o644); err != nil {
					return &lerr.IoError{Op: "write morsel file", Err: err}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote morsel covering rows %d..%d (%d bytes) -> %s\n", p.First(), p.Last(), len(buf), dest)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&srcRows, "src", nil, "row number whose source cells should be revealed (repeatable)")
	cmd.Flags().StringArrayVar(&redSpecs, "red", nil, "ROW:INDEX of a revealed cell to redact instead (repeatable)")
	cmd.Flags().StringVar(&comment, "comment", "", "free-text annotation stored in the morsel")
	cmd.Flags().StringVar(&dest, "dest", "", "output file path")
	cmd.Flags().BoolVar(&fromRepo, "repo", false, "include crumtrails from the witnessed-row repo that cover rows on the path")
	return cmd
}

func parseRowNumbers(specs []string) (map[int64]bool, error) {
	out := make(map[int64]bool, len(specs))
	for _, s := range specs {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, invalidArgs("ledger: --src %q is not an integer row number", s)
		}
		out[n] = true
	}
	return out, nil
}

func parseRedactions(specs []string) (map[int64][]int, error) {
	out := make(map[int64][]int, len(specs))
	for _, s := range specs {
		parts := strings.SplitN(s, ":", 2)
		if len(parts) != 2 {
			return nil, invalidArgs("ledger: --red %q must be ROW:INDEX", s)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, invalidArgs("ledger: --red %q: bad row number", s)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, invalidArgs("ledger: --red %q: bad cell index", s)
		}
		out[n] = append(out[n], idx)
	}
	return out, nil
}

func sortedKeys(m map[int64]row.SourceRow) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// extractSourceRows replays r once, reconstructing the SourceRow for
// every row number in targets with journal.BuildSourceRow, which
// re-derives each row's deterministic salt from saltSeed, so the source
// cells are recovered without reading anything back from the ledger.
func extractSourceRows(ctx context.Context, r *os.File, g journal.Grammar, saltSeed [32]byte, targets map[int64]bool) (map[int64]row.SourceRow, error) {
	out := make(map[int64]row.SourceRow, len(targets))
	obs := &extractObserver{targets: targets, saltSeed: saltSeed, out: out}
	_, err := journal.Play(ctx, r, g, journal.InitialState(), saltSeed, noopHashSource{}, obs)
	if err != nil {
		return nil, err
	}
	for n := range targets {
		if _, ok := out[n]; !ok {
			return nil, invalidArgs("ledger: --src %d: no such row in the journal", n)
		}
	}
	return out, nil
}

// noopHashSource is never consulted by a from-scratch Play: every
// predecessor a fresh forward scan needs is already in its own
// traversal frontier.
type noopHashSource struct{}

func (noopHashSource) RowHash(n int64) (hashcodec.Hash, error) { return hashcodec.Hash{}, nil }

type extractObserver struct {
	targets  map[int64]bool
	saltSeed [32]byte
	out      map[int64]row.SourceRow
}

func (o *extractObserver) ObserveRow(pre journal.State, inputHash hashcodec.Hash, cells []journal.CellToken, start, end, lineNo int64) error {
	n := pre.N + 1
	if !o.targets[n] {
		return nil
	}
	tokens := make([]string, len(cells))
	for i, c := range cells {
		tokens[i] = c.Text
	}
	o.out[n] = journal.BuildSourceRow(n, tokens, o.saltSeed)
	return nil
}

func trailsCovering(repo trail.Repo, p path.Path) ([]trail.Trailed, error) {
	rows := make(map[int64]bool, len(p.RowNumbers()))
	for _, n := range p.RowNumbers() {
		rows[n] = true
	}
	total, err := repo.Count()
	if err != nil {
		return nil, err
	}
	var out []trail.Trailed
	for i := 0; i < total; i++ {
		t, err := repo.Get(i)
		if err != nil {
			return nil, err
		}
		if rows[t.N] {
			out = append(out, t)
		}
	}
	return out, nil
}
