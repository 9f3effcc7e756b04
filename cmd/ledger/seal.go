package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/crums-io/skipledger-sub005/journal"
	"github.com/crums-io/skipledger-sub005/lerr"
	"github.com/crums-io/skipledger-sub005/seal"
	"github.com/crums-io/skipledger-sub005/witness"
)

// sealFilePath names the seal file a tracked journal writes into its
// tracking directory (§6 "Seal files": pending and complete seals carry
// different extensions so a directory listing alone tells which state
// a seal is in).
func sealFilePath(tp trackingPaths, journalPath string, s *seal.Seal) string {
	ext := seal.CompleteExt
	if s.Pending() {
		ext = seal.PendingExt
	}
	return filepath.Join(tp.dir, filepath.Base(journalPath)+ext)
}

func newSealCmd() *cobra.Command {
	var add bool
	var dex uint
	var doWitness bool
	var fromRepo bool
	var endpoint string
	var deadline time.Duration
	var backoff time.Duration

	cmd := &cobra.Command{
		Use:   "seal",
		Short: "write a seal file for the tracked journal's current state (§4.I)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInterruptible(cmd.Context(), func(ctx context.Context) error {
				eng, cfg, closer, err := openEngine()
				if err != nil {
					return err
				}
				defer closer()

				// dex is fixed at tracking-directory creation time
				// (engconfig.Load reads it from the config file); an
				// explicit --dex that disagrees is a user mistake, not
				// something this command can silently reconcile.
				if cmd.Flags().Changed("dex") && dex != uint(eng.Dex) {
					return invalidArgs("ledger: --dex %d does not match the tracking repo's configured dex %d", dex, uint(eng.Dex))
				}

				f, err := openJournalFile(cfg)
				if err != nil {
					return err
				}
				defer f.Close()

				var state journal.State
				if add {
					state, err = eng.Update(ctx, f)
					if err != nil {
						return err
					}
				} else {
					size, sizeErr := eng.HashLedger.Ledger().Size()
					if sizeErr != nil {
						return sizeErr
					}
					h, hashErr := eng.HashLedger.Ledger().RowHash(size)
					if hashErr != nil {
						return hashErr
					}
					state = journal.State{N: size, RowHash: h}
				}
				if state.N == 0 {
					return invalidArgs("ledger: nothing to seal, the journal has no ledgerable rows yet")
				}

				s := &seal.Seal{N: state.N, RowHash: state.RowHash, Grammar: eng.Grammar}

				if fromRepo {
					tr, ok, err := eng.HashLedger.Trails().Nearest(state.N)
					if err != nil {
						return err
					}
					if ok && tr.N == state.N {
						trailCopy := tr.Crumtrail
						s.Trail = &trailCopy
					}
				}

				if doWitness && s.Pending() {
					if endpoint == "" {
						return invalidArgs("ledger: --witness requires --endpoint")
					}
					client := witness.NewClient(endpoint, nil)
					s, err = seal.Witness(ctx, s, client, deadline, backoff)
					if err != nil {
						return err
					}
				}

				buf, err := seal.Encode(s)
				if err != nil {
					return err
				}

				tp := newTrackingPaths(cfg.SourceConnURL)
				dest := sealFilePath(tp, cfg.SourceConnURL, s)
				if err := os.WriteFile(dest, buf, 0o644); err != nil {
					return &lerr.IoError{Op: "write seal file", Err: err}
				}
				// Writing a complete seal supersedes any earlier
				// pending one for the same journal; drop it so a
				// directory listing shows one seal per state.
				if !s.Pending() {
					pendingPath := filepath.Join(tp.dir, filepath.Base(cfg.SourceConnURL)+seal.PendingExt)
					if pendingPath != dest {
						os.Remove(pendingPath)
					}
				}

				status := "pending"
				if !s.Pending() {
					status = "complete"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sealed row %d (%s) -> %s\n", s.N, status, dest)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&add, "add", false, "replay the journal forward first so the seal covers rows appended since the last update")
	cmd.Flags().UintVar(&dex, "dex", 0, "assert the tracking repo's configured dex (for CLI-surface parity with §6; does not change it)")
	cmd.Flags().BoolVar(&doWitness, "witness", false, "submit the seal's row hash to the external timestamp service if still pending")
	cmd.Flags().BoolVar(&fromRepo, "repo", false, "attach a crumtrail already present in the witnessed-row repo, if one covers this row")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "base URL of the timestamp service (required with --witness)")
	cmd.Flags().DurationVar(&deadline, "deadline", 30*time.Second, "overall retry deadline for --witness submission")
	cmd.Flags().DurationVar(&backoff, "backoff", 2*time.Second, "delay between --witness submission retries")
	return cmd
}
