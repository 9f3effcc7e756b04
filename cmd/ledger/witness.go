package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crums-io/skipledger-sub005/hashledger"
	"github.com/crums-io/skipledger-sub005/trail"
	"github.com/crums-io/skipledger-sub005/witness"
)

func newWitnessCmd() *cobra.Command {
	var endpoint string
	var toothExponent uint
	var deadline time.Duration
	var backoff time.Duration

	cmd := &cobra.Command{
		Use:   "witness",
		Short: "submit unwitnessed rows to the external timestamp service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if endpoint == "" {
				return invalidArgs("ledger: --endpoint is required")
			}
			return runInterruptible(cmd.Context(), func(ctx context.Context) error {
				eng, _, closer, err := openEngine()
				if err != nil {
					return err
				}
				defer closer()

				size, err := eng.HashLedger.Ledger().Size()
				if err != nil {
					return err
				}
				candidates := hashledger.ToothedCandidates(size, toothExponent, true)

				client := witness.NewClient(endpoint, nil)
				count, err := eng.HashLedger.WitnessRows(ctx, client, candidates, deadline, backoff, func(t trail.Trailed) {
					logger.Warn("witness record rejected by repo invariant", zap.Int64("row", t.N))
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "witnessed %d of %d candidate rows\n", count, len(candidates))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "base URL of the timestamp service")
	cmd.Flags().UintVar(&toothExponent, "tooth", 4, "candidate rows are multiples of 2^tooth, plus the last row")
	cmd.Flags().DurationVar(&deadline, "deadline", 30*time.Second, "overall retry deadline for submission")
	cmd.Flags().DurationVar(&backoff, "backoff", 2*time.Second, "delay between submission retries")
	return cmd
}
