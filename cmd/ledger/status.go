package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "report the tracked journal's current size and witness progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInterruptible(cmd.Context(), func(ctx context.Context) error {
				eng, cfg, closer, err := openEngine()
				if err != nil {
					return err
				}
				defer closer()

				f, err := openJournalFile(cfg)
				if err != nil {
					return err
				}
				defer f.Close()

				state, err := eng.Update(ctx, f)
				if err != nil {
					return err
				}

				lastWitnessed, err := eng.HashLedger.LastWitnessedN()
				if err != nil {
					return err
				}
				unwitnessed, err := eng.HashLedger.UnwitnessedCount()
				if err != nil {
					return err
				}

				logger.Info("status",
					zap.Int64("size", state.N),
					zap.Int64("last_witnessed", lastWitnessed),
					zap.Int64("unwitnessed", unwitnessed),
				)
				fmt.Fprintf(cmd.OutOrStdout(), "size: %d\nrow_hash: %s\nlast_witnessed: %d\nunwitnessed: %d\ndex: %d\n",
					state.N, state.RowHash.Base64(), lastWitnessed, unwitnessed, eng.Dex)
				return nil
			})
		},
	}
}
