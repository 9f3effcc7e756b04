package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newFixoffsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fixoffs [start_row]",
		Short: "rebuild offsets-file checkpoints from start_row forward",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var startRow int64 = 1
			if len(args) == 1 {
				n, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return invalidArgs("ledger: start_row must be an integer: %v", err)
				}
				startRow = n
			}
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

				state, err := eng.FixOffsets(ctx, f, startRow)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "offsets rebuilt through row %d\n", state.N)
				return nil
			})
		},
	}
}
