package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "replay the journal and confirm every stored row hash still matches",
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

				if err := eng.Verify(ctx, f); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
}
