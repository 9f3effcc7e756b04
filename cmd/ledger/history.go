package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var start int64
	var count int
	var reverse bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "print witnessed rows from the tracking repo",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, closer, err := openEngine()
			if err != nil {
				return err
			}
			defer closer()

			repo := eng.HashLedger.Trails()
			total, err := repo.Count()
			if err != nil {
				return err
			}

			startIdx := 0
			if reverse {
				startIdx = total - 1
			}
			if start > 0 {
				t, ok, err := repo.Nearest(start)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "no witnessed row at or after the requested start")
					return nil
				}
				for i := 0; i < total; i++ {
					e, err := repo.Get(i)
					if err != nil {
						return err
					}
					if e.N == t.N {
						startIdx = i
						break
					}
				}
			}

			w := cmd.OutOrStdout()
			printed := 0
			if reverse {
				for i := startIdx; i >= 0 && (count <= 0 || printed < count); i-- {
					e, err := repo.Get(i)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%d\t%s\tutc=%d\n", e.N, e.Crumtrail.Crum.Hash.Base64(), e.Crumtrail.Crum.Utc)
					printed++
				}
				return nil
			}
			for i := startIdx; i < total && (count <= 0 || printed < count); i++ {
				e, err := repo.Get(i)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\tutc=%d\n", e.N, e.Crumtrail.Crum.Hash.Base64(), e.Crumtrail.Crum.Utc)
				printed++
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&start, "start", 0, "row number to start from (default: the earliest witnessed row, or the newest with --reverse)")
	cmd.Flags().IntVar(&count, "count", 0, "maximum number of entries to print (default: all)")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "print newest first")
	return cmd
}
