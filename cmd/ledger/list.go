package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var rows int64
	var showEol bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "print the most recent rows of the tracked ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, closer, err := openEngine()
			if err != nil {
				return err
			}
			defer closer()

			l := eng.HashLedger.Ledger()
			size, err := l.Size()
			if err != nil {
				return err
			}

			lo := size - rows + 1
			if lo < 1 {
				lo = 1
			}

			w := cmd.OutOrStdout()
			for n := lo; n <= size; n++ {
				r, err := l.GetRow(n)
				if err != nil {
					return err
				}
				if showEol {
					cp, ok, err := eng.Offsets.Nearest(n)
					if err != nil {
						return err
					}
					eol := int64(-1)
					if ok {
						eol = cp.EolOffset
					}
					fmt.Fprintf(w, "%d\t%s\teol=%d\n", n, r.RowHash.Base64(), eol)
					continue
				}
				fmt.Fprintf(w, "%d\t%s\n", n, r.RowHash.Base64())
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&rows, "rows", 10, "number of most recent rows to print")
	cmd.Flags().BoolVar(&showEol, "eol", false, "also print the nearest known end-of-line offset")
	return cmd
}
