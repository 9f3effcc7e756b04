package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crums-io/skipledger-sub005/lerr"
)

// newCleanCmd removes rollback-discarded rows previously backed up by
// the rollback command (cmd/ledger/rollback.go's writeRollbackBackup).
// They are the only artifact under a tracking directory that can be
// deleted without losing anything the engine itself still needs.
func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "remove rollback backups from the tracking directory's backups subdirectory",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, closer, err := openEngine()
			if err != nil {
				return err
			}
			defer closer()

			tp := newTrackingPaths(cfg.SourceConnURL)
			entries, err := os.ReadDir(tp.backupDir)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to clean")
					return nil
				}
				return &lerr.IoError{Op: "read backups directory", Err: err}
			}

			removed := 0
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				if err := os.Remove(filepath.Join(tp.backupDir, e.Name())); err != nil {
					return &lerr.IoError{Op: "remove rollback backup", Err: err}
				}
				removed++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d rollback backup file(s)\n", removed)
			return nil
		},
	}
}
