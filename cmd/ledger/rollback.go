package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crums-io/skipledger-sub005/hashcodec"
	"github.com/crums-io/skipledger-sub005/ledger"
	"github.com/crums-io/skipledger-sub005/lerr"
)

func newRollbackCmd() *cobra.Command {
	var noConsole bool

	cmd := &cobra.Command{
		Use:   "rollback SIZE",
		Short: "trim the tracked ledger back to SIZE, backing up the discarded rows first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newSize, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return invalidArgs("ledger: SIZE must be an integer: %v", err)
			}

			eng, cfg, closer, err := openEngine()
			if err != nil {
				return err
			}
			defer closer()

			l := eng.HashLedger.Ledger()
			size, err := l.Size()
			if err != nil {
				return err
			}
			if newSize < 0 || newSize > size {
				return &lerr.OutOfRange{Row: newSize, Size: size}
			}
			if newSize == size {
				fmt.Fprintln(cmd.OutOrStdout(), "already at that size, nothing to do")
				return nil
			}

			if !noConsole {
				fmt.Fprintf(cmd.OutOrStdout(), "this discards rows %d..%d (of %d). type \"yes\" to continue: ", newSize+1, size, size)
				reader := bufio.NewReader(cmd.InOrStdin())
				answer, _ := reader.ReadString('\n')
				if strings.TrimSpace(answer) != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return nil
				}
			}

			tp := newTrackingPaths(cfg.SourceConnURL)
			backupPath, err := writeRollbackBackup(l, tp.backupDir, newSize, size)
			if err != nil {
				return err
			}

			if err := eng.Rollback(newSize); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back to %d rows; discarded rows backed up at %s\n", newSize, backupPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noConsole, "no-console", false, "skip the interactive confirmation prompt")
	return cmd
}

// rollbackRecordSize is the width of one backed-up row: N (8 bytes) ‖
// input hash ‖ row hash.
const rollbackRecordSize = 8 + 2*hashcodec.Size

// writeRollbackBackup saves every row in (newSize, size] to a flat file
// in backupDir before a rollback discards them (§6 "Tracking
// directory... a backups subdirectory"), so a mistaken rollback can be
// inspected or manually replayed back in.
func writeRollbackBackup(l *ledger.SkipLedger, backupDir string, newSize, size int64) (string, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", &lerr.IoError{Op: "create backups directory", Err: err}
	}
	path := rollbackBackupPath(backupDir, newSize, size, time.Now())
	f, err := os.Create(path)
	if err != nil {
		return "", &lerr.IoError{Op: "create rollback backup", Err: err}
	}
	defer f.Close()

	buf := make([]byte, rollbackRecordSize)
	for n := newSize + 1; n <= size; n++ {
		r, err := l.GetRow(n)
		if err != nil {
			return "", err
		}
		binary.BigEndian.PutUint64(buf[:8], uint64(r.N))
		copy(buf[8:8+hashcodec.Size], r.InputHash[:])
		copy(buf[8+hashcodec.Size:], r.RowHash[:])
		if _, err := f.Write(buf); err != nil {
			return "", &lerr.IoError{Op: "write rollback backup", Err: err}
		}
	}
	return path, nil
}

func rollbackBackupPath(backupDir string, from, to int64, now time.Time) string {
	return filepath.Join(backupDir, fmt.Sprintf("rollback-%d-%d-%s.bak", from, to, now.UTC().Format("20060102T150405Z")))
}
