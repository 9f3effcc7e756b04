// Command ledger is the journal tool (§6): it tracks a text journal
// against a skip-ledger, submits rows for external witnessing, and
// extracts morsels and seals from the result.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/crums-io/skipledger-sub005/engconfig"
	"github.com/crums-io/skipledger-sub005/hashledger"
	"github.com/crums-io/skipledger-sub005/internal/start"
	"github.com/crums-io/skipledger-sub005/journal"
	"github.com/crums-io/skipledger-sub005/ledger"
	"github.com/crums-io/skipledger-sub005/lerr"
	"github.com/crums-io/skipledger-sub005/trail"
)

// Exit codes (§6).
const (
	exitOK          = 0
	exitSoftError   = 1
	exitInvalidArgs = 2
	exitInterrupted = 3
	exitIoError     = 4
	exitNetwork     = 5
)

var (
	configPath string
	logger     *zap.Logger
)

func main() {
	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitIoError)
	}
	defer logger.Sync()

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledger",
		Short:         "track a text journal against a skip-ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the engine config file")
	root.AddCommand(
		newStatusCmd(),
		newListCmd(),
		newHistoryCmd(),
		newSealCmd(),
		newWitnessCmd(),
		newVerifyCmd(),
		newFixoffsCmd(),
		newRollbackCmd(),
		newMorselCmd(),
		newCleanCmd(),
	)
	return root
}

// exitCodeFor maps a returned error to §6's exit-code taxonomy.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	var netErr *lerr.NetworkError
	if errors.As(err, &netErr) {
		return exitNetwork
	}
	var ioErr *lerr.IoError
	if errors.As(err, &ioErr) {
		return exitIoError
	}
	var invalid *invalidArgsError
	if errors.As(err, &invalid) {
		return exitInvalidArgs
	}
	var notTracked *lerr.NotTracked
	if errors.As(err, &notTracked) {
		return exitInvalidArgs
	}
	var outOfRange *lerr.OutOfRange
	if errors.As(err, &outOfRange) {
		return exitInvalidArgs
	}
	var notCovered *lerr.NotCovered
	if errors.As(err, &notCovered) {
		return exitInvalidArgs
	}
	return exitSoftError
}

// invalidArgsError marks a user-input mistake (§6 exit code 2), as
// opposed to a soft runtime error.
type invalidArgsError struct{ err error }

func (e *invalidArgsError) Error() string { return e.err.Error() }
func (e *invalidArgsError) Unwrap() error { return e.err }

func invalidArgs(format string, args ...any) error {
	return &invalidArgsError{err: errors.Errorf(format, args...)}
}

// runInterruptible wraps a cobra command body in internal/start's
// SIGINT-aware cancellation, so a long scan (update/verify/fixoffs/
// witness) aborts promptly and cleanly on Ctrl-C (§5 "Cancellation").
func runInterruptible(parent context.Context, fn func(ctx context.Context) error) error {
	return start.Start(parent, 5*time.Second, fn)
}

// trackingPaths names the fixed files inside a journal's tracking
// directory (§6 "Tracking directory").
type trackingPaths struct {
	dir       string
	rows      string
	offsets   string
	trailDB   string
	backupDir string
}

func newTrackingPaths(journalPath string) trackingPaths {
	dir := engconfig.TrackingDirName(journalPath)
	return trackingPaths{
		dir:       dir,
		rows:      filepath.Join(dir, "rows.dat"),
		offsets:   filepath.Join(dir, "offsets.dat"),
		trailDB:   filepath.Join(dir, "trail.db"),
		backupDir: filepath.Join(dir, "backups"),
	}
}

// openEngine loads the config at configPath and opens (creating if
// absent) every file in its tracking directory, wiring them into a
// journal.Engine (§4.G, §4.K). The returned closer releases the row
// store, the offsets store, and the trail database.
func openEngine() (*journal.Engine, *engconfig.Config, func() error, error) {
	if configPath == "" {
		return nil, nil, nil, invalidArgs("ledger: --config is required")
	}
	cfg, err := engconfig.Load(configPath)
	if err != nil {
		return nil, nil, nil, invalidArgs("ledger: %v", err)
	}

	tp := newTrackingPaths(cfg.SourceConnURL)
	if err := os.MkdirAll(tp.backupDir, 0o755); err != nil {
		return nil, nil, nil, &lerr.IoError{Op: "create tracking directory", Err: err}
	}

	rowStore, err := ledger.OpenFileRowStore(tp.rows)
	if err != nil {
		return nil, nil, nil, err
	}
	skipLedger := ledger.New(rowStore)

	db, err := openTrailDB(tp.trailDB)
	if err != nil {
		rowStore.Close()
		return nil, nil, nil, err
	}
	repo, err := trail.OpenSQLRepo(db)
	if err != nil {
		rowStore.Close()
		db.Close()
		return nil, nil, nil, err
	}

	hl := hashledger.New(skipLedger, repo)

	dex := journal.Dex(cfg.Dex)
	var offsets journal.OffsetsStore
	if dex.Disabled() {
		offsets = journal.NewMemoryOffsetsStore()
	} else {
		offsets, err = journal.OpenFileOffsetsStore(tp.offsets)
		if err != nil {
			hl.Close()
			return nil, nil, nil, err
		}
	}

	g, err := journal.NewGrammar(cfg.CommentPrefix, cfg.TokenDelimiters)
	if err != nil {
		offsets.Close()
		hl.Close()
		return nil, nil, nil, invalidArgs("ledger: %v", err)
	}

	eng := &journal.Engine{
		HashLedger: hl,
		Offsets:    offsets,
		Grammar:    g,
		SaltSeed:   cfg.SourceSaltSeed,
		Dex:        dex,
	}

	closer := func() error {
		err1 := offsets.Close()
		err2 := hl.Close()
		if err1 != nil {
			return err1
		}
		return err2
	}
	return eng, cfg, closer, nil
}

// openTrailDB opens the witnessed-row repo's backing sqlite database,
// creating it if absent, the way sqlsrc's reference adapter opens its
// own source database (sqlsrc/source.go).
func openTrailDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &lerr.IoError{Op: "open trail database", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &lerr.IoError{Op: "open trail database", Err: err}
	}
	return db, nil
}

func openJournalFile(cfg *engconfig.Config) (*os.File, error) {
	f, err := os.Open(cfg.SourceConnURL)
	if err != nil {
		return nil, &lerr.IoError{Op: "open journal", Err: err}
	}
	return f, nil
}
