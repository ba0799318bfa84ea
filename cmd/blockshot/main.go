package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/blockshot/internal/backupset"
	"github.com/bamsammich/blockshot/internal/catalog"
	"github.com/bamsammich/blockshot/internal/config"
	"github.com/bamsammich/blockshot/internal/engine"
	"github.com/bamsammich/blockshot/internal/event"
	"github.com/bamsammich/blockshot/internal/hashtable"
	"github.com/bamsammich/blockshot/internal/stats"
	"github.com/bamsammich/blockshot/internal/ui"
)

var version = "dev"

// Exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitUsage        = 2
	exitPrecondition = 3
	exitConsistency  = 4
	exitIncomplete   = 5
)

func main() {
	os.Exit(run())
}

// options holds the flag values of the root command and its subcommands.
type options struct {
	configFile string
	dir        string
	prefix     string
	verbose    bool
	quiet      bool
	logFile    string

	device      string
	blockSizeKB int
	progressSec float64
	bwLimit     int64
	catalog     bool
	noProgress  bool
	showVersion bool

	stdout   io.Writer
	stderr   io.Writer
	closeLog func()
}

func run() int {
	opts := &options{stdout: os.Stdout, stderr: os.Stderr}
	return execute(newRootCmd(opts), opts)
}

func execute(rootCmd *cobra.Command, opts *options) int {
	err := rootCmd.Execute()
	if opts.closeLog != nil {
		opts.closeLog()
	}
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(opts.stderr, "Error: %v\n", err)
		return exitUsage
	}
	return exitOK
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "blockshot [flags]",
		Short: "Block-level full and incremental backups of a device or image file",
		Long: `blockshot reads a device (or any fixed-size file) in fixed-size blocks and
hashes each block. The first run writes a full image and a hash table; later
runs write only the blocks whose hash differs from the full backup, plus a
journal locating them and a new hash table.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.showVersion {
				fmt.Fprintf(opts.stdout, "blockshot %s\n", version)
				return nil
			}
			return runBackup(cmd.Context(), opts)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/blockshot/config.toml)")
	pf.StringVarP(&opts.dir, "dir", "d", "", "backup directory")
	pf.StringVarP(&opts.prefix, "prefix", "p", "", "filename prefix for every file of the backup set")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.StringVar(&opts.logFile, "log", "", "write structured JSON log to FILE")
	pf.IntVar(&opts.blockSizeKB, "block-size-kb", 1024, "block size in KiB")

	f := rootCmd.Flags()
	f.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	f.StringVar(&opts.device, "device", "", "device or image file to back up")
	f.Float64Var(&opts.progressSec, "progress", 5, "seconds between progress reports (<= 0: only at the end)")
	f.Var(&sizeValue{n: &opts.bwLimit}, "bwlimit", "device read limit (e.g. 100M, 1G)")
	f.BoolVar(&opts.catalog, "catalog", true, "record runs in the backup set's catalog")
	f.BoolVar(&opts.noProgress, "no-progress", false, "disable progress display")

	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newVerifyCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(docsCmd)
	return rootCmd
}

// prepare loads the config file, fills in flags the user did not set and
// configures logging. It runs before every command.
func (o *options) prepare(cmd *cobra.Command) error {
	var (
		cfg config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFile(o.configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else if cfg, err = config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyConfigDefaults(cmd, cfg, o); err != nil {
		return err
	}
	ui.ApplyTheme(cfg.Theme)

	closeLog, err := setupLogging(o.stderr, o.verbose, o.quiet, o.logFile)
	if err != nil {
		return err
	}
	o.closeLog = closeLog
	return nil
}

// applyConfigDefaults applies config file values for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, cfg config.Config, o *options) error {
	changed := func(name string) bool { return cmd.Flags().Changed(name) }

	b := cfg.Backup
	if !changed("device") && b.Device != nil {
		o.device = *b.Device
	}
	if !changed("block-size-kb") && b.BlockSizeKB != nil {
		o.blockSizeKB = *b.BlockSizeKB
	}
	if !changed("dir") && b.BackupDir != nil {
		o.dir = *b.BackupDir
	}
	if !changed("prefix") && b.FilePrefix != nil {
		o.prefix = *b.FilePrefix
	}
	if !changed("progress") && b.ProgressUpdateSeconds != nil {
		o.progressSec = *b.ProgressUpdateSeconds
	}

	d := cfg.Defaults
	if !changed("bwlimit") && d.BWLimit != nil {
		if err := (&sizeValue{n: &o.bwLimit}).Set(*d.BWLimit); err != nil {
			return fmt.Errorf("config bwlimit: %w", err)
		}
	}
	if !changed("catalog") && d.Catalog != nil {
		o.catalog = *d.Catalog
	}
	if !changed("log") && d.Log != nil {
		o.logFile = *d.Log
	}
	return nil
}

// sizeValue is a pflag.Value accepting human-readable sizes such as 100M.
type sizeValue struct {
	n   *int64
	raw string
}

var _ pflag.Value = (*sizeValue)(nil)

func (s *sizeValue) String() string { return s.raw }
func (*sizeValue) Type() string     { return "size" }

func (s *sizeValue) Set(val string) error {
	n, err := config.ParseSize(val)
	if err != nil {
		return err
	}
	*s.n = n
	s.raw = val
	return nil
}

// setupLogging installs the default slog logger: text on stderr and, with a
// log file, JSON at debug level as well.
func setupLogging(stderr io.Writer, verbose, quiet bool, logFile string) (func(), error) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	} else if !quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	})

	var logHandler slog.Handler = textHandler
	closeLog := func() {}
	if logFile != "" {
		lf, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		closeLog = func() { lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))
	return closeLog, nil
}

func (o *options) set() (backupset.Set, error) {
	if o.dir == "" {
		return backupset.Set{}, errors.New("no backup directory configured (use --dir or backup_dir in the config file)")
	}
	return backupset.New(o.dir, o.prefix), nil
}

//nolint:revive // cognitive-complexity: wires presenter, logging tee and engine
func runBackup(ctx context.Context, opts *options) error {
	set, err := opts.set()
	if err != nil {
		return err
	}

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)

	engineCfg := engine.Config{
		Device:           opts.device,
		BlockSize:        opts.blockSizeKB * 1024,
		Set:              set,
		ProgressInterval: time.Duration(opts.progressSec * float64(time.Second)),
		BWLimit:          opts.bwLimit,
		Events:           events,
		Stats:            collector,
	}
	if opts.catalog {
		engineCfg.OpenRecorder = func(ctx context.Context) (engine.Recorder, error) {
			c, err := catalog.Open(ctx, set.CatalogPath(), set.Dir, set.Prefix)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	if err := engineCfg.Validate(); err != nil {
		return err
	}

	// Set up context with signal handling.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// When --log is set, tee events through a logging goroutine that writes
	// structured records before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(events)
	if opts.logFile != "" {
		presenterEvents = teeEvents(events)
	}

	uiCfg := ui.Config{
		Writer:     opts.stdout,
		ErrWriter:  opts.stderr,
		Stats:      collector,
		Quiet:      opts.quiet,
		NoProgress: opts.noProgress,
	}
	if f, ok := opts.stderr.(*os.File); ok && ui.IsTTY(f) {
		uiCfg.IsTTY = true
		uiCfg.Width = ui.TermWidth(f)
	}
	presenter := ui.NewPresenter(uiCfg)

	slog.Debug("starting backup",
		"device", engineCfg.Device,
		"block_size", engineCfg.BlockSize,
		"dir", set.Dir,
		"prefix", set.Prefix,
	)

	// Presenter runs in the background, engine in the foreground.
	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	result := engine.Run(ctx, engineCfg)
	stop()
	close(events)
	presenterWg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(opts.stderr, "presenter: %v\n", presenterErr)
	}

	if !opts.quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(opts.stderr, summary)
		}
	}

	if result.Err != nil {
		hashtable.CleanupTmpFiles()
		slog.Error("backup failed", "error", result.Err)
		return &exitError{code: exitCode(result.Err)}
	}
	slog.Info("backup complete",
		"mode", result.Mode.String(),
		"table", result.HashTablePath,
		"changed", result.ChangedBlocks,
		"written", result.BytesWritten,
	)
	return nil
}

// teeEvents logs every event as a blockshot.event record and forwards it.
func teeEvents(in <-chan event.Event) <-chan event.Event {
	out := make(chan event.Event, cap(in))
	go func() {
		for ev := range in {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
			}
			if ev.Mode != "" {
				attrs = append(attrs, slog.String("mode", ev.Mode))
			}
			if ev.Path != "" {
				attrs = append(attrs, slog.String("path", ev.Path))
			}
			switch ev.Type {
			case event.BlockChanged, event.BlockFailed:
				attrs = append(attrs, slog.Int64("index", ev.Index), slog.Int64("size", ev.Size))
			case event.ScanProgress:
				attrs = append(attrs, slog.Int64("read", ev.Size), slog.Int64("total", ev.TotalSize))
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelDebug, "blockshot.event", attrs...)
			out <- ev
		}
		close(out)
	}()
	return out
}

// exitCode maps a failed run to the process exit status.
func exitCode(err error) int {
	var (
		precondition *engine.PreconditionError
		consistency  *hashtable.ConsistencyError
		incomplete   *engine.IncompleteWriteError
	)
	switch {
	case errors.As(err, &precondition):
		return exitPrecondition
	case errors.As(err, &consistency):
		return exitConsistency
	case errors.As(err, &incomplete):
		return exitIncomplete
	default:
		return exitFailure
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
