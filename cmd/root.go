package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kebairia/redis-backup/internal/config"
	"github.com/kebairia/redis-backup/internal/logger"
)

// ConfigFile is the path to the optional YAML configuration.
var (
	ConfigFile string
	// cfg and log are populated by the root PersistentPreRunE.
	cfg config.Config
	log = logger.Global()

	// rootCmd runs one backup when invoked without a subcommand.
	rootCmd = &cobra.Command{
		Use:   "rdb-backup",
		Short: "Snapshot a Redis instance and keep a rotating set of RDB backups",
		Long: `rdb-backup triggers BGSAVE on a Redis server, waits for it to finish,
copies the resulting RDB file into the backup directory, verifies the copy by
checksum, and deletes the oldest backups beyond --max_backups.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		RunE:              runBackup,
	}
)

// errReported marks failures already written to stderr.
var errReported = errors.New("reported")

// Execute runs the root command and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Cleanup()

	return run(ctx, os.Args[1:], os.Stderr)
}

// run executes rootCmd with args. Every failure ends with one
// "backup failed! <elapsed>: <err>" line on stderr.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	start := time.Now()

	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(normalizeLegacyFlags(rootCmd, args))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(stderr, "backup failed! %s: %v\n", time.Since(start).Round(time.Millisecond), err)
		}
		return 1
	}
	return 0
}

func setup(cmd *cobra.Command, _ []string) error {
	var loaded config.Config
	if err := loaded.Load(ConfigFile, cmd.Flags()); err != nil {
		return err
	}
	l, err := logger.Init(logger.Options{Level: loaded.Logging.Level, File: loaded.Logging.File})
	if err != nil {
		return err
	}
	cfg, log = loaded, l
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&ConfigFile, "config", "c", "", "path to YAML config file")
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(listCmd)
}
