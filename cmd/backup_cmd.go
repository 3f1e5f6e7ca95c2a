package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kebairia/redis-backup/internal/operations"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run one backup (same as invoking rdb-backup without a subcommand)",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

func runBackup(cmd *cobra.Command, _ []string) error {
	start := time.Now()

	if _, err := operations.PerformBackup(cmd.Context(), cfg, log); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "backup failed! %s: %v\n", time.Since(start).Round(time.Millisecond), err)
		return errReported
	}

	fmt.Fprintf(cmd.OutOrStdout(), "backup successful! time cost: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}
