package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kebairia/redis-backup/internal/retention"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List retained backups, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := retention.DirCatalog{Dir: cfg.Backup.Directory}.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list %s: %w", cfg.Backup.Directory, err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tMODIFIED\tSIZE")
		for _, f := range files {
			fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name(), f.ModTime.Format(time.RFC3339), humanize.IBytes(uint64(f.Size)))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d backups retained in %s\n", len(files), cfg.Retention.MaxBackups, cfg.Backup.Directory)
		return nil
	},
}
