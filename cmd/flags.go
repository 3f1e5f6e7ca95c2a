package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

// normalizeLegacyFlags rewrites single-dash long flags (-backup_dir x,
// -redis_port=6380) into the double-dash form pflag expects. Shorthands and
// anything after "--" are left alone.
func normalizeLegacyFlags(root *cobra.Command, args []string) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' {
			name, _, _ := strings.Cut(arg[1:], "=")
			if isLongFlag(root, name) {
				arg = "-" + arg
			}
		}
		out = append(out, arg)
	}
	return out
}

func isLongFlag(root *cobra.Command, name string) bool {
	return len(name) > 1 &&
		(root.PersistentFlags().Lookup(name) != nil || root.Flags().Lookup(name) != nil)
}
