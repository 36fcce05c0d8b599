// evfind scans filesystems, calendar exports and mailbox exports for
// evidence matching configurable topical rules, scores the matches, and
// writes CSV/HTML reports plus a per-run audit database.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

var (
	flagRules    string
	flagOut      string
	flagLogLevel string
	flagNoAudit  bool
)

func main() {
	root := &cobra.Command{
		Use:     "evfind",
		Short:   "Evidence scanner for files, calendars and mailboxes",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: parseLogLevel(flagLogLevel),
			})))
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagRules, "rules", "config/rules.yml", "rules configuration file")
	root.PersistentFlags().StringVar(&flagOut, "out", "out", "output directory")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	root.PersistentFlags().BoolVar(&flagNoAudit, "no-audit", false, "skip the per-run SQLite audit database")

	root.AddCommand(newScanCmd(), newTwoPassCmd(), newWatchCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
