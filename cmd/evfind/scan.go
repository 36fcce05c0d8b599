package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkessler/evfind/internal/scan"
)

// newScanCmd builds the single-pass, multi-source command: files, calendar
// events and mail messages are all enumerated and scored directly.
func newScanCmd() *cobra.Command {
	var (
		src       sourceFlags
		calendars []string
		mailboxes []string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan files, calendars and mailboxes in a single pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions(&src, flagOut)
			if err != nil {
				return err
			}
			opts.CalendarFiles = calendars
			opts.MailboxFiles = mailboxes
			if len(opts.Roots) == 0 && len(opts.PathList) == 0 &&
				len(calendars) == 0 && len(mailboxes) == 0 {
				return fmt.Errorf("nothing to scan: provide --include, --path-list, --calendar or --mbox")
			}

			cfg, err := loadRules(flagRules, src.onlyExt)
			if err != nil {
				return err
			}

			database := openAudit(flagOut)
			if database != nil {
				defer database.Close()
			}

			scanner := scan.New(cfg, opts, nil, database)
			result, err := scanner.Run(cmd.Context())
			if err != nil {
				return err
			}

			if !result.NoMatches {
				if err := writeReports(result.Rows, flagOut); err != nil {
					return err
				}
			}
			printSummary(result)
			return nil
		},
	}

	addSourceFlags(cmd, &src)
	cmd.Flags().StringArrayVar(&calendars, "calendar", nil, "calendar (.ics) file to scan (repeatable)")
	cmd.Flags().StringArrayVar(&mailboxes, "mbox", nil, "mailbox (mbox) file to scan (repeatable)")
	return cmd
}

// addSourceFlags registers the enumeration flags shared by scan and twopass.
func addSourceFlags(cmd *cobra.Command, src *sourceFlags) {
	cmd.Flags().StringArrayVar(&src.include, "include", nil, "directory to scan (repeatable)")
	cmd.Flags().StringVar(&src.includeFile, "include-file", "", "file listing directories to scan")
	cmd.Flags().StringVar(&src.pathList, "path-list", "", "file listing pre-resolved paths to scan")
	cmd.Flags().StringVar(&src.since, "modified-since", "", "only files modified on/after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&src.until, "modified-until", "", "only files modified through this date (YYYY-MM-DD, inclusive)")
	cmd.Flags().Int64Var(&src.maxBytes, "max-bytes", 50_000_000, "maximum file size to process (0 = unlimited)")
	cmd.Flags().StringVar(&src.onlyExt, "only-ext", "", "comma-separated extensions overriding the configured filter")
	cmd.Flags().IntVar(&src.walkers, "walkers", 4, "concurrent directory walkers")
	cmd.Flags().IntVar(&src.workers, "workers", 4, "concurrent extraction/scoring workers")
}
