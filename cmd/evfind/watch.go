package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mkessler/evfind/internal/config"
	"github.com/mkessler/evfind/internal/scan"
	"github.com/mkessler/evfind/internal/scheduler"
)

// newWatchCmd builds the long-running mode: one scan immediately, then
// repeated scans on the configured cron schedule until interrupted.
func newWatchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rescan on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if len(cfg.Roots) == 0 && len(cfg.CalendarFiles) == 0 && len(cfg.MailboxFiles) == 0 {
				return fmt.Errorf("%s: no roots, calendar_files or mailbox_files configured", configPath)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: parseLogLevel(cfg.LogLevel),
			})))

			ctx := cmd.Context()

			run := func() {
				if err := runScheduledScan(ctx, cfg); err != nil {
					slog.Error("scheduled scan failed", "error", err)
				}
			}

			sched := scheduler.New()
			if err := sched.SetJob(cfg.Schedule, run); err != nil {
				return fmt.Errorf("schedule %q: %w", cfg.Schedule, err)
			}
			sched.Start()
			defer sched.Stop()

			run()
			if next := sched.NextRunAt(); next != nil {
				slog.Info("watching", "schedule", cfg.Schedule, "next_run", next)
			}

			<-ctx.Done()
			slog.Info("shutting down")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "evfind.yaml", "application config file")
	return cmd
}

// runScheduledScan executes one full single-pass scan from the application
// config and writes the usual reports.
func runScheduledScan(ctx context.Context, cfg *config.Config) error {
	rcfg, err := loadRules(cfg.RulesPath, "")
	if err != nil {
		return err
	}

	opts := scan.Options{
		Roots:          cfg.Roots,
		CalendarFiles:  cfg.CalendarFiles,
		MailboxFiles:   cfg.MailboxFiles,
		MaxBytes:       cfg.MaxBytes,
		WalkWorkers:    cfg.Workers.Walk,
		ProcessWorkers: cfg.Workers.Process,
		ProgressPath:   filepath.Join(cfg.OutDir, "progress.json"),
	}

	database := openAudit(cfg.OutDir)
	if database != nil {
		defer database.Close()
	}

	result, err := scan.New(rcfg, opts, nil, database).Run(ctx)
	if err != nil {
		return err
	}
	if !result.NoMatches {
		if err := writeReports(result.Rows, cfg.OutDir); err != nil {
			return err
		}
	}
	printSummary(result)
	return nil
}
