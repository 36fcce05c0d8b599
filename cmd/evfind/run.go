package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/mkessler/evfind/internal/db"
	"github.com/mkessler/evfind/internal/report"
	"github.com/mkessler/evfind/internal/rules"
	"github.com/mkessler/evfind/internal/scan"
)

// sourceFlags are the enumeration inputs shared by scan and twopass.
type sourceFlags struct {
	include     []string
	includeFile string
	pathList    string
	since       string
	until       string
	maxBytes    int64
	onlyExt     string
	walkers     int
	workers     int
}

// buildOptions resolves the source flags into scan options: include-file and
// path-list entries are read (blank lines and # comments skipped), date
// bounds parsed, and the until bound extended through end of day.
func buildOptions(f *sourceFlags, outDir string) (scan.Options, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return scan.Options{}, fmt.Errorf("create output dir: %w", err)
	}
	opts := scan.Options{
		Roots:          f.include,
		MaxBytes:       f.maxBytes,
		WalkWorkers:    f.walkers,
		ProcessWorkers: f.workers,
		ProgressPath:   filepath.Join(outDir, "progress.json"),
	}

	if f.includeFile != "" {
		dirs, err := readLineFile(f.includeFile)
		if err != nil {
			return scan.Options{}, err
		}
		opts.Roots = append(opts.Roots, dirs...)
	}
	if f.pathList != "" {
		paths, err := readLineFile(f.pathList)
		if err != nil {
			return scan.Options{}, err
		}
		opts.PathList = paths
	}

	if f.since != "" {
		t, err := scan.ParseDate(f.since)
		if err != nil {
			return scan.Options{}, fmt.Errorf("invalid --modified-since: %w", err)
		}
		opts.Since = t
	}
	if f.until != "" {
		t, err := scan.ParseDate(f.until)
		if err != nil {
			return scan.Options{}, fmt.Errorf("invalid --modified-until: %w", err)
		}
		opts.Until = scan.EndOfDay(t)
	}
	return opts, nil
}

// readLineFile reads non-blank, non-comment lines from a list file.
func readLineFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read list file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// loadRules compiles the rules file and applies the --only-ext override.
// Rule failures are fatal before any enumeration begins.
func loadRules(rulesPath, onlyExt string) (*rules.Config, error) {
	cfg, err := rules.Load(rulesPath)
	if err != nil {
		return nil, err
	}
	if onlyExt != "" {
		exts := map[string]struct{}{}
		for _, e := range strings.Split(onlyExt, ",") {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts[e] = struct{}{}
		}
		cfg.Filters.IncludeExtensions = exts
	}
	return cfg, nil
}

// openAudit opens the per-run audit database inside outDir. Best-effort:
// failures are logged and the run continues without persistence.
func openAudit(outDir string) *sql.DB {
	if flagNoAudit {
		return nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		slog.Warn("audit db disabled", "error", err)
		return nil
	}
	database, err := db.Open(filepath.Join(outDir, "scan.db"))
	if err != nil {
		slog.Warn("audit db disabled", "error", err)
		return nil
	}
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("audit db disabled", "error", err)
		database.Close()
		return nil
	}
	if err := db.MarkStaleRunsFailed(database); err != nil {
		slog.Warn("mark stale runs", "error", err)
	}
	return database
}

// writeReports renders evidence.csv, summary.csv and report.html.
func writeReports(rows []scan.EvidenceRow, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	evidence, err := report.WriteCSV(rows, outDir, "evidence.csv")
	if err != nil {
		return err
	}
	summary, err := report.WriteSummary(rows, outDir)
	if err != nil {
		return err
	}
	html, err := report.WriteHTML(rows, outDir)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote:\n  %s\n  %s\n  %s\n", evidence, summary, html)
	return nil
}

// printSummary prints the end-of-run counters.
func printSummary(result *scan.Result) {
	if result.NoMatches {
		color.Yellow("No matches found. Try adding more terms to the rules file or scanning different folders.")
	} else {
		color.Green("Scan complete: %d evidence rows.", len(result.Rows))
	}
	fmt.Printf("  processed %d, extracted %d, matched %d, skipped %d, errors %d (%s)\n",
		result.Stats.Processed, result.Stats.Extracted, result.Stats.Matched,
		result.Stats.Skipped, result.Stats.Errors,
		result.Duration.Round(time.Millisecond))
}
