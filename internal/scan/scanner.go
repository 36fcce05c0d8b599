package scan

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkessler/evfind/internal/extract"
	"github.com/mkessler/evfind/internal/rules"
)

// Options configure one run. Roots are walked unless PathList is set, in
// which case the pre-resolved paths substitute for the walker and the same
// filters apply per path.
type Options struct {
	Roots         []string
	PathList      []string
	CalendarFiles []string
	MailboxFiles  []string

	MaxBytes int64
	Since    time.Time
	Until    time.Time // inclusive end-of-day instant

	WalkWorkers    int
	ProcessWorkers int

	ProgressPath string // progress artifact; empty disables reporting
}

// Stats are the aggregate per-run counters surfaced at the end of a run.
type Stats struct {
	Processed int64
	Extracted int64
	Matched   int64
	Skipped   int64
	Errors    int64
}

// Result is the outcome of a completed run. NoMatches distinguishes an
// empty-but-successful run from a failed one.
type Result struct {
	RunID     string
	Rows      []EvidenceRow
	Stats     Stats
	StartedAt time.Time
	Duration  time.Duration
	NoMatches bool
}

// Pass1Result carries the full Pass 1 classification, bucketed by category.
type Pass1Result struct {
	Buckets map[string][]FileRecord
	Total   int
}

// Scanner composes the enumeration, classification, extraction and scoring
// stages. The compiled rule set is read-only for the whole run and shared
// across workers. db may be nil; when set, run history, Pass 1 records and
// evidence rows are persisted to the audit store.
type Scanner struct {
	cfg       *rules.Config
	opts      Options
	extractFn extract.Func
	db        *sql.DB

	progress *Progress
	reporter *Reporter
	report   ErrorReporter
}

// New creates a Scanner. extractFn may be nil, in which case the built-in
// extractors are used.
func New(cfg *rules.Config, opts Options, extractFn extract.Func, db *sql.DB) *Scanner {
	if extractFn == nil {
		extractFn = extract.Text
	}
	if opts.WalkWorkers <= 0 {
		opts.WalkWorkers = 4
	}
	if opts.ProcessWorkers <= 0 {
		opts.ProcessWorkers = 4
	}
	progress := &Progress{}
	return &Scanner{
		cfg:       cfg,
		opts:      opts,
		extractFn: extractFn,
		db:        db,
		progress:  progress,
		reporter:  NewReporter(opts.ProgressPath),
		report:    LogReporter(progress),
	}
}

// Progress exposes the live counters (read-only use).
func (s *Scanner) Progress() *Progress { return s.progress }

// Run executes the single-pass, multi-source path: enumerate files, calendar
// events and mail messages, extract text item by item, score everything, and
// return the sorted rows.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	startedAt := time.Now()
	runID := uuid.NewString()
	slog.Info("scan started", "id", runID, "mode", "single-pass",
		"roots", s.opts.Roots, "calendars", len(s.opts.CalendarFiles), "mailboxes", len(s.opts.MailboxFiles))

	if err := s.insertRunRecord(runID, "single-pass", startedAt); err != nil {
		slog.Warn("audit run record", "error", err)
	}

	files, err := s.collectFiles(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(files))
	for _, fi := range files {
		items = append(items, fileItem(fi))
	}
	items = append(items, EnumerateCalendars(s.opts.CalendarFiles, s.report)...)
	items = append(items, EnumerateMailboxes(s.opts.MailboxFiles, NewProvenanceScorer(s.cfg.Provenance), s.report)...)

	rows := s.processItems(ctx, items)
	result := s.finish(runID, startedAt, rows)
	return result, ctx.Err()
}

// RunPass1 classifies every candidate file from metadata alone and returns
// the bucketed records. No file contents are read.
func (s *Scanner) RunPass1(ctx context.Context) (*Pass1Result, error) {
	files, err := s.collectFiles(ctx)
	if err != nil {
		return nil, err
	}

	classifier := NewClassifier(s.cfg.Metadata)
	buckets := map[string][]FileRecord{}
	total := int64(len(files))
	for i, fi := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		rec := classifier.Classify(fi.Path, fi.Size, fi.MTime)
		buckets[rec.Category] = append(buckets[rec.Category], rec)
		s.reporter.Report(StageFiltering, int64(i+1), total)
	}

	return &Pass1Result{Buckets: buckets, Total: len(files)}, nil
}

// RunTwoPass executes the file-only two-pass path: Pass 1 buckets every
// candidate by metadata, then Pass 2 extracts and scores only files in the
// selected categories at or above minConfidence. pass1Only stops after the
// classification. The Pass 1 result is always returned for persistence,
// whether or not Pass 2 ran.
func (s *Scanner) RunTwoPass(ctx context.Context, categories []string, minConfidence float64, pass1Only bool) (*Pass1Result, *Result, error) {
	startedAt := time.Now()
	runID := uuid.NewString()
	slog.Info("scan started", "id", runID, "mode", "two-pass",
		"roots", s.opts.Roots, "categories", categories, "min_confidence", minConfidence)

	if err := s.insertRunRecord(runID, "two-pass", startedAt); err != nil {
		slog.Warn("audit run record", "error", err)
	}

	pass1, err := s.RunPass1(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := s.persistPass1(runID, pass1); err != nil {
		slog.Warn("audit pass1 records", "error", err)
	}
	if pass1Only {
		s.reporter.Report(StageDone, int64(pass1.Total), int64(pass1.Total))
		return pass1, nil, nil
	}

	var items []Item
	for _, cat := range categories {
		for _, rec := range pass1.Buckets[cat] {
			if rec.Confidence < minConfidence {
				continue
			}
			items = append(items, fileItem(FileInfo{Path: rec.Path, MTime: rec.MTime()}))
		}
	}

	rows := s.processItems(ctx, items)
	result := s.finish(runID, startedAt, rows)
	return pass1, result, ctx.Err()
}

// collectFiles produces the candidate file population, either by filtering a
// pre-resolved path list or by walking the roots.
func (s *Scanner) collectFiles(ctx context.Context) ([]FileInfo, error) {
	walkOpts := WalkOptions{
		Filters:  s.cfg.Filters,
		MaxBytes: s.opts.MaxBytes,
		Since:    s.opts.Since,
		Until:    s.opts.Until,
	}

	if len(s.opts.PathList) > 0 {
		s.reporter.Report(StageIndexing, 0, int64(len(s.opts.PathList)))
		var files []FileInfo
		for i, path := range s.opts.PathList {
			if fi, ok := FilterPath(path, walkOpts); ok {
				files = append(files, fi)
			}
			s.reporter.Report(StageFiltering, int64(i+1), int64(len(s.opts.PathList)))
		}
		return files, nil
	}

	out := make(chan FileInfo, 1024)
	go Walk(ctx, s.opts.Roots, walkOpts, s.opts.WalkWorkers, out, s.report, s.progress)

	var files []FileInfo
	for fi := range out {
		files = append(files, fi)
		s.reporter.Report(StageWalking, int64(len(files)), -1)
	}
	return files, ctx.Err()
}

// processItems runs extraction and scoring over items with a bounded worker
// pool. Row accumulation happens in a single collector; the final sort makes
// the output independent of completion order.
func (s *Scanner) processItems(ctx context.Context, items []Item) []EvidenceRow {
	total := int64(len(items))
	in := make(chan Item)
	outcomes := make(chan Outcome, s.opts.ProcessWorkers)

	var wg sync.WaitGroup
	for i := 0; i < s.opts.ProcessWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range in {
				outcomes <- s.processItem(it)
			}
		}()
	}

	go func() {
		defer close(in)
		for _, it := range items {
			select {
			case <-ctx.Done():
				return
			case in <- it:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var rows []EvidenceRow
	for oc := range outcomes {
		n := s.progress.Processed.Add(1)
		switch {
		case oc.Matched():
			s.progress.Matched.Add(1)
			rows = append(rows, oc.Rows...)
		case oc.Skip != SkipNone:
			s.progress.Skipped.Add(1)
		}
		s.reporter.Report(StageProcessing, n, total)
	}

	SortRows(rows)
	return rows
}

// processItem extracts text when needed and scores one item, returning an
// explicit outcome so skips stay auditable.
func (s *Scanner) processItem(it Item) Outcome {
	if it.Source == SourceFiles && it.Text == "" {
		it.Text = s.extractFn(it.Path)
		if it.Text == "" {
			// Filename fallback for formats with no extractable text;
			// everything else is an extraction miss.
			ext := strings.ToLower(filepath.Ext(it.Path))
			if !ProprietaryHint(ext) {
				return Outcome{Item: it, Skip: SkipEmptyText}
			}
			it.Text = strings.ToLower(filepath.Base(it.Path))
		}
		s.progress.Extracted.Add(1)
	}
	if strings.TrimSpace(it.Text) == "" {
		return Outcome{Item: it, Skip: SkipEmptyText}
	}
	return Outcome{Item: it, Rows: ScoreItem(it, s.cfg.Compiled, s.cfg.Scoring)}
}

// finish assembles the result, persists rows, and writes the terminal
// progress snapshot.
func (s *Scanner) finish(runID string, startedAt time.Time, rows []EvidenceRow) *Result {
	stats := Stats{
		Processed: s.progress.Processed.Load(),
		Extracted: s.progress.Extracted.Load(),
		Matched:   s.progress.Matched.Load(),
		Skipped:   s.progress.Skipped.Load(),
		Errors:    s.progress.Errors.Load(),
	}
	result := &Result{
		RunID:     runID,
		Rows:      rows,
		Stats:     stats,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		NoMatches: len(rows) == 0,
	}

	if err := s.persistRows(runID, rows); err != nil {
		slog.Warn("audit evidence rows", "error", err)
	}
	if err := s.finaliseRunRecord(runID, result); err != nil {
		slog.Warn("audit finalise run", "error", err)
	}

	stage := StageDone
	if result.NoMatches {
		stage = StageNoMatches
	}
	s.reporter.Report(stage, stats.Processed, stats.Processed)

	slog.Info("scan finished", "id", runID,
		"rows", len(rows), "processed", stats.Processed,
		"extracted", stats.Extracted, "matched", stats.Matched,
		"skipped", stats.Skipped, "errors", stats.Errors,
		"duration", result.Duration.Round(time.Millisecond))
	return result
}

// fileItem shapes a walked file as a scan item; text stays empty until
// extraction.
func fileItem(fi FileInfo) Item {
	mtime := fi.MTime.UTC()
	return Item{
		Source:  SourceFiles,
		Path:    fi.Path,
		Display: fi.Path,
		Meta:    "mtime " + mtime.Format(time.RFC3339),
		When:    mtime.Format("2006-01-02"),
	}
}
