package scan

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Progress holds live counters updated by the pipeline stages.
// All fields are atomic so they can be written from worker goroutines and
// read by the reporter without locks.
type Progress struct {
	DirsVisited   atomic.Int64
	FilesSeen     atomic.Int64
	FilesAccepted atomic.Int64
	Processed     atomic.Int64
	Extracted     atomic.Int64
	Matched       atomic.Int64
	Skipped       atomic.Int64
	Errors        atomic.Int64
}

// ErrorReporter records a per-item failure: bumps the error counter and
// emits a structured warning. The offending item is dropped, never fatal.
type ErrorReporter func(path, stage, errMsg string)

// LogReporter returns the standard ErrorReporter: count and log at Warn.
func LogReporter(progress *Progress) ErrorReporter {
	return func(path, stage, errMsg string) {
		progress.Errors.Add(1)
		slog.Warn("scan item skipped", "path", path, "stage", stage, "error", errMsg)
	}
}

// Stage labels the phase a run is in, written to the progress artifact.
type Stage string

const (
	StageIndexing   Stage = "indexing"
	StageFiltering  Stage = "filtering"
	StageWalking    Stage = "walking"
	StageProcessing Stage = "processing"
	StageDone       Stage = "done"
	StageNoMatches  Stage = "done_no_matches"
)

// Snapshot is the machine-readable progress record polled by front ends.
// Total is nil during unbounded walks; EtaSec is nil until throughput is
// known. Only the latest snapshot matters; each write replaces the last.
type Snapshot struct {
	Stage      Stage    `json:"stage"`
	Processed  int64    `json:"processed"`
	Total      *int64   `json:"total"`
	ElapsedSec float64  `json:"elapsed_sec"`
	EtaSec     *float64 `json:"eta_sec"`
	UpdatedAt  string   `json:"updated_at"`
}

// Reporter overwrites a single JSON progress artifact. Writes are atomic
// (temp file + rename) and best-effort: a failed write is logged once and
// never fails the run.
type Reporter struct {
	path      string
	startedAt time.Time

	mu        sync.Mutex
	warned    bool
	lastStage Stage
	lastProc  int64 // monotonic guard so concurrent writers never regress
}

// NewReporter creates a Reporter writing to path. Elapsed time and ETA are
// measured from now.
func NewReporter(path string) *Reporter {
	return &Reporter{path: path, startedAt: time.Now()}
}

// Report writes a snapshot for the given stage. Pass total < 0 when the
// population size is unknown.
func (r *Reporter) Report(stage Stage, processed, total int64) {
	if r == nil || r.path == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The monotone guard is per stage: a new stage starts its own count,
	// so Pass 2 over a smaller selection does not inherit Pass 1's total.
	if stage != r.lastStage {
		r.lastStage = stage
		r.lastProc = 0
	}
	if processed < r.lastProc {
		processed = r.lastProc
	}
	r.lastProc = processed

	elapsed := time.Since(r.startedAt).Seconds()
	snap := Snapshot{
		Stage:      stage,
		Processed:  processed,
		ElapsedSec: elapsed,
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if total >= 0 {
		snap.Total = &total
	}
	if total > 0 && processed > 0 && elapsed > 0 {
		rate := float64(processed) / elapsed
		eta := float64(total-processed) / rate
		snap.EtaSec = &eta
	}

	if err := r.write(snap); err != nil && !r.warned {
		r.warned = true
		slog.Warn("progress write failed", "path", r.path, "error", err)
	}
}

// write marshals the snapshot and atomically replaces the artifact.
func (r *Reporter) write(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".progress-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}
