package scan

import (
	"encoding/json"
	"fmt"
	"time"
)

// The audit store keeps run history, Pass 1 classifications and evidence
// rows in the per-run SQLite database. Every writer here is a no-op when the
// scanner was built without a database; audit failures are logged by the
// caller and never fail the run.

func (s *Scanner) insertRunRecord(runID, mode string, startedAt time.Time) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, mode, status, started_at, created_at)
		VALUES (?, ?, 'running', ?, ?)`,
		runID, mode, startedAt.Unix(), time.Now().Unix())
	return err
}

func (s *Scanner) finaliseRunRecord(runID string, result *Result) error {
	if s.db == nil {
		return nil
	}
	status := "completed"
	if result.NoMatches {
		status = "completed_no_matches"
	}
	_, err := s.db.Exec(`
		UPDATE runs
		SET status           = ?,
		    finished_at      = ?,
		    duration_seconds = ?,
		    evidence_rows    = ?,
		    processed        = ?,
		    extracted        = ?,
		    matched          = ?,
		    skipped          = ?,
		    errors           = ?
		WHERE id = ?`,
		status,
		result.StartedAt.Add(result.Duration).Unix(),
		int64(result.Duration.Seconds()),
		len(result.Rows),
		result.Stats.Processed,
		result.Stats.Extracted,
		result.Stats.Matched,
		result.Stats.Skipped,
		result.Stats.Errors,
		runID)
	return err
}

// persistPass1 writes every classification record in one transaction with a
// prepared statement; reasons are stored as a JSON array.
func (s *Scanner) persistPass1(runID string, pass1 *Pass1Result) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO pass1_records
			(run_id, path, category, confidence, size_kb, age_days, extension, reasons)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare pass1 insert: %w", err)
	}
	defer stmt.Close()

	for _, records := range pass1.Buckets {
		for _, rec := range records {
			reasons, _ := json.Marshal(rec.Reasons)
			if _, err := stmt.Exec(
				runID, rec.Path, rec.Category, rec.Confidence,
				rec.SizeKB, rec.AgeDays, rec.Extension, string(reasons),
			); err != nil {
				return fmt.Errorf("insert pass1 record %s: %w", rec.Path, err)
			}
		}
	}
	return tx.Commit()
}

// persistRows writes the sorted evidence rows in one transaction.
func (s *Scanner) persistRows(runID string, rows []EvidenceRow) error {
	if s.db == nil || len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO evidence
			(run_id, source, path, display, category, subcategory, hits, score, meta, when_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare evidence insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(
			runID, string(row.Source), row.Path, row.Display,
			row.Category, row.Subcategory, row.Hits, row.Score,
			row.Meta, row.When,
		); err != nil {
			return fmt.Errorf("insert evidence row %s: %w", row.Path, err)
		}
	}
	return tx.Commit()
}
