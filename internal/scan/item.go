// Package scan implements the evidence scanning engine: source enumeration,
// metadata classification, text scoring, and the one- and two-pass
// orchestrations that tie them together.
package scan

import "time"

// Source identifies where a scan item came from.
type Source string

const (
	SourceFiles    Source = "files"
	SourceCalendar Source = "calendar"
	SourceEmail    Source = "email"
)

// Item is one enumerated unit of potential evidence. For file items Text is
// empty until extraction; calendar and email items arrive with Text already
// assembled from their structured fields.
type Item struct {
	Source  Source
	Path    string // origin file on disk
	Display string // human label: filename, event summary, or subject
	Text    string // content to score
	Meta    string // free-form provenance (timestamp, location, sender)
	When    string // ISO date for chronological grouping; may be empty

	// Provenance is extra points earned from origin metadata (a target
	// address in the mail headers), added to every positive row.
	Provenance float64
}

// EvidenceRow is one scored (category, subcategory) match for one item.
// Rows are append-only; the full collection is sorted once at the end of a
// run and handed to the report writer.
type EvidenceRow struct {
	Source      Source
	Path        string
	Display     string
	Category    string
	Subcategory string
	Hits        int
	Score       float64
	Meta        string
	When        string
}

// SkipReason says why an enumerated item contributed nothing.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipStatFailed    SkipReason = "stat_failed"
	SkipEmptyText     SkipReason = "empty_text"
	SkipParseFailed   SkipReason = "parse_failed"
	SkipFilteredOut   SkipReason = "filtered_out"
	SkipUnreadableDir SkipReason = "unreadable_dir"
)

// Outcome is the per-item result of processing: either one or more evidence
// rows, or an explicit skip with a reason. Skips are counted, never fatal.
type Outcome struct {
	Item Item
	Rows []EvidenceRow
	Skip SkipReason
}

// Matched reports whether the item produced at least one row.
func (o Outcome) Matched() bool { return len(o.Rows) > 0 }

// FileRecord is the Pass 1 classification of one file, produced from path
// and stat metadata alone. Never mutated after creation; persisted as an
// audit artifact whether or not Pass 2 runs.
type FileRecord struct {
	Path       string             `json:"path"`
	Category   string             `json:"category"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
	Reasons    []string           `json:"reasons"`
	SizeKB     float64            `json:"size_kb"`
	AgeDays    float64            `json:"age_days"`
	Extension  string             `json:"extension"`

	size  int64
	mtime time.Time
}

// MTime returns the file's modification time captured at classification.
func (r *FileRecord) MTime() time.Time { return r.mtime }
