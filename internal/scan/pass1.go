package scan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// highConfidence is the threshold above which a Pass 1 record counts as a
// strong classification in the summary.
const highConfidence = 3.0

// Pass1Summary aggregates the classification for quick review before Pass 2.
type Pass1Summary struct {
	TotalFiles     int            `json:"total_files"`
	ByCategory     map[string]int `json:"by_category"`
	HighConfidence map[string]int `json:"high_confidence"`
}

// Summary computes per-category counts.
func (p *Pass1Result) Summary() Pass1Summary {
	s := Pass1Summary{
		TotalFiles:     p.Total,
		ByCategory:     map[string]int{},
		HighConfidence: map[string]int{},
	}
	for cat, records := range p.Buckets {
		s.ByCategory[cat] = len(records)
		for _, rec := range records {
			if rec.Confidence > highConfidence {
				s.HighConfidence[cat]++
			}
		}
	}
	return s
}

// WriteArtifacts persists the full classification and its summary as JSON
// files in outDir, so Pass 1 results can be reviewed and audited whether or
// not Pass 2 runs.
func (p *Pass1Result) WriteArtifacts(outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeJSON(filepath.Join(outDir, "pass1_categorized.json"), p.Buckets); err != nil {
		return err
	}
	return writeJSON(filepath.Join(outDir, "pass1_summary.json"), p.Summary())
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
