// Package report renders sorted evidence rows as a flat CSV table, a
// grouped count summary, and a grouped HTML view. It trusts the caller's
// ordering; rows are written exactly as received.
package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/mkessler/evfind/internal/scan"
)

// FormatScore renders a score without a decimal point when it resolves to a
// whole number, keeping CSV and HTML output clean.
func FormatScore(score float64) string {
	if score == math.Trunc(score) {
		return strconv.FormatInt(int64(score), 10)
	}
	return strconv.FormatFloat(score, 'g', -1, 64)
}

// WriteCSV writes the flat evidence table and returns its path.
func WriteCSV(rows []scan.EvidenceRow, outDir, name string) (string, error) {
	path := filepath.Join(outDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"source", "path", "display", "category", "subcategory", "hits", "score", "meta", "when"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	for _, r := range rows {
		record := []string{
			string(r.Source), r.Path, r.Display, r.Category, r.Subcategory,
			strconv.Itoa(r.Hits), FormatScore(r.Score), r.Meta, r.When,
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", name, err)
	}
	return path, nil
}

type groupKey struct {
	Source      scan.Source
	Category    string
	Subcategory string
}

func groupRows(rows []scan.EvidenceRow) (map[groupKey][]scan.EvidenceRow, []groupKey) {
	grouped := map[groupKey][]scan.EvidenceRow{}
	for _, r := range rows {
		k := groupKey{r.Source, r.Category, r.Subcategory}
		grouped[k] = append(grouped[k], r)
	}
	keys := make([]groupKey, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Subcategory < b.Subcategory
	})
	return grouped, keys
}

// WriteSummary writes per-(source, category, subcategory) match counts.
func WriteSummary(rows []scan.EvidenceRow, outDir string) (string, error) {
	grouped, keys := groupRows(rows)

	path := filepath.Join(outDir, "summary.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create summary.csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"source", "category", "subcategory", "count"}); err != nil {
		return "", fmt.Errorf("write summary.csv: %w", err)
	}
	for _, k := range keys {
		record := []string{string(k.Source), k.Category, k.Subcategory, strconv.Itoa(len(grouped[k]))}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write summary.csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush summary.csv: %w", err)
	}
	return path, nil
}
