package scan

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/mkessler/evfind/internal/rules"
)

// Classification heuristic constants. Path beats filename beats extension:
// directory structure is a deliberate human choice, content-type the weakest
// signal a file carries.
const (
	filenamePoints  = 2.0
	pathPoints      = 3.0
	recentBonus     = 0.5
	recentAgeDays   = 365
	tinyPenalty     = -2.0
	tinyThresholdKB = 1.0
	hugePenalty     = -1.0
	hugeThresholdKB = 100 * 1024
	confidenceFloor = 1.0
)

// MiscCategory is the sentinel bucket for files below the confidence floor.
const MiscCategory = "misc"

// Classifier assigns a coarse category to a file from its path and stat
// metadata alone. It never opens the file.
type Classifier struct {
	meta rules.MetadataRules
	now  func() time.Time
}

// NewClassifier builds a Classifier over the given metadata rules.
func NewClassifier(meta rules.MetadataRules) *Classifier {
	return &Classifier{meta: meta, now: time.Now}
}

// Classify is a pure function of (path, size, mtime): identical inputs
// always produce an identical record, modulo the age computed from the clock.
func (c *Classifier) Classify(path string, size int64, mtime time.Time) FileRecord {
	base := strings.ToLower(filepath.Base(path))
	lowerPath := strings.ToLower(path)
	ext := strings.ToLower(filepath.Ext(base))

	scores := map[string]float64{}
	var reasons []string
	for _, cat := range c.meta.Categories() {
		scores[cat] = 0
	}

	for _, cat := range c.meta.Categories() {
		for _, m := range c.meta.FilenameMatchers(cat) {
			if m.Re.MatchString(base) {
				scores[cat] += filenamePoints
				reasons = append(reasons, "filename:"+m.Raw)
			}
		}
	}

	for _, cat := range c.meta.Categories() {
		for _, m := range c.meta.PathMatchers(cat) {
			if m.Re.MatchString(lowerPath) {
				scores[cat] += pathPoints
				reasons = append(reasons, "path:"+m.Raw)
			}
		}
	}

	for _, cat := range c.meta.Categories() {
		if hint, ok := c.meta.ExtensionHints[cat][ext]; ok {
			scores[cat] += hint
			reasons = append(reasons, "ext:"+ext)
		}
	}

	ageDays := c.now().Sub(mtime).Hours() / 24
	if ageDays < recentAgeDays {
		for cat := range scores {
			scores[cat] += recentBonus
		}
		reasons = append(reasons, "recent_file")
	}

	sizeKB := float64(size) / 1024
	switch {
	case sizeKB < tinyThresholdKB:
		for cat := range scores {
			scores[cat] += tinyPenalty
		}
		reasons = append(reasons, "tiny_file")
	case sizeKB > hugeThresholdKB:
		for cat := range scores {
			scores[cat] += hugePenalty
		}
		reasons = append(reasons, "huge_file")
	}

	best, confidence := bestCategory(scores, c.meta.Categories())
	if confidence < confidenceFloor {
		best = MiscCategory
		confidence = 0
		reasons = append(reasons, "low_confidence")
	}

	return FileRecord{
		Path:       path,
		Category:   best,
		Confidence: confidence,
		Scores:     scores,
		Reasons:    reasons,
		SizeKB:     sizeKB,
		AgeDays:    ageDays,
		Extension:  ext,
		size:       size,
		mtime:      mtime,
	}
}

// bestCategory picks the highest-scoring category, breaking ties by the
// deterministic ordering so reruns classify identically.
func bestCategory(scores map[string]float64, ordered []string) (string, float64) {
	best := MiscCategory
	top := 0.0
	first := true
	for _, cat := range ordered {
		if first || scores[cat] > top {
			best, top = cat, scores[cat]
			first = false
		}
	}
	return best, top
}
