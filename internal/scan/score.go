package scan

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mkessler/evfind/internal/rules"
)

// proprietaryHints are binary notation/drill-design formats with no
// machine-extractable text. When extraction yields nothing for one of these,
// the lowercased filename is scored instead so filename-borne evidence
// survives.
var proprietaryHints = map[string]struct{}{
	".sib": {}, ".musx": {}, ".mus": {}, ".ftmx": {}, ".ftm": {},
	".3dj": {}, ".3dz": {}, ".3da": {}, ".prod": {},
}

// ProprietaryHint reports whether ext (lowercase, with dot) is a format
// eligible for the filename-fallback rule.
func ProprietaryHint(ext string) bool {
	_, ok := proprietaryHints[ext]
	return ok
}

// ScoreText counts hits of the given patterns in text and returns the capped
// raw score. Hits are the sum over patterns of each pattern's match count;
// the same span matched by two patterns counts once per pattern. The cap is
// a hard ceiling applied before any category weighting.
func ScoreText(text string, patterns []*regexp.Regexp, perHit, capPoints float64) (float64, int) {
	if text == "" {
		return 0, 0
	}
	hits := 0
	for _, re := range patterns {
		hits += len(re.FindAllStringIndex(text, -1))
	}
	score := float64(hits) * perHit
	if score > capPoints {
		score = capPoints
	}
	return score, hits
}

// ScoreItem evaluates one item's text against every compiled subcategory and
// returns a row for each (category, subcategory) with a strictly positive
// score. Bonus keywords are resolved once against the full text; the bonus
// sum and the item's provenance points are added to every positive row
// after category weighting.
func ScoreItem(it Item, compiled rules.Compiled, scoring rules.Scoring) []EvidenceRow {
	if it.Text == "" {
		return nil
	}

	bonus := bonusSum(it.Text, scoring.BonusKeywords)

	var out []EvidenceRow
	for _, cat := range compiled.Categories {
		weight := scoring.Weight(cat.Name)
		for _, sub := range cat.Subcategories {
			raw, hits := ScoreText(it.Text, sub.Patterns, scoring.PerHitPoints, scoring.CapPerFile)
			if raw <= 0 {
				continue
			}
			out = append(out, EvidenceRow{
				Source:      it.Source,
				Path:        it.Path,
				Display:     it.Display,
				Category:    cat.Name,
				Subcategory: sub.Name,
				Hits:        hits,
				Score:       raw*weight + bonus + it.Provenance,
				Meta:        it.Meta,
				When:        it.When,
			})
		}
	}
	return out
}

// bonusSum adds up the point values of every configured keyword that appears
// anywhere in text as a case-insensitive literal substring. Each keyword
// counts once regardless of how often it appears.
func bonusSum(text string, keywords map[string]float64) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	var sum float64
	for kw, points := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			sum += points
		}
	}
	return sum
}

// SortRows orders rows by (source, -score, category, subcategory, display)
// so identical inputs always produce identical output across runs.
func SortRows(rows []EvidenceRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Subcategory != b.Subcategory {
			return a.Subcategory < b.Subcategory
		}
		return a.Display < b.Display
	})
}
