package scan

import (
	"regexp"
	"testing"

	"github.com/mkessler/evfind/internal/rules"
)

func compiledOneRule(tb testing.TB, category, subcategory string, patterns ...string) rules.Compiled {
	tb.Helper()
	sub := rules.Subcategory{Name: subcategory}
	for _, pat := range patterns {
		sub.Patterns = append(sub.Patterns, regexp.MustCompile("(?i)"+pat))
	}
	return rules.Compiled{Categories: []rules.Category{
		{Name: category, Subcategories: []rules.Subcategory{sub}},
	}}
}

// TestScoreText_CountsEveryOccurrence: two occurrences of one pattern yield
// two hits, each worth per_hit_points.
func TestScoreText_CountsEveryOccurrence(t *testing.T) {
	patterns := []*regexp.Regexp{regexp.MustCompile(`(?i)\bgrant\b`)}
	score, hits := ScoreText("The grant proposal. Grant awarded in June.", patterns, 1, 10)
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
	if score != 2 {
		t.Errorf("score = %v, want 2", score)
	}
}

func TestScoreText_CapIsHardCeiling(t *testing.T) {
	patterns := []*regexp.Regexp{regexp.MustCompile(`(?i)a`)}
	score, hits := ScoreText("aaaaaaaaaaaaaaaaaaaa", patterns, 1, 10)
	if hits != 20 {
		t.Errorf("hits = %d, want 20", hits)
	}
	if score != 10 {
		t.Errorf("score = %v, want cap of 10", score)
	}
}

func TestScoreText_EmptyText(t *testing.T) {
	patterns := []*regexp.Regexp{regexp.MustCompile(`(?i)x`)}
	if score, hits := ScoreText("", patterns, 1, 10); score != 0 || hits != 0 {
		t.Errorf("got score=%v hits=%d, want zeros", score, hits)
	}
}

// TestScoreItem_WeightAfterCap: the raw capped score is multiplied by the
// category weight, so a weighted score can exceed the cap.
func TestScoreItem_WeightAfterCap(t *testing.T) {
	compiled := compiledOneRule(t, "scholarship", "grants", `\bgrant\b`)
	scoring := rules.Scoring{
		PerHitPoints:    1,
		CapPerFile:      10,
		CategoryWeights: map[string]float64{"scholarship": 2.0},
	}
	it := Item{Source: SourceFiles, Display: "a.txt", Text: "grant money and another grant"}

	rows := ScoreItem(it, compiled, scoring)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Hits != 2 {
		t.Errorf("hits = %d, want 2", rows[0].Hits)
	}
	if rows[0].Score != 4 {
		t.Errorf("score = %v, want 2 hits * 1 point * weight 2.0 = 4", rows[0].Score)
	}
}

// TestScoreItem_BonusAddedAfterWeighting: a matching bonus keyword is added
// once, after the weight multiplication, to every positive row.
func TestScoreItem_BonusAddedAfterWeighting(t *testing.T) {
	compiled := compiledOneRule(t, "scholarship", "grants", `\bgrant\b`)
	scoring := rules.Scoring{
		PerHitPoints:    1,
		CapPerFile:      10,
		CategoryWeights: map[string]float64{"scholarship": 2.0},
		BonusKeywords:   map[string]float64{"NSF": 5},
	}
	it := Item{Source: SourceFiles, Display: "a.txt", Text: "nsf grant renewed; grant total doubled"}

	rows := ScoreItem(it, compiled, scoring)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Score != 9 {
		t.Errorf("score = %v, want (2*1)*2.0 + 5 = 9", rows[0].Score)
	}
}

// TestScoreItem_BonusCountsOncePerItem: repeating the keyword does not
// multiply the bonus.
func TestScoreItem_BonusCountsOncePerItem(t *testing.T) {
	compiled := compiledOneRule(t, "scholarship", "grants", `\bgrant\b`)
	scoring := rules.Scoring{
		PerHitPoints:  1,
		CapPerFile:    10,
		BonusKeywords: map[string]float64{"NSF": 5},
	}
	it := Item{Text: "NSF NSF NSF grant"}

	rows := ScoreItem(it, compiled, scoring)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Score != 6 {
		t.Errorf("score = %v, want 1 + 5 = 6", rows[0].Score)
	}
}

// TestScoreItem_ProvenanceAddedPerRow: provenance points ride along like a
// bonus, added after weighting to every positive row but never creating one.
func TestScoreItem_ProvenanceAddedPerRow(t *testing.T) {
	compiled := compiledOneRule(t, "scholarship", "grants", `\bgrant\b`)
	scoring := rules.Scoring{
		PerHitPoints:    1,
		CapPerFile:      10,
		CategoryWeights: map[string]float64{"scholarship": 2.0},
	}
	it := Item{Source: SourceEmail, Display: "Grant award", Text: "grant", Provenance: 3}

	rows := ScoreItem(it, compiled, scoring)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Score != 5 {
		t.Errorf("score = %v, want 1 hit * 1 point * weight 2.0 + provenance 3 = 5", rows[0].Score)
	}

	if rows := ScoreItem(Item{Text: "nothing relevant", Provenance: 3}, compiled, scoring); len(rows) != 0 {
		t.Errorf("got %d rows, want 0 from provenance alone", len(rows))
	}
}

// TestScoreItem_NoRowsWithoutHits: bonus keywords alone never create a row.
func TestScoreItem_NoRowsWithoutHits(t *testing.T) {
	compiled := compiledOneRule(t, "scholarship", "grants", `\bgrant\b`)
	scoring := rules.Scoring{
		PerHitPoints:  1,
		CapPerFile:    10,
		BonusKeywords: map[string]float64{"NSF": 5},
	}
	rows := ScoreItem(Item{Text: "NSF appears but no rule term does"}, compiled, scoring)
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

func TestProprietaryHint(t *testing.T) {
	for _, ext := range []string{".sib", ".musx", ".mus", ".ftmx", ".ftm", ".3dj", ".3dz", ".3da", ".prod"} {
		if !ProprietaryHint(ext) {
			t.Errorf("ProprietaryHint(%q) = false, want true", ext)
		}
	}
	for _, ext := range []string{".pdf", ".txt", ""} {
		if ProprietaryHint(ext) {
			t.Errorf("ProprietaryHint(%q) = true, want false", ext)
		}
	}
}

// TestSortRows_DeterministicOrder checks the (source, -score, category,
// subcategory, display) ordering.
func TestSortRows_DeterministicOrder(t *testing.T) {
	rows := []EvidenceRow{
		{Source: SourceFiles, Score: 1, Category: "b", Subcategory: "x", Display: "d1"},
		{Source: SourceCalendar, Score: 9, Display: "d2"},
		{Source: SourceFiles, Score: 5, Category: "a", Subcategory: "y", Display: "d3"},
		{Source: SourceFiles, Score: 5, Category: "a", Subcategory: "x", Display: "d4"},
		{Source: SourceFiles, Score: 5, Category: "a", Subcategory: "x", Display: "d0"},
	}
	SortRows(rows)

	wantDisplays := []string{"d2", "d0", "d4", "d3", "d1"}
	for i, want := range wantDisplays {
		if rows[i].Display != want {
			t.Errorf("rows[%d].Display = %q, want %q", i, rows[i].Display, want)
		}
	}
}
