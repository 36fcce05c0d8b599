package rules

import (
	"fmt"
	"regexp"
)

// MetadataRules drive the metadata-only classification pass. Patterns are
// matched case-insensitively; filename patterns against the basename, path
// patterns against the full lowercased path. Extension hints add a
// category-specific weight when the file's extension appears in the table.
type MetadataRules struct {
	FilenamePatterns map[string][]string           `yaml:"filename_patterns"`
	PathPatterns     map[string][]string           `yaml:"path_patterns"`
	ExtensionHints   map[string]map[string]float64 `yaml:"extension_hints"`

	compiledFilename map[string][]Matcher
	compiledPath     map[string][]Matcher
}

// Matcher pairs a configured pattern with its compiled form. Classification
// reason tags echo Raw exactly as the file wrote it.
type Matcher struct {
	Raw string
	Re  *regexp.Regexp
}

// DefaultMetadataRules returns the built-in heuristic tables used when the
// rules file has no metadata section.
func DefaultMetadataRules() MetadataRules {
	return MetadataRules{
		FilenamePatterns: map[string][]string{
			"teaching": {
				`\bsyllabus\b`, `\bassignment\b`, `\bexam\b`, `\bquiz\b`,
				`\bgrading\b`, `\brubric\b`, `\blesson\b`, `\bcourse\b`,
				`\bstudent\b`, `\bgrade\b`, `\bhomework\b`, `\btest\b`,
			},
			"service": {
				`\bcommittee\b`, `\bmeeting\b`, `\bagenda\b`, `\bminutes\b`,
				`\breview\b`, `\bevaluation\b`, `\bproposal\b`, `\bservice\b`,
			},
			"scholarship": {
				`\bresearch\b`, `\bpaper\b`, `\barticle\b`, `\bmanuscript\b`,
				`\babstract\b`, `\bpublication\b`, `\bconference\b`, `\bgrant\b`,
				`\bcomposition\b`, `\barrangement\b`, `\bdrill\b`, `\bscore\b`,
			},
		},
		PathPatterns: map[string][]string{
			"teaching":    {`/teaching/`, `/courses?/`, `/class/`, `/syllabi?/`, `/assignments?/`},
			"service":     {`/service/`, `/committee/`, `/admin/`, `/meetings?/`},
			"scholarship": {`/research/`, `/publications?/`, `/manuscripts?/`, `/creative/`, `/compositions?/`},
		},
		ExtensionHints: map[string]map[string]float64{
			"teaching":    {".pptx": 3, ".pdf": 1, ".docx": 2, ".xlsx": 2},
			"scholarship": {".pdf": 3, ".docx": 3, ".musx": 5, ".sib": 5, ".3dj": 5, ".musicxml": 4},
			"service":     {".pdf": 2, ".docx": 2, ".xlsx": 2, ".pptx": 1},
		},
	}
}

// Categories returns the sorted union of category names appearing in any of
// the three heuristic tables.
func (m *MetadataRules) Categories() []string {
	set := map[string]struct{}{}
	for cat := range m.FilenamePatterns {
		set[cat] = struct{}{}
	}
	for cat := range m.PathPatterns {
		set[cat] = struct{}{}
	}
	for cat := range m.ExtensionHints {
		set[cat] = struct{}{}
	}
	return sortedKeys(set)
}

// FilenameMatchers returns the compiled filename patterns for a category.
func (m *MetadataRules) FilenameMatchers(category string) []Matcher {
	return m.compiledFilename[category]
}

// PathMatchers returns the compiled path patterns for a category.
func (m *MetadataRules) PathMatchers(category string) []Matcher {
	return m.compiledPath[category]
}

func (m *MetadataRules) compile() error {
	m.compiledFilename = map[string][]Matcher{}
	for cat, pats := range m.FilenamePatterns {
		res, err := compilePatternList(pats, "metadata.filename_patterns."+cat)
		if err != nil {
			return err
		}
		m.compiledFilename[cat] = res
	}
	m.compiledPath = map[string][]Matcher{}
	for cat, pats := range m.PathPatterns {
		res, err := compilePatternList(pats, "metadata.path_patterns."+cat)
		if err != nil {
			return err
		}
		m.compiledPath[cat] = res
	}
	return nil
}

func compilePatternList(patterns []string, key string) ([]Matcher, error) {
	out := make([]Matcher, 0, len(patterns))
	for _, pat := range patterns {
		re, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			return nil, &ConfigError{Key: key, Err: fmt.Errorf("pattern %q: %w", pat, err)}
		}
		out = append(out, Matcher{Raw: pat, Re: re})
	}
	return out, nil
}
