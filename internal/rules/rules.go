// Package rules loads the topical rule configuration and compiles it into
// the matchers and scoring parameters used by the scan engine. Compilation
// happens once per run; a rule file that fails to compile aborts the run
// before any enumeration starts.
package rules

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError is a fatal rule-configuration problem: a missing pattern list,
// a regex that does not compile, or a scoring section of the wrong shape.
type ConfigError struct {
	Key string // dotted path of the offending entry
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rules config %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// rawConfig mirrors the on-disk rules document. Category and subcategory
// names are whatever the file declares; they are never enumerated in code.
type rawConfig struct {
	Categories  map[string]map[string]rawRule `yaml:"categories"`
	FileFilters rawFileFilters                `yaml:"file_filters"`
	Scoring     rawScoring                    `yaml:"scoring"`
	Metadata    *MetadataRules                `yaml:"metadata"`
	Provenance  rawProvenance                 `yaml:"provenance"`
}

type rawRule struct {
	Any []string `yaml:"any"`
}

type rawFileFilters struct {
	IncludeExtensions []string `yaml:"include_extensions"`
	ExcludeDirs       []string `yaml:"exclude_dirs"`
}

type rawScoring struct {
	PerHitPoints    float64   `yaml:"per_hit_points"`
	CapPerFile      float64   `yaml:"cap_per_file"`
	CategoryWeights yaml.Node `yaml:"category_weights"`
	BonusKeywords   yaml.Node `yaml:"bonus_keywords"`
}

type rawProvenance struct {
	TargetEmails []string `yaml:"target_emails"`
	EmailScore   float64  `yaml:"email_score"`
}

// Provenance configures origin scoring for mail items: a message sent from
// one of the target addresses earns EmailScore extra points per row.
type Provenance struct {
	TargetEmails map[string]struct{} // trimmed, lowercased
	EmailScore   float64
}

// Subcategory is one compiled pattern list. A subcategory matches when any
// of its patterns match.
type Subcategory struct {
	Name     string
	Patterns []*regexp.Regexp
}

// Category is an ordered list of compiled subcategories.
type Category struct {
	Name          string
	Subcategories []Subcategory
}

// Compiled is the full rule set after compilation, ordered as declared in
// the file so runs are deterministic. Read-only once built; safe to share
// across workers.
type Compiled struct {
	Categories []Category
}

// Scoring holds the scoring parameters for a run.
type Scoring struct {
	PerHitPoints    float64
	CapPerFile      float64
	CategoryWeights map[string]float64 // absent category → 1.0
	BonusKeywords   map[string]float64 // keyword → additive points, once per item
}

// Weight returns the multiplier for a category, defaulting to 1.0.
func (s Scoring) Weight(category string) float64 {
	if w, ok := s.CategoryWeights[category]; ok {
		return w
	}
	return 1.0
}

// FileFilters restricts which files the walker yields.
type FileFilters struct {
	IncludeExtensions map[string]struct{} // lowercase, with dot; empty = all
	ExcludeDirs       map[string]struct{} // directory basenames pruned before descent
}

// Config is the result of loading and compiling one rules file.
type Config struct {
	Compiled   Compiled
	Scoring    Scoring
	Filters    FileFilters
	Metadata   MetadataRules
	Provenance Provenance
}

// Load reads, parses and compiles the rules file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse compiles a rules document already in memory.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Key: "(document)", Err: err}
	}
	if len(raw.Categories) == 0 {
		return nil, &ConfigError{Key: "categories", Err: fmt.Errorf("no categories declared")}
	}

	compiled, err := compileCategories(raw.Categories)
	if err != nil {
		return nil, err
	}

	scoring, err := buildScoring(raw.Scoring)
	if err != nil {
		return nil, err
	}

	meta := DefaultMetadataRules()
	if raw.Metadata != nil {
		meta = *raw.Metadata
	}
	if err := meta.compile(); err != nil {
		return nil, err
	}

	return &Config{
		Compiled:   compiled,
		Scoring:    scoring,
		Filters:    buildFilters(raw.FileFilters),
		Metadata:   meta,
		Provenance: buildProvenance(raw.Provenance),
	}, nil
}

func buildProvenance(raw rawProvenance) Provenance {
	p := Provenance{
		TargetEmails: map[string]struct{}{},
		EmailScore:   raw.EmailScore,
	}
	if p.EmailScore == 0 {
		p.EmailScore = 1
	}
	for _, addr := range raw.TargetEmails {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr != "" {
			p.TargetEmails[addr] = struct{}{}
		}
	}
	return p
}

func compileCategories(cats map[string]map[string]rawRule) (Compiled, error) {
	var c Compiled
	for _, cat := range sortedKeys(cats) {
		subs := cats[cat]
		if len(subs) == 0 {
			return Compiled{}, &ConfigError{
				Key: "categories." + cat,
				Err: fmt.Errorf("category has no subcategories"),
			}
		}
		out := Category{Name: cat}
		for _, sub := range sortedKeys(subs) {
			rule := subs[sub]
			if rule.Any == nil {
				return Compiled{}, &ConfigError{
					Key: fmt.Sprintf("categories.%s.%s", cat, sub),
					Err: fmt.Errorf(`missing "any" pattern list`),
				}
			}
			sc := Subcategory{Name: sub}
			for _, pat := range rule.Any {
				re, err := regexp.Compile("(?i)" + pat)
				if err != nil {
					return Compiled{}, &ConfigError{
						Key: fmt.Sprintf("categories.%s.%s", cat, sub),
						Err: fmt.Errorf("pattern %q: %w", pat, err),
					}
				}
				sc.Patterns = append(sc.Patterns, re)
			}
			out.Subcategories = append(out.Subcategories, sc)
		}
		c.Categories = append(c.Categories, out)
	}
	return c, nil
}

func buildScoring(raw rawScoring) (Scoring, error) {
	s := Scoring{
		PerHitPoints: raw.PerHitPoints,
		CapPerFile:   raw.CapPerFile,
	}
	if s.PerHitPoints == 0 {
		s.PerHitPoints = 1
	}
	if s.CapPerFile == 0 {
		s.CapPerFile = 10
	}

	weights, err := decodeKeyedFloats(raw.CategoryWeights, "scoring.category_weights")
	if err != nil {
		return Scoring{}, err
	}
	s.CategoryWeights = weights

	bonuses, err := decodeKeyedFloats(raw.BonusKeywords, "scoring.bonus_keywords")
	if err != nil {
		return Scoring{}, err
	}
	s.BonusKeywords = bonuses
	return s, nil
}

// decodeKeyedFloats accepts either the native mapping form or the legacy
// list-of-"key:value" strings form and normalizes both into one map.
// Malformed legacy entries are skipped; a value that is neither shape is a
// ConfigError.
func decodeKeyedFloats(node yaml.Node, key string) (map[string]float64, error) {
	out := map[string]float64{}
	switch node.Kind {
	case 0: // absent
		return out, nil
	case yaml.MappingNode:
		var m map[string]float64
		if err := node.Decode(&m); err != nil {
			return nil, &ConfigError{Key: key, Err: err}
		}
		return m, nil
	case yaml.SequenceNode:
		var entries []string
		if err := node.Decode(&entries); err != nil {
			return nil, &ConfigError{Key: key, Err: err}
		}
		for _, entry := range entries {
			k, v, ok := strings.Cut(entry, ":")
			if !ok {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				continue
			}
			out[strings.TrimSpace(k)] = f
		}
		return out, nil
	default:
		return nil, &ConfigError{Key: key, Err: fmt.Errorf("expected a mapping or a list, got %s", node.Tag)}
	}
}

func buildFilters(raw rawFileFilters) FileFilters {
	f := FileFilters{
		IncludeExtensions: map[string]struct{}{},
		ExcludeDirs:       map[string]struct{}{},
	}
	for _, ext := range raw.IncludeExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.IncludeExtensions[ext] = struct{}{}
	}
	for _, dir := range raw.ExcludeDirs {
		if dir = strings.TrimSpace(dir); dir != "" {
			f.ExcludeDirs[dir] = struct{}{}
		}
	}
	return f
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
