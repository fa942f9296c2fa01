// Package category derives a coarse category tag for an observation (C3).
package category

import (
	"regexp"
	"strings"
)

// Input bundles the fields the categorizer scores (spec §4.3).
type Input struct {
	Type          string
	Title         string
	Text          string
	Narrative     string
	Concepts      []string
	FilesModified []string
	FilesRead     []string
}

type rule struct {
	category     string
	weight       float64
	keywords     []string
	types        map[string]bool
	filePatterns []*regexp.Regexp
}

// rules is the fixed, ordered table of seven categorization rules (spec
// §4.3). Order matters only for determinism on ties; the highest score
// wins regardless of position.
var rules = []rule{
	{
		category: "security",
		weight:   10,
		keywords: []string{"security", "vulnerability", "cve", "exploit", "injection", "xss", "csrf", "auth", "credential", "secret"},
		types:    map[string]bool{"constraint": true},
		filePatterns: compilePatterns(`(?i)auth`, `(?i)security`),
	},
	{
		category: "testing",
		weight:   8,
		keywords: []string{"test", "testing", "coverage", "assertion", "mock", "fixture", "regression"},
		types:    map[string]bool{},
		filePatterns: compilePatterns(`(?i)_test\.`, `(?i)/tests?/`),
	},
	{
		category: "debugging",
		weight:   8,
		keywords: []string{"bug", "debug", "crash", "panic", "traceback", "stack trace", "repro", "root cause"},
		types:    map[string]bool{"rejected": true},
		filePatterns: nil,
	},
	{
		category: "architecture",
		weight:   7,
		keywords: []string{"architecture", "design", "module", "boundary", "interface", "dependency", "layering"},
		types:    map[string]bool{"decision": true, "constraint": true},
		filePatterns: nil,
	},
	{
		category: "refactoring",
		weight:   6,
		keywords: []string{"refactor", "cleanup", "rename", "extract", "simplify", "dedupe"},
		types:    map[string]bool{"heuristic": true},
		filePatterns: nil,
	},
	{
		category: "config",
		weight:   5,
		keywords: []string{"config", "configuration", "setting", "env var", "environment variable", "flag"},
		types:    map[string]bool{},
		filePatterns: compilePatterns(`(?i)\.ya?ml$`, `(?i)\.toml$`, `(?i)\.env`, `(?i)config`),
	},
	{
		category: "docs",
		weight:   5,
		keywords: []string{"documentation", "docs", "readme", "comment", "changelog"},
		types:    map[string]bool{},
		filePatterns: compilePatterns(`(?i)\.md$`, `(?i)readme`),
	},
	{
		category: "feature-dev",
		weight:   3,
		keywords: []string{"feature", "implement", "add support", "new endpoint"},
		types:    map[string]bool{"decision": true},
		filePatterns: nil,
	},
}

func compilePatterns(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// Categorize runs the fixed weighted rule table over in and returns the
// winning category, or "general" if every rule scores zero (spec §4.3).
// Deterministic: identical input produces identical output.
func Categorize(in Input) string {
	text := strings.ToLower(strings.Join([]string{in.Title, in.Text, in.Narrative, strings.Join(in.Concepts, " ")}, " "))
	files := strings.Join(append(append([]string{}, in.FilesModified...), in.FilesRead...), " ")

	best := "general"
	bestScore := 0.0

	for _, r := range rules {
		score := 0.0
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				score += r.weight
			}
		}
		if r.types[strings.ToLower(in.Type)] {
			score += 2 * r.weight
		}
		for _, fp := range r.filePatterns {
			if fp.MatchString(files) {
				score += r.weight
			}
		}
		if score > bestScore {
			bestScore = score
			best = r.category
		}
	}

	return best
}
