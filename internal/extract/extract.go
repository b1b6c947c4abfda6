// Package extract mines structure out of free text: file paths, identifier
// tokens, and a causal-language flag. Everything here is a pure function of
// its input; the observations manager calls it before indexing.
package extract

import (
	"regexp"
	"strings"
)

// Extracted is the result of running the extractor over a blob of text.
type Extracted struct {
	Files             []string
	Identifiers       []string
	HasCausalLanguage bool
}

// sourceExtensions are the path suffixes the file-path regex accepts.
// Covers the common programming languages and config formats.
var sourceExtensions = []string{
	"go", "ts", "tsx", "js", "jsx", "mjs", "cjs", "py", "rs", "java", "kt",
	"c", "h", "cpp", "hpp", "cs", "rb", "php", "swift", "scala", "sh",
	"sql", "json", "yaml", "yml", "toml", "md", "css", "scss", "html", "vue",
}

var (
	pathPattern      = regexp.MustCompile(`[\w.\-]+(?:/[\w.\-]+)+\.(` + strings.Join(sourceExtensions, "|") + `)\b`)
	camelCasePattern = regexp.MustCompile(`\b[a-z]+[A-Z][A-Za-z0-9]*\b`)
	snakeCasePattern = regexp.MustCompile(`\b[a-z0-9]+(?:_[a-z0-9]+)+\b`)
	identifierMinLen = 3
)

// causalMarkers flag text that explains why something is the way it is.
// Such observations are immune from retention archival.
var causalMarkers = []string{
	"because", "so that", "therefore", "in order to", "due to",
	"the reason", "which is why", "caused by",
	"因为", "所以", "因此", "由于", "为了",
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "this": true, "that": true,
	"with": true, "from": true, "into": true, "when": true, "then": true,
	"not": true, "are": true, "was": true, "were": true, "has": true,
	"have": true, "had": true, "can": true, "will": true, "would": true,
	"should": true, "could": true, "does": true, "did": true, "its": true,
	"also": true, "only": true, "all": true, "but": true, "use": true,
	"used": true, "using": true, "new": true, "one": true, "two": true,
	"via": true, "per": true, "now": true, "out": true, "set": true, "get": true,
}

// Analyze runs all extraction rules over text.
func Analyze(text string) Extracted {
	return Extracted{
		Files:             Files(text),
		Identifiers:       Identifiers(text),
		HasCausalLanguage: HasCausalLanguage(text),
	}
}

// Files returns path-like tokens: at least one path separator plus a
// recognized source extension, deduplicated in first-seen order.
func Files(text string) []string {
	matches := pathPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var files []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			files = append(files, m)
		}
	}
	return files
}

// Identifiers returns camelCase and snake_case tokens of length >= 3 that
// are not stop-words, deduplicated in first-seen order.
func Identifiers(text string) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(tok string) {
		if len(tok) < identifierMinLen || stopWords[strings.ToLower(tok)] {
			return
		}
		if !seen[tok] {
			seen[tok] = true
			ids = append(ids, tok)
		}
	}
	for _, m := range camelCasePattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range snakeCasePattern.FindAllString(text, -1) {
		add(m)
	}
	return ids
}

// HasCausalLanguage reports whether text contains any causal marker.
func HasCausalLanguage(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range causalMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// EnrichConcepts merges user-supplied concepts with extracted identifiers,
// deduplicated by exact equality, user concepts first.
func EnrichConcepts(userConcepts, extracted []string) []string {
	seen := make(map[string]bool, len(userConcepts)+len(extracted))
	out := make([]string, 0, len(userConcepts)+len(extracted))
	for _, c := range userConcepts {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range extracted {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// EnrichFiles appends extracted files not already present under
// case-insensitive comparison, preserving the user's order and casing.
func EnrichFiles(userFiles, extractedFiles []string) []string {
	seen := make(map[string]bool, len(userFiles))
	out := make([]string, 0, len(userFiles)+len(extractedFiles))
	for _, f := range userFiles {
		key := strings.ToLower(f)
		if f != "" && !seen[key] {
			seen[key] = true
			out = append(out, f)
		}
	}
	for _, f := range extractedFiles {
		key := strings.ToLower(f)
		if f != "" && !seen[key] {
			seen[key] = true
			out = append(out, f)
		}
	}
	return out
}
