package ranking

import (
	"path/filepath"
	"strings"
	"unicode"
)

// AnalyzedQuery is a search query split into matching tokens.
type AnalyzedQuery struct {
	Original string
	// Normalized is the lowercased, trimmed query.
	Normalized string
	Terms      []string
}

// AnalyzeQuery lowercases query and splits it into unique terms on anything
// that is not a letter or digit.
func AnalyzeQuery(query string) *AnalyzedQuery {
	return &AnalyzedQuery{
		Original:   query,
		Normalized: strings.ToLower(strings.TrimSpace(query)),
		Terms:      Tokenize(query),
	}
}

// Tokenize splits s into unique lowercase letter/digit runs, in order.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// NormalizeName lowercases a file name and strips its directory, a trailing
// .gz and the remaining extension: "/data/1ABC.pdb.gz" becomes "1abc".
func NormalizeName(name string) string {
	base := strings.ToLower(filepath.Base(strings.TrimSpace(name)))
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, filepath.Ext(base))
}
