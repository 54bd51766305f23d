package ranking

import (
	"strings"

	"github.com/hyperjump/pdbstat/internal/models"
)

// IdentifierScorer scores how well a query names a record: its structure
// ids and file names.
type IdentifierScorer struct {
	config *RankingConfig
}

// NewIdentifierScorer creates a new IdentifierScorer with the given config.
func NewIdentifierScorer(config *RankingConfig) *IdentifierScorer {
	return &IdentifierScorer{config: config}
}

// Score returns a value in [0,1]. An exact structure id wins over an exact
// file name, which wins over term matches.
func (s *IdentifierScorer) Score(q *AnalyzedQuery, rec *models.AnalysisRecord) float64 {
	if q == nil || rec == nil || q.Normalized == "" {
		return 0
	}
	ids, names := identifiers(rec)
	for _, id := range ids {
		if id == q.Normalized {
			return s.config.ExactIDScore
		}
	}
	for _, name := range names {
		if name == q.Normalized {
			return s.config.ExactNameScore
		}
	}
	if len(q.Terms) == 0 {
		return 0
	}

	tokens := make(map[string]bool)
	for _, v := range append(ids, names...) {
		for _, t := range Tokenize(v) {
			tokens[t] = true
		}
	}
	score := 0.0
	per := 1 / float64(len(q.Terms))
	for _, term := range q.Terms {
		switch {
		case tokens[term]:
			score += s.config.AllTermsScore * per
		case hasPrefix(tokens, term):
			score += s.config.PrefixMatchScore * per
		}
	}
	return score
}

// identifiers returns the record's lowercased structure ids and normalized
// file names. A comparison contributes both of each.
func identifiers(rec *models.AnalysisRecord) (ids, names []string) {
	add := func(dst []string, v string) []string {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			return append(dst, v)
		}
		return dst
	}
	if rec.Kind == models.KindComparison {
		if rec.Comparison != nil {
			ids = add(ids, rec.Comparison.Structure1)
			ids = add(ids, rec.Comparison.Structure2)
		}
		for _, part := range strings.Split(rec.StructureID, "/") {
			ids = add(ids, part)
		}
		for _, part := range strings.Split(rec.Name, " vs ") {
			names = add(names, NormalizeName(part))
		}
		return ids, names
	}
	ids = add(ids, rec.StructureID)
	if rec.Summary != nil {
		ids = add(ids, rec.Summary.StructureID)
	}
	names = add(names, NormalizeName(rec.Name))
	if rec.SourcePath != "" {
		names = add(names, NormalizeName(rec.SourcePath))
	}
	return ids, names
}

func hasPrefix(tokens map[string]bool, term string) bool {
	for t := range tokens {
		if strings.HasPrefix(t, term) {
			return true
		}
	}
	return false
}
