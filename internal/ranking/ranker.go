// Package ranking re-ranks history search hits by how directly the query
// names each record.
package ranking

import (
	"sort"
	"time"

	"github.com/hyperjump/pdbstat/internal/models"
)

// Ranker combines the keyword score with identifier matching and recency.
type Ranker struct {
	config     *RankingConfig
	identifier *IdentifierScorer
	recency    *RecencyMultiplier
	now        func() time.Time
}

// NewRanker creates a new Ranker with the given configuration.
func NewRanker(config *RankingConfig) *Ranker {
	if config == nil {
		config = DefaultRankingConfig()
	}
	config.ApplyDefaults()
	return &Ranker{
		config:     config,
		identifier: NewIdentifierScorer(config),
		recency:    NewRecencyMultiplier(config),
		now:        time.Now,
	}
}

// Score calculates the combined score for a record whose keyword score is
// keywordScore.
func (r *Ranker) Score(q *AnalyzedQuery, rec *models.AnalysisRecord, keywordScore float64) float64 {
	score := r.config.KeywordWeight*keywordScore + r.config.IdentifierWeight*r.identifier.Score(q, rec)
	if rec != nil {
		score = r.recency.Multiply(rec.UpdatedAt, r.now(), score)
	}
	return score
}

// Rank rescores results in place, reading each Score as the keyword score,
// and sorts them best first. Equal scores keep their order. Scores are
// normalised so the best is 1.
func (r *Ranker) Rank(query string, results []*models.SearchResult) {
	if len(results) == 0 {
		return
	}
	q := AnalyzeQuery(query)
	maxScore := 0.0
	for _, res := range results {
		res.Score = r.Score(q, res.Record, res.Score)
		if res.Score > maxScore {
			maxScore = res.Score
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if maxScore > 0 {
		for _, res := range results {
			res.Score /= maxScore
		}
	}
}
