package models

import "fmt"

// SearchQuery is a full-text query over analysis history.
type SearchQuery struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
	// Fuzzy tolerates one-character typos in each query term.
	Fuzzy bool `json:"fuzzy,omitempty"`
	// Kind restricts results to analyses or comparisons when set.
	Kind RecordKind `json:"kind,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error if the query is empty; otherwise clamps limit to [1, 100].
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	switch q.Kind {
	case "", KindAnalysis, KindComparison:
	default:
		return fmt.Errorf("unknown record kind %q", q.Kind)
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return nil
}

// SearchResult is a single search hit.
type SearchResult struct {
	Record *AnalysisRecord `json:"record"`
	Score  float64         `json:"score"`
	Rank   int             `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     uint64          `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}
