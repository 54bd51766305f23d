// Package search answers full-text queries over analysis history.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pdbstat/internal/keyword"
	"github.com/hyperjump/pdbstat/internal/models"
	"github.com/hyperjump/pdbstat/internal/ranking"
	"github.com/hyperjump/pdbstat/internal/storage"
)

// DefaultCandidates is how many keyword hits are considered before kind
// filtering and pagination.
const DefaultCandidates = 200

// Engine searches the keyword index and resolves hits to stored records.
type Engine struct {
	storage      storage.Storage
	keywordIndex keyword.KeywordIndex
	ranker       *ranking.Ranker
	candidates   int
	logger       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for stale index entries.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRanker replaces the default ranker. A nil ranker keeps keyword order.
func WithRanker(r *ranking.Ranker) Option {
	return func(e *Engine) { e.ranker = r }
}

// WithCandidates overrides DefaultCandidates.
func WithCandidates(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.candidates = n
		}
	}
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(store storage.Storage, keywordIndex keyword.KeywordIndex, opts ...Option) *Engine {
	e := &Engine{
		storage:      store,
		keywordIndex: keywordIndex,
		ranker:       ranking.NewRanker(nil),
		candidates:   DefaultCandidates,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs query against the keyword index and returns the matching
// records, best first. Keyword hits are re-ranked so records the query
// names directly come first. Scores are normalised to [0,1]. Index entries whose
// record no longer exists are skipped.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessQuery(query); err != nil {
		return nil, err
	}

	var opts *keyword.SearchOptions
	if query.Fuzzy {
		opts = &keyword.SearchOptions{FuzzyEnabled: true, Fuzziness: 1}
	}
	hits, err := e.keywordIndex.Search(ctx, query.Query, e.candidates, opts)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	scores := NormalizeKeywordScores(hits)

	matched := make([]*models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		rec, err := e.storage.GetRecord(ctx, hit.ID)
		if errors.Is(err, storage.ErrNotFound) {
			e.logger.Debug("Skipping stale index entry", zap.String("id", hit.ID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load record %s: %w", hit.ID, err)
		}
		if query.Kind != "" && rec.Kind != query.Kind {
			continue
		}
		matched = append(matched, &models.SearchResult{Record: rec, Score: scores[hit.ID]})
	}

	if e.ranker != nil {
		e.ranker.Rank(query.Query, matched)
	}

	start := query.Offset
	end := query.Offset + query.Limit
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[start:end]
	for i, r := range page {
		r.Rank = start + i + 1
	}

	return &models.SearchResponse{
		Results:   page,
		Total:     uint64(len(matched)),
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     query.Query,
	}, nil
}
