package search

import (
	"strings"

	"github.com/hyperjump/pdbstat/internal/models"
)

// ProcessQuery trims the query text, validates it and applies defaults.
func ProcessQuery(query *models.SearchQuery) error {
	query.Query = strings.TrimSpace(query.Query)
	return query.Validate()
}
