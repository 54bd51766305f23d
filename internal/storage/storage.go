// Package storage defines the persistence interface for analysis history.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/pdbstat/internal/models"
)

// ErrNotFound is returned when no record has the requested ID.
var ErrNotFound = errors.New("record not found")

// Storage defines analysis record persistence operations.
type Storage interface {
	CreateRecord(ctx context.Context, rec *models.AnalysisRecord) error
	GetRecord(ctx context.Context, id string) (*models.AnalysisRecord, error)
	UpdateRecord(ctx context.Context, rec *models.AnalysisRecord) error
	DeleteRecord(ctx context.Context, id string) error
	// ListRecords returns records newest first.
	ListRecords(ctx context.Context, offset, limit int) ([]*models.AnalysisRecord, error)
	CountRecords(ctx context.Context) (int64, error)

	Close() error
}
