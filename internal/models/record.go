// Package models defines the records kept in analysis history and the search
// types over them.
package models

import (
	"time"

	"github.com/hyperjump/pdbstat/internal/analysis"
)

// RecordKind distinguishes single-structure analyses from comparisons.
type RecordKind string

const (
	KindAnalysis   RecordKind = "analysis"
	KindComparison RecordKind = "comparison"
)

// AnalysisRecord is one entry of analysis history. Exactly one of Summary
// and Comparison is set, according to Kind.
type AnalysisRecord struct {
	ID   string     `json:"id" db:"id"`
	Kind RecordKind `json:"kind" db:"kind"`
	// Name is the uploaded file name, or both names for a comparison.
	Name string `json:"name" db:"name"`
	// SourcePath is set for records ingested from disk.
	SourcePath  string `json:"source_path,omitempty" db:"source_path"`
	StructureID string `json:"structure_id" db:"structure_id"`
	ContentHash string `json:"content_hash,omitempty" db:"content_hash"`
	Size        int64  `json:"size" db:"size"`

	Summary    *analysis.Summary    `json:"summary,omitempty" db:"-"`
	Comparison *analysis.Comparison `json:"comparison,omitempty" db:"-"`

	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// Payload returns the summary or comparison held by the record, or nil.
func (r *AnalysisRecord) Payload() any {
	switch r.Kind {
	case KindComparison:
		if r.Comparison != nil {
			return r.Comparison
		}
	default:
		if r.Summary != nil {
			return r.Summary
		}
	}
	return nil
}
