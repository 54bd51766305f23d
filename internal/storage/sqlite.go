package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/pdbstat/internal/analysis"
	"github.com/hyperjump/pdbstat/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		source_path TEXT,
		structure_id TEXT,
		content_hash TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
	CREATE INDEX IF NOT EXISTS idx_analyses_source_path ON analyses(source_path);
	`
	_, err := db.Exec(schema)
	return err
}

const recordColumns = `id, kind, name, source_path, structure_id, content_hash, size, payload, metadata, created_at, updated_at`

// CreateRecord inserts a record. CreatedAt and UpdatedAt are set to now.
func (s *SQLiteStorage) CreateRecord(ctx context.Context, rec *models.AnalysisRecord) error {
	payload, metadata, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.Name, rec.SourcePath, rec.StructureID, rec.ContentHash, rec.Size,
		payload, metadata, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
	}
	return nil
}

// GetRecord returns a record by ID.
func (s *SQLiteStorage) GetRecord(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM analyses WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateRecord replaces an existing record's contents.
func (s *SQLiteStorage) UpdateRecord(ctx context.Context, rec *models.AnalysisRecord) error {
	payload, metadata, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	rec.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET kind = ?, name = ?, source_path = ?, structure_id = ?, content_hash = ?,
		 size = ?, payload = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		string(rec.Kind), rec.Name, rec.SourcePath, rec.StructureID, rec.ContentHash,
		rec.Size, payload, metadata, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	return nil
}

// DeleteRecord removes a record by ID.
func (s *SQLiteStorage) DeleteRecord(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListRecords returns records with offset and limit, newest first.
func (s *SQLiteStorage) ListRecords(ctx context.Context, offset, limit int) ([]*models.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM analyses ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CountRecords returns the total number of records.
func (s *SQLiteStorage) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.AnalysisRecord, error) {
	var (
		rec                               models.AnalysisRecord
		kind, payload                     string
		sourcePath, structureID, hash, md sql.NullString
	)
	err := row.Scan(&rec.ID, &kind, &rec.Name, &sourcePath, &structureID, &hash, &rec.Size,
		&payload, &md, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Kind = models.RecordKind(kind)
	rec.SourcePath = sourcePath.String
	rec.StructureID = structureID.String
	rec.ContentHash = hash.String

	switch rec.Kind {
	case models.KindComparison:
		rec.Comparison = &analysis.Comparison{}
		err = json.Unmarshal([]byte(payload), rec.Comparison)
	default:
		rec.Summary = &analysis.Summary{}
		err = json.Unmarshal([]byte(payload), rec.Summary)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload of %s: %w", rec.ID, err)
	}
	if md.String != "" {
		if err := json.Unmarshal([]byte(md.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &rec, nil
}

func encodeRecord(rec *models.AnalysisRecord) (payload, metadata string, err error) {
	if rec.Kind == "" {
		rec.Kind = models.KindAnalysis
	}
	body := rec.Payload()
	if body == nil {
		return "", "", fmt.Errorf("record %s has no %s payload", rec.ID, rec.Kind)
	}
	p, err := json.Marshal(body)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	m, err := json.Marshal(rec.Metadata)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(p), string(m), nil
}
