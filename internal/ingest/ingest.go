// Package ingest analyses structure files and records the results in
// analysis history: the SQLite store and the keyword index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/pdbstat/internal/core"
	"github.com/hyperjump/pdbstat/internal/fileid"
	"github.com/hyperjump/pdbstat/internal/keyword"
	"github.com/hyperjump/pdbstat/internal/models"
	"github.com/hyperjump/pdbstat/internal/storage"
	"github.com/hyperjump/pdbstat/internal/structure"
)

const (
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
)

// Ingester runs the engine over uploads and files on disk and persists each
// result as an AnalysisRecord.
type Ingester struct {
	engine       *core.Engine
	storage      storage.Storage
	keywordIndex keyword.KeywordIndex
	logger       *zap.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a logger for debug output (file ingested, record deleted, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// New creates an ingester with the given dependencies.
func New(engine *core.Engine, store storage.Storage, keywordIndex keyword.KeywordIndex, opts ...Option) *Ingester {
	in := &Ingester{
		engine:       engine,
		storage:      store,
		keywordIndex: keywordIndex,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// IngestUpload analyses an uploaded file and records it under a fresh ID.
// The caller is expected to have validated the upload.
func (in *Ingester) IngestUpload(ctx context.Context, data []byte, name string) (*models.AnalysisRecord, error) {
	sum, err := in.engine.Analyze(data, name)
	if err != nil {
		return nil, err
	}
	rec := &models.AnalysisRecord{
		ID:          uuid.NewString(),
		Kind:        models.KindAnalysis,
		Name:        name,
		StructureID: sum.StructureID,
		ContentHash: fileid.ContentHash(data),
		Size:        int64(len(data)),
		Summary:     sum,
	}
	if err := in.create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// IngestComparison compares two uploads and records the comparison.
func (in *Ingester) IngestComparison(ctx context.Context, data1 []byte, name1 string, data2 []byte, name2 string) (*models.AnalysisRecord, error) {
	cmp, err := in.engine.Compare(data1, name1, data2, name2)
	if err != nil {
		return nil, err
	}
	rec := &models.AnalysisRecord{
		ID:          uuid.NewString(),
		Kind:        models.KindComparison,
		Name:        name1 + " vs " + name2,
		StructureID: cmp.Structure1 + "/" + cmp.Structure2,
		ContentHash: fileid.ContentHash(append(append([]byte{}, data1...), data2...)),
		Size:        int64(len(data1) + len(data2)),
		Comparison:  cmp,
	}
	if err := in.create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (in *Ingester) create(ctx context.Context, rec *models.AnalysisRecord) error {
	if err := in.storage.CreateRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	if err := in.keywordIndex.Index(ctx, rec); err != nil {
		in.discard(ctx, rec.ID)
		return fmt.Errorf("failed to index record: %w", err)
	}
	in.logger.Debug("Recorded analysis",
		zap.String("id", rec.ID),
		zap.String("kind", string(rec.Kind)),
		zap.String("name", rec.Name))
	return nil
}

// discard removes a record that was stored but could not be indexed.
func (in *Ingester) discard(ctx context.Context, id string) {
	if err := in.storage.DeleteRecord(ctx, id); err != nil {
		in.logger.Warn("Failed to remove unindexed record", zap.String("id", id), zap.Error(err))
	}
}

// IngestFile analyses the structure file at path and records it. The record
// ID is derived from the absolute path so re-ingesting replaces the previous
// analysis. The file must pass the engine's extension and size gates.
// Unchanged files (same mtime and size as the stored record) are skipped.
func (in *Ingester) IngestFile(ctx context.Context, path string) error {
	in.logger.Debug("Ingesting file", zap.String("path", path))
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", absPath)
	}
	if err := in.engine.CheckFile(absPath, info.Size()); err != nil {
		return err
	}

	id := fileid.RecordID(absPath)
	existing, err := in.storage.GetRecord(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load record: %w", err)
	}
	if existing != nil && unchanged(existing, info) {
		// Ensure the record is in the keyword index (repopulates if Bleve was opened empty).
		_ = in.keywordIndex.Index(ctx, existing)
		in.logger.Debug("Skipping unchanged file", zap.String("path", absPath))
		return nil
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	sum, err := in.engine.AnalyzeFile(absPath)
	if err != nil {
		return err
	}
	rec := &models.AnalysisRecord{
		ID:          id,
		Kind:        models.KindAnalysis,
		Name:        filepath.Base(absPath),
		SourcePath:  absPath,
		StructureID: sum.StructureID,
		ContentHash: fileid.ContentHash(data),
		Size:        info.Size(),
		Summary:     sum,
		// Values are stored as strings to avoid JSON float64 precision loss (UnixNano exceeds 53 bits).
		Metadata: map[string]interface{}{
			metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
			metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
		},
	}
	if existing != nil {
		err = in.storage.UpdateRecord(ctx, rec)
	} else {
		err = in.storage.CreateRecord(ctx, rec)
	}
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	if err := in.keywordIndex.Index(ctx, rec); err != nil {
		// An updated record keeps its previous index entry under the same ID.
		if existing == nil {
			in.discard(ctx, id)
		}
		return fmt.Errorf("failed to index record: %w", err)
	}
	in.logger.Debug("File ingested",
		zap.String("path", absPath),
		zap.String("id", id),
		zap.Int("atoms", sum.AtomCount))
	return nil
}

func unchanged(rec *models.AnalysisRecord, info os.FileInfo) bool {
	return metadataInt64(rec.Metadata, metaKeySourceMtime) == info.ModTime().UnixNano() &&
		metadataInt64(rec.Metadata, metaKeySourceSize) == info.Size()
}

func metadataInt64(m map[string]interface{}, key string) int64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case string:
		x, _ := strconv.ParseInt(n, 10, 64)
		return x
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// IngestDirectory walks dir (recursively when recursive is true) and ingests
// every regular file the engine's extension gate accepts. Files the engine
// rejects, by the size gate or the PDB reader, are logged and skipped; other
// errors stop the walk. It returns the number of files ingested.
func (in *Ingester) IngestDirectory(ctx context.Context, dir string, recursive bool) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !in.engine.ExtensionAllowed(path) {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// Resolve symlinks so we only ingest regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if ingestErr := in.IngestFile(ctx, path); ingestErr != nil {
			if Rejected(ingestErr) {
				in.logger.Warn("Skipping rejected file", zap.String("path", path), zap.Error(ingestErr))
				return nil
			}
			return ingestErr
		}
		n++
		return nil
	})
	return n, err
}

// Rejected reports whether err means the file itself was refused, by the
// upload gates or the PDB reader, as opposed to an I/O or storage failure.
func Rejected(err error) bool {
	var ve *core.ValidationError
	var pe *structure.ParseError
	return errors.As(err, &ve) || errors.As(err, &pe)
}

// DeleteRecord removes a record from the keyword index and storage. It
// returns an error wrapping storage.ErrNotFound when no record has id.
func (in *Ingester) DeleteRecord(ctx context.Context, id string) error {
	in.logger.Debug("Deleting record", zap.String("id", id))
	if err := in.keywordIndex.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	if err := in.storage.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// RemoveFile deletes the record ingested from path, if any.
func (in *Ingester) RemoveFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	err = in.DeleteRecord(ctx, fileid.RecordID(absPath))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
