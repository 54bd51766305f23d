package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/pdbstat/internal/models"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMeasureUsage_splitsDatabaseAndIndex(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "db", "analyses.db")
	writeFile(t, db, 100)
	writeFile(t, db+"-wal", 20)
	writeFile(t, db+"-shm", 3)
	writeFile(t, filepath.Join(dir, "db", "unrelated.txt"), 1000)

	index := filepath.Join(dir, "indices", "bleve")
	writeFile(t, filepath.Join(index, "index_meta.json"), 7)
	writeFile(t, filepath.Join(index, "store", "root.bolt"), 50)

	u, err := MeasureUsage(db, index)
	if err != nil {
		t.Fatal(err)
	}
	if u.DatabaseBytes != 123 {
		t.Errorf("database bytes = %d, want 123", u.DatabaseBytes)
	}
	if u.IndexBytes != 57 {
		t.Errorf("index bytes = %d, want 57", u.IndexBytes)
	}
	if u.Total() != 180 {
		t.Errorf("total = %d, want 180", u.Total())
	}
}

func TestMeasureUsage_missingPathsCountZero(t *testing.T) {
	dir := t.TempDir()
	u, err := MeasureUsage(filepath.Join(dir, "none.db"), filepath.Join(dir, "no-index"))
	if err != nil {
		t.Fatal(err)
	}
	if u != (Usage{}) {
		t.Errorf("usage = %+v, want zero", u)
	}

	u, err = MeasureUsage("", "")
	if err != nil || u != (Usage{}) {
		t.Errorf("empty paths: %+v, %v", u, err)
	}
}

func TestMeasureUsage_liveDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyses.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	rec := &models.AnalysisRecord{ID: "u1", Kind: models.KindAnalysis, StructureID: "1abc", Summary: sampleSummary("1abc")}
	if err := store.CreateRecord(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	u, err := MeasureUsage(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if u.DatabaseBytes == 0 {
		t.Error("expected a non-empty database")
	}
	if u.IndexBytes != 0 {
		t.Errorf("index bytes = %d, want 0", u.IndexBytes)
	}
}
