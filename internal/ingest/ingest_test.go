package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/pdbstat/internal/config"
	"github.com/hyperjump/pdbstat/internal/core"
	"github.com/hyperjump/pdbstat/internal/fileid"
	"github.com/hyperjump/pdbstat/internal/keyword"
	"github.com/hyperjump/pdbstat/internal/models"
	"github.com/hyperjump/pdbstat/internal/storage"
	"github.com/hyperjump/pdbstat/internal/structure"
	"github.com/hyperjump/pdbstat/internal/testutil"
)

func testIngester(t *testing.T, dir string) (*Ingester, storage.Storage, keyword.KeywordIndex) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kwIndex.Close() })
	engine := core.NewEngine(config.UploadConfig{
		AllowedExtensions: []string{".pdb"},
		MaxFileSize:       1 << 20,
		ScratchDir:        filepath.Join(dir, "scratch"),
	})
	return New(engine, store, kwIndex), store, kwIndex
}

func alanine() []byte {
	return testutil.NewPDB("1ALA").Residue("ALA", "A", 1, 0, "N", "CA", "C").Bytes()
}

func mustAbs(path string) string {
	a, err := filepath.Abs(path)
	if err != nil {
		panic(err)
	}
	return a
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
}

func TestIngestUpload(t *testing.T) {
	dir := t.TempDir()
	in, store, kw := testIngester(t, dir)
	ctx := context.Background()

	rec, err := in.IngestUpload(ctx, alanine(), "1ala.pdb")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" || fileid.IsFileRecord(rec.ID) {
		t.Errorf("upload ID = %q, want a generated ID", rec.ID)
	}
	if rec.StructureID != "1ala" || rec.Summary.AtomCount != 3 {
		t.Errorf("unexpected record: id=%q atoms=%d", rec.StructureID, rec.Summary.AtomCount)
	}
	if rec.ContentHash != fileid.ContentHash(alanine()) {
		t.Errorf("content hash mismatch")
	}

	got, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary == nil || got.Summary.ResidueCount != 1 {
		t.Errorf("stored summary: %+v", got.Summary)
	}
	hits, err := kw.Search(ctx, "1ala", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != rec.ID {
		t.Errorf("keyword hits = %+v, want %s", hits, rec.ID)
	}
}

func TestIngestUpload_parseFailureStoresNothing(t *testing.T) {
	dir := t.TempDir()
	in, store, _ := testIngester(t, dir)
	ctx := context.Background()

	_, err := in.IngestUpload(ctx, []byte("not a structure\n"), "bad.pdb")
	var pe *structure.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *structure.ParseError, got %v", err)
	}
	if n, _ := store.CountRecords(ctx); n != 0 {
		t.Errorf("CountRecords = %d, want 0", n)
	}
}

func TestIngestComparison(t *testing.T) {
	dir := t.TempDir()
	in, store, _ := testIngester(t, dir)
	ctx := context.Background()

	other := testutil.NewPDB("").Residue("GLY", "B", 1, 0, "N", "CA").Bytes()
	rec, err := in.IngestComparison(ctx, alanine(), "1ala.pdb", other, "2gly.pdb")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Kind != models.KindComparison || rec.Name != "1ala.pdb vs 2gly.pdb" {
		t.Errorf("unexpected record: kind=%s name=%q", rec.Kind, rec.Name)
	}
	got, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Comparison == nil || got.Comparison.AtomCountDiff != 1 {
		t.Errorf("stored comparison: %+v", got.Comparison)
	}
}

func TestIngestFile_createAndUpdate(t *testing.T) {
	dir := t.TempDir()
	in, store, _ := testIngester(t, dir)
	ctx := context.Background()

	fPath := filepath.Join(dir, "inbox", "1ala.pdb")
	writeFile(t, fPath, alanine())
	if err := in.IngestFile(ctx, fPath); err != nil {
		t.Fatal(err)
	}
	id := fileid.RecordID(mustAbs(fPath))
	rec, err := store.GetRecord(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name != "1ala.pdb" || rec.SourcePath != mustAbs(fPath) || rec.Summary.AtomCount != 3 {
		t.Errorf("unexpected record: name=%q path=%q atoms=%d", rec.Name, rec.SourcePath, rec.Summary.AtomCount)
	}

	bigger := testutil.NewPDB("1ALA").Residue("ALA", "A", 1, 0, "N", "CA", "C", "O", "CB").Bytes()
	writeFile(t, fPath, bigger)
	if err := in.IngestFile(ctx, fPath); err != nil {
		t.Fatal(err)
	}
	rec2, err := store.GetRecord(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if rec2.Summary.AtomCount != 5 {
		t.Errorf("after update: atoms=%d, want 5", rec2.Summary.AtomCount)
	}
	if !rec2.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", rec.CreatedAt, rec2.CreatedAt)
	}
	if n, _ := store.CountRecords(ctx); n != 1 {
		t.Errorf("CountRecords = %d, want 1", n)
	}
}

func TestIngestFile_skipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	in, store, _ := testIngester(t, dir)
	ctx := context.Background()

	fPath := filepath.Join(dir, "1ala.pdb")
	writeFile(t, fPath, alanine())
	if err := in.IngestFile(ctx, fPath); err != nil {
		t.Fatal(err)
	}
	id := fileid.RecordID(mustAbs(fPath))
	first, err := store.GetRecord(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if err := in.IngestFile(ctx, fPath); err != nil {
		t.Fatal(err)
	}
	second, err := store.GetRecord(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Error("unchanged file should not be re-analysed")
	}
}

func TestIngestFile_extensionRejected(t *testing.T) {
	dir := t.TempDir()
	in, _, _ := testIngester(t, dir)

	fPath := filepath.Join(dir, "notes.txt")
	writeFile(t, fPath, alanine())
	err := in.IngestFile(context.Background(), fPath)
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Reason != core.ReasonExtension {
		t.Fatalf("expected extension rejection, got %v", err)
	}
	if !Rejected(err) {
		t.Error("Rejected should report gate failures")
	}
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	in, store, _ := testIngester(t, dir)
	ctx := context.Background()

	inbox := filepath.Join(dir, "inbox")
	writeFile(t, filepath.Join(inbox, "1ala.pdb"), alanine())
	writeFile(t, filepath.Join(inbox, "README.txt"), []byte("ignored"))
	writeFile(t, filepath.Join(inbox, "broken.pdb"), []byte("garbage\n"))
	writeFile(t, filepath.Join(inbox, "nested", "2ala.pdb"), alanine())

	n, err := in.IngestDirectory(ctx, inbox, false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("non-recursive ingested %d, want 1", n)
	}

	n, err = in.IngestDirectory(ctx, inbox, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("recursive ingested %d, want 2", n)
	}
	if count, _ := store.CountRecords(ctx); count != 2 {
		t.Errorf("CountRecords = %d, want 2", count)
	}
}

func TestIngestDirectory_notADirectory(t *testing.T) {
	dir := t.TempDir()
	in, _, _ := testIngester(t, dir)
	fPath := filepath.Join(dir, "1ala.pdb")
	writeFile(t, fPath, alanine())
	if _, err := in.IngestDirectory(context.Background(), fPath, true); err == nil {
		t.Error("expected error for a file path")
	}
}

func TestDeleteRecordAndRemoveFile(t *testing.T) {
	dir := t.TempDir()
	in, store, kw := testIngester(t, dir)
	ctx := context.Background()

	fPath := filepath.Join(dir, "1ala.pdb")
	writeFile(t, fPath, alanine())
	if err := in.IngestFile(ctx, fPath); err != nil {
		t.Fatal(err)
	}
	if err := in.RemoveFile(ctx, fPath); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetRecord(ctx, fileid.RecordID(mustAbs(fPath))); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("record should be deleted, got %v", err)
	}
	if count, _ := kw.DocCount(); count != 0 {
		t.Errorf("DocCount = %d, want 0", count)
	}
	// Removing a file that was never ingested is not an error.
	if err := in.RemoveFile(ctx, fPath); err != nil {
		t.Errorf("RemoveFile again: %v", err)
	}
	if err := in.DeleteRecord(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteRecord(missing) = %v, want ErrNotFound", err)
	}
}

type failingIndex struct {
	keyword.KeywordIndex
}

func (failingIndex) Index(context.Context, *models.AnalysisRecord) error {
	return errors.New("index unavailable")
}

func TestIngest_indexFailureLeavesNoRecord(t *testing.T) {
	dir := t.TempDir()
	base, store, kw := testIngester(t, dir)
	in := New(base.engine, store, failingIndex{kw})
	ctx := context.Background()

	if _, err := in.IngestUpload(ctx, alanine(), "1ala.pdb"); err == nil {
		t.Fatal("expected upload to fail when indexing fails")
	}
	if _, err := in.IngestComparison(ctx, alanine(), "a.pdb", alanine(), "b.pdb"); err == nil {
		t.Fatal("expected comparison to fail when indexing fails")
	}
	path := filepath.Join(dir, "inbox", "1ala.pdb")
	writeFile(t, path, alanine())
	if err := in.IngestFile(ctx, path); err == nil {
		t.Fatal("expected file ingest to fail when indexing fails")
	}

	n, err := store.CountRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("records = %d, want 0 after index failures", n)
	}
}
