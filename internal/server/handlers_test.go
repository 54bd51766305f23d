package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/pdbstat/internal/config"
	"github.com/hyperjump/pdbstat/internal/core"
	"github.com/hyperjump/pdbstat/internal/ingest"
	"github.com/hyperjump/pdbstat/internal/keyword"
	"github.com/hyperjump/pdbstat/internal/metrics"
	"github.com/hyperjump/pdbstat/internal/models"
	"github.com/hyperjump/pdbstat/internal/search"
	"github.com/hyperjump/pdbstat/internal/storage"
	"github.com/hyperjump/pdbstat/internal/testutil"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type testEnv struct {
	srv      *Server
	handler  http.Handler
	store    storage.Storage
	cfg      *config.Config
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Upload.MaxFileSize = 64 << 10
	cfg.Upload.ScratchDir = filepath.Join(dir, "scratch")
	cfg.Storage.DatabasePath = filepath.Join(dir, "db.sqlite")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	kwIdx, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kwIdx.Close() })

	reg := prometheus.NewRegistry()
	engine := core.NewEngine(cfg.Upload, core.WithMetrics(metrics.New(reg)))
	ingester := ingest.New(engine, store, kwIdx)
	searcher := search.NewEngine(store, kwIdx)
	opts = append([]Option{WithKeywordIndex(kwIdx), WithGatherer(reg)}, opts...)
	srv := NewServer(engine, ingester, searcher, store, cfg, zap.NewNop(), opts...)
	return &testEnv{srv: srv, handler: srv.Router(), store: store, cfg: cfg, registry: reg}
}

func (e *testEnv) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

type part struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, target string, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(p.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, target, &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func alanine() []byte {
	return testutil.NewPDB("1ALA").Residue("ALA", "A", 1, 0, "N", "CA", "C").Bytes()
}

func glycine() []byte {
	return testutil.NewPDB("").Residue("GLY", "A", 1, 0, "N", "CA").Residue("GLY", "B", 2, 0, "N", "CA").Bytes()
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHandleValidate(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name       string
		file       string
		data       []byte
		wantStatus int
		wantValid  bool
		wantMsg    string
	}{
		{"valid", "1ala.pdb", alanine(), http.StatusOK, true, core.ValidMessage},
		{"wrong extension", "1ala.cif", alanine(), http.StatusUnprocessableEntity, false, "Invalid file format. Only PDB files (.pdb) are allowed."},
		{"too large", "big.pdb", bytes.Repeat([]byte("A"), 64<<10+10), http.StatusUnprocessableEntity, false, "File size exceeds the maximum allowed size (64 KiB)."},
		{"bad content", "bad.pdb", []byte("hello\n"), http.StatusUnprocessableEntity, false, "Invalid PDB file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(multipartRequest(t, "/api/v1/validate", part{"file", tt.file, tt.data}))
			if w.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d, body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			var out struct {
				Valid   bool   `json:"valid"`
				Message string `json:"message"`
			}
			decode(t, w, &out)
			if out.Valid != tt.wantValid || !strings.HasPrefix(out.Message, tt.wantMsg) {
				t.Errorf("got valid=%v message=%q", out.Valid, out.Message)
			}
		})
	}
}

func TestHandleValidate_missingField(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest(t, "/api/v1/validate", part{"upload", "1ala.pdb", alanine()}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleAnalyze_storesRecord(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest(t, "/api/v1/analyze", part{"file", "1ala.pdb", alanine()}))
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var rec models.AnalysisRecord
	decode(t, w, &rec)
	if rec.Summary == nil || rec.Summary.StructureID != "1ala" || rec.Summary.AtomCount != 3 {
		t.Fatalf("unexpected summary: %+v", rec.Summary)
	}
	if w.Header().Get("X-Analysis-ID") != rec.ID {
		t.Errorf("X-Analysis-ID = %q, want %q", w.Header().Get("X-Analysis-ID"), rec.ID)
	}

	get := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+rec.ID, nil))
	if get.Code != http.StatusOK {
		t.Fatalf("get status: %d", get.Code)
	}

	text := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+rec.ID+"/report", nil))
	if text.Code != http.StatusOK || !strings.Contains(text.Body.String(), "- Structure ID: 1ala") {
		t.Errorf("text report: %d %s", text.Code, text.Body.String())
	}
	if ct := text.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHandleAnalyze_textFormat(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest(t, "/api/v1/analyze?format=text", part{"file", "1ala.pdb", alanine()}))
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "# PDB Structure Analysis Report") {
		t.Errorf("body: %s", w.Body.String())
	}
}

func TestHandleAnalyze_rejected(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest(t, "/api/v1/analyze", part{"file", "notes.txt", alanine()}))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d", w.Code)
	}
	if n, _ := env.store.CountRecords(context.Background()); n != 0 {
		t.Errorf("rejected upload stored %d records", n)
	}
}

func TestHandleAnalyze_unknownFormat(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest(t, "/api/v1/analyze?format=pdf", part{"file", "1ala.pdb", alanine()}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleCompare_workbook(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest(t, "/api/v1/compare?format=xlsx",
		part{"file1", "1ala.pdb", alanine()},
		part{"file2", "2gly.pdb", glycine()},
	))
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "1ala_2gly.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	f, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows("Sets")
	if err != nil {
		t.Fatal(err)
	}
	if rows[1][1] != "A" || rows[3][1] != "B" {
		t.Errorf("chain sets: %v", rows)
	}
}

func TestHandleCompare_secondFileInvalid(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest(t, "/api/v1/compare",
		part{"file1", "1ala.pdb", alanine()},
		part{"file2", "2gly.pdb", []byte("junk\n")},
	))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]string
	decode(t, w, &out)
	if out["file"] != "2gly.pdb" {
		t.Errorf("file: got %q", out["file"])
	}
}

func TestHandleAnalyses_listAndDelete(t *testing.T) {
	env := newTestEnv(t)
	var ids []string
	for _, name := range []string{"1ala.pdb", "3ala.pdb"} {
		w := env.do(multipartRequest(t, "/api/v1/analyze", part{"file", name, alanine()}))
		if w.Code != http.StatusCreated {
			t.Fatalf("analyze %s: %d", name, w.Code)
		}
		ids = append(ids, w.Header().Get("X-Analysis-ID"))
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses?limit=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status: %d", w.Code)
	}
	var page struct {
		Analyses []models.AnalysisRecord `json:"analyses"`
		Total    int64                   `json:"total"`
		Limit    int                     `json:"limit"`
	}
	decode(t, w, &page)
	if page.Total != 2 || len(page.Analyses) != 1 || page.Limit != 1 {
		t.Errorf("page: total=%d len=%d limit=%d", page.Total, len(page.Analyses), page.Limit)
	}

	del := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/analyses/"+ids[0], nil))
	if del.Code != http.StatusOK {
		t.Fatalf("delete status: %d", del.Code)
	}
	again := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/analyses/"+ids[0], nil))
	if again.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", again.Code)
	}
	missing := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+ids[0]+"/report", nil))
	if missing.Code != http.StatusNotFound {
		t.Errorf("report of deleted record: got %d, want 404", missing.Code)
	}

	bad := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses?offset=-1", nil))
	if bad.Code != http.StatusBadRequest {
		t.Errorf("negative offset: got %d", bad.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest(t, "/api/v1/analyze", part{"file", "1ala.pdb", alanine()}))
	if w.Code != http.StatusCreated {
		t.Fatalf("analyze: %d", w.Code)
	}

	get := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=ala", nil))
	if get.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", get.Code, get.Body.String())
	}
	var resp models.SearchResponse
	decode(t, get, &resp)
	if resp.Total != 1 || resp.Results[0].Record.StructureID != "1ala" {
		t.Errorf("search response: %+v", resp)
	}

	body, _ := json.Marshal(map[string]string{"query": "1ala"})
	post := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body)))
	if post.Code != http.StatusOK {
		t.Errorf("POST search status: %d", post.Code)
	}

	empty := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
	if empty.Code != http.StatusBadRequest {
		t.Errorf("empty query: got %d, want 400", empty.Code)
	}
}

func TestHandleStatus_WithDiskUsage(t *testing.T) {
	env := newTestEnv(t, WithWatch(&mockWatchService{dirs: []string{"/srv/inbox"}}, ""))
	if w := env.do(multipartRequest(t, "/api/v1/analyze", part{"file", "1ala.pdb", alanine()})); w.Code != http.StatusCreated {
		t.Fatalf("analyze: %d", w.Code)
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Records        int64  `json:"records"`
		IndexedRecords uint64 `json:"indexed_records"`
		DiskUsageBytes *int64 `json:"disk_usage_bytes"`
		Breakdown      struct {
			DatabaseBytes int64 `json:"database_bytes"`
			IndexBytes    int64 `json:"index_bytes"`
		} `json:"disk_usage_breakdown"`
		WatchDirectories []string `json:"watch_directories"`
		Upload           struct {
			MaxFileSize string `json:"max_file_size"`
		} `json:"upload"`
	}
	decode(t, w, &out)
	if out.Records != 1 || out.IndexedRecords != 1 {
		t.Errorf("records=%d indexed=%d, want 1 and 1", out.Records, out.IndexedRecords)
	}
	if out.DiskUsageBytes == nil || *out.DiskUsageBytes < 1 {
		t.Errorf("disk_usage_bytes: %v", out.DiskUsageBytes)
	}
	if out.Breakdown.DatabaseBytes < 1 || out.Breakdown.IndexBytes < 1 {
		t.Errorf("disk_usage_breakdown: %+v", out.Breakdown)
	} else if out.DiskUsageBytes != nil && *out.DiskUsageBytes != out.Breakdown.DatabaseBytes+out.Breakdown.IndexBytes {
		t.Errorf("disk_usage_bytes %d is not database+index %+v", *out.DiskUsageBytes, out.Breakdown)
	}
	if out.Upload.MaxFileSize != "64 KiB" {
		t.Errorf("max_file_size: %q", out.Upload.MaxFileSize)
	}
	if len(out.WatchDirectories) != 1 {
		t.Errorf("watch_directories: %v", out.WatchDirectories)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil)); w.Code != http.StatusOK {
		t.Errorf("health: %d", w.Code)
	}
	env.do(multipartRequest(t, "/api/v1/validate", part{"file", "1ala.pdb", alanine()}))

	w := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `pdbstat_validations_total{result="ok"} 1`) {
		t.Errorf("metrics body missing validation counter:\n%s", w.Body.String())
	}
}

func TestHandleWatchDirectories(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	mock := &mockWatchService{}
	env := newTestEnv(t, WithWatch(mock, cfgPath))

	body, _ := json.Marshal(map[string]string{"path": dir})
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("add: got %d, body: %s", w.Code, w.Body.String())
	}
	saved, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("config not persisted: %v", err)
	}
	if !strings.Contains(string(saved), dir) {
		t.Errorf("persisted config lacks %s:\n%s", dir, saved)
	}

	list := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil))
	var out struct {
		Directories []string `json:"directories"`
	}
	decode(t, list, &out)
	if len(out.Directories) != 1 {
		t.Errorf("directories: got %v", out.Directories)
	}

	missing, _ := json.Marshal(map[string]string{"path": filepath.Join(dir, "nonexistent")})
	if w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(missing))); w.Code != http.StatusNotFound {
		t.Errorf("missing dir: got %d", w.Code)
	}

	del := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil))
	if del.Code != http.StatusOK {
		t.Errorf("remove: got %d", del.Code)
	}
	if len(mock.Directories()) != 0 {
		t.Errorf("expected 0 directories, got %v", mock.Directories())
	}
}

func TestHandleWatchDirectories_NotEnabled(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}
