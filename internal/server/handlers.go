package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/pdbstat/internal/ingest"
	"github.com/hyperjump/pdbstat/internal/models"
	"github.com/hyperjump/pdbstat/internal/report"
	"github.com/hyperjump/pdbstat/internal/search"
	"github.com/hyperjump/pdbstat/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// multipartOverhead is allowed on top of the file size limit for form
	// boundaries and headers.
	multipartOverhead = 1 << 20
)

type upload struct {
	name string
	data []byte
}

// readUploads reads the named multipart file fields. Each file is read up to
// one byte past the engine's size limit so the size gate still sees it as
// too large.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request, fields ...string) ([]upload, bool) {
	maxSize := s.engine.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, int64(len(fields))*(maxSize+1)+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File size exceeds the maximum allowed size (%s).", humanize.IBytes(uint64(maxSize))))
			return nil, false
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, false
	}
	uploads := make([]upload, 0, len(fields))
	for _, field := range fields {
		file, header, err := r.FormFile(field)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("missing file field %q", field))
			return nil, false
		}
		data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
		_ = file.Close()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "failed to read upload")
			return nil, false
		}
		uploads = append(uploads, upload{name: header.Filename, data: data})
	}
	return uploads, true
}

// validateUploads runs the engine's validation over each upload and writes
// a 422 for the first one rejected.
func (s *Server) validateUploads(w http.ResponseWriter, uploads ...upload) bool {
	for _, u := range uploads {
		if ok, msg := s.engine.Validate(u.data, u.name); !ok {
			s.respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": msg, "file": u.name})
			return false
		}
	}
	return true
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	uploads, ok := s.readUploads(w, r, "file")
	if !ok {
		return
	}
	u := uploads[0]
	valid, msg := s.engine.Validate(u.data, u.name)
	status := http.StatusOK
	if !valid {
		status = http.StatusUnprocessableEntity
	}
	s.respondJSON(w, status, map[string]interface{}{"valid": valid, "message": msg})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	format, ok := s.format(w, r, report.FormatJSON)
	if !ok {
		return
	}
	uploads, ok := s.readUploads(w, r, "file")
	if !ok || !s.validateUploads(w, uploads...) {
		return
	}
	s.logger.Debug("analyze request", zap.String("name", uploads[0].name), zap.Int("size", len(uploads[0].data)))
	rec, err := s.ingester.IngestUpload(r.Context(), uploads[0].data, uploads[0].name)
	if err != nil {
		s.ingestFailed(w, err)
		return
	}
	s.respondRecord(w, http.StatusCreated, rec, format)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	format, ok := s.format(w, r, report.FormatJSON)
	if !ok {
		return
	}
	uploads, ok := s.readUploads(w, r, "file1", "file2")
	if !ok || !s.validateUploads(w, uploads...) {
		return
	}
	s.logger.Debug("compare request", zap.String("file1", uploads[0].name), zap.String("file2", uploads[1].name))
	rec, err := s.ingester.IngestComparison(r.Context(), uploads[0].data, uploads[0].name, uploads[1].data, uploads[1].name)
	if err != nil {
		s.ingestFailed(w, err)
		return
	}
	s.respondRecord(w, http.StatusCreated, rec, format)
}

func (s *Server) ingestFailed(w http.ResponseWriter, err error) {
	if ingest.Rejected(err) {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Error("analysis failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := s.page(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	records, err := s.storage.ListRecords(ctx, offset, limit)
	if err != nil {
		s.logger.Error("list records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.storage.CountRecords(ctx)
	if err != nil {
		s.logger.Error("count records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*models.AnalysisRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": records,
		"total":    total,
		"offset":   offset,
		"limit":    limit,
	})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAnalysisReport(w http.ResponseWriter, r *http.Request) {
	format, ok := s.format(w, r, report.FormatText)
	if !ok {
		return
	}
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	s.writeReport(w, http.StatusOK, rec, format)
}

func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete record request", zap.String("id", id))
	if err := s.ingester.DeleteRecord(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "analysis not found")
			return
		}
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		q := r.URL.Query()
		query.Query = q.Get("q")
		query.Kind = models.RecordKind(q.Get("kind"))
		query.Fuzzy, _ = strconv.ParseBool(q.Get("fuzzy"))
		offset, limit, ok := s.page(w, r)
		if !ok {
			return
		}
		query.Offset = offset
		if q.Get("limit") != "" {
			query.Limit = limit
		}
	}
	if err := search.ProcessQuery(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.searcher.Search(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.storage.CountRecords(r.Context())
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"records": count,
		"upload": map[string]interface{}{
			"allowed_extensions":  s.engine.AllowedExtensions(),
			"max_file_size_bytes": s.engine.MaxFileSize(),
			"max_file_size":       humanize.IBytes(uint64(s.engine.MaxFileSize())),
		},
	}
	if s.keywordIndex != nil {
		if n, err := s.keywordIndex.DocCount(); err == nil {
			resp["indexed_records"] = n
		}
	}
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	if s.config != nil {
		s.configMu.Lock()
		paths := s.config.Storage
		s.configMu.Unlock()
		resp["config"] = map[string]interface{}{
			"database_path":    paths.DatabasePath,
			"bleve_index_path": paths.BleveIndexPath,
		}
		if usage, err := storage.MeasureUsage(paths.DatabasePath, paths.BleveIndexPath); err == nil {
			resp["disk_usage_bytes"] = usage.Total()
			resp["disk_usage"] = humanize.IBytes(uint64(usage.Total()))
			resp["disk_usage_breakdown"] = usage
		} else {
			s.logger.Warn("status: measure disk usage failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) loadRecord(w http.ResponseWriter, r *http.Request) (*models.AnalysisRecord, bool) {
	id := chi.URLParam(r, "id")
	rec, err := s.storage.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "analysis not found")
			return nil, false
		}
		s.logger.Error("get record failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return rec, true
}

// format reads ?format=, falling back to def.
func (s *Server) format(w http.ResponseWriter, r *http.Request, def string) (string, bool) {
	f := r.URL.Query().Get("format")
	switch f {
	case "":
		return def, true
	case report.FormatText, report.FormatJSON, report.FormatXLSX:
		return f, true
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q (want text, json or xlsx)", f))
		return "", false
	}
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) (offset, limit int, ok bool) {
	q := r.URL.Query()
	limit = defaultPageSize
	var err error
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid offset")
			return 0, 0, false
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return 0, 0, false
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit, true
}

// respondRecord writes the record itself for JSON and its report otherwise.
func (s *Server) respondRecord(w http.ResponseWriter, status int, rec *models.AnalysisRecord, format string) {
	w.Header().Set("X-Analysis-ID", rec.ID)
	if format == report.FormatJSON {
		s.respondJSON(w, status, rec)
		return
	}
	s.writeReport(w, status, rec, format)
}

func (s *Server) writeReport(w http.ResponseWriter, status int, rec *models.AnalysisRecord, format string) {
	payload := rec.Payload()
	if payload == nil {
		s.respondError(w, http.StatusInternalServerError, "record has no analysis")
		return
	}
	var buf bytes.Buffer
	if err := report.Write(&buf, payload, format); err != nil {
		s.logger.Error("report rendering failed", zap.String("id", rec.ID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", report.ContentType(format))
	if format == report.FormatXLSX {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", strings.ReplaceAll(rec.StructureID, "/", "_")+".xlsx"))
	}
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
