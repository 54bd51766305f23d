// Package cli provides CLI utilities for pdbstat.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hyperjump/pdbstat/internal/models"
	"github.com/hyperjump/pdbstat/internal/storage"
)

// OutputFormat is the format for list and search output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.QueryTime)
	for _, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", result.Rank, result.Score)
		if result.Record != nil {
			writeRecordLines(w, result.Record)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// RecordList is the JSON shape of a history page.
type RecordList struct {
	Analyses []*models.AnalysisRecord `json:"analyses"`
	Total    int64                    `json:"total"`
	Offset   int                      `json:"offset"`
	Limit    int                      `json:"limit"`
}

// WriteRecords writes a page of analysis history.
func WriteRecords(w io.Writer, list *RecordList, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, list)
	}
	end := list.Offset + len(list.Analyses)
	if len(list.Analyses) == 0 {
		fmt.Fprintf(w, "No analyses (total %d)\n", list.Total)
		return nil
	}
	fmt.Fprintf(w, "Showing %d-%d of %d analyses\n\n", list.Offset+1, end, list.Total)
	for _, rec := range list.Analyses {
		writeRecordLines(w, rec)
		fmt.Fprintln(w)
	}
	return nil
}

func writeRecordLines(w io.Writer, rec *models.AnalysisRecord) {
	fmt.Fprintf(w, "ID: %s [%s]\n", rec.ID, rec.Kind)
	if rec.Name != "" {
		fmt.Fprintf(w, "Name: %s\n", truncate(rec.Name, maxNameWidth))
	}
	fmt.Fprintf(w, "Structure: %s\n", rec.StructureID)
	if rec.SourcePath != "" {
		fmt.Fprintf(w, "Path: %s\n", rec.SourcePath)
	}
	if !rec.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated: %s\n", rec.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

// Status is the JSON shape reported by the status endpoint and the direct
// status command.
type Status struct {
	Records          int64         `json:"records"`
	IndexedRecords   *uint64       `json:"indexed_records,omitempty"`
	Upload           UploadStatus  `json:"upload"`
	WatchDirectories []string      `json:"watch_directories,omitempty"`
	Config           *StoragePaths `json:"config,omitempty"`
	DiskUsageBytes   *int64        `json:"disk_usage_bytes,omitempty"`
	DiskUsage        string        `json:"disk_usage,omitempty"`
	// Usage splits DiskUsageBytes between the database and the index.
	Usage *storage.Usage `json:"disk_usage_breakdown,omitempty"`
}

// UploadStatus describes the upload gates.
type UploadStatus struct {
	AllowedExtensions []string `json:"allowed_extensions"`
	MaxFileSizeBytes  int64    `json:"max_file_size_bytes"`
	MaxFileSize       string   `json:"max_file_size"`
}

// StoragePaths are the on-disk locations of the history database and index.
type StoragePaths struct {
	DatabasePath   string `json:"database_path"`
	BleveIndexPath string `json:"bleve_index_path"`
}

// WriteStatus writes st to w.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Records: %d\n", st.Records)
	if st.IndexedRecords != nil {
		fmt.Fprintf(w, "Indexed records: %d\n", *st.IndexedRecords)
	}
	fmt.Fprintf(w, "Allowed extensions: %s\n", strings.Join(st.Upload.AllowedExtensions, ", "))
	fmt.Fprintf(w, "Max file size: %s\n", st.Upload.MaxFileSize)
	if st.Config != nil {
		fmt.Fprintf(w, "Database: %s\n", st.Config.DatabasePath)
		fmt.Fprintf(w, "Index: %s\n", st.Config.BleveIndexPath)
	}
	if st.DiskUsage != "" {
		fmt.Fprintf(w, "Disk usage: %s\n", st.DiskUsage)
	}
	if st.Usage != nil {
		fmt.Fprintf(w, "  database: %s\n", humanize.IBytes(uint64(st.Usage.DatabaseBytes)))
		fmt.Fprintf(w, "  index: %s\n", humanize.IBytes(uint64(st.Usage.IndexBytes)))
	}
	if len(st.WatchDirectories) > 0 {
		fmt.Fprintln(w, "Watch directories:")
		for _, d := range st.WatchDirectories {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
	return nil
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// maxNameWidth caps record names in text listings.
const maxNameWidth = 80

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
