// Package core exposes structure validation, analysis, comparison and report
// formatting behind a stateless Engine.
package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/hyperjump/pdbstat/internal/analysis"
	"github.com/hyperjump/pdbstat/internal/config"
	"github.com/hyperjump/pdbstat/internal/metrics"
	"github.com/hyperjump/pdbstat/internal/report"
	"github.com/hyperjump/pdbstat/internal/scratch"
	"github.com/hyperjump/pdbstat/internal/structure"
)

// DefaultStructureID names a structure whose source has no usable name.
const DefaultStructureID = "structure"

// ValidMessage is returned by Validate for an accepted file.
const ValidMessage = "File is valid."

// Engine runs the analysis operations. It keeps no per-request state and is
// safe for concurrent use.
type Engine struct {
	allowed []string
	maxSize int64
	scratch *scratch.Dir
	logger  *zap.Logger
	metrics *metrics.Collectors
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine and its scratch directory.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records validations and analyses on c.
func WithMetrics(c *metrics.Collectors) Option {
	return func(e *Engine) {
		e.metrics = c
	}
}

// NewEngine returns an Engine enforcing cfg. Zero values in cfg fall back to
// the defaults: .pdb only, 10 MiB.
func NewEngine(cfg config.UploadConfig, opts ...Option) *Engine {
	e := &Engine{
		allowed: config.NormalizeExtensions(cfg.AllowedExtensions),
		maxSize: cfg.MaxFileSize,
		logger:  zap.NewNop(),
	}
	if len(e.allowed) == 0 {
		e.allowed = []string{".pdb"}
	}
	if e.maxSize <= 0 {
		e.maxSize = config.DefaultMaxFileSize
	}
	for _, opt := range opts {
		opt(e)
	}
	e.scratch = scratch.New(cfg.ScratchDir, scratch.WithLogger(e.logger))
	return e
}

// AllowedExtensions returns the accepted file extensions.
func (e *Engine) AllowedExtensions() []string {
	return append([]string(nil), e.allowed...)
}

// MaxFileSize returns the largest accepted file in bytes.
func (e *Engine) MaxFileSize() int64 { return e.maxSize }

// CheckFile applies the pre-parse gates: the extension of name against the
// allow-list, then size against the limit. A name ending in ".gz" is judged
// by the extension before it. The returned error is a *ValidationError.
func (e *Engine) CheckFile(name string, size int64) error {
	if ve := e.checkFile(name, size); ve != nil {
		return ve
	}
	return nil
}

func (e *Engine) checkFile(name string, size int64) *ValidationError {
	if !e.ExtensionAllowed(name) {
		return &ValidationError{
			Reason:  ReasonExtension,
			Message: fmt.Sprintf("Invalid file format. Only PDB files (%s) are allowed.", strings.Join(e.allowed, ", ")),
		}
	}
	if size > e.maxSize {
		return &ValidationError{
			Reason:  ReasonSize,
			Message: fmt.Sprintf("File size exceeds the maximum allowed size (%s).", humanize.IBytes(uint64(e.maxSize))),
		}
	}
	return nil
}

// ExtensionAllowed reports whether name passes the extension gate.
func (e *Engine) ExtensionAllowed(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	base = strings.TrimSuffix(base, ".gz")
	ext := filepath.Ext(base)
	for _, a := range e.allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// Validate reports whether data, uploaded as name, would be accepted, with a
// message for the user. The parse attempt only runs once the extension and
// size gates have passed.
func (e *Engine) Validate(data []byte, name string) (bool, string) {
	ve := e.validate(data, name)
	if ve == nil {
		e.metrics.ObserveValidation("ok")
		return true, ValidMessage
	}
	e.metrics.ObserveValidation(string(ve.Reason))
	e.logger.Debug("Validation rejected file",
		zap.String("name", name),
		zap.Int("size", len(data)),
		zap.String("reason", string(ve.Reason)))
	return false, ve.Message
}

func (e *Engine) validate(data []byte, name string) *ValidationError {
	if ve := e.checkFile(name, int64(len(data))); ve != nil {
		return ve
	}
	if _, err := e.parse(data, name); err != nil {
		reason := ReasonContent
		if errors.Is(err, structure.ErrEmpty) {
			reason = ReasonEmpty
		}
		var pe *structure.ParseError
		if !errors.As(err, &pe) {
			e.logger.Warn("Validation could not attempt a parse", zap.String("name", name), zap.Error(err))
		}
		return &ValidationError{Reason: reason, Message: "Invalid PDB file: " + unwrapParse(err).Error(), Err: err}
	}
	return nil
}

// Analyze parses data and summarises it. name supplies the structure ID and
// may be empty. Parser rejections are returned as a wrapped
// *structure.ParseError.
func (e *Engine) Analyze(data []byte, name string) (*analysis.Summary, error) {
	start := time.Now()
	s, err := e.parse(data, name)
	if err != nil {
		return nil, err
	}
	return e.summarize(s, start), nil
}

// AnalyzeFile parses and summarises the file at path, reading it in place.
// It does not apply the upload gates; see CheckFile.
func (e *Engine) AnalyzeFile(path string) (*analysis.Summary, error) {
	start := time.Now()
	s, err := structure.ReadFile(path)
	if err != nil {
		e.metrics.ObserveParseFailure()
		return nil, fmt.Errorf("parse structure: %w", err)
	}
	s.ID = structureID(path, s.IDCode)
	return e.summarize(s, start), nil
}

// Compare analyses both files and diffs the first against the second.
func (e *Engine) Compare(data1 []byte, name1 string, data2 []byte, name2 string) (*analysis.Comparison, error) {
	s1, err := e.Analyze(data1, name1)
	if err != nil {
		return nil, fmt.Errorf("first structure: %w", err)
	}
	s2, err := e.Analyze(data2, name2)
	if err != nil {
		return nil, fmt.Errorf("second structure: %w", err)
	}
	e.metrics.ObserveComparison()
	return analysis.Compare(s1, s2), nil
}

// FormatReport renders a *analysis.Summary or *analysis.Comparison as text.
func (e *Engine) FormatReport(v any) string {
	return report.Format(v)
}

// parse writes data to a scratch file and reads it back as a structure. The
// scratch file is gone by the time parse returns.
func (e *Engine) parse(data []byte, name string) (*structure.Structure, error) {
	var s *structure.Structure
	err := e.scratch.WithFile(data, scratchSuffix(name), func(path string) error {
		var err error
		s, err = structure.ReadFile(path)
		return err
	})
	if err != nil {
		var pe *structure.ParseError
		if errors.As(err, &pe) {
			pe.Source = displayName(name)
			e.metrics.ObserveParseFailure()
			e.logger.Debug("Parse failed", zap.String("name", name), zap.Error(err))
		}
		return nil, fmt.Errorf("parse structure: %w", err)
	}
	s.ID = structureID(name, s.IDCode)
	return s, nil
}

func (e *Engine) summarize(s *structure.Structure, start time.Time) *analysis.Summary {
	sum := analysis.Summarize(s)
	e.metrics.ObserveAnalysis(time.Since(start), sum.AtomCount)
	e.logger.Debug("Analyzed structure",
		zap.String("structure_id", sum.StructureID),
		zap.Int("models", sum.ModelCount),
		zap.Int("residues", sum.ResidueCount),
		zap.Int("atoms", sum.AtomCount),
		zap.Int("bond_lengths", len(sum.BondLengths)))
	return sum
}

// structureID prefers the source name without extensions, then the HEADER
// id code, then DefaultStructureID.
func structureID(name, idCode string) string {
	if name != "" {
		if id := structure.NameFromPath(name); id != "" && id != "." {
			return id
		}
	}
	if idCode != "" {
		return idCode
	}
	return DefaultStructureID
}

// unwrapParse strips the "parse structure" wrapping added by parse.
func unwrapParse(err error) error {
	var pe *structure.ParseError
	if errors.As(err, &pe) {
		return pe
	}
	return err
}

func displayName(name string) string {
	if name == "" {
		return "upload"
	}
	return filepath.Base(name)
}

func scratchSuffix(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		return ".pdb.gz"
	}
	return ".pdb"
}
