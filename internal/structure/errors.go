package structure

import (
	"errors"
	"fmt"
)

var (
	// ErrEmpty is returned for input with no content.
	ErrEmpty = errors.New("empty input")
	// ErrNotPDB is returned when no line starts with a known PDB record name.
	ErrNotPDB = errors.New("does not appear to be PDB formatted text")
	// ErrBadCoordinates is returned for an ATOM/HETATM record whose
	// coordinates are missing or not numbers, e.g. a truncated upload.
	ErrBadCoordinates = errors.New("invalid or missing coordinates")
	// ErrBadSequenceNumber is returned for a residue sequence number that is
	// not an integer.
	ErrBadSequenceNumber = errors.New("invalid residue sequence number")
)

// ParseError is the failure outcome of reading a PDB file.
type ParseError struct {
	Source string
	// Line is the 1-based line number the failure was detected on, or 0 when
	// it concerns the input as a whole.
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
