package structure

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const maxLineLength = 1 << 20

// knownRecords are the record names that mark input as PDB text. Lines with
// any other record name are skipped without complaint.
var knownRecords = map[string]bool{
	"HEADER": true, "OBSLTE": true, "TITLE": true, "SPLIT": true, "CAVEAT": true,
	"COMPND": true, "SOURCE": true, "KEYWDS": true, "EXPDTA": true, "NUMMDL": true,
	"MDLTYP": true, "AUTHOR": true, "REVDAT": true, "SPRSDE": true, "JRNL": true,
	"REMARK": true, "DBREF": true, "DBREF1": true, "DBREF2": true, "SEQADV": true,
	"SEQRES": true, "MODRES": true, "HET": true, "HETNAM": true, "HETSYN": true,
	"FORMUL": true, "HELIX": true, "SHEET": true, "SSBOND": true, "LINK": true,
	"CISPEP": true, "SITE": true, "CRYST1": true, "ORIGX1": true, "ORIGX2": true,
	"ORIGX3": true, "SCALE1": true, "SCALE2": true, "SCALE3": true, "MTRIX1": true,
	"MTRIX2": true, "MTRIX3": true, "MODEL": true, "ATOM": true, "ANISOU": true,
	"TER": true, "HETATM": true, "ENDMDL": true, "CONECT": true, "MASTER": true,
	"END": true,
}

// ReadFile reads the PDB file at path. Gzip compressed files are detected by
// their magic number and decompressed transparently. The structure ID is the
// base name of path without its extensions.
func ReadFile(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, &ParseError{Source: path, Err: fmt.Errorf("gzip: %w", err)}
		}
		defer gz.Close()
		r = gz
	}
	s, err := read(path, r)
	if err != nil {
		return nil, err
	}
	s.ID = NameFromPath(path)
	return s, nil
}

// Read parses PDB text from r. id is used both as the structure ID and as
// the source name in errors.
func Read(id string, r io.Reader) (*Structure, error) {
	s, err := read(id, r)
	if err != nil {
		return nil, err
	}
	s.ID = id
	return s, nil
}

// NameFromPath strips the directory and any ".gz" and format extension from
// a file name, e.g. "/data/1abc.pdb.gz" becomes "1abc".
func NameFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	return strings.TrimSuffix(name, filepath.Ext(name))
}

type pdbParser struct {
	source  string
	entry   *Structure
	model   *Model
	line    []byte
	lineNum int
	records int
}

func read(source string, r io.Reader) (*Structure, error) {
	p := &pdbParser{source: source, entry: &Structure{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	nonBlank := false
	for scanner.Scan() {
		p.lineNum++
		p.line = scanner.Bytes()
		if len(bytes.TrimSpace(p.line)) == 0 {
			continue
		}
		nonBlank = true
		if err := p.parseLine(); err != nil {
			return nil, &ParseError{Source: source, Line: p.lineNum, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Source: source, Line: p.lineNum + 1, Err: err}
	}
	if !nonBlank {
		return nil, &ParseError{Source: source, Err: ErrEmpty}
	}
	if p.records == 0 {
		return nil, &ParseError{Source: source, Err: ErrNotPDB}
	}
	if len(p.entry.Models) == 0 {
		p.entry.Models = append(p.entry.Models, newModel(1))
	}
	return p.entry, nil
}

func (p *pdbParser) parseLine() error {
	record := p.cols(1, 6)
	if !knownRecords[record] {
		return nil
	}
	p.records++

	switch record {
	case "HEADER":
		if p.entry.IDCode == "" {
			p.entry.IDCode = p.cols(63, 66)
		}
	case "MODEL":
		serial, err := p.atoi(11, 14)
		if err != nil {
			serial = len(p.entry.Models) + 1
		}
		p.startModel(serial)
	case "ENDMDL":
		p.model = nil
	case "ATOM", "HETATM":
		return p.parseAtom(record == "HETATM")
	}
	return nil
}

func (p *pdbParser) startModel(serial int) {
	p.model = newModel(serial)
	p.entry.Models = append(p.entry.Models, p.model)
}

// parseAtom reads the fixed columns of an ATOM or HETATM record: atom name
// (13-16), alternate location (17), residue name (18-20), chain (22),
// residue sequence number (23-26), insertion code (27), coordinates (31-54)
// and occupancy (55-60).
func (p *pdbParser) parseAtom(het bool) error {
	seqNum, err := p.atoi(23, 26)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadSequenceNumber, p.cols(23, 26))
	}
	atom := Atom{
		Name:      p.cols(13, 16),
		AltLoc:    p.blankIfZero(p.at(17)),
		Occupancy: 1.0,
	}
	if atom.X, err = p.atof(31, 38); err != nil {
		return ErrBadCoordinates
	}
	if atom.Y, err = p.atof(39, 46); err != nil {
		return ErrBadCoordinates
	}
	if atom.Z, err = p.atof(47, 54); err != nil {
		return ErrBadCoordinates
	}
	if occ, err := p.atof(55, 60); err == nil {
		atom.Occupancy = occ
	}

	if p.model == nil {
		p.startModel(len(p.entry.Models) + 1)
	}
	chain := p.model.getOrMakeChain(string(p.blankIfZero(p.at(22))))
	residue := chain.getOrMakeResidue(p.cols(18, 20), seqNum, p.blankIfZero(p.at(27)), het)
	residue.addAtom(atom)
	return nil
}

func (p *pdbParser) atoi(start, end int) (int, error) {
	return strconv.Atoi(p.cols(start, end))
}

// atof parses a finite float. NaN and infinities are rejected.
func (p *pdbParser) atof(start, end int) (float64, error) {
	v, err := strconv.ParseFloat(p.cols(start, end), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", p.cols(start, end))
	}
	return v, nil
}

// cols returns the trimmed text between the 1-based inclusive columns start
// and end, clipped to the line length.
func (p *pdbParser) cols(start, end int) string {
	rs, re := start-1, end
	if rs < 0 || rs >= len(p.line) {
		return ""
	}
	if re > len(p.line) {
		re = len(p.line)
	}
	if re < rs {
		return ""
	}
	return string(bytes.TrimSpace(p.line[rs:re]))
}

func (p *pdbParser) at(column int) byte {
	i := column - 1
	if i < 0 || i >= len(p.line) {
		return 0
	}
	return p.line[i]
}

func (p *pdbParser) blankIfZero(b byte) byte {
	if b == 0 {
		return ' '
	}
	return b
}
