package structure

import (
	"bytes"
	"compress/gzip"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/pdbstat/internal/testutil"
)

func TestRead_singleResidue(t *testing.T) {
	pdb := testutil.NewPDB("1ABC").Residue("ALA", "A", 1, 0, "N", "CA", "C", "O")
	s, err := Read("1abc", strings.NewReader(pdb.String()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if s.ID != "1abc" || s.IDCode != "1ABC" {
		t.Errorf("ids: got %q / %q", s.ID, s.IDCode)
	}
	if len(s.Models) != 1 {
		t.Fatalf("models: got %d", len(s.Models))
	}
	chains := s.Models[0].Chains
	if len(chains) != 1 || chains[0].ID != "A" {
		t.Fatalf("chains: got %+v", chains)
	}
	res := chains[0].Residues
	if len(res) != 1 || res[0].Name != "ALA" || res[0].SequenceNum != 1 {
		t.Fatalf("residues: got %+v", res)
	}
	if len(res[0].Atoms) != 4 {
		t.Errorf("atoms: got %d", len(res[0].Atoms))
	}
	if got := res[0].Atoms[1]; got.Name != "CA" || got.X != 1.5 {
		t.Errorf("CA atom: got %+v", got)
	}
}

func TestRead_chainOrderFollowsFile(t *testing.T) {
	pdb := testutil.NewPDB("").
		Residue("GLY", "B", 1, 0, "N", "CA").
		Residue("GLY", "A", 1, 0, "N", "CA").
		Residue("SER", "B", 2, 0, "N")
	s, err := Read("x", strings.NewReader(pdb.String()))
	if err != nil {
		t.Fatal(err)
	}
	chains := s.Models[0].Chains
	if len(chains) != 2 || chains[0].ID != "B" || chains[1].ID != "A" {
		t.Fatalf("chain order: got %v", chainIDs(chains))
	}
	if n := len(s.Models[0].Chain("B").Residues); n != 2 {
		t.Errorf("chain B residues: got %d", n)
	}
}

func TestRead_multipleModels(t *testing.T) {
	pdb := testutil.NewPDB("2NMB").
		Model(1).Residue("ALA", "A", 1, 0, "N", "CA").EndModel().
		Model(2).Residue("ALA", "A", 1, 5, "N", "CA").EndModel()
	s, err := Read("nmr", strings.NewReader(pdb.String()))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Models) != 2 {
		t.Fatalf("models: got %d", len(s.Models))
	}
	if s.Models[1].Serial != 2 {
		t.Errorf("second model serial: got %d", s.Models[1].Serial)
	}
	if x := s.Models[1].Chains[0].Residues[0].Atoms[0].X; x != 5 {
		t.Errorf("second model first atom x: got %v", x)
	}
	if s.AtomCount() != 4 {
		t.Errorf("AtomCount: got %d", s.AtomCount())
	}
}

func TestRead_hetatmResidues(t *testing.T) {
	pdb := testutil.NewPDB("").
		Residue("ALA", "A", 1, 0, "N", "CA").
		HetAtom("O", "HOH", "A", 1, 9, 9, 9).
		HetAtom("O", "HOH", "A", 2, 8, 8, 8)
	s, err := Read("x", strings.NewReader(pdb.String()))
	if err != nil {
		t.Fatal(err)
	}
	res := s.Models[0].Chains[0].Residues
	if len(res) != 3 {
		t.Fatalf("residues: got %d", len(res))
	}
	if res[0].Het || !res[1].Het || res[1].Name != "HOH" {
		t.Errorf("het flags: got %+v %+v", res[0], res[1])
	}
	if res[1].IsStandardAminoAcid() || !res[0].IsStandardAminoAcid() {
		t.Error("standard amino acid classification")
	}
}

func TestRead_duplicateAtomKeptOnce(t *testing.T) {
	line := testutil.AtomLine("ATOM", 1, "CA", "ALA", "A", 1, 1, 1, 1)
	s, err := Read("x", strings.NewReader(line+"\n"+line+"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(s.Models[0].Chains[0].Residues[0].Atoms); n != 1 {
		t.Errorf("atoms: got %d, want 1", n)
	}
}

func TestRead_alternateLocationHigherOccupancyWins(t *testing.T) {
	a := []byte(testutil.AtomLine("ATOM", 1, "CA", "ALA", "A", 1, 1, 1, 1))
	b := []byte(testutil.AtomLine("ATOM", 2, "CA", "ALA", "A", 1, 2, 2, 2))
	a[16], b[16] = 'A', 'B'
	copy(a[54:60], "  0.40")
	copy(b[54:60], "  0.60")
	s, err := Read("x", strings.NewReader(string(a)+"\n"+string(b)+"\n"))
	if err != nil {
		t.Fatal(err)
	}
	atoms := s.Models[0].Chains[0].Residues[0].Atoms
	if len(atoms) != 1 {
		t.Fatalf("atoms: got %d", len(atoms))
	}
	if atoms[0].AltLoc != 'B' || atoms[0].X != 2 {
		t.Errorf("kept atom: got %+v", atoms[0])
	}
}

func TestRead_noAtomsIsValid(t *testing.T) {
	s, err := Read("empty", strings.NewReader("HEADER    NOTHING HERE\nEND\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(s.Models) != 1 || len(s.Models[0].Chains) != 0 {
		t.Errorf("expected one empty model, got %+v", s.Models)
	}
}

func TestRead_failures(t *testing.T) {
	truncated := testutil.AtomLine("ATOM", 1, "CA", "ALA", "A", 1, 1, 2, 3)[:40]
	badSeq := []byte(testutil.AtomLine("ATOM", 1, "CA", "ALA", "A", 1, 1, 2, 3))
	copy(badSeq[22:26], "  x1")
	nonFinite := func(col int, text string) string {
		line := []byte(testutil.AtomLine("ATOM", 1, "CA", "ALA", "A", 1, 1, 2, 3))
		copy(line[col:col+8], text)
		return string(line) + "\n"
	}
	tests := []struct {
		name    string
		input   string
		wantErr error
		line    int
	}{
		{"empty", "", ErrEmpty, 0},
		{"blank lines", "\n   \n\t\n", ErrEmpty, 0},
		{"not pdb", "hello world\nthis is a text file\n", ErrNotPDB, 0},
		{"truncated coordinates", "HEADER\n" + truncated + "\n", ErrBadCoordinates, 2},
		{"bad sequence number", string(badSeq) + "\n", ErrBadSequenceNumber, 1},
		{"NaN x coordinate", nonFinite(30, "     NaN"), ErrBadCoordinates, 1},
		{"infinite y coordinate", nonFinite(38, "     Inf"), ErrBadCoordinates, 1},
		{"negative infinite z coordinate", nonFinite(46, "    -inf"), ErrBadCoordinates, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read("in", strings.NewReader(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err is not a *ParseError: %T", err)
			}
			if pe.Line != tt.line {
				t.Errorf("line = %d, want %d", pe.Line, tt.line)
			}
		})
	}
}

func TestReadFile_plainAndGzip(t *testing.T) {
	dir := t.TempDir()
	content := testutil.NewPDB("").Residue("GLY", "A", 1, 0, "N", "CA", "C").Bytes()

	plain := filepath.Join(dir, "1gly.pdb")
	if err := os.WriteFile(plain, content, 0600); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	compressed := filepath.Join(dir, "2gly.pdb.gz")
	if err := os.WriteFile(compressed, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}

	for path, wantID := range map[string]string{plain: "1gly", compressed: "2gly"} {
		s, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", path, err)
		}
		if s.ID != wantID {
			t.Errorf("ID: got %q, want %q", s.ID, wantID)
		}
		if s.AtomCount() != 3 {
			t.Errorf("%s atoms: got %d", path, s.AtomCount())
		}
	}
}

func TestReadFile_missing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "nope.pdb")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestCoordsDistance(t *testing.T) {
	a := Coords{0, 0, 0}
	b := Coords{3, 4, 12}
	if d := a.Distance(b); math.Abs(d-13) > 1e-12 {
		t.Errorf("Distance = %v, want 13", d)
	}
	if a.Distance(b) != b.Distance(a) {
		t.Error("distance should be symmetric")
	}
}

func TestIsStandardAminoAcid(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"ALA", true}, {"gly", true}, {" TRP ", true},
		{"HOH", false}, {"MSE", false}, {"DA", false}, {"", false}, {"UNK", false},
	}
	for _, tt := range tests {
		if got := IsStandardAminoAcid(tt.name); got != tt.want {
			t.Errorf("IsStandardAminoAcid(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
	if len(StandardAminoAcids) != 20 {
		t.Errorf("standard table size: got %d", len(StandardAminoAcids))
	}
}

func chainIDs(chains []*Chain) []string {
	ids := make([]string, len(chains))
	for i, c := range chains {
		ids[i] = c.ID
	}
	return ids
}
