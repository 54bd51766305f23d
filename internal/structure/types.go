// Package structure reads PDB coordinate files into a tree of models, chains,
// residues and atoms.
package structure

import (
	"fmt"
	"math"
)

// Structure is one parsed PDB file.
type Structure struct {
	// ID names the structure. It is derived from the source name by the caller.
	ID string
	// IDCode is the four character code from the HEADER record, if any.
	IDCode string
	// Models holds every conformation in file order. It is never empty for a
	// structure returned by Read or ReadFile.
	Models []*Model
}

// Model is a single conformation, e.g. one member of an NMR ensemble.
type Model struct {
	Serial int
	// Chains are kept in the order their first atom appears in the file.
	Chains []*Chain

	chainIndex map[string]*Chain
}

// Chain is a polymer chain within a model.
type Chain struct {
	ID       string
	Residues []*Residue

	residueIndex map[residueKey]*Residue
}

// Residue is an amino acid, nucleotide or hetero group.
type Residue struct {
	Name          string
	SequenceNum   int
	InsertionCode byte
	// Het is true when the residue was read from HETATM records.
	Het   bool
	Atoms []Atom
}

// Atom is a single ATOM or HETATM record.
type Atom struct {
	Name      string
	AltLoc    byte
	Occupancy float64
	Coords
}

// Coords is a position in Ångström.
type Coords struct {
	X, Y, Z float64
}

// residueKey identifies a residue within a chain. Hetero groups also key on
// their name so that a ligand sharing a sequence number with a polymer
// residue stays separate.
type residueKey struct {
	het   bool
	name  string
	seq   int
	icode byte
}

// Distance returns the Euclidean distance between two points.
func (c Coords) Distance(o Coords) float64 {
	dx, dy, dz := c.X-o.X, c.Y-o.Y, c.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (c Coords) String() string {
	return fmt.Sprintf("%0.3f %0.3f %0.3f", c.X, c.Y, c.Z)
}

func newModel(serial int) *Model {
	return &Model{Serial: serial, chainIndex: make(map[string]*Chain)}
}

// Chain returns the chain with the given identifier, or nil.
func (m *Model) Chain(id string) *Chain {
	return m.chainIndex[id]
}

func (m *Model) getOrMakeChain(id string) *Chain {
	if c, ok := m.chainIndex[id]; ok {
		return c
	}
	c := &Chain{ID: id, residueIndex: make(map[residueKey]*Residue)}
	m.chainIndex[id] = c
	m.Chains = append(m.Chains, c)
	return c
}

func (c *Chain) getOrMakeResidue(name string, seq int, icode byte, het bool) *Residue {
	key := residueKey{het: het, seq: seq, icode: icode}
	if het {
		key.name = name
	}
	if r, ok := c.residueIndex[key]; ok {
		return r
	}
	r := &Residue{Name: name, SequenceNum: seq, InsertionCode: icode, Het: het}
	c.residueIndex[key] = r
	c.Residues = append(c.Residues, r)
	return r
}

// addAtom appends atom to the residue. A second record with an atom name
// already present is an alternate location: it replaces the stored position
// only when its occupancy is strictly higher, so every atom is counted once.
func (r *Residue) addAtom(atom Atom) {
	for i := range r.Atoms {
		if r.Atoms[i].Name != atom.Name {
			continue
		}
		if atom.AltLoc != ' ' && atom.Occupancy > r.Atoms[i].Occupancy {
			r.Atoms[i] = atom
		}
		return
	}
	r.Atoms = append(r.Atoms, atom)
}

// IsStandardAminoAcid reports whether the residue is one of the twenty
// standard amino acids.
func (r *Residue) IsStandardAminoAcid() bool {
	return IsStandardAminoAcid(r.Name)
}

// AtomCount returns the number of atoms across every model.
func (s *Structure) AtomCount() int {
	n := 0
	for _, m := range s.Models {
		for _, c := range m.Chains {
			for _, r := range c.Residues {
				n += len(r.Atoms)
			}
		}
	}
	return n
}
