// Package testutil builds minimal PDB files for tests.
package testutil

import (
	"fmt"
	"strings"
)

// AtomLine renders one fixed-column ATOM or HETATM record.
func AtomLine(record string, serial int, name, resName, chain string, seq int, x, y, z float64) string {
	return fmt.Sprintf("%-6s%5d %-4s %3s %1s%4d    %8.3f%8.3f%8.3f%6.2f%6.2f           %1s",
		record, serial, name, resName, chain, seq, x, y, z, 1.0, 0.0, elementOf(name))
}

func elementOf(name string) string {
	if name == "" {
		return ""
	}
	return name[:1]
}

// PDB accumulates records. The zero value is not usable; call NewPDB.
type PDB struct {
	b      strings.Builder
	serial int
}

// NewPDB starts a file with a HEADER record carrying idCode.
func NewPDB(idCode string) *PDB {
	p := &PDB{}
	fmt.Fprintf(&p.b, "%-10s%-40s%-12s%-4s\n", "HEADER", "TEST STRUCTURE", "01-JAN-00", idCode)
	return p
}

// Model opens a MODEL record.
func (p *PDB) Model(n int) *PDB {
	fmt.Fprintf(&p.b, "MODEL     %4d\n", n)
	return p
}

// EndModel closes the current model.
func (p *PDB) EndModel() *PDB {
	p.b.WriteString("ENDMDL\n")
	return p
}

// Atom appends one ATOM record.
func (p *PDB) Atom(name, resName, chain string, seq int, x, y, z float64) *PDB {
	p.serial++
	p.b.WriteString(AtomLine("ATOM", p.serial, name, resName, chain, seq, x, y, z))
	p.b.WriteByte('\n')
	return p
}

// HetAtom appends one HETATM record.
func (p *PDB) HetAtom(name, resName, chain string, seq int, x, y, z float64) *PDB {
	p.serial++
	p.b.WriteString(AtomLine("HETATM", p.serial, name, resName, chain, seq, x, y, z))
	p.b.WriteByte('\n')
	return p
}

// Residue appends one ATOM record per atom name, spaced 1.5 Å apart along x
// starting at x0.
func (p *PDB) Residue(resName, chain string, seq int, x0 float64, atoms ...string) *PDB {
	for i, name := range atoms {
		p.Atom(name, resName, chain, seq, x0+1.5*float64(i), 0, 0)
	}
	return p
}

// Ter appends a TER record.
func (p *PDB) Ter() *PDB {
	p.b.WriteString("TER\n")
	return p
}

// Raw appends line verbatim.
func (p *PDB) Raw(line string) *PDB {
	p.b.WriteString(line)
	p.b.WriteByte('\n')
	return p
}

// String terminates the file with END and returns it.
func (p *PDB) String() string {
	return p.b.String() + "END\n"
}

// Bytes is String as a byte slice.
func (p *PDB) Bytes() []byte {
	return []byte(p.String())
}
