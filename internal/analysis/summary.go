// Package analysis derives statistics from parsed structures and diffs two
// of them. Everything here is a pure function of its input.
package analysis

import (
	"github.com/hyperjump/pdbstat/internal/structure"
)

// ChainStats are the counts for one chain, summed over every model.
type ChainStats struct {
	ResidueCount int `json:"residue_count"`
	AtomCount    int `json:"atom_count"`
}

// BondLength is the distance between two atoms of the same residue. Every
// atom pair is included, not only covalently bonded ones.
type BondLength struct {
	Atom1    string  `json:"atom1"`
	Atom2    string  `json:"atom2"`
	Residue  string  `json:"residue"`
	Chain    string  `json:"chain"`
	Distance float64 `json:"distance"`
}

// Summary is the statistical profile of one structure.
type Summary struct {
	StructureID  string                `json:"structure_id"`
	ModelCount   int                   `json:"model_count"`
	ResidueCount int                   `json:"residue_count"`
	AtomCount    int                   `json:"atom_count"`
	Chains       map[string]ChainStats `json:"chains"`
	// ChainOrder lists the keys of Chains in the order they first appear.
	ChainOrder   []string  `json:"chain_order"`
	ResidueTypes StringSet `json:"residue_types"`
	// ResidueCounts is the number of occurrences of each standard amino acid.
	ResidueCounts map[string]int `json:"residue_counts"`
	// BondLengths covers the first model only.
	BondLengths []BondLength `json:"bond_lengths"`
}

// Summarize walks s and returns its summary. Residue and atom counts cover
// every model; bond lengths are computed on the first model only. It panics
// if s is nil.
func Summarize(s *structure.Structure) *Summary {
	if s == nil {
		panic("analysis: Summarize called with nil structure")
	}
	sum := &Summary{
		StructureID:   s.ID,
		ModelCount:    len(s.Models),
		Chains:        make(map[string]ChainStats),
		ChainOrder:    []string{},
		ResidueTypes:  StringSet{},
		ResidueCounts: make(map[string]int),
		BondLengths:   []BondLength{},
	}

	for _, m := range s.Models {
		for _, c := range m.Chains {
			cs, seen := sum.Chains[c.ID]
			if !seen {
				sum.ChainOrder = append(sum.ChainOrder, c.ID)
			}
			for _, r := range c.Residues {
				sum.ResidueCount++
				cs.ResidueCount++
				if r.IsStandardAminoAcid() {
					sum.ResidueTypes.Add(r.Name)
					sum.ResidueCounts[r.Name]++
				}
				sum.AtomCount += len(r.Atoms)
				cs.AtomCount += len(r.Atoms)
			}
			sum.Chains[c.ID] = cs
		}
	}

	if len(s.Models) > 0 {
		sum.BondLengths = bondLengths(s.Models[0])
	}
	return sum
}

func bondLengths(m *structure.Model) []BondLength {
	out := []BondLength{}
	for _, c := range m.Chains {
		for _, r := range c.Residues {
			for i := 0; i < len(r.Atoms); i++ {
				for j := i + 1; j < len(r.Atoms); j++ {
					out = append(out, BondLength{
						Atom1:    r.Atoms[i].Name,
						Atom2:    r.Atoms[j].Name,
						Residue:  r.Name,
						Chain:    c.ID,
						Distance: r.Atoms[i].Distance(r.Atoms[j].Coords),
					})
				}
			}
		}
	}
	return out
}
