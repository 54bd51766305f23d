// Package report renders summaries and comparisons as markdown text, JSON
// and XLSX workbooks.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/pdbstat/internal/analysis"
)

// Format renders a *analysis.Summary or *analysis.Comparison as text. Any
// other value, including a nil pointer, is a programming error and panics.
func Format(v any) string {
	switch x := v.(type) {
	case *analysis.Summary:
		if x == nil {
			panic("report: Format called with nil summary")
		}
		return FormatSummary(x)
	case *analysis.Comparison:
		if x == nil {
			panic("report: Format called with nil comparison")
		}
		return FormatComparison(x)
	default:
		panic(fmt.Sprintf("report: cannot format %T", v))
	}
}

// FormatSummary renders s as a markdown report. Chains follow file order;
// residue names are sorted.
func FormatSummary(s *analysis.Summary) string {
	var b strings.Builder
	b.WriteString("# PDB Structure Analysis Report\n\n")

	b.WriteString("## Basic Information\n")
	fmt.Fprintf(&b, "- Structure ID: %s\n", s.StructureID)
	fmt.Fprintf(&b, "- Number of models: %d\n", s.ModelCount)
	fmt.Fprintf(&b, "- Total residues: %d\n", s.ResidueCount)
	fmt.Fprintf(&b, "- Total atoms: %d\n", s.AtomCount)

	b.WriteString("\n## Chain Information\n")
	for _, id := range chainOrder(s) {
		c := s.Chains[id]
		fmt.Fprintf(&b, "\n### Chain %s\n", id)
		fmt.Fprintf(&b, "- Residues: %d\n", c.ResidueCount)
		fmt.Fprintf(&b, "- Atoms: %d\n", c.AtomCount)
	}

	b.WriteString("\n## Residue Types\n")
	fmt.Fprintf(&b, "- Number of unique residue types: %d\n", s.ResidueTypes.Len())
	fmt.Fprintf(&b, "- Residue types: %s\n", joinOrNone(s.ResidueTypes.Sorted()))

	if len(s.ResidueCounts) > 0 {
		b.WriteString("\n## Residue Distribution\n")
		b.WriteString("| Residue | Count |\n|---|---|\n")
		for _, name := range sortedKeys(s.ResidueCounts) {
			fmt.Fprintf(&b, "| %s | %d |\n", name, s.ResidueCounts[name])
		}
	}

	if st, ok := BondStatistics(s.BondLengths); ok {
		b.WriteString("\n## Bond Statistics\n")
		fmt.Fprintf(&b, "- Average bond length: %.3f Å\n", st.Average)
		fmt.Fprintf(&b, "- Minimum bond length: %s\n", describeBond(st.Min))
		fmt.Fprintf(&b, "- Maximum bond length: %s\n", describeBond(st.Max))
	}
	return b.String()
}

// FormatComparison renders c as a markdown report. Set members and chain
// deltas are sorted by name.
func FormatComparison(c *analysis.Comparison) string {
	var b strings.Builder
	b.WriteString("# PDB Structure Comparison Report\n\n")

	b.WriteString("## Basic Information\n")
	fmt.Fprintf(&b, "- Structure 1 ID: %s\n", c.Structure1)
	fmt.Fprintf(&b, "- Structure 2 ID: %s\n", c.Structure2)

	for i, t := range []analysis.Totals{c.Totals1, c.Totals2} {
		fmt.Fprintf(&b, "\n## Structure %d\n", i+1)
		fmt.Fprintf(&b, "- Models: %d\n", t.Models)
		fmt.Fprintf(&b, "- Residues: %d\n", t.Residues)
		fmt.Fprintf(&b, "- Atoms: %d\n", t.Atoms)
	}

	b.WriteString("\n## Structure Differences\n")
	fmt.Fprintf(&b, "- Model count difference: %d\n", c.ModelCountDiff)
	fmt.Fprintf(&b, "- Residue count difference: %d\n", c.ResidueCountDiff)
	fmt.Fprintf(&b, "- Atom count difference: %d\n", c.AtomCountDiff)

	b.WriteString("\n## Chain Analysis\n")
	fmt.Fprintf(&b, "- Common chains: %s\n", joinOrNone(c.CommonChains.Sorted()))
	fmt.Fprintf(&b, "- Unique chains in structure 1: %s\n", joinOrNone(c.UniqueChains1.Sorted()))
	fmt.Fprintf(&b, "- Unique chains in structure 2: %s\n", joinOrNone(c.UniqueChains2.Sorted()))

	b.WriteString("\n## Residue Type Analysis\n")
	fmt.Fprintf(&b, "- Common residue types: %s\n", joinOrNone(c.CommonResidueTypes.Sorted()))
	fmt.Fprintf(&b, "- Unique residue types in structure 1: %s\n", joinOrNone(c.UniqueResidueTypes1.Sorted()))
	fmt.Fprintf(&b, "- Unique residue types in structure 2: %s\n", joinOrNone(c.UniqueResidueTypes2.Sorted()))

	if len(c.ChainComparison) > 0 {
		b.WriteString("\n## Chain Comparison\n")
		for _, id := range sortedKeys(c.ChainComparison) {
			d := c.ChainComparison[id]
			fmt.Fprintf(&b, "\n### Chain %s\n", id)
			fmt.Fprintf(&b, "- Residue count difference: %d\n", d.ResidueDiff)
			fmt.Fprintf(&b, "- Atom count difference: %d\n", d.AtomDiff)
		}
	}
	return b.String()
}

func describeBond(bl analysis.BondLength) string {
	return fmt.Sprintf("%.3f Å (%s-%s in %s of chain %s)", bl.Distance, bl.Atom1, bl.Atom2, bl.Residue, bl.Chain)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

// chainOrder returns s.ChainOrder, or the sorted chain ids for summaries
// that were built without one.
func chainOrder(s *analysis.Summary) []string {
	if len(s.ChainOrder) == len(s.Chains) {
		return s.ChainOrder
	}
	return sortedKeys(s.Chains)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
