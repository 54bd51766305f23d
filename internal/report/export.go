package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/pdbstat/internal/analysis"
)

// Output formats accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// ContentType returns the MIME type for an output format.
func ContentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Write renders v to w in the named format. An empty format means text.
func Write(w io.Writer, v any, format string) error {
	switch format {
	case "", FormatText:
		_, err := io.WriteString(w, Format(v))
		return err
	case FormatJSON:
		return WriteJSON(w, v)
	case FormatXLSX:
		return WriteWorkbook(w, v)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// SummaryDocument is the JSON form of a summary: the summary itself plus the
// derived bond statistics and histogram.
type SummaryDocument struct {
	*analysis.Summary
	BondStatistics *BondStats `json:"bond_statistics,omitempty"`
	Histogram      []Bin      `json:"bond_length_histogram,omitempty"`
}

// NewSummaryDocument derives the statistics for s.
func NewSummaryDocument(s *analysis.Summary) SummaryDocument {
	doc := SummaryDocument{Summary: s, Histogram: Histogram(s.BondLengths, DefaultHistogramBins)}
	if st, ok := BondStatistics(s.BondLengths); ok {
		doc.BondStatistics = &st
	}
	return doc
}

// WriteJSON writes v as indented JSON. Summaries are written as a
// SummaryDocument.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	switch x := v.(type) {
	case *analysis.Summary:
		return enc.Encode(NewSummaryDocument(x))
	case *analysis.Comparison:
		return enc.Encode(x)
	default:
		return fmt.Errorf("cannot encode %T as a report", v)
	}
}

// WriteWorkbook writes v as an XLSX workbook with one sheet per section.
func WriteWorkbook(w io.Writer, v any) error {
	f := excelize.NewFile()
	defer f.Close()

	var err error
	switch x := v.(type) {
	case *analysis.Summary:
		err = summaryWorkbook(f, x)
	case *analysis.Comparison:
		err = comparisonWorkbook(f, x)
	default:
		err = fmt.Errorf("cannot export %T as a workbook", v)
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type sheet struct {
	name string
	rows [][]any
}

func summaryWorkbook(f *excelize.File, s *analysis.Summary) error {
	overview := sheet{name: "Summary", rows: [][]any{
		{"Field", "Value"},
		{"Structure ID", s.StructureID},
		{"Models", s.ModelCount},
		{"Residues", s.ResidueCount},
		{"Atoms", s.AtomCount},
		{"Residue types", joinOrNone(s.ResidueTypes.Sorted())},
	}}
	if st, ok := BondStatistics(s.BondLengths); ok {
		overview.rows = append(overview.rows,
			[]any{"Average bond length", st.Average},
			[]any{"Minimum bond length", describeBond(st.Min)},
			[]any{"Maximum bond length", describeBond(st.Max)},
		)
	}

	chains := sheet{name: "Chains", rows: [][]any{{"Chain", "Residues", "Atoms"}}}
	for _, id := range chainOrder(s) {
		c := s.Chains[id]
		chains.rows = append(chains.rows, []any{id, c.ResidueCount, c.AtomCount})
	}

	residues := sheet{name: "Residues", rows: [][]any{{"Residue", "Count"}}}
	for _, name := range sortedKeys(s.ResidueCounts) {
		residues.rows = append(residues.rows, []any{name, s.ResidueCounts[name]})
	}

	bonds := sheet{name: "Bond Lengths", rows: [][]any{{"Atom 1", "Atom 2", "Residue", "Chain", "Distance"}}}
	for _, bl := range s.BondLengths {
		bonds.rows = append(bonds.rows, []any{bl.Atom1, bl.Atom2, bl.Residue, bl.Chain, bl.Distance})
	}

	hist := sheet{name: "Histogram", rows: [][]any{{"Low", "High", "Count"}}}
	for _, bin := range Histogram(s.BondLengths, DefaultHistogramBins) {
		hist.rows = append(hist.rows, []any{bin.Low, bin.High, bin.Count})
	}

	return writeSheets(f, overview, chains, residues, bonds, hist)
}

func comparisonWorkbook(f *excelize.File, c *analysis.Comparison) error {
	overview := sheet{name: "Comparison", rows: [][]any{
		{"Field", "Structure 1", "Structure 2", "Difference"},
		{"ID", c.Structure1, c.Structure2, ""},
		{"Models", c.Totals1.Models, c.Totals2.Models, c.ModelCountDiff},
		{"Residues", c.Totals1.Residues, c.Totals2.Residues, c.ResidueCountDiff},
		{"Atoms", c.Totals1.Atoms, c.Totals2.Atoms, c.AtomCountDiff},
	}}

	sets := sheet{name: "Sets", rows: [][]any{
		{"Set", "Members"},
		{"Common chains", joinOrNone(c.CommonChains.Sorted())},
		{"Unique chains in structure 1", joinOrNone(c.UniqueChains1.Sorted())},
		{"Unique chains in structure 2", joinOrNone(c.UniqueChains2.Sorted())},
		{"Common residue types", joinOrNone(c.CommonResidueTypes.Sorted())},
		{"Unique residue types in structure 1", joinOrNone(c.UniqueResidueTypes1.Sorted())},
		{"Unique residue types in structure 2", joinOrNone(c.UniqueResidueTypes2.Sorted())},
	}}

	chains := sheet{name: "Chain Comparison", rows: [][]any{{"Chain", "Residue difference", "Atom difference"}}}
	for _, id := range sortedKeys(c.ChainComparison) {
		d := c.ChainComparison[id]
		chains.rows = append(chains.rows, []any{id, d.ResidueDiff, d.AtomDiff})
	}

	return writeSheets(f, overview, sets, chains)
}

// writeSheets replaces the default sheet with the first entry and appends
// the rest in order.
func writeSheets(f *excelize.File, sheets ...sheet) error {
	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return fmt.Errorf("create sheet %q: %w", sh.name, err)
		}
		for r, row := range sh.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
				return fmt.Errorf("write sheet %q row %d: %w", sh.name, r+1, err)
			}
		}
	}
	f.SetActiveSheet(0)
	return nil
}
