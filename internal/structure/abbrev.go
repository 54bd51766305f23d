package structure

import "strings"

// StandardAminoAcids maps the three letter codes of the twenty standard amino
// acids to their single letter abbreviations. Residue type statistics only
// ever consider names in this table.
var StandardAminoAcids = map[string]byte{
	"ALA": 'A', "ARG": 'R', "ASN": 'N', "ASP": 'D', "CYS": 'C',
	"GLU": 'E', "GLN": 'Q', "GLY": 'G', "HIS": 'H', "ILE": 'I',
	"LEU": 'L', "LYS": 'K', "MET": 'M', "PHE": 'F', "PRO": 'P',
	"SER": 'S', "THR": 'T', "TRP": 'W', "TYR": 'Y', "VAL": 'V',
}

// IsStandardAminoAcid reports whether name is a standard amino acid code.
// The comparison is case-insensitive and ignores surrounding blanks.
func IsStandardAminoAcid(name string) bool {
	_, ok := StandardAminoAcids[strings.ToUpper(strings.TrimSpace(name))]
	return ok
}
