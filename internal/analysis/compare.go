package analysis

// Totals are the structure-wide counts of one side of a comparison.
type Totals struct {
	Models   int `json:"models"`
	Residues int `json:"residues"`
	Atoms    int `json:"atoms"`
}

// ChainDelta holds the count differences for a chain present in both
// structures.
type ChainDelta struct {
	ResidueDiff int `json:"residue_diff"`
	AtomDiff    int `json:"atom_diff"`
}

// Comparison is the diff of two summaries. Every difference is the first
// summary's value minus the second's.
type Comparison struct {
	Structure1 string `json:"structure1"`
	Structure2 string `json:"structure2"`

	ModelCountDiff   int `json:"model_count_diff"`
	ResidueCountDiff int `json:"residue_count_diff"`
	AtomCountDiff    int `json:"atom_count_diff"`

	Totals1 Totals `json:"totals1"`
	Totals2 Totals `json:"totals2"`

	CommonChains  StringSet `json:"common_chains"`
	UniqueChains1 StringSet `json:"unique_chains_1"`
	UniqueChains2 StringSet `json:"unique_chains_2"`

	CommonResidueTypes  StringSet `json:"common_residue_types"`
	UniqueResidueTypes1 StringSet `json:"unique_residue_types_1"`
	UniqueResidueTypes2 StringSet `json:"unique_residue_types_2"`

	// ChainComparison is keyed by exactly the members of CommonChains.
	ChainComparison map[string]ChainDelta `json:"chain_comparison"`
}

// Compare diffs s1 against s2. Argument order matters for the signed
// differences. It panics if either summary is nil.
func Compare(s1, s2 *Summary) *Comparison {
	if s1 == nil || s2 == nil {
		panic("analysis: Compare called with nil summary")
	}
	chains1, chains2 := s1.chainSet(), s2.chainSet()
	types1, types2 := nonNil(s1.ResidueTypes), nonNil(s2.ResidueTypes)

	c := &Comparison{
		Structure1:       s1.StructureID,
		Structure2:       s2.StructureID,
		ModelCountDiff:   s1.ModelCount - s2.ModelCount,
		ResidueCountDiff: s1.ResidueCount - s2.ResidueCount,
		AtomCountDiff:    s1.AtomCount - s2.AtomCount,
		Totals1:          s1.totals(),
		Totals2:          s2.totals(),

		CommonChains:  chains1.Intersect(chains2),
		UniqueChains1: chains1.Difference(chains2),
		UniqueChains2: chains2.Difference(chains1),

		CommonResidueTypes:  types1.Intersect(types2),
		UniqueResidueTypes1: types1.Difference(types2),
		UniqueResidueTypes2: types2.Difference(types1),

		ChainComparison: make(map[string]ChainDelta),
	}
	for id := range c.CommonChains {
		a, b := s1.Chains[id], s2.Chains[id]
		c.ChainComparison[id] = ChainDelta{
			ResidueDiff: a.ResidueCount - b.ResidueCount,
			AtomDiff:    a.AtomCount - b.AtomCount,
		}
	}
	return c
}

func (s *Summary) chainSet() StringSet {
	set := make(StringSet, len(s.Chains))
	for id := range s.Chains {
		set.Add(id)
	}
	return set
}

func (s *Summary) totals() Totals {
	return Totals{Models: s.ModelCount, Residues: s.ResidueCount, Atoms: s.AtomCount}
}

func nonNil(s StringSet) StringSet {
	if s == nil {
		return StringSet{}
	}
	return s
}
