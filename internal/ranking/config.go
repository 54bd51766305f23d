package ranking

// RankingConfig holds the weights used to re-rank history search hits.
type RankingConfig struct {
	// Weights for the two score components
	KeywordWeight    float64 `yaml:"keyword_weight"`    // default: 1.0
	IdentifierWeight float64 `yaml:"identifier_weight"` // default: 1.0

	// Identifier scoring values, in [0,1]
	ExactIDScore     float64 `yaml:"exact_id_score"`     // default: 1.0
	ExactNameScore   float64 `yaml:"exact_name_score"`   // default: 0.95
	AllTermsScore    float64 `yaml:"all_terms_score"`    // default: 0.6
	PrefixMatchScore float64 `yaml:"prefix_match_score"` // default: 0.3

	// Recency multiplier settings
	RecencyEnabled         bool    `yaml:"recency_enabled"`          // default: true
	Recency24hMultiplier   float64 `yaml:"recency_24h_multiplier"`   // default: 1.1
	RecencyWeekMultiplier  float64 `yaml:"recency_week_multiplier"`  // default: 1.05
	RecencyMonthMultiplier float64 `yaml:"recency_month_multiplier"` // default: 1.02
}

// DefaultRankingConfig returns the default ranking configuration.
func DefaultRankingConfig() *RankingConfig {
	return &RankingConfig{
		KeywordWeight:          1.0,
		IdentifierWeight:       1.0,
		ExactIDScore:           1.0,
		ExactNameScore:         0.95,
		AllTermsScore:          0.6,
		PrefixMatchScore:       0.3,
		RecencyEnabled:         true,
		Recency24hMultiplier:   1.1,
		RecencyWeekMultiplier:  1.05,
		RecencyMonthMultiplier: 1.02,
	}
}

// ApplyDefaults fills zero numeric values with defaults.
func (c *RankingConfig) ApplyDefaults() {
	d := DefaultRankingConfig()
	setDefault(&c.KeywordWeight, d.KeywordWeight)
	setDefault(&c.IdentifierWeight, d.IdentifierWeight)
	setDefault(&c.ExactIDScore, d.ExactIDScore)
	setDefault(&c.ExactNameScore, d.ExactNameScore)
	setDefault(&c.AllTermsScore, d.AllTermsScore)
	setDefault(&c.PrefixMatchScore, d.PrefixMatchScore)
	setDefault(&c.Recency24hMultiplier, d.Recency24hMultiplier)
	setDefault(&c.RecencyWeekMultiplier, d.RecencyWeekMultiplier)
	setDefault(&c.RecencyMonthMultiplier, d.RecencyMonthMultiplier)
}

func setDefault(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}
