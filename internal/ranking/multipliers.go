package ranking

import "time"

// RecencyMultiplier applies a boost based on how recently a record was
// updated.
type RecencyMultiplier struct {
	config *RankingConfig
}

// NewRecencyMultiplier creates a new RecencyMultiplier.
func NewRecencyMultiplier(config *RankingConfig) *RecencyMultiplier {
	return &RecencyMultiplier{config: config}
}

// Multiply applies the recency multiplier to score as of now.
func (m *RecencyMultiplier) Multiply(updated, now time.Time, score float64) float64 {
	if !m.config.RecencyEnabled || score == 0 || updated.IsZero() {
		return score
	}
	return score * m.multiplier(now.Sub(updated))
}

func (m *RecencyMultiplier) multiplier(age time.Duration) float64 {
	switch {
	case age < 24*time.Hour:
		return m.config.Recency24hMultiplier
	case age < 7*24*time.Hour:
		return m.config.RecencyWeekMultiplier
	case age < 30*24*time.Hour:
		return m.config.RecencyMonthMultiplier
	default:
		return 1.0
	}
}
