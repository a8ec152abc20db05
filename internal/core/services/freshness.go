package services

import (
	"time"

	"github.com/veralis-labs/kbindex/internal/core/domain"
)

// FreshnessScorer computes a decay-based relevance multiplier from
// document age. The score is a pure function of (year, now): recomputing
// it is idempotent, and older documents never score higher than newer
// ones.
type FreshnessScorer struct {
	cfg domain.FreshnessConfig
	now func() time.Time
}

// NewFreshnessScorer creates a scorer with the given decay boundaries.
func NewFreshnessScorer(cfg domain.FreshnessConfig) *FreshnessScorer {
	if cfg.RecentYears <= 0 {
		cfg.RecentYears = 2
	}
	if cfg.AgingYears <= cfg.RecentYears {
		cfg.AgingYears = cfg.RecentYears + 3
	}
	return &FreshnessScorer{cfg: cfg, now: time.Now}
}

// Score returns the freshness score in [0,1] for a publication year,
// and whether the document counts as outdated.
//
// Piecewise decay over age in years:
//   - age < RecentYears:  [0.95, 1.0]
//   - RecentYears..AgingYears: [0.5, 0.9]
//   - age > AgingYears:   [0.2, 0.5], flagged outdated
func (s *FreshnessScorer) Score(year int) (float64, bool) {
	age := s.now().Year() - year
	if age < 0 {
		age = 0
	}

	recent := s.cfg.RecentYears
	aging := s.cfg.AgingYears

	switch {
	case age < recent:
		// Linear within [0.95, 1.0] across the recent band.
		return 1.0 - 0.05*float64(age)/float64(recent), false

	case age <= aging:
		// Linear from 0.9 down to 0.5 across the aging band.
		t := float64(age-recent) / float64(aging-recent)
		return 0.9 - 0.4*t, false

	default:
		score := 0.5 - 0.03*float64(age-aging)
		if score < 0.2 {
			score = 0.2
		}
		return score, true
	}
}

// Bucket classifies a publication year into a freshness band.
func (s *FreshnessScorer) Bucket(year int) domain.FreshnessBucket {
	age := s.now().Year() - year
	if age < 0 {
		age = 0
	}
	switch {
	case age < s.cfg.RecentYears:
		return domain.FreshnessRecent
	case age <= s.cfg.AgingYears:
		return domain.FreshnessAging
	default:
		return domain.FreshnessHistorical
	}
}
