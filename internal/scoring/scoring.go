// Package scoring turns findings into confidence values and quality scores.
//
// Every function here is pure. Experts own their curves; this package only
// knows how to evaluate them.
package scoring

import (
	"fmt"

	"github.com/steveyegge/clewcrew/internal/types"
)

const (
	// CleanConfidence is reported when artifacts exist and nothing was found.
	CleanConfidence = 0.9

	// NoEvidenceConfidence is reported when no artifacts were discovered.
	NoEvidenceConfidence = 0.3

	baseConfidence     = 0.8
	highPenalty        = 0.1
	criticalPenalty    = 0.2
	maxRiskScore       = 10.0
	defaultMinorMax    = 3
	defaultModerateMax = 7
)

// Confidence derives an expert's confidence from its findings.
// Only high and critical findings lower it; the result is independent of order.
func Confidence(findings []types.Finding) float64 {
	if len(findings) == 0 {
		return CleanConfidence
	}

	var high, critical int
	for _, f := range findings {
		switch f.Priority.Normalize() {
		case types.PriorityHigh:
			high++
		case types.PriorityCritical:
			critical++
		}
	}

	c := baseConfidence - highPenalty*float64(high) - criticalPenalty*float64(critical)
	return clamp(c, 0, 1)
}

// RiskScore sums per-priority weights (critical 10, high 5, medium 2, low 1)
// and caps the total at 10.
func RiskScore(findings []types.Finding) float64 {
	score := 0.0
	for _, f := range findings {
		switch f.Priority.Normalize() {
		case types.PriorityCritical:
			score += 10
		case types.PriorityHigh:
			score += 5
		case types.PriorityMedium:
			score += 2
		case types.PriorityLow:
			score++
		}
	}
	if score > maxRiskScore {
		return maxRiskScore
	}
	return score
}

// Curve maps a finding count onto a quality score in five buckets.
type Curve struct {
	Floor       float64 `yaml:"floor" json:"floor"`
	Ceiling     float64 `yaml:"ceiling" json:"ceiling"`
	Minor       float64 `yaml:"minor" json:"minor"`
	Moderate    float64 `yaml:"moderate" json:"moderate"`
	Major       float64 `yaml:"major" json:"major"`
	MinorMax    int     `yaml:"minor_max" json:"minor_max"`
	ModerateMax int     `yaml:"moderate_max" json:"moderate_max"`
}

// NewCurve builds a curve with the standard 3/7 count cutoffs and a zero floor.
func NewCurve(ceiling, minor, moderate, major float64) Curve {
	return Curve{
		Ceiling:     ceiling,
		Minor:       minor,
		Moderate:    moderate,
		Major:       major,
		MinorMax:    defaultMinorMax,
		ModerateMax: defaultModerateMax,
	}
}

// Score evaluates the curve.
//
//	no artifacts            -> Floor
//	0 findings              -> Ceiling
//	1..MinorMax             -> Minor
//	MinorMax+1..ModerateMax -> Moderate
//	more                    -> Major
func (c Curve) Score(hasArtifacts bool, count int) float64 {
	switch {
	case !hasArtifacts:
		return c.Floor
	case count <= 0:
		return c.Ceiling
	case count <= c.MinorMax:
		return c.Minor
	case count <= c.ModerateMax:
		return c.Moderate
	}
	return c.Major
}

// Validate checks that the curve is monotonic and within [0, 100].
func (c Curve) Validate() error {
	if c.Floor < 0 || c.Ceiling > 100 {
		return fmt.Errorf("curve must lie within [0, 100] (floor %.1f, ceiling %.1f)", c.Floor, c.Ceiling)
	}
	if !(c.Floor <= c.Major && c.Major < c.Moderate && c.Moderate < c.Minor && c.Minor <= c.Ceiling) {
		return fmt.Errorf("curve must satisfy floor <= major < moderate < minor <= ceiling (got %.1f/%.1f/%.1f/%.1f/%.1f)",
			c.Floor, c.Major, c.Moderate, c.Minor, c.Ceiling)
	}
	if c.MinorMax <= 0 || c.ModerateMax <= c.MinorMax {
		return fmt.Errorf("curve cutoffs must satisfy 0 < minor_max < moderate_max (got %d/%d)", c.MinorMax, c.ModerateMax)
	}
	return nil
}

// Weighted is a score paired with its weight.
type Weighted struct {
	Score  float64
	Weight float64
}

// Composite returns the weighted arithmetic mean of the scores.
// The second result is false when the weights sum to zero.
func Composite(scores []Weighted) (float64, bool) {
	var sum, weights float64
	for _, s := range scores {
		if s.Weight <= 0 {
			continue
		}
		sum += s.Score * s.Weight
		weights += s.Weight
	}
	if weights == 0 {
		return 0, false
	}
	return sum / weights, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
