package fusion

import (
	"math"
	"time"
)

// DefaultHalfLifeHours is the recency half-life used when the caller
// does not override it (spec §4.7).
const DefaultHalfLifeHours = 168.0

// Recency scores createdAt's age against now using exponential decay
// with the given half-life in hours, clamped to [0, 1]. Future
// timestamps score 1.0; unparseable timestamps are handled by the
// caller passing the zero time, which this function maps to 0.5 since
// a missing signal should neither favor nor penalize an item.
func Recency(createdAt, now time.Time, halfLifeHours float64) float64 {
	if createdAt.IsZero() {
		return 0.5
	}
	if halfLifeHours <= 0 {
		halfLifeHours = DefaultHalfLifeHours
	}
	ageHours := now.Sub(createdAt).Hours()
	if ageHours < 0 {
		return 1.0
	}
	decayConstant := math.Ln2 / halfLifeHours
	score := math.Exp(-decayConstant * ageHours)
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// RecencyFromString parses an RFC3339 timestamp and scores it,
// returning 0.5 for an unparseable string (spec §4.7).
func RecencyFromString(createdAtRFC3339 string, now time.Time, halfLifeHours float64) float64 {
	t, err := time.Parse(time.RFC3339, createdAtRFC3339)
	if err != nil {
		return 0.5
	}
	return Recency(t, now, halfLifeHours)
}
