// Package lifecycle implements mnemo's background memory-lifecycle
// machinery (spec §4.9): remember-time anomaly scoring, the decay
// pass, consolidation, conflict detection, and the scheduler that
// drives them periodically.
package lifecycle

import (
	"strings"
	"time"

	"github.com/mnemo-db/mnemo/pkg/model"
)

// AnomalyScore computes the remember-time anomaly score for a new
// record against its agent's running profile (spec §4.9). N is the
// profile's observation count before this record.
func AnomalyScore(profile *model.AgentProfile, importance float64, contentLength int, createdAt time.Time) (score float64, reasons []string) {
	if profile == nil || profile.MemoryCount == 0 {
		return 0, nil
	}
	n := profile.MemoryCount

	if absFloat(importance-profile.MeanImportance) > 0.4 {
		score += 0.3
		reasons = append(reasons, "importance deviates from agent mean")
	}
	if profile.MeanContentLength > 0 {
		ratio := float64(contentLength) / profile.MeanContentLength
		if ratio < 0.1 || ratio > 5.0 {
			score += 0.3
			reasons = append(reasons, "content length outside expected range")
		}
	}
	if n > 10 && !profile.LastUpdated.IsZero() {
		delta := createdAt.Sub(profile.LastUpdated)
		if delta < 0 {
			delta = -delta
		}
		if delta <= time.Second {
			score += 0.4
			reasons = append(reasons, "write burst detected")
		}
	}
	return score, reasons
}

// QuarantineThreshold is the anomaly score at or above which a new
// record is quarantined (spec §4.9).
const QuarantineThreshold = 0.5

// QuarantineReason joins individual reasons into the single stored
// string (spec §4.8.1 step 10).
func QuarantineReason(reasons []string) string {
	return strings.Join(reasons, "; ")
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
