package lifecycle

import (
	"context"
	"math"
	"time"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// DefaultForgetThreshold and DefaultArchiveThreshold are the decay
// pass's default cutoffs (spec §4.9) when a Manager is constructed
// without explicit overrides.
const (
	DefaultForgetThreshold  = 0.1
	DefaultArchiveThreshold = 0.3
)

// EffectiveImportance computes a memory's decayed importance (spec
// §4.9): base · decay(age, rate, function) + 0.05·ln(1+access_count),
// clamped to 1.0.
func EffectiveImportance(base float64, ageHours, decayRate float64, fn model.DecayFunction, accessCount int64) float64 {
	decayed := decayCurve(ageHours, decayRate, fn)
	effective := base*decayed + 0.05*math.Log(1+float64(accessCount))
	if effective > 1.0 {
		effective = 1.0
	}
	if effective < 0 {
		effective = 0
	}
	return effective
}

// decayStepThresholdHours is the fixed threshold H used by the "step"
// decay curve (spec §4.9 names it but does not parameterize it per
// record, so mnemo fixes it at one week).
const decayStepThresholdHours = 24 * 7

func decayCurve(ageHours, rate float64, fn model.DecayFunction) float64 {
	if rate <= 0 {
		rate = 0.01
	}
	switch fn {
	case model.DecayLinear:
		v := 1 - rate*ageHours
		if v < 0 {
			return 0
		}
		return v
	case model.DecayStep:
		if ageHours < decayStepThresholdHours {
			return 1
		}
		return 0
	case model.DecayPowerLaw:
		const alpha = 1.5
		return 1 / math.Pow(1+rate*ageHours, alpha)
	default: // exponential
		return math.Exp(-rate * ageHours)
	}
}

// DecayResult tallies a pass's outcome.
type DecayResult struct {
	Forgotten []string
	Archived  []string
	Errors    map[string]error
}

// DecayPass walks an agent's active memories, computing effective
// importance and transitioning Forgotten/Archived rows (spec §4.9).
// Rows already in either terminal state are skipped.
func (m *Manager) DecayPass(ctx context.Context, agentID string) (*DecayResult, error) {
	records, err := m.Storage.ListMemories(ctx, m.memoryFilter(agentID))
	if err != nil {
		return nil, mnemoerr.Storage("listing memories for decay pass", err)
	}

	now := time.Now()
	result := &DecayResult{Errors: make(map[string]error)}
	for _, r := range records {
		if r.ConsolidationState == model.StateForgotten || r.ConsolidationState == model.StateArchived {
			continue
		}
		ageHours := now.Sub(r.CreatedAt).Hours()
		effective := EffectiveImportance(r.Importance, ageHours, r.DecayRate, r.DecayFunction, r.AccessCount)

		switch {
		case effective < m.forgetThreshold():
			r.ConsolidationState = model.StateForgotten
		case effective < m.archiveThreshold():
			r.ConsolidationState = model.StateArchived
		default:
			continue
		}
		r.UpdatedAt = now
		if err := m.Storage.UpdateMemory(ctx, r); err != nil {
			result.Errors[r.ID] = err
			continue
		}
		if r.ConsolidationState == model.StateForgotten {
			result.Forgotten = append(result.Forgotten, r.ID)
			m.removeFromIndexes(ctx, r.ID)
		} else {
			result.Archived = append(result.Archived, r.ID)
			if m.ColdStorage != nil {
				if err := m.ColdStorage.Archive(ctx, r); err != nil {
					m.logBestEffort(ctx, "decay_pass.cold_storage_archive", err)
				}
			}
		}
	}
	return result, nil
}

func (m *Manager) forgetThreshold() float64 {
	if m.ForgetThreshold > 0 {
		return m.ForgetThreshold
	}
	return DefaultForgetThreshold
}

func (m *Manager) archiveThreshold() float64 {
	if m.ArchiveThreshold > 0 {
		return m.ArchiveThreshold
	}
	return DefaultArchiveThreshold
}
