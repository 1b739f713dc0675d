package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-campaigns/internal/models"
)

// PhaseTracker keeps a campaign's Wyckoff phase and its history
type PhaseTracker struct {
	logger *logrus.Logger
}

// NewPhaseTracker creates a new phase tracker
func NewPhaseTracker(logger *logrus.Logger) *PhaseTracker {
	return &PhaseTracker{logger: logger}
}

// InferPhase maps a pattern kind to the phase it usually occurs in.
func (pt *PhaseTracker) InferPhase(kind models.PatternKind) models.WyckoffPhase {
	switch kind {
	case models.PatternKindSpring, models.PatternKindRally:
		return models.PhaseC
	case models.PatternKindBreakout, models.PatternKindSupportRetest:
		return models.PhaseD
	default:
		return models.PhaseUnknown
	}
}

// AdvanceFromPattern moves c forward to the phase implied by p. Inference never
// moves a campaign backwards; it reports whether the phase changed.
func (pt *PhaseTracker) AdvanceFromPattern(c *models.Campaign, p models.PatternEnvelope) bool {
	inferred := pt.InferPhase(p.Kind)
	if inferred.Rank() <= c.CurrentPhase.Rank() {
		return false
	}
	pt.Record(c, inferred, p.BarIndex, p.DetectedAt)
	return true
}

// Record sets the phase explicitly and appends it to the history. The
// transition counter only moves when the phase actually changes.
func (pt *PhaseTracker) Record(c *models.Campaign, phase models.WyckoffPhase, barIndex int64, at time.Time) {
	previous := c.CurrentPhase
	c.PhaseHistory = append(c.PhaseHistory, models.PhaseTransition{
		At:       at,
		Phase:    phase,
		BarIndex: barIndex,
	})
	if previous != phase {
		c.PhaseTransitions++
		c.CurrentPhase = phase

		pt.logger.WithFields(logrus.Fields{
			"campaign_id": c.ID,
			"from":        previous,
			"to":          phase,
			"bar_index":   barIndex,
		}).Debug("Campaign phase changed")
	}
}
