package services

import (
	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-campaigns/internal/config"
	"github.com/irfndi/celebrum-campaigns/internal/models"
)

// MatchDecision is the matcher's answer for one pattern
type MatchDecision struct {
	// Campaign is the campaign to extend, nil when a new one is needed.
	Campaign *models.Campaign
	// InWindow counts open campaigns whose time window covered the pattern.
	InWindow int
	// IllegalSuccessor is set when some in-window campaign refused the
	// pattern on grammar alone.
	IllegalSuccessor bool
}

// TemporalWindowMatcher decides which open campaign, if any, a pattern extends
type TemporalWindowMatcher struct {
	config    config.CampaignConfig
	validator *SequenceValidator
	logger    *logrus.Logger
}

// NewTemporalWindowMatcher creates a new temporal window matcher
func NewTemporalWindowMatcher(cfg config.CampaignConfig, validator *SequenceValidator, logger *logrus.Logger) *TemporalWindowMatcher {
	return &TemporalWindowMatcher{
		config:    cfg,
		validator: validator,
		logger:    logger,
	}
}

// Match selects the most recently active open campaign that p can extend. A
// campaign qualifies when p arrives within MaxPatternGap of its last pattern
// and within CampaignWindow of its creation, strictly after its last pattern,
// and as a legal grammar successor. Ties on the last-pattern time go to the
// newer campaign, then to the later registry position.
func (m *TemporalWindowMatcher) Match(p models.PatternEnvelope, campaigns []*models.Campaign) MatchDecision {
	var decision MatchDecision

	for _, c := range campaigns {
		if !c.State.IsOpen() {
			continue
		}
		last := c.LastPattern()
		if last == nil {
			continue
		}
		if !m.withinWindow(p, c, last) {
			continue
		}
		decision.InWindow++

		if !m.validator.IsLegalSuccessor(last.Kind, p.Kind) {
			decision.IllegalSuccessor = true
			m.logger.WithFields(logrus.Fields{
				"campaign_id": c.ID,
				"last_kind":   last.Kind.ShortCode(),
				"next_kind":   p.Kind.ShortCode(),
			}).Debug("Pattern is not a legal successor, skipping campaign")
			continue
		}

		if decision.Campaign == nil || moreRecentlyActive(c, decision.Campaign) {
			decision.Campaign = c
		}
	}

	return decision
}

func (m *TemporalWindowMatcher) withinWindow(p models.PatternEnvelope, c *models.Campaign, last *models.PatternEnvelope) bool {
	if p.DetectedAt.Before(last.DetectedAt) {
		return false
	}
	if p.DetectedAt.Equal(last.DetectedAt) && p.BarIndex <= last.BarIndex {
		return false
	}
	if p.DetectedAt.Sub(last.DetectedAt) > m.config.MaxPatternGap() {
		return false
	}
	return p.DetectedAt.Sub(c.CreatedAt) <= m.config.CampaignWindow()
}

// moreRecentlyActive reports whether a should win the tie-break against b.
// Equal campaigns resolve to a, the later one in registry order.
func moreRecentlyActive(a, b *models.Campaign) bool {
	aLast, bLast := a.LastPatternAt(), b.LastPatternAt()
	if !aLast.Equal(bLast) {
		return aLast.After(bLast)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return true
}
