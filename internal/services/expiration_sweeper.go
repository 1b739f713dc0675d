package services

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-campaigns/internal/config"
	"github.com/irfndi/celebrum-campaigns/internal/models"
)

// SweepResult lists the campaigns a sweep touched
type SweepResult struct {
	Expired []*models.Campaign
	Dormant []*models.Campaign
}

// ExpirationSweeper demotes stale campaigns. It runs on the caller's clock,
// never on a timer.
type ExpirationSweeper struct {
	config config.CampaignConfig
	logger *logrus.Logger
}

// NewExpirationSweeper creates a new expiration sweeper
func NewExpirationSweeper(cfg config.CampaignConfig, logger *logrus.Logger) *ExpirationSweeper {
	return &ExpirationSweeper{
		config: cfg,
		logger: logger,
	}
}

// ExpiryReason is the failure reason recorded on an expired campaign.
func (es *ExpirationSweeper) ExpiryReason() string {
	return fmt.Sprintf("expired after %d hours without completion", es.config.ExpirationHours)
}

// Sweep fails every open campaign older than the expiration window at now and,
// when a dormant window is configured, parks idle Forming/Active campaigns as
// Dormant. Campaigns are mutated in place.
func (es *ExpirationSweeper) Sweep(campaigns []*models.Campaign, now time.Time) SweepResult {
	var result SweepResult

	for _, c := range campaigns {
		if !c.State.IsOpen() {
			continue
		}

		if c.Age(now) > es.config.Expiration() {
			previous := c.State
			c.State = models.CampaignStateFailed
			c.FailureReason = es.ExpiryReason()
			c.UpdatedAt = now
			result.Expired = append(result.Expired, c)

			es.logger.WithFields(logrus.Fields{
				"campaign_id":    c.ID,
				"previous_state": previous,
				"age_hours":      int64(c.Age(now) / time.Hour),
				"reason":         c.FailureReason,
			}).Info("Campaign expired")
			continue
		}

		if es.config.DormantAfterHours > 0 && c.State != models.CampaignStateDormant &&
			now.Sub(c.LastPatternAt()) > es.config.DormantAfter() {
			c.State = models.CampaignStateDormant
			c.UpdatedAt = now
			result.Dormant = append(result.Dormant, c)

			es.logger.WithFields(logrus.Fields{
				"campaign_id": c.ID,
				"idle_hours":  int64(now.Sub(c.LastPatternAt()) / time.Hour),
			}).Info("Campaign went dormant")
		}
	}

	return result
}
