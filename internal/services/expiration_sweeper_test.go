package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/celebrum-campaigns/internal/config"
	"github.com/irfndi/celebrum-campaigns/internal/models"
)

func TestExpirationSweeper_ExpiresOldCampaigns(t *testing.T) {
	es := NewExpirationSweeper(config.IntradayCampaignConfig(), quietLogger())

	old := campaignOf("old", models.CampaignStateForming, springAt(1, 0, "100", "0.6"))
	young := campaignOf("young", models.CampaignStateActive, springAt(2, 10, "100", "0.6"), rallyAt(3, 11, "105", "1"))

	now := hoursAfter(73)
	result := es.Sweep([]*models.Campaign{old, young}, now)

	require.Len(t, result.Expired, 1)
	assert.Same(t, old, result.Expired[0])
	assert.Equal(t, models.CampaignStateFailed, old.State)
	assert.Equal(t, "expired after 72 hours without completion", old.FailureReason)
	assert.Equal(t, now, old.UpdatedAt)

	assert.Equal(t, models.CampaignStateActive, young.State)
	assert.Empty(t, result.Dormant)
}

func TestExpirationSweeper_ExpiryBoundary(t *testing.T) {
	es := NewExpirationSweeper(config.IntradayCampaignConfig(), quietLogger())
	c := campaignOf("c1", models.CampaignStateForming, springAt(1, 0, "100", "0.6"))

	result := es.Sweep([]*models.Campaign{c}, hoursAfter(72))
	assert.Empty(t, result.Expired)
	assert.Equal(t, models.CampaignStateForming, c.State)

	result = es.Sweep([]*models.Campaign{c}, hoursAfter(72).Add(time.Second))
	assert.Len(t, result.Expired, 1)
}

func TestExpirationSweeper_LeavesTerminalCampaigns(t *testing.T) {
	es := NewExpirationSweeper(config.IntradayCampaignConfig(), quietLogger())

	completed := campaignOf("done", models.CampaignStateCompleted, springAt(1, 0, "100", "0.6"))
	failed := campaignOf("failed", models.CampaignStateFailed, springAt(2, 0, "100", "0.6"))
	failed.FailureReason = "closed below support"

	result := es.Sweep([]*models.Campaign{completed, failed}, hoursAfter(500))

	assert.Empty(t, result.Expired)
	assert.Equal(t, models.CampaignStateCompleted, completed.State)
	assert.Equal(t, "closed below support", failed.FailureReason)
}

func TestExpirationSweeper_Dormancy(t *testing.T) {
	cfg := config.IntradayCampaignConfig()
	cfg.DormantAfterHours = 12
	es := NewExpirationSweeper(cfg, quietLogger())

	c := campaignOf("c1", models.CampaignStateActive, springAt(1, 0, "100", "0.6"), rallyAt(2, 2, "105", "1"))

	result := es.Sweep([]*models.Campaign{c}, hoursAfter(14))
	assert.Empty(t, result.Dormant)

	result = es.Sweep([]*models.Campaign{c}, hoursAfter(15))
	require.Len(t, result.Dormant, 1)
	assert.Equal(t, models.CampaignStateDormant, c.State)

	// already dormant, not reported again
	result = es.Sweep([]*models.Campaign{c}, hoursAfter(20))
	assert.Empty(t, result.Dormant)

	// dormant campaigns still expire
	result = es.Sweep([]*models.Campaign{c}, hoursAfter(80))
	require.Len(t, result.Expired, 1)
	assert.Equal(t, models.CampaignStateFailed, c.State)
}

func TestExpirationSweeper_DormancyDisabled(t *testing.T) {
	es := NewExpirationSweeper(config.IntradayCampaignConfig(), quietLogger())
	c := campaignOf("c1", models.CampaignStateActive, springAt(1, 0, "100", "0.6"), rallyAt(2, 1, "105", "1"))

	result := es.Sweep([]*models.Campaign{c}, hoursAfter(60))

	assert.Empty(t, result.Dormant)
	assert.Equal(t, models.CampaignStateActive, c.State)
}
