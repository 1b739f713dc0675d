package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/irfndi/celebrum-campaigns/internal/models"
)

func newTestQualityScorer() *CampaignQualityScorer {
	return NewCampaignQualityScorer(NewSequenceValidator(), quietLogger())
}

func TestCampaignQualityScorer_AssessCampaignQuality(t *testing.T) {
	cqs := newTestQualityScorer()

	c := campaignOf("c1", models.CampaignStateActive,
		springAt(1, 0, "100", "1.8"),
		rallyAt(2, 1, "105", "1.2"),
		breakoutAt(3, 2, "107", "0.7"),
	)
	metrics := cqs.AssessCampaignQuality(c, VolumeAnalysis{
		Profile:           models.VolumeProfileDeclining,
		AbsorptionQuality: dec("0.73"),
		Sufficient:        true,
	})

	assert.True(t, metrics.HasSpring)
	assert.True(t, dec("0.85").Equal(metrics.CompletenessScore))
	assert.True(t, dec("1").Equal(metrics.VolumeScore))
	assert.True(t, dec("0.73").Equal(metrics.AbsorptionScore))
	// 0.5*0.85 + 0.3*1 + 0.2*0.73
	assert.True(t, dec("0.871").Equal(metrics.OverallScore), "got %s", metrics.OverallScore)
}

func TestCampaignQualityScorer_WithoutSpring(t *testing.T) {
	cqs := newTestQualityScorer()

	c := campaignOf("c1", models.CampaignStateForming,
		breakoutAt(1, 0, "110", "1.6"),
		retestAt(2, 1, "108", "0.8"),
	)
	metrics := cqs.AssessCampaignQuality(c, VolumeAnalysis{
		Profile:           models.VolumeProfileUnknown,
		AbsorptionQuality: dec("0.9"),
	})

	assert.False(t, metrics.HasSpring)
	// 0.6*0.5 + 0.4*0.5, absorption carries no weight
	assert.True(t, dec("0.5").Equal(metrics.OverallScore), "got %s", metrics.OverallScore)
}

func TestCampaignQualityScorer_MoreCompleteSequenceScoresHigher(t *testing.T) {
	cqs := newTestQualityScorer()
	volume := VolumeAnalysis{Profile: models.VolumeProfileNeutral, AbsorptionQuality: dec("0.5")}

	partial := campaignOf("p", models.CampaignStateActive,
		springAt(1, 0, "100", "0.8"),
		breakoutAt(2, 1, "107", "1.0"),
	)
	fuller := campaignOf("f", models.CampaignStateActive,
		springAt(1, 0, "100", "0.8"),
		rallyAt(2, 1, "105", "0.9"),
		breakoutAt(3, 2, "107", "1.0"),
	)

	partialScore := cqs.AssessCampaignQuality(partial, volume).OverallScore
	fullerScore := cqs.AssessCampaignQuality(fuller, volume).OverallScore

	assert.True(t, fullerScore.GreaterThan(partialScore), "fuller %s <= partial %s", fullerScore, partialScore)
}

func TestCampaignQualityScorer_DecliningVolumeScoresHigher(t *testing.T) {
	cqs := newTestQualityScorer()

	c := campaignOf("c1", models.CampaignStateActive,
		springAt(1, 0, "100", "0.8"),
		rallyAt(2, 1, "105", "0.9"),
		breakoutAt(3, 2, "107", "1.0"),
	)

	declining := cqs.AssessCampaignQuality(c, VolumeAnalysis{Profile: models.VolumeProfileDeclining}).OverallScore
	neutral := cqs.AssessCampaignQuality(c, VolumeAnalysis{Profile: models.VolumeProfileNeutral}).OverallScore
	increasing := cqs.AssessCampaignQuality(c, VolumeAnalysis{Profile: models.VolumeProfileIncreasing}).OverallScore

	assert.True(t, declining.GreaterThan(neutral))
	assert.True(t, neutral.GreaterThan(increasing))
}

func TestCampaignQualityScorer_ScoreBounds(t *testing.T) {
	cqs := newTestQualityScorer()
	one := decimal.NewFromInt(1)

	c := campaignOf("c1", models.CampaignStateActive,
		springAt(1, 0, "100", "0.1"),
		rallyAt(2, 1, "105", "0.1"),
		breakoutAt(3, 2, "107", "0.1"),
		retestAt(4, 3, "104", "0.1"),
	)
	best := cqs.AssessCampaignQuality(c, VolumeAnalysis{Profile: models.VolumeProfileDeclining, AbsorptionQuality: dec("5")})
	assert.True(t, best.OverallScore.Equal(one), "got %s", best.OverallScore)

	empty := campaignOf("c2", models.CampaignStateForming)
	worst := cqs.AssessCampaignQuality(empty, VolumeAnalysis{Profile: models.VolumeProfileIncreasing})
	assert.True(t, worst.OverallScore.IsZero(), "got %s", worst.OverallScore)
}
