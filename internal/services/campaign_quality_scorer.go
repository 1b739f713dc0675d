package services

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-campaigns/internal/models"
)

// CampaignQualityMetrics breaks a campaign's strength score into its parts
type CampaignQualityMetrics struct {
	OverallScore      decimal.Decimal `json:"overall_score"`      // 0.0 to 1.0
	CompletenessScore decimal.Decimal `json:"completeness_score"` // 0.0 to 1.0
	VolumeScore       decimal.Decimal `json:"volume_score"`       // 0.0 to 1.0
	AbsorptionScore   decimal.Decimal `json:"absorption_score"`   // 0.0 to 1.0, only with a Spring
	HasSpring         bool            `json:"has_spring"`
}

// CampaignQualityScorer folds sequence completeness, volume behavior and
// absorption into one strength score
type CampaignQualityScorer struct {
	validator *SequenceValidator
	logger    *logrus.Logger
}

// NewCampaignQualityScorer creates a new campaign quality scorer
func NewCampaignQualityScorer(validator *SequenceValidator, logger *logrus.Logger) *CampaignQualityScorer {
	return &CampaignQualityScorer{
		validator: validator,
		logger:    logger,
	}
}

// AssessCampaignQuality scores c from its patterns and volume analysis.
func (cqs *CampaignQualityScorer) AssessCampaignQuality(c *models.Campaign, volume VolumeAnalysis) *CampaignQualityMetrics {
	completeness := cqs.validator.SequenceCompleteness(c.Kinds())
	volumeScore := cqs.calculateVolumeScore(volume.Profile)
	hasSpring := c.HasKind(models.PatternKindSpring)

	scores := map[string]decimal.Decimal{
		"completeness": completeness,
		"volume":       volumeScore,
	}
	if hasSpring {
		scores["absorption"] = volume.AbsorptionQuality
	}

	overall := cqs.calculateOverallScore(scores, hasSpring)

	cqs.logger.WithFields(logrus.Fields{
		"campaign_id":  c.ID,
		"completeness": completeness.String(),
		"volume":       volumeScore.String(),
		"absorption":   volume.AbsorptionQuality.String(),
		"overall":      overall.String(),
	}).Debug("Assessed campaign quality")

	return &CampaignQualityMetrics{
		OverallScore:      overall,
		CompletenessScore: completeness,
		VolumeScore:       volumeScore,
		AbsorptionScore:   volume.AbsorptionQuality,
		HasSpring:         hasSpring,
	}
}

// calculateVolumeScore ranks profiles Declining > Neutral = Unknown > Increasing.
func (cqs *CampaignQualityScorer) calculateVolumeScore(profile models.VolumeProfile) decimal.Decimal {
	switch profile {
	case models.VolumeProfileDeclining:
		return decimal.NewFromInt(1)
	case models.VolumeProfileIncreasing:
		return decimal.Zero
	case models.VolumeProfileNeutral, models.VolumeProfileUnknown:
		return decimal.NewFromFloat(0.5)
	default:
		return decimal.NewFromFloat(0.5)
	}
}

// calculateOverallScore weights the components. Absorption only carries
// weight when the campaign contains a Spring.
func (cqs *CampaignQualityScorer) calculateOverallScore(scores map[string]decimal.Decimal, hasSpring bool) decimal.Decimal {
	weights := map[string]decimal.Decimal{
		"completeness": decimal.NewFromFloat(0.6),
		"volume":       decimal.NewFromFloat(0.4),
	}
	if hasSpring {
		weights = map[string]decimal.Decimal{
			"completeness": decimal.NewFromFloat(0.5),
			"volume":       decimal.NewFromFloat(0.3),
			"absorption":   decimal.NewFromFloat(0.2),
		}
	}
	return weightedScore(scores, weights)
}
