package services

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-campaigns/internal/config"
	"github.com/irfndi/celebrum-campaigns/internal/models"
)

const (
	// minPatternsForVolumeAnalysis is the fewest patterns the analyzer will read a trend from.
	minPatternsForVolumeAnalysis = 3
	// volumeTrendPeriod is the EMA period used to smooth prior volume ratios.
	volumeTrendPeriod = 3
	// volumeTrendTolerance absorbs float noise when comparing against the EMA.
	volumeTrendTolerance = 1e-9
	// maxRecoveryBars is the recovery length at which a Spring earns no speed credit.
	maxRecoveryBars = 6
)

var (
	highEffortVolumeRatio   = decimal.NewFromFloat(1.5)
	minResultPerEffort      = decimal.NewFromFloat(0.5)
	lowSpringVolumeCeiling  = decimal.NewFromFloat(1.5)
	absorptionVolumeWeight  = decimal.NewFromFloat(0.50)
	absorptionSpeedWeight   = decimal.NewFromFloat(0.35)
	absorptionDeclineWeight = decimal.NewFromFloat(0.15)
)

// VolumeAnalysis holds the volume-derived signals of a campaign
type VolumeAnalysis struct {
	Profile           models.VolumeProfile `json:"profile"`
	EffortVsResult    models.EffortResult  `json:"effort_vs_result"`
	ClimaxDetected    bool                 `json:"climax_detected"`
	AbsorptionQuality decimal.Decimal      `json:"absorption_quality"`
	Sufficient        bool                 `json:"sufficient"`
}

// VolumeProfileAnalyzer classifies volume behavior across a campaign's patterns
type VolumeProfileAnalyzer struct {
	climaxMultiple decimal.Decimal
	logger         *logrus.Logger
}

// NewVolumeProfileAnalyzer creates a new volume profile analyzer
func NewVolumeProfileAnalyzer(cfg config.CampaignConfig, logger *logrus.Logger) *VolumeProfileAnalyzer {
	return &VolumeProfileAnalyzer{
		climaxMultiple: decimal.NewFromFloat(cfg.ClimaxVolumeMultiple),
		logger:         logger,
	}
}

// Analyze derives every volume signal for c. With fewer than three patterns
// nothing is extrapolated and every output is Unknown, false or zero.
func (vpa *VolumeProfileAnalyzer) Analyze(c *models.Campaign) VolumeAnalysis {
	result := VolumeAnalysis{
		Profile:           models.VolumeProfileUnknown,
		EffortVsResult:    models.EffortResultUnknown,
		AbsorptionQuality: decimal.Zero,
	}

	if len(c.Patterns) < minPatternsForVolumeAnalysis {
		vpa.logger.WithFields(logrus.Fields{
			"campaign_id":   c.ID,
			"pattern_count": len(c.Patterns),
		}).Debug("Insufficient patterns for volume analysis")
		return result
	}

	ratios := make([]decimal.Decimal, len(c.Patterns))
	for i, p := range c.Patterns {
		ratios[i] = p.VolumeRatio
	}

	result.Sufficient = true
	result.Profile = vpa.ClassifyProfile(ratios)
	result.EffortVsResult = vpa.EffortVsResult(c)
	result.ClimaxDetected = vpa.DetectClimax(ratios)
	result.AbsorptionQuality = vpa.AbsorptionQuality(c, result.Profile)
	return result
}

// ClassifyProfile returns Declining when every ratio sits at or below the EMA
// of the ratios before it, Increasing when ratios rise strictly, and Neutral
// otherwise. Declining volume into a test is the accumulation signal;
// Increasing is the distribution warning.
func (vpa *VolumeProfileAnalyzer) ClassifyProfile(ratios []decimal.Decimal) models.VolumeProfile {
	if len(ratios) < minPatternsForVolumeAnalysis {
		return models.VolumeProfileUnknown
	}

	values := make([]float64, len(ratios))
	for i, r := range ratios {
		values[i] = r.InexactFloat64()
	}

	declining := true
	for i := 1; i < len(values); i++ {
		if values[i] > smoothedTrend(values[:i])+volumeTrendTolerance {
			declining = false
			break
		}
	}
	if declining {
		return models.VolumeProfileDeclining
	}

	for i := 1; i < len(ratios); i++ {
		if !ratios[i].GreaterThan(ratios[i-1]) {
			return models.VolumeProfileNeutral
		}
	}
	return models.VolumeProfileIncreasing
}

// smoothedTrend returns the latest EMA value of prior, which must be non-empty.
func smoothedTrend(prior []float64) float64 {
	period := len(prior)
	if period > volumeTrendPeriod {
		period = volumeTrendPeriod
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	smoothed := helper.ChanToSlice(ema.Compute(helper.SliceToChan(prior)))
	if len(smoothed) == 0 {
		return prior[len(prior)-1]
	}
	return smoothed[len(smoothed)-1]
}

// EffortVsResult compares the latest pattern's volume (effort) with its spread
// relative to the campaign's average spread (result). Heavy volume that moves
// price less than half as much as it should is Divergence. The analyzer does
// not judge whether that is bullish or bearish.
func (vpa *VolumeProfileAnalyzer) EffortVsResult(c *models.Campaign) models.EffortResult {
	last := c.LastPattern()
	if last == nil || !last.SpreadPct.IsPositive() {
		vpa.logger.WithField("campaign_id", c.ID).Debug("Spread missing on latest pattern, effort vs result unknown")
		return models.EffortResultUnknown
	}

	total := decimal.Zero
	known := 0
	for _, p := range c.Patterns {
		if p.SpreadPct.IsPositive() {
			total = total.Add(p.SpreadPct)
			known++
		}
	}
	meanSpread := total.Div(decimal.NewFromInt(int64(known)))
	relativeSpread := last.SpreadPct.Div(meanSpread)

	if last.VolumeRatio.GreaterThanOrEqual(highEffortVolumeRatio) &&
		relativeSpread.Div(last.VolumeRatio).LessThan(minResultPerEffort) {
		return models.EffortResultDivergence
	}
	return models.EffortResultHarmony
}

// DetectClimax reports whether any ratio reaches the configured climax multiple.
func (vpa *VolumeProfileAnalyzer) DetectClimax(ratios []decimal.Decimal) bool {
	for _, r := range ratios {
		if r.GreaterThanOrEqual(vpa.climaxMultiple) {
			return true
		}
	}
	return false
}

// AbsorptionQuality scores the support-defining Spring in [0,1]:
//
//	0.50 * clamp((1.5 - volumeRatio) / 1.5)
//	0.35 * clamp(1 - (recoveryBars - 1) / 5)
//	0.15 * (1 if the campaign's volume profile is Declining)
//
// It is zero when the campaign has no Spring. An unknown recovery length
// earns no speed credit.
func (vpa *VolumeProfileAnalyzer) AbsorptionQuality(c *models.Campaign, profile models.VolumeProfile) decimal.Decimal {
	var spring *models.PatternEnvelope
	for i := range c.Patterns {
		p := &c.Patterns[i]
		if p.Kind != models.PatternKindSpring {
			continue
		}
		if spring == nil || p.Price.LessThan(spring.Price) {
			spring = p
		}
	}
	if spring == nil {
		return decimal.Zero
	}

	volumeComponent := clampUnit(lowSpringVolumeCeiling.Sub(spring.VolumeRatio).Div(lowSpringVolumeCeiling))

	speedComponent := decimal.Zero
	if spring.Spring != nil && spring.Spring.RecoveryBars > 0 {
		bars := decimal.NewFromInt(int64(spring.Spring.RecoveryBars - 1))
		speedComponent = clampUnit(decimalOne.Sub(bars.Div(decimal.NewFromInt(maxRecoveryBars - 1))))
	} else {
		vpa.logger.WithFields(logrus.Fields{
			"campaign_id": c.ID,
			"bar_index":   spring.BarIndex,
		}).Debug("Spring recovery length unknown, no speed credit")
	}

	declineComponent := decimal.Zero
	if profile == models.VolumeProfileDeclining {
		declineComponent = decimalOne
	}

	quality := volumeComponent.Mul(absorptionVolumeWeight).
		Add(speedComponent.Mul(absorptionSpeedWeight)).
		Add(declineComponent.Mul(absorptionDeclineWeight))
	return clampUnit(quality).Round(scorePrecision)
}
