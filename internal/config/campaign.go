package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/irfndi/celebrum-campaigns/internal/utils"
)

// MaxRiskPctPerTrade is the hard per-trade risk ceiling in percent of account size.
// It is not configurable.
const MaxRiskPctPerTrade = 2.0

// ErrUnknownTimeframe is returned for a timeframe code no profile covers.
var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Timeframe profile names
const (
	ProfileIntraday = "intraday"
	ProfileDaily    = "daily"
)

// CampaignConfig controls windowing, lifecycle and portfolio limits for one engine.
type CampaignConfig struct {
	Timeframe              string  `mapstructure:"timeframe"`
	Profile                string  `mapstructure:"profile"`
	CampaignWindowHours    int     `mapstructure:"campaign_window_hours"`
	MaxPatternGapHours     int     `mapstructure:"max_pattern_gap_hours"`
	MinPatternsForActive   int     `mapstructure:"min_patterns_for_active"`
	ExpirationHours        int     `mapstructure:"expiration_hours"`
	MaxConcurrentCampaigns int     `mapstructure:"max_concurrent_campaigns"`
	MaxPortfolioHeatPct    float64 `mapstructure:"max_portfolio_heat_pct"`
	DormantAfterHours      int     `mapstructure:"dormant_after_hours"` // 0 disables the dormant state
	ClimaxVolumeMultiple   float64 `mapstructure:"climax_volume_multiple"`
}

// CampaignWindow returns the maximum campaign span.
func (c CampaignConfig) CampaignWindow() time.Duration {
	return time.Duration(c.CampaignWindowHours) * time.Hour
}

// MaxPatternGap returns the maximum allowed gap between consecutive patterns.
func (c CampaignConfig) MaxPatternGap() time.Duration {
	return time.Duration(c.MaxPatternGapHours) * time.Hour
}

// Expiration returns the age after which an unfinished campaign fails.
func (c CampaignConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

// DormantAfter returns the idle window, zero when disabled.
func (c CampaignConfig) DormantAfter() time.Duration {
	return time.Duration(c.DormantAfterHours) * time.Hour
}

// Validate checks every setting against its documented range.
func (c CampaignConfig) Validate() error {
	if c.CampaignWindowHours < 1 || c.CampaignWindowHours > 2160 {
		return utils.NewFieldError("campaign_window_hours", "must be between 1 and 2160, got %d", c.CampaignWindowHours)
	}
	if c.MaxPatternGapHours < 1 || c.MaxPatternGapHours > c.CampaignWindowHours {
		return utils.NewFieldError("max_pattern_gap_hours", "must be between 1 and campaign_window_hours (%d), got %d",
			c.CampaignWindowHours, c.MaxPatternGapHours)
	}
	if c.MinPatternsForActive < 2 || c.MinPatternsForActive > 5 {
		return utils.NewFieldError("min_patterns_for_active", "must be between 2 and 5, got %d", c.MinPatternsForActive)
	}
	if c.ExpirationHours < c.MaxPatternGapHours || c.ExpirationHours > 4320 {
		return utils.NewFieldError("expiration_hours", "must be between max_pattern_gap_hours (%d) and 4320, got %d",
			c.MaxPatternGapHours, c.ExpirationHours)
	}
	if c.MaxConcurrentCampaigns < 1 || c.MaxConcurrentCampaigns > 20 {
		return utils.NewFieldError("max_concurrent_campaigns", "must be between 1 and 20, got %d", c.MaxConcurrentCampaigns)
	}
	if c.MaxPortfolioHeatPct < 5.0 || c.MaxPortfolioHeatPct > 50.0 {
		return utils.NewFieldError("max_portfolio_heat_pct", "must be between 5.0 and 50.0, got %v", c.MaxPortfolioHeatPct)
	}
	if c.DormantAfterHours < 0 || (c.DormantAfterHours > 0 && c.DormantAfterHours >= c.ExpirationHours) {
		return utils.NewFieldError("dormant_after_hours", "must be 0 or below expiration_hours (%d), got %d",
			c.ExpirationHours, c.DormantAfterHours)
	}
	if c.ClimaxVolumeMultiple < 1.0 || c.ClimaxVolumeMultiple > 10.0 {
		return utils.NewFieldError("climax_volume_multiple", "must be between 1.0 and 10.0, got %v", c.ClimaxVolumeMultiple)
	}
	return nil
}

// IntradayCampaignConfig is tuned for minute and hour bars.
func IntradayCampaignConfig() CampaignConfig {
	return CampaignConfig{
		Timeframe:              "1h",
		Profile:                ProfileIntraday,
		CampaignWindowHours:    48,
		MaxPatternGapHours:     48,
		MinPatternsForActive:   2,
		ExpirationHours:        72,
		MaxConcurrentCampaigns: 3,
		MaxPortfolioHeatPct:    10.0,
		DormantAfterHours:      0,
		ClimaxVolumeMultiple:   2.0,
	}
}

// DailyCampaignConfig is tuned for daily and longer bars: windows ten times
// the intraday ones with the same heat ceiling.
func DailyCampaignConfig() CampaignConfig {
	return CampaignConfig{
		Timeframe:              "1d",
		Profile:                ProfileDaily,
		CampaignWindowHours:    480,
		MaxPatternGapHours:     240,
		MinPatternsForActive:   2,
		ExpirationHours:        720,
		MaxConcurrentCampaigns: 3,
		MaxPortfolioHeatPct:    10.0,
		DormantAfterHours:      0,
		ClimaxVolumeMultiple:   2.0,
	}
}

// DefaultCampaignConfig returns the intraday profile.
func DefaultCampaignConfig() CampaignConfig {
	return IntradayCampaignConfig()
}

// ProfileForTimeframe selects a preset by timeframe code. Minute and hour codes
// ("1m", "15m", "4h") map to the intraday profile; "1d", "1w", "1M" and "1mo"
// map to the daily profile.
func ProfileForTimeframe(code string) (CampaignConfig, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return CampaignConfig{}, fmt.Errorf("%w: empty code", ErrUnknownTimeframe)
	}

	unit, ok := timeframeUnit(trimmed)
	if !ok {
		return CampaignConfig{}, fmt.Errorf("%w: %q", ErrUnknownTimeframe, code)
	}

	var cfg CampaignConfig
	switch unit {
	case "m", "h":
		cfg = IntradayCampaignConfig()
	case "d", "w", "M":
		cfg = DailyCampaignConfig()
	}
	cfg.Timeframe = trimmed
	return cfg, nil
}

// timeframeUnit splits a code like "15m" into its unit. "M" and "mo" both mean
// months; lowercase "m" means minutes.
func timeframeUnit(code string) (string, bool) {
	var digits, unit string
	for i, r := range code {
		if r < '0' || r > '9' {
			digits, unit = code[:i], code[i:]
			break
		}
	}
	if digits == "" || digits[0] == '0' {
		return "", false
	}

	switch unit {
	case "m", "min":
		return "m", true
	case "h", "H":
		return "h", true
	case "d", "D":
		return "d", true
	case "w", "W":
		return "w", true
	case "M", "mo", "MO":
		return "M", true
	default:
		return "", false
	}
}
