package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-campaigns/internal/config"
	"github.com/irfndi/celebrum-campaigns/internal/models"
)

var (
	// ErrInvalidRiskPct is returned when the per-trade risk is outside (0, 2.0].
	ErrInvalidRiskPct = errors.New("invalid risk percentage per trade")
	// ErrInvalidAccountSize is returned for a non-positive account size.
	ErrInvalidAccountSize = errors.New("invalid account size")
)

var maxRiskPctPerTrade = decimal.NewFromFloat(config.MaxRiskPctPerTrade)

// PositionSizing is the result of sizing one campaign
type PositionSizing struct {
	EntryPrice   decimal.Decimal `json:"entry_price"`
	SupportLevel decimal.Decimal `json:"support_level"`
	RiskPerShare decimal.Decimal `json:"risk_per_share"`
	PositionSize decimal.Decimal `json:"position_size"`
	DollarRisk   decimal.Decimal `json:"dollar_risk"`
	Deferred     bool            `json:"deferred"` // no usable support below entry yet
}

// RiskDecision is the enforcer's verdict on accepting a campaign change
type RiskDecision struct {
	Approved      bool                   `json:"approved"`
	Reason        models.RejectionReason `json:"reason,omitempty"`
	Detail        string                 `json:"detail,omitempty"`
	Sizing        PositionSizing         `json:"sizing"`
	ProjectedHeat decimal.Decimal        `json:"projected_heat"`
	HeatLimit     decimal.Decimal        `json:"heat_limit"`
}

// RiskBudgetEnforcer sizes positions and keeps portfolio heat and the number
// of active campaigns under their ceilings.
type RiskBudgetEnforcer struct {
	config config.CampaignConfig
	logger *logrus.Logger
}

// NewRiskBudgetEnforcer creates a new risk budget enforcer
func NewRiskBudgetEnforcer(cfg config.CampaignConfig, logger *logrus.Logger) *RiskBudgetEnforcer {
	return &RiskBudgetEnforcer{
		config: cfg,
		logger: logger,
	}
}

// ValidateRiskPct enforces the non-overridable per-trade ceiling.
func ValidateRiskPct(riskPct decimal.Decimal) error {
	if !riskPct.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidRiskPct, riskPct)
	}
	if riskPct.GreaterThan(maxRiskPctPerTrade) {
		return fmt.Errorf("%w: %s exceeds the %s%% ceiling", ErrInvalidRiskPct, riskPct, maxRiskPctPerTrade)
	}
	return nil
}

// ValidateAccountSize rejects zero or negative account sizes.
func ValidateAccountSize(accountSize decimal.Decimal) error {
	if !accountSize.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidAccountSize, accountSize)
	}
	return nil
}

// CalculatePositionSize sizes a position so that a stop at support loses at
// most riskPct of the account. A missing or non-protective support defers
// sizing and yields a zero position.
func (rbe *RiskBudgetEnforcer) CalculatePositionSize(entry, support, accountSize, riskPct decimal.Decimal) (PositionSizing, error) {
	if err := ValidateRiskPct(riskPct); err != nil {
		return PositionSizing{}, err
	}
	if err := ValidateAccountSize(accountSize); err != nil {
		return PositionSizing{}, err
	}

	sizing := PositionSizing{
		EntryPrice:   entry,
		SupportLevel: support,
		RiskPerShare: decimal.Zero,
		PositionSize: decimal.Zero,
		DollarRisk:   decimal.Zero,
	}

	riskPerShare := entry.Sub(support)
	if !support.IsPositive() || !riskPerShare.IsPositive() {
		sizing.Deferred = true
		rbe.logger.WithFields(logrus.Fields{
			"entry_price":   entry.String(),
			"support_level": support.String(),
		}).Debug("Position sizing deferred, no support below entry")
		return sizing, nil
	}

	budget := pctOf(accountSize, riskPct)
	size := budget.Div(riskPerShare).Floor()

	sizing.RiskPerShare = riskPerShare
	sizing.PositionSize = size
	sizing.DollarRisk = size.Mul(riskPerShare)
	return sizing, nil
}

// UpdateRiskLevels derives support, resistance, entry and range width from the
// campaign's patterns. Support is the lowest Spring price and resistance the
// highest Rally or Breakout price; entry is the latest pattern's price.
func (rbe *RiskBudgetEnforcer) UpdateRiskLevels(c *models.Campaign) {
	support := decimal.Zero
	resistance := decimal.Zero

	for _, p := range c.Patterns {
		switch p.Kind {
		case models.PatternKindSpring:
			if support.IsZero() || p.Price.LessThan(support) {
				support = p.Price
			}
		case models.PatternKindRally, models.PatternKindBreakout:
			if p.Price.GreaterThan(resistance) {
				resistance = p.Price
			}
		case models.PatternKindSupportRetest:
			// retests confirm levels but never move them
		}
	}

	c.SupportLevel = support
	c.ResistanceLevel = resistance
	if last := c.LastPattern(); last != nil {
		c.EntryPrice = last.Price
	}

	c.RangeWidthPct = decimal.Zero
	if support.IsPositive() && resistance.GreaterThan(support) {
		c.RangeWidthPct = resistance.Sub(support).Div(support).Mul(decimalHundred).Round(scorePrecision)
	}
}

// ApplySizing copies a sizing result onto the campaign. It is the only place
// sizing fields are written.
func (rbe *RiskBudgetEnforcer) ApplySizing(c *models.Campaign, sizing PositionSizing) {
	c.RiskPerShare = sizing.RiskPerShare
	c.PositionSize = sizing.PositionSize
	c.DollarRisk = sizing.DollarRisk
	c.SizingDeferred = sizing.Deferred
}

// CurrentHeat sums dollar risk over Forming and Active campaigns.
func (rbe *RiskBudgetEnforcer) CurrentHeat(campaigns []*models.Campaign) decimal.Decimal {
	total := decimal.Zero
	for _, c := range campaigns {
		if c.State.CountsTowardHeat() {
			total = total.Add(c.DollarRisk)
		}
	}
	return total
}

// HeatLimit returns the dollar ceiling for portfolio heat.
func (rbe *RiskBudgetEnforcer) HeatLimit(accountSize decimal.Decimal) decimal.Decimal {
	return pctOf(accountSize, decimal.NewFromFloat(rbe.config.MaxPortfolioHeatPct))
}

// Evaluate sizes candidate and decides whether accepting it keeps every
// portfolio ceiling intact. candidate.State must already hold the state the
// campaign would have after the change; others are every other campaign in
// the registry. Ceiling breaches are returned as a rejected decision, never
// as an error.
func (rbe *RiskBudgetEnforcer) Evaluate(candidate *models.Campaign, others []*models.Campaign, accountSize, riskPct decimal.Decimal, activating bool) (*RiskDecision, error) {
	sizing, err := rbe.CalculatePositionSize(candidate.EntryPrice, candidate.SupportLevel, accountSize, riskPct)
	if err != nil {
		return nil, err
	}

	decision := &RiskDecision{
		Sizing:    sizing,
		HeatLimit: rbe.HeatLimit(accountSize),
	}

	perTradeCeiling := pctOf(accountSize, maxRiskPctPerTrade)
	if sizing.DollarRisk.GreaterThan(perTradeCeiling) {
		decision.Reason = models.RejectionRiskCeilingExceeded
		decision.Detail = fmt.Sprintf("dollar risk %s exceeds per-trade ceiling %s", sizing.DollarRisk, perTradeCeiling)
		return decision, nil
	}

	activeCount := 0
	heat := decimal.Zero
	for _, other := range others {
		if other.ID == candidate.ID {
			continue
		}
		if other.State == models.CampaignStateActive {
			activeCount++
		}
		if other.State.CountsTowardHeat() {
			heat = heat.Add(other.DollarRisk)
		}
	}

	if activating && activeCount >= rbe.config.MaxConcurrentCampaigns {
		decision.Reason = models.RejectionCampaignLimit
		decision.Detail = fmt.Sprintf("%d active campaigns already at the limit of %d", activeCount, rbe.config.MaxConcurrentCampaigns)
		return decision, nil
	}

	if candidate.State.CountsTowardHeat() {
		heat = heat.Add(sizing.DollarRisk)
	}
	decision.ProjectedHeat = heat

	if heat.GreaterThan(decision.HeatLimit) {
		decision.Reason = models.RejectionPortfolioHeat
		decision.Detail = fmt.Sprintf("projected heat %s exceeds limit %s (%v%% of %s)",
			heat, decision.HeatLimit, rbe.config.MaxPortfolioHeatPct, accountSize)
		return decision, nil
	}

	decision.Approved = true
	return decision, nil
}
