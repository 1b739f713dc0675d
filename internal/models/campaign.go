package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CampaignState represents where a campaign is in its lifecycle
type CampaignState string

const (
	CampaignStateForming   CampaignState = "forming"
	CampaignStateActive    CampaignState = "active"
	CampaignStateDormant   CampaignState = "dormant"
	CampaignStateFailed    CampaignState = "failed"
	CampaignStateCompleted CampaignState = "completed"
)

// IsTerminal reports whether no further mutation is allowed.
func (s CampaignState) IsTerminal() bool {
	return s == CampaignStateFailed || s == CampaignStateCompleted
}

// IsOpen reports whether the campaign can still absorb patterns.
func (s CampaignState) IsOpen() bool {
	switch s {
	case CampaignStateForming, CampaignStateActive, CampaignStateDormant:
		return true
	default:
		return false
	}
}

// CountsTowardHeat reports whether the campaign's dollar risk is part of portfolio heat.
func (s CampaignState) CountsTowardHeat() bool {
	return s == CampaignStateForming || s == CampaignStateActive
}

// WyckoffPhase is the accumulation/distribution stage
type WyckoffPhase string

const (
	PhaseA       WyckoffPhase = "A"
	PhaseB       WyckoffPhase = "B"
	PhaseC       WyckoffPhase = "C"
	PhaseD       WyckoffPhase = "D"
	PhaseE       WyckoffPhase = "E"
	PhaseUnknown WyckoffPhase = "unknown"
)

// Rank orders phases; Unknown ranks below A.
func (p WyckoffPhase) Rank() int {
	switch p {
	case PhaseA:
		return 1
	case PhaseB:
		return 2
	case PhaseC:
		return 3
	case PhaseD:
		return 4
	case PhaseE:
		return 5
	default:
		return 0
	}
}

// IsValid reports whether p is a known phase, Unknown included.
func (p WyckoffPhase) IsValid() bool {
	return p == PhaseUnknown || p.Rank() > 0
}

// VolumeProfile is the trend of volume ratios across a campaign
type VolumeProfile string

const (
	VolumeProfileDeclining  VolumeProfile = "declining"
	VolumeProfileIncreasing VolumeProfile = "increasing"
	VolumeProfileNeutral    VolumeProfile = "neutral"
	VolumeProfileUnknown    VolumeProfile = "unknown"
)

// EffortResult compares volume (effort) to price spread (result)
type EffortResult string

const (
	EffortResultHarmony    EffortResult = "harmony"
	EffortResultDivergence EffortResult = "divergence"
	EffortResultUnknown    EffortResult = "unknown"
)

// PhaseTransition is one entry in a campaign's phase history
type PhaseTransition struct {
	At       time.Time    `json:"at"`
	Phase    WyckoffPhase `json:"phase"`
	BarIndex int64        `json:"bar_index"`
}

// Campaign groups related patterns into one accumulation episode
type Campaign struct {
	ID        string            `json:"id"`
	Symbol    string            `json:"symbol"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Patterns  []PatternEnvelope `json:"patterns"`
	State     CampaignState     `json:"state"`

	CurrentPhase     WyckoffPhase      `json:"current_phase"`
	PhaseHistory     []PhaseTransition `json:"phase_history"`
	PhaseTransitions int               `json:"phase_transitions"`

	// Risk
	SupportLevel    decimal.Decimal `json:"support_level"`    // zero until a Spring is seen
	ResistanceLevel decimal.Decimal `json:"resistance_level"` // zero until a Rally/Breakout is seen
	EntryPrice      decimal.Decimal `json:"entry_price"`
	RiskPerShare    decimal.Decimal `json:"risk_per_share"`
	RangeWidthPct   decimal.Decimal `json:"range_width_pct"`

	// Sizing, derived only by the risk enforcer
	PositionSize   decimal.Decimal `json:"position_size"`
	DollarRisk     decimal.Decimal `json:"dollar_risk"`
	SizingDeferred bool            `json:"sizing_deferred"`

	// Volume
	VolumeProfile     VolumeProfile     `json:"volume_profile"`
	EffortVsResult    EffortResult      `json:"effort_vs_result"`
	ClimaxDetected    bool              `json:"climax_detected"`
	AbsorptionQuality decimal.Decimal   `json:"absorption_quality"`
	VolumeRatios      []decimal.Decimal `json:"volume_ratios"`

	StrengthScore decimal.Decimal `json:"strength_score"`
	FailureReason string          `json:"failure_reason,omitempty"`

	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	ExitPrice         *decimal.Decimal `json:"exit_price,omitempty"`
	RealizedRMultiple *decimal.Decimal `json:"realized_r_multiple,omitempty"`
}

// LastPattern returns the most recent pattern, or nil for an empty campaign.
func (c *Campaign) LastPattern() *PatternEnvelope {
	if len(c.Patterns) == 0 {
		return nil
	}
	return &c.Patterns[len(c.Patterns)-1]
}

// LastPatternAt returns the detection time of the most recent pattern.
func (c *Campaign) LastPatternAt() time.Time {
	if last := c.LastPattern(); last != nil {
		return last.DetectedAt
	}
	return c.CreatedAt
}

// Kinds returns the pattern kinds in detection order.
func (c *Campaign) Kinds() []PatternKind {
	kinds := make([]PatternKind, len(c.Patterns))
	for i, p := range c.Patterns {
		kinds[i] = p.Kind
	}
	return kinds
}

// HasKind reports whether any pattern of kind k has been absorbed.
func (c *Campaign) HasKind(k PatternKind) bool {
	for _, p := range c.Patterns {
		if p.Kind == k {
			return true
		}
	}
	return false
}

// Age returns how long the campaign has existed at now.
func (c *Campaign) Age(now time.Time) time.Duration {
	return now.Sub(c.CreatedAt)
}

// Clone returns a deep copy so callers never share state with the engine.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	out.Patterns = make([]PatternEnvelope, len(c.Patterns))
	for i, p := range c.Patterns {
		out.Patterns[i] = p.Clone()
	}
	out.PhaseHistory = append([]PhaseTransition(nil), c.PhaseHistory...)
	out.VolumeRatios = append([]decimal.Decimal(nil), c.VolumeRatios...)
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		out.CompletedAt = &t
	}
	if c.ExitPrice != nil {
		p := *c.ExitPrice
		out.ExitPrice = &p
	}
	if c.RealizedRMultiple != nil {
		r := *c.RealizedRMultiple
		out.RealizedRMultiple = &r
	}
	return &out
}

// AddOutcome classifies what AddPattern did with a pattern
type AddOutcome string

const (
	AddOutcomeCreated  AddOutcome = "created"
	AddOutcomeExtended AddOutcome = "extended"
	AddOutcomeRejected AddOutcome = "rejected"
)

// RejectionReason explains a business rejection
type RejectionReason string

const (
	RejectionNone                RejectionReason = ""
	RejectionPortfolioHeat       RejectionReason = "portfolio_heat_exceeded"
	RejectionCampaignLimit       RejectionReason = "campaign_limit_reached"
	RejectionIllegalSequence     RejectionReason = "illegal_sequence"
	RejectionRiskCeilingExceeded RejectionReason = "risk_ceiling_exceeded"
)

// AddResult is the outcome of feeding one pattern to the engine.
// Campaign is nil when the pattern was rejected.
type AddResult struct {
	Outcome  AddOutcome      `json:"outcome"`
	Campaign *Campaign       `json:"campaign,omitempty"`
	Reason   RejectionReason `json:"reason,omitempty"`
	Detail   string          `json:"detail,omitempty"`
}

// Accepted reports whether the pattern was absorbed into a campaign.
func (r *AddResult) Accepted() bool {
	return r != nil && r.Outcome != AddOutcomeRejected
}
