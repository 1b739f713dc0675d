package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/irfndi/celebrum-campaigns/internal/utils"
)

// PatternKind identifies which Wyckoff event a detector reported
type PatternKind string

const (
	PatternKindSpring        PatternKind = "spring"
	PatternKindRally         PatternKind = "automatic_rally"
	PatternKindBreakout      PatternKind = "sign_of_strength"
	PatternKindSupportRetest PatternKind = "last_point_of_support"
)

// AllPatternKinds lists every kind in grammar order.
var AllPatternKinds = []PatternKind{
	PatternKindSpring,
	PatternKindRally,
	PatternKindBreakout,
	PatternKindSupportRetest,
}

// IsValid reports whether k is one of the known kinds.
func (k PatternKind) IsValid() bool {
	switch k {
	case PatternKindSpring, PatternKindRally, PatternKindBreakout, PatternKindSupportRetest:
		return true
	default:
		return false
	}
}

// ShortCode returns the conventional Wyckoff abbreviation.
func (k PatternKind) ShortCode() string {
	switch k {
	case PatternKindSpring:
		return "SPRING"
	case PatternKindRally:
		return "AR"
	case PatternKindBreakout:
		return "SOS"
	case PatternKindSupportRetest:
		return "LPS"
	default:
		return "UNKNOWN"
	}
}

// DisplayName renders the kind as a title-cased label, e.g. "Sign Of Strength".
func (k PatternKind) DisplayName() string {
	caser := cases.Title(language.English)
	return caser.String(strings.ReplaceAll(string(k), "_", " "))
}

// SpringDetail carries fields only a Spring reports
type SpringDetail struct {
	RecoveryPrice  decimal.Decimal `json:"recovery_price"`
	RecoveryBars   int             `json:"recovery_bars"` // bars to close back above the creek, 0 if unknown
	PenetrationPct decimal.Decimal `json:"penetration_pct"`
	CreekLevel     decimal.Decimal `json:"creek_level"`
}

// RallyDetail carries fields only an Automatic Rally reports
type RallyDetail struct {
	RallyHigh   decimal.Decimal `json:"rally_high"`
	BarsFromLow int             `json:"bars_from_low"`
}

// BreakoutDetail carries fields only a Sign of Strength reports
type BreakoutDetail struct {
	IceLevel    decimal.Decimal `json:"ice_level"`
	BreakoutPct decimal.Decimal `json:"breakout_pct"`
}

// SupportRetestDetail carries fields only a Last Point of Support reports
type SupportRetestDetail struct {
	RetestLevel        decimal.Decimal `json:"retest_level"`
	DistanceFromIcePct decimal.Decimal `json:"distance_from_ice_pct"`
}

// PatternEnvelope is one detected pattern instance. Exactly one of the
// kind-specific payloads is set and it must match Kind.
type PatternEnvelope struct {
	Kind        PatternKind     `json:"kind"`
	Symbol      string          `json:"symbol"`
	BarIndex    int64           `json:"bar_index"`
	DetectedAt  time.Time       `json:"detected_at"`
	Price       decimal.Decimal `json:"price"`
	VolumeRatio decimal.Decimal `json:"volume_ratio"`
	SpreadPct   decimal.Decimal `json:"spread_pct"` // zero means unknown

	Spring        *SpringDetail        `json:"spring,omitempty"`
	Rally         *RallyDetail         `json:"rally,omitempty"`
	Breakout      *BreakoutDetail      `json:"breakout,omitempty"`
	SupportRetest *SupportRetestDetail `json:"support_retest,omitempty"`
}

// Validate checks the envelope is internally consistent.
func (p *PatternEnvelope) Validate() error {
	if !p.Kind.IsValid() {
		return utils.NewValidationErrorf("unknown pattern kind %q", p.Kind)
	}
	if p.DetectedAt.IsZero() {
		return utils.NewValidationError("pattern detected_at is required")
	}
	if p.BarIndex < 0 {
		return utils.NewValidationErrorf("pattern bar_index must be non-negative, got %d", p.BarIndex)
	}
	if !p.Price.IsPositive() {
		return utils.NewValidationErrorf("pattern price must be positive, got %s", p.Price)
	}
	if p.VolumeRatio.IsNegative() {
		return utils.NewValidationErrorf("pattern volume_ratio must be >= 0, got %s", p.VolumeRatio)
	}
	if p.SpreadPct.IsNegative() {
		return utils.NewValidationErrorf("pattern spread_pct must be >= 0, got %s", p.SpreadPct)
	}
	return p.validatePayload()
}

func (p *PatternEnvelope) validatePayload() error {
	set := 0
	for _, present := range []bool{p.Spring != nil, p.Rally != nil, p.Breakout != nil, p.SupportRetest != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return utils.NewValidationErrorf("pattern %s carries %d payloads, expected one", p.Kind.ShortCode(), set)
	}

	var ok bool
	switch p.Kind {
	case PatternKindSpring:
		ok = p.Spring != nil
	case PatternKindRally:
		ok = p.Rally != nil
	case PatternKindBreakout:
		ok = p.Breakout != nil
	case PatternKindSupportRetest:
		ok = p.SupportRetest != nil
	}
	if !ok {
		return utils.NewValidationErrorf("pattern %s is missing its %s payload", p.Kind.ShortCode(), p.Kind)
	}
	return nil
}

// Clone returns a deep copy.
func (p PatternEnvelope) Clone() PatternEnvelope {
	out := p
	if p.Spring != nil {
		s := *p.Spring
		out.Spring = &s
	}
	if p.Rally != nil {
		r := *p.Rally
		out.Rally = &r
	}
	if p.Breakout != nil {
		b := *p.Breakout
		out.Breakout = &b
	}
	if p.SupportRetest != nil {
		s := *p.SupportRetest
		out.SupportRetest = &s
	}
	return out
}

// String implements fmt.Stringer for log lines.
func (p PatternEnvelope) String() string {
	return fmt.Sprintf("%s@%d(%s)", p.Kind.ShortCode(), p.BarIndex, p.Price.StringFixed(2))
}

// NewSpring builds a Spring envelope.
func NewSpring(symbol string, barIndex int64, at time.Time, low, volumeRatio decimal.Decimal, detail SpringDetail) PatternEnvelope {
	return PatternEnvelope{
		Kind:        PatternKindSpring,
		Symbol:      symbol,
		BarIndex:    barIndex,
		DetectedAt:  at,
		Price:       low,
		VolumeRatio: volumeRatio,
		Spring:      &detail,
	}
}

// NewRally builds an Automatic Rally envelope.
func NewRally(symbol string, barIndex int64, at time.Time, price, volumeRatio decimal.Decimal, detail RallyDetail) PatternEnvelope {
	return PatternEnvelope{
		Kind:        PatternKindRally,
		Symbol:      symbol,
		BarIndex:    barIndex,
		DetectedAt:  at,
		Price:       price,
		VolumeRatio: volumeRatio,
		Rally:       &detail,
	}
}

// NewBreakout builds a Sign of Strength envelope.
func NewBreakout(symbol string, barIndex int64, at time.Time, price, volumeRatio decimal.Decimal, detail BreakoutDetail) PatternEnvelope {
	return PatternEnvelope{
		Kind:        PatternKindBreakout,
		Symbol:      symbol,
		BarIndex:    barIndex,
		DetectedAt:  at,
		Price:       price,
		VolumeRatio: volumeRatio,
		Breakout:    &detail,
	}
}

// NewSupportRetest builds a Last Point of Support envelope.
func NewSupportRetest(symbol string, barIndex int64, at time.Time, price, volumeRatio decimal.Decimal, detail SupportRetestDetail) PatternEnvelope {
	return PatternEnvelope{
		Kind:          PatternKindSupportRetest,
		Symbol:        symbol,
		BarIndex:      barIndex,
		DetectedAt:    at,
		Price:         price,
		VolumeRatio:   volumeRatio,
		SupportRetest: &detail,
	}
}
