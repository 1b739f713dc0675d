package services

import (
	"github.com/shopspring/decimal"

	"github.com/irfndi/celebrum-campaigns/internal/models"
)

// SequenceValidator checks pattern successions against the accumulation grammar:
//
//	Spring        -> Spring, Rally, Breakout
//	Rally         -> Breakout, SupportRetest
//	Breakout      -> Breakout, SupportRetest
//	SupportRetest -> SupportRetest
//
// An illegal successor is routine market noise, so nothing here returns an error.
type SequenceValidator struct{}

// NewSequenceValidator creates a new sequence validator
func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{}
}

// IsLegalSuccessor reports whether next may follow last inside one campaign.
func (sv *SequenceValidator) IsLegalSuccessor(last, next models.PatternKind) bool {
	switch last {
	case models.PatternKindSpring:
		return next == models.PatternKindSpring ||
			next == models.PatternKindRally ||
			next == models.PatternKindBreakout
	case models.PatternKindRally:
		return next == models.PatternKindBreakout ||
			next == models.PatternKindSupportRetest
	case models.PatternKindBreakout:
		return next == models.PatternKindBreakout ||
			next == models.PatternKindSupportRetest
	case models.PatternKindSupportRetest:
		return next == models.PatternKindSupportRetest
	default:
		return false
	}
}

// IsValidSequence reports whether every adjacent pair in kinds is legal.
func (sv *SequenceValidator) IsValidSequence(kinds []models.PatternKind) bool {
	for i := 1; i < len(kinds); i++ {
		if !sv.IsLegalSuccessor(kinds[i-1], kinds[i]) {
			return false
		}
	}
	return true
}

// completeness weight of each kind; Spring+Rally+Breakout outranks Spring+Breakout
var sequenceKindWeights = map[models.PatternKind]decimal.Decimal{
	models.PatternKindSpring:        decimal.NewFromFloat(0.25),
	models.PatternKindRally:         decimal.NewFromFloat(0.25),
	models.PatternKindBreakout:      decimal.NewFromFloat(0.35),
	models.PatternKindSupportRetest: decimal.NewFromFloat(0.15),
}

// SequenceCompleteness scores how much of the full Spring, Rally, Breakout,
// SupportRetest chain is present, in [0,1]. Repeated kinds count once.
func (sv *SequenceValidator) SequenceCompleteness(kinds []models.PatternKind) decimal.Decimal {
	seen := make(map[models.PatternKind]bool, len(kinds))
	total := decimal.Zero
	for _, k := range kinds {
		if seen[k] {
			continue
		}
		seen[k] = true
		if w, ok := sequenceKindWeights[k]; ok {
			total = total.Add(w)
		}
	}
	return clampUnit(total)
}
