package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/irfndi/celebrum-campaigns/internal/models"
)

func TestSequenceValidator_IsLegalSuccessor(t *testing.T) {
	sv := NewSequenceValidator()

	S := models.PatternKindSpring
	AR := models.PatternKindRally
	SOS := models.PatternKindBreakout
	LPS := models.PatternKindSupportRetest

	tests := []struct {
		last, next models.PatternKind
		legal      bool
	}{
		{S, S, true},
		{S, AR, true},
		{S, SOS, true},
		{S, LPS, false},
		{AR, S, false},
		{AR, AR, false},
		{AR, SOS, true},
		{AR, LPS, true},
		{SOS, S, false},
		{SOS, AR, false},
		{SOS, SOS, true},
		{SOS, LPS, true},
		{LPS, S, false},
		{LPS, AR, false},
		{LPS, SOS, false},
		{LPS, LPS, true},
	}

	for _, tt := range tests {
		t.Run(tt.last.ShortCode()+"_to_"+tt.next.ShortCode(), func(t *testing.T) {
			assert.Equal(t, tt.legal, sv.IsLegalSuccessor(tt.last, tt.next))
		})
	}
}

func TestSequenceValidator_UnknownKind(t *testing.T) {
	sv := NewSequenceValidator()
	assert.False(t, sv.IsLegalSuccessor(models.PatternKind("upthrust"), models.PatternKindSpring))
	assert.False(t, sv.IsLegalSuccessor(models.PatternKindSpring, models.PatternKind("upthrust")))
}

func TestSequenceValidator_IsValidSequence(t *testing.T) {
	sv := NewSequenceValidator()

	assert.True(t, sv.IsValidSequence(nil))
	assert.True(t, sv.IsValidSequence([]models.PatternKind{models.PatternKindBreakout}))
	assert.True(t, sv.IsValidSequence([]models.PatternKind{
		models.PatternKindSpring,
		models.PatternKindSpring,
		models.PatternKindRally,
		models.PatternKindBreakout,
		models.PatternKindSupportRetest,
		models.PatternKindSupportRetest,
	}))
	assert.False(t, sv.IsValidSequence([]models.PatternKind{
		models.PatternKindSpring,
		models.PatternKindBreakout,
		models.PatternKindRally,
	}))
}

func TestSequenceValidator_SequenceCompleteness(t *testing.T) {
	sv := NewSequenceValidator()

	tests := []struct {
		name     string
		kinds    []models.PatternKind
		expected string
	}{
		{"empty", nil, "0"},
		{"spring only", []models.PatternKind{models.PatternKindSpring}, "0.25"},
		{"repeated spring counts once", []models.PatternKind{models.PatternKindSpring, models.PatternKindSpring}, "0.25"},
		{"spring rally", []models.PatternKind{models.PatternKindSpring, models.PatternKindRally}, "0.5"},
		{"spring breakout", []models.PatternKind{models.PatternKindSpring, models.PatternKindBreakout}, "0.6"},
		{"spring rally breakout", []models.PatternKind{models.PatternKindSpring, models.PatternKindRally, models.PatternKindBreakout}, "0.85"},
		{"full chain", []models.PatternKind{
			models.PatternKindSpring,
			models.PatternKindRally,
			models.PatternKindBreakout,
			models.PatternKindSupportRetest,
		}, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sv.SequenceCompleteness(tt.kinds)
			assert.True(t, dec(tt.expected).Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestSequenceValidator_CompletenessRewardsFullerChains(t *testing.T) {
	sv := NewSequenceValidator()

	partial := sv.SequenceCompleteness([]models.PatternKind{models.PatternKindSpring, models.PatternKindBreakout})
	fuller := sv.SequenceCompleteness([]models.PatternKind{models.PatternKindSpring, models.PatternKindRally, models.PatternKindBreakout})

	assert.True(t, fuller.GreaterThan(partial))
}
