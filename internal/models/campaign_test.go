package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignState(t *testing.T) {
	tests := []struct {
		state    CampaignState
		terminal bool
		open     bool
		heat     bool
	}{
		{CampaignStateForming, false, true, true},
		{CampaignStateActive, false, true, true},
		{CampaignStateDormant, false, true, false},
		{CampaignStateFailed, true, false, false},
		{CampaignStateCompleted, true, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
			assert.Equal(t, tt.open, tt.state.IsOpen())
			assert.Equal(t, tt.heat, tt.state.CountsTowardHeat())
		})
	}
}

func TestWyckoffPhase(t *testing.T) {
	assert.Less(t, PhaseUnknown.Rank(), PhaseA.Rank())
	assert.Less(t, PhaseC.Rank(), PhaseD.Rank())
	assert.Less(t, PhaseD.Rank(), PhaseE.Rank())

	assert.True(t, PhaseUnknown.IsValid())
	assert.True(t, PhaseB.IsValid())
	assert.False(t, WyckoffPhase("F").IsValid())
}

func TestCampaign_Accessors(t *testing.T) {
	spring := validSpring()
	rally := NewRally("AAPL", 50, detectedAt.Add(3*time.Hour), decimal.NewFromInt(104), decimal.NewFromInt(1), RallyDetail{})

	c := &Campaign{
		ID:        "c1",
		CreatedAt: spring.DetectedAt,
		Patterns:  []PatternEnvelope{spring, rally},
	}

	require.NotNil(t, c.LastPattern())
	assert.Equal(t, PatternKindRally, c.LastPattern().Kind)
	assert.Equal(t, rally.DetectedAt, c.LastPatternAt())
	assert.Equal(t, []PatternKind{PatternKindSpring, PatternKindRally}, c.Kinds())
	assert.True(t, c.HasKind(PatternKindSpring))
	assert.False(t, c.HasKind(PatternKindBreakout))
	assert.Equal(t, 5*time.Hour, c.Age(detectedAt.Add(5*time.Hour)))

	empty := &Campaign{CreatedAt: detectedAt}
	assert.Nil(t, empty.LastPattern())
	assert.Equal(t, detectedAt, empty.LastPatternAt())
}

func TestCampaign_Clone(t *testing.T) {
	exit := decimal.NewFromInt(110)
	completedAt := detectedAt.Add(time.Hour)
	c := &Campaign{
		ID:           "c1",
		Patterns:     []PatternEnvelope{validSpring()},
		PhaseHistory: []PhaseTransition{{At: detectedAt, Phase: PhaseC, BarIndex: 42}},
		VolumeRatios: []decimal.Decimal{decimal.RequireFromString("0.6")},
		ExitPrice:    &exit,
		CompletedAt:  &completedAt,
	}

	clone := c.Clone()
	clone.Patterns[0].Spring.RecoveryBars = 7
	clone.Patterns = append(clone.Patterns, validSpring())
	clone.PhaseHistory[0].Phase = PhaseE
	clone.VolumeRatios[0] = decimal.Zero
	*clone.ExitPrice = decimal.Zero
	*clone.CompletedAt = time.Time{}

	assert.Len(t, c.Patterns, 1)
	assert.Equal(t, 2, c.Patterns[0].Spring.RecoveryBars)
	assert.Equal(t, PhaseC, c.PhaseHistory[0].Phase)
	assert.True(t, decimal.RequireFromString("0.6").Equal(c.VolumeRatios[0]))
	assert.True(t, exit.Equal(*c.ExitPrice))
	assert.Equal(t, detectedAt.Add(time.Hour), *c.CompletedAt)

	var nilCampaign *Campaign
	assert.Nil(t, nilCampaign.Clone())
}

func TestAddResult_Accepted(t *testing.T) {
	assert.True(t, (&AddResult{Outcome: AddOutcomeCreated}).Accepted())
	assert.True(t, (&AddResult{Outcome: AddOutcomeExtended}).Accepted())
	assert.False(t, (&AddResult{Outcome: AddOutcomeRejected, Reason: RejectionPortfolioHeat}).Accepted())

	var missing *AddResult
	assert.False(t, missing.Accepted())
}
