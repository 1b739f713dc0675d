package services

import (
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-campaigns/internal/models"
)

const testSymbol = "AAPL"

var baseTime = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func hoursAfter(h int) time.Time {
	return baseTime.Add(time.Duration(h) * time.Hour)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func springAt(bar int64, hour int, price, volume string) models.PatternEnvelope {
	return models.NewSpring(testSymbol, bar, hoursAfter(hour), dec(price), dec(volume), models.SpringDetail{
		RecoveryPrice:  dec(price).Add(dec("2")),
		RecoveryBars:   2,
		PenetrationPct: dec("1.5"),
		CreekLevel:     dec(price).Add(dec("1.5")),
	})
}

func rallyAt(bar int64, hour int, price, volume string) models.PatternEnvelope {
	return models.NewRally(testSymbol, bar, hoursAfter(hour), dec(price), dec(volume), models.RallyDetail{
		RallyHigh:   dec(price),
		BarsFromLow: 4,
	})
}

func breakoutAt(bar int64, hour int, price, volume string) models.PatternEnvelope {
	return models.NewBreakout(testSymbol, bar, hoursAfter(hour), dec(price), dec(volume), models.BreakoutDetail{
		IceLevel:    dec(price).Sub(dec("1")),
		BreakoutPct: dec("1.2"),
	})
}

func retestAt(bar int64, hour int, price, volume string) models.PatternEnvelope {
	return models.NewSupportRetest(testSymbol, bar, hoursAfter(hour), dec(price), dec(volume), models.SupportRetestDetail{
		RetestLevel:        dec(price),
		DistanceFromIcePct: dec("0.8"),
	})
}

func withSpread(p models.PatternEnvelope, spread string) models.PatternEnvelope {
	p.SpreadPct = dec(spread)
	return p
}

// campaignOf builds a registry entry directly, bypassing the engine.
func campaignOf(id string, state models.CampaignState, patterns ...models.PatternEnvelope) *models.Campaign {
	c := &models.Campaign{
		ID:             id,
		Symbol:         testSymbol,
		Patterns:       patterns,
		State:          state,
		CurrentPhase:   models.PhaseUnknown,
		VolumeProfile:  models.VolumeProfileUnknown,
		EffortVsResult: models.EffortResultUnknown,
	}
	if len(patterns) > 0 {
		c.CreatedAt = patterns[0].DetectedAt
		c.UpdatedAt = patterns[len(patterns)-1].DetectedAt
	}
	for _, p := range patterns {
		c.VolumeRatios = append(c.VolumeRatios, p.VolumeRatio)
	}
	return c
}
