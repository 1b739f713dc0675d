package services

import (
	"github.com/shopspring/decimal"
)

var (
	decimalOne     = decimal.NewFromInt(1)
	decimalHundred = decimal.NewFromInt(100)
)

// scorePrecision is the number of decimal places kept on derived scores.
const scorePrecision = 4

// clampUnit bounds d to [0,1].
func clampUnit(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(decimalOne) {
		return decimalOne
	}
	return d
}

// pctOf returns amount * pct / 100.
func pctOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(decimalHundred)
}

// weightedScore folds components by weight and normalizes by the total weight.
func weightedScore(components map[string]decimal.Decimal, weights map[string]decimal.Decimal) decimal.Decimal {
	totalWeight := decimal.Zero
	weighted := decimal.Zero
	for name, weight := range weights {
		score, ok := components[name]
		if !ok {
			continue
		}
		weighted = weighted.Add(clampUnit(score).Mul(weight))
		totalWeight = totalWeight.Add(weight)
	}
	if totalWeight.IsZero() {
		return decimal.Zero
	}
	return clampUnit(weighted.Div(totalWeight)).Round(scorePrecision)
}
