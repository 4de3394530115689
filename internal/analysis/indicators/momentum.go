package indicators

import (
	"fmt"

	"nse-newsfeatures/internal/models"
)

// RSI calculates the Relative Strength Index from simple rolling means of gains
// and losses.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSI) Period() int {
	return r.period
}

func (r *RSI) Calculate(candles []models.Candle) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return CalculateRSI(closePrices(candles), r.period), nil
}

// CalculateRSI returns 100 - 100/(1+RS) with RS = mean gain / mean loss over
// the window. The change before the first close counts as zero, so the first
// value is defined at index period-1. A zero mean loss is undefined, not 100.
func CalculateRSI(closes []float64, period int) []float64 {
	n := len(closes)
	if period <= 0 {
		return nanSeries(n)
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		switch {
		case isNaN(change):
			gains[i], losses[i] = nan(), nan()
		case change > 0:
			gains[i] = change
		case change < 0:
			losses[i] = -change
		}
	}

	avgGain := rollingMean(gains, period)
	avgLoss := rollingMean(losses, period)

	result := nanSeries(n)
	for i := range result {
		if isNaN(avgGain[i]) || isNaN(avgLoss[i]) || avgLoss[i] == 0 {
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		result[i] = 100 - (100 / (1 + rs))
	}
	return result
}

// Returns calculates the simple k-period return of close.
type Returns struct {
	period int
}

// NewReturns creates a new Returns indicator.
func NewReturns(period int) *Returns {
	return &Returns{period: period}
}

func (r *Returns) Name() string {
	return fmt.Sprintf("RET_%d", r.period)
}

func (r *Returns) Period() int {
	return r.period + 1
}

func (r *Returns) Calculate(candles []models.Candle) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return PctChange(closePrices(candles), r.period), nil
}

// PctChange returns x[i]/x[i-k] - 1. Undefined for the first k values and
// where the base value is zero or undefined.
func PctChange(values []float64, k int) []float64 {
	result := nanSeries(len(values))
	if k <= 0 {
		return result
	}
	for i := k; i < len(values); i++ {
		base := values[i-k]
		if base == 0 || isNaN(base) || isNaN(values[i]) {
			continue
		}
		result[i] = values[i]/base - 1
	}
	return result
}
