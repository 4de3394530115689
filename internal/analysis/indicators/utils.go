package indicators

import (
	"errors"
	"math"

	"nse-newsfeatures/internal/models"
)

var (
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
)

// TradingDaysPerYear annualizes daily volatility.
const TradingDaysPerYear = 252

// nan returns the undefined marker used inside series.
func nan() float64 {
	return math.NaN()
}

// isNaN reports whether v is undefined.
func isNaN(v float64) bool {
	return math.IsNaN(v)
}

// nanSeries returns a series of n undefined values.
func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rollingMean returns the mean over each full window; NaN until the window is
// met and wherever the window holds an undefined value.
func rollingMean(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	for i := window - 1; i < len(values); i++ {
		var total float64
		ok := true
		for _, v := range values[i-window+1 : i+1] {
			if isNaN(v) {
				ok = false
				break
			}
			total += v
		}
		if ok {
			out[i] = total / float64(window)
		}
	}
	return out
}

// rollingSampleStd is rollingMean for the sample (n-1) standard deviation.
func rollingSampleStd(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		slice := values[i-window+1 : i+1]
		var total float64
		ok := true
		for _, v := range slice {
			if isNaN(v) {
				ok = false
				break
			}
			total += v
		}
		if !ok {
			continue
		}
		m := total / float64(window)
		var variance float64
		for _, v := range slice {
			diff := v - m
			variance += diff * diff
		}
		out[i] = math.Sqrt(variance / float64(window-1))
	}
	return out
}

// trueRange calculates the true range for a candle.
func trueRange(current, previous models.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

// closePrices extracts close prices from candles.
func closePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

// volumes extracts volumes from candles as floats.
func volumes(candles []models.Candle) []float64 {
	vols := make([]float64, len(candles))
	for i, c := range candles {
		vols[i] = float64(c.Volume)
	}
	return vols
}

// ToPtr converts an undefined value to nil.
func ToPtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
