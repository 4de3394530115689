package indicators

import (
	"fmt"
	"math"

	"nse-newsfeatures/internal/models"
)

// ATR calculates the Average True Range as a simple rolling mean of true range.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR_%d", a.period)
}

func (a *ATR) Period() int {
	return a.period
}

func (a *ATR) Calculate(candles []models.Candle) ([]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return CalculateATR(candles, a.period), nil
}

// CalculateATR returns the rolling mean of true range. The first true range is high - low.
func CalculateATR(candles []models.Candle, period int) []float64 {
	n := len(candles)
	if n == 0 || period <= 0 {
		return nanSeries(n)
	}

	tr := make([]float64, n)
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < n; i++ {
		tr[i] = trueRange(candles[i], candles[i-1])
	}
	return rollingMean(tr, period)
}

// HistoricalVolatility calculates annualized realized volatility of close.
type HistoricalVolatility struct {
	period      int
	tradingDays int
}

// NewHistoricalVolatility creates a new Historical Volatility indicator.
func NewHistoricalVolatility(period, tradingDays int) *HistoricalVolatility {
	if tradingDays <= 0 {
		tradingDays = TradingDaysPerYear
	}
	return &HistoricalVolatility{
		period:      period,
		tradingDays: tradingDays,
	}
}

func (h *HistoricalVolatility) Name() string {
	return fmt.Sprintf("VOL_%d", h.period)
}

func (h *HistoricalVolatility) Period() int {
	return h.period + 1
}

func (h *HistoricalVolatility) Calculate(candles []models.Candle) ([]float64, error) {
	if h.period <= 1 {
		return nil, ErrInvalidPeriod
	}
	return CalculateRealizedVol(closePrices(candles), h.period, h.tradingDays), nil
}

// CalculateRealizedVol returns the sample standard deviation of daily log
// returns over window, scaled by sqrt(tradingDays). The first defined value is
// at index window.
func CalculateRealizedVol(closes []float64, window, tradingDays int) []float64 {
	n := len(closes)
	logReturns := nanSeries(n)
	for i := 1; i < n; i++ {
		if closes[i-1] > 0 && closes[i] > 0 {
			logReturns[i] = math.Log(closes[i] / closes[i-1])
		}
	}

	result := rollingSampleStd(logReturns, window)
	factor := math.Sqrt(float64(tradingDays))
	for i, v := range result {
		if !isNaN(v) {
			result[i] = v * factor
		}
	}
	return result
}
