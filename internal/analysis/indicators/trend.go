package indicators

import (
	"fmt"

	"nse-newsfeatures/internal/models"
)

// SMA calculates Simple Moving Average of close.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

func (s *SMA) Calculate(candles []models.Candle) ([]float64, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return CalculateSMA(closePrices(candles), s.period), nil
}

// CalculateSMA calculates SMA on raw values. Undefined until period values are seen.
func CalculateSMA(values []float64, period int) []float64 {
	if period <= 0 {
		return nanSeries(len(values))
	}
	return rollingMean(values, period)
}

// EMA calculates Exponential Moving Average of close.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator.
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA_%d", e.period)
}

func (e *EMA) Period() int {
	return e.period
}

func (e *EMA) Calculate(candles []models.Candle) ([]float64, error) {
	if e.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return CalculateEMA(closePrices(candles), e.period), nil
}

// CalculateEMA calculates the recursive EMA (alpha = 2/(period+1)) on raw values.
// Leading undefined values are skipped; the average is seeded with the first
// defined value and reported once period defined values have been seen.
// An undefined value inside the series yields undefined output at that index
// and leaves the running average untouched.
func CalculateEMA(values []float64, period int) []float64 {
	result := nanSeries(len(values))
	if period <= 0 {
		return result
	}

	multiplier := 2.0 / float64(period+1)
	var (
		ema     float64
		defined int
	)
	for i, v := range values {
		if isNaN(v) {
			continue
		}
		if defined == 0 {
			ema = v
		} else {
			ema = (v-ema)*multiplier + ema
		}
		defined++
		if defined >= period {
			result[i] = ema
		}
	}
	return result
}

// MACD calculates Moving Average Convergence Divergence.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator (typically 12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

// Period returns the number of observations before the signal line is defined.
func (m *MACD) Period() int {
	return m.slowPeriod + m.signalPeriod - 1
}

func (m *MACD) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if m.fastPeriod <= 0 || m.slowPeriod <= 0 || m.signalPeriod <= 0 {
		return nil, ErrInvalidPeriod
	}
	line, signal, hist := CalculateMACD(closePrices(candles), m.fastPeriod, m.slowPeriod, m.signalPeriod)
	return map[string][]float64{
		"macd":      line,
		"signal":    signal,
		"histogram": hist,
	}, nil
}

// CalculateMACD returns the MACD line, the signal line and the histogram.
func CalculateMACD(closes []float64, fast, slow, signal int) (line, signalLine, hist []float64) {
	fastEMA := CalculateEMA(closes, fast)
	slowEMA := CalculateEMA(closes, slow)

	// MACD Line = Fast EMA - Slow EMA
	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	// Signal Line = EMA of MACD Line
	signalLine = CalculateEMA(line, signal)

	// Histogram = MACD Line - Signal Line
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - signalLine[i]
	}
	return line, signalLine, hist
}
