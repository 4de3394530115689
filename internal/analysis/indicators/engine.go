// Package indicators provides technical indicator calculations with parallel processing.
//
// Series are []float64 aligned with the input candles; NaN marks a value whose
// window is not yet met. Conversion to nullable fields happens in Snapshot.
package indicators

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nse-newsfeatures/internal/models"
)

// Indicator defines the interface for single-value technical indicators.
type Indicator interface {
	Name() string
	Calculate(candles []models.Candle) ([]float64, error)
	Period() int
}

// MultiValueIndicator defines the interface for indicators that return multiple values.
type MultiValueIndicator interface {
	Name() string
	Calculate(candles []models.Candle) (map[string][]float64, error)
	Period() int
}

// Params holds the configurable indicator periods. SMA20, EMA20, EMA50 and
// the 20-day volatility are fixed.
type Params struct {
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	ATRPeriod  int
}

// DefaultParams returns the standard periods (RSI 14, MACD 12/26/9, ATR 14).
func DefaultParams() Params {
	return Params{
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		ATRPeriod:  14,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = d.RSIPeriod
	}
	if p.MACDFast <= 0 {
		p.MACDFast = d.MACDFast
	}
	if p.MACDSlow <= 0 {
		p.MACDSlow = d.MACDSlow
	}
	if p.MACDSignal <= 0 {
		p.MACDSignal = d.MACDSignal
	}
	if p.ATRPeriod <= 0 {
		p.ATRPeriod = d.ATRPeriod
	}
	return p
}

// Fixed windows of the feature set.
const (
	SMAWindow      = 20
	EMAShortWindow = 20
	EMALongWindow  = 50
	VolWindow      = 20
)

// IndicatorRow is one candle with its computed indicators. NaN means undefined.
type IndicatorRow struct {
	Date       time.Time
	Close      float64
	SMA20      float64
	EMA20      float64
	EMA50      float64
	RSI        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	ATR        float64
	Ret1D      float64
	Ret5D      float64
	Vol20      float64
	VolChg     float64
}

// Day returns the row's calendar date.
func (r IndicatorRow) Day() string {
	return r.Date.Format(models.DateLayout)
}

// Engine provides parallel indicator calculation using a worker pool.
type Engine struct {
	workers int
}

// NewEngine creates a new indicator engine with the specified number of workers.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{workers: workers}
}

// CalculateAll calculates the given indicators in parallel, keyed by indicator name.
func (e *Engine) CalculateAll(ctx context.Context, candles []models.Candle, singles []Indicator, multis []MultiValueIndicator) (map[string][]float64, map[string]map[string][]float64, error) {
	singleResults := make(map[string][]float64, len(singles))
	multiResults := make(map[string]map[string][]float64, len(multis))
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)

	setErr := func(name string, err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = fmt.Errorf("indicator %s: %w", name, err)
		}
		mu.Unlock()
	}

	// Create work channels
	singleWork := make(chan Indicator, len(singles))
	multiWork := make(chan MultiValueIndicator, len(multis))

	// Start workers for single-value indicators
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ind := range singleWork {
				select {
				case <-ctx.Done():
					return
				default:
					values, err := ind.Calculate(candles)
					if err != nil {
						setErr(ind.Name(), err)
						continue
					}
					mu.Lock()
					singleResults[ind.Name()] = values
					mu.Unlock()
				}
			}
		}()
	}

	// Start workers for multi-value indicators
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ind := range multiWork {
				select {
				case <-ctx.Done():
					return
				default:
					values, err := ind.Calculate(candles)
					if err != nil {
						setErr(ind.Name(), err)
						continue
					}
					mu.Lock()
					multiResults[ind.Name()] = values
					mu.Unlock()
				}
			}
		}()
	}

	// Send work
	for _, ind := range singles {
		singleWork <- ind
	}
	close(singleWork)

	for _, ind := range multis {
		multiWork <- ind
	}
	close(multiWork)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if firstErr != nil {
		return nil, nil, firstErr
	}
	return singleResults, multiResults, nil
}

// ComputeTable computes the fixed feature indicator set for an ascending,
// date-unique candle series. The result is a pure function of candles and params.
func (e *Engine) ComputeTable(ctx context.Context, candles []models.Candle, params Params) ([]IndicatorRow, error) {
	params = params.withDefaults()
	if params.MACDFast >= params.MACDSlow {
		return nil, fmt.Errorf("macd fast period %d must be less than slow period %d: %w",
			params.MACDFast, params.MACDSlow, ErrInvalidPeriod)
	}
	if len(candles) == 0 {
		return []IndicatorRow{}, nil
	}

	sma20 := NewSMA(SMAWindow)
	ema20 := NewEMA(EMAShortWindow)
	ema50 := NewEMA(EMALongWindow)
	rsi := NewRSI(params.RSIPeriod)
	atr := NewATR(params.ATRPeriod)
	ret1 := NewReturns(1)
	ret5 := NewReturns(5)
	vol := NewHistoricalVolatility(VolWindow, TradingDaysPerYear)
	volChg := NewVolumeChange()
	macd := NewMACD(params.MACDFast, params.MACDSlow, params.MACDSignal)

	singles, multis, err := e.CalculateAll(ctx, candles,
		[]Indicator{sma20, ema20, ema50, rsi, atr, ret1, ret5, vol, volChg},
		[]MultiValueIndicator{macd},
	)
	if err != nil {
		return nil, err
	}

	m := multis[macd.Name()]
	rows := make([]IndicatorRow, len(candles))
	for i, c := range candles {
		rows[i] = IndicatorRow{
			Date:       c.Timestamp,
			Close:      c.Close,
			SMA20:      singles[sma20.Name()][i],
			EMA20:      singles[ema20.Name()][i],
			EMA50:      singles[ema50.Name()][i],
			RSI:        singles[rsi.Name()][i],
			MACD:       m["macd"][i],
			MACDSignal: m["signal"][i],
			MACDHist:   m["histogram"][i],
			ATR:        singles[atr.Name()][i],
			Ret1D:      singles[ret1.Name()][i],
			Ret5D:      singles[ret5.Name()][i],
			Vol20:      singles[vol.Name()][i],
			VolChg:     singles[volChg.Name()][i],
		}
	}
	return rows, nil
}

// LatestAsOf returns the last row dated on or before day (YYYY-MM-DD).
// It reports false when every row is after day.
func LatestAsOf(rows []IndicatorRow, day string) (IndicatorRow, bool) {
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Day() <= day {
			return rows[i], true
		}
	}
	return IndicatorRow{}, false
}

// Snapshot converts a row into the nullable price snapshot of symbol.
func Snapshot(symbol string, row IndicatorRow) models.PriceSnapshot {
	return models.PriceSnapshot{
		Symbol:     symbol,
		Date:       row.Day(),
		Close:      ToPtr(row.Close),
		SMA20:      ToPtr(row.SMA20),
		EMA20:      ToPtr(row.EMA20),
		EMA50:      ToPtr(row.EMA50),
		RSI:        ToPtr(row.RSI),
		MACD:       ToPtr(row.MACD),
		MACDSignal: ToPtr(row.MACDSignal),
		MACDHist:   ToPtr(row.MACDHist),
		ATR:        ToPtr(row.ATR),
		Ret1D:      ToPtr(row.Ret1D),
		Ret5D:      ToPtr(row.Ret5D),
		Vol20:      ToPtr(row.Vol20),
		VolChg:     ToPtr(row.VolChg),
	}
}
