package prices

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	kitemodels "github.com/zerodha/gokiteconnect/v4/models"

	"nse-newsfeatures/internal/models"
	"nse-newsfeatures/internal/resilience"
	"nse-newsfeatures/internal/store"
	"nse-newsfeatures/pkg/utils"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func fastRetry() utils.RetryConfig {
	return utils.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
}

func TestWindow(t *testing.T) {
	from, to := Window(day("2024-05-02"), 180)
	assert.Equal(t, "2023-10-25", from.Format(models.DateLayout))
	assert.Equal(t, "2024-05-03", to.Format(models.DateLayout))
}

func TestNormalize(t *testing.T) {
	ist := utils.IndiaLocation
	candles := []models.Candle{
		{Timestamp: time.Date(2024, 5, 3, 9, 15, 0, 0, ist), Close: 3},
		{Timestamp: time.Date(2024, 5, 2, 9, 15, 0, 0, ist), Close: 1},
		// 2024-05-02 19:00 UTC is already 2024-05-03 in IST
		{Timestamp: time.Date(2024, 5, 2, 19, 0, 0, 0, time.UTC), Close: 4},
		{Timestamp: time.Date(2024, 5, 1, 15, 30, 0, 0, ist), Close: 0.5},
		{Timestamp: time.Date(2024, 5, 6, 9, 15, 0, 0, ist), Close: 9},
	}

	got := Normalize(candles, day("2024-05-02"), day("2024-05-06"), ist)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-05-02", got[0].Day())
	assert.Equal(t, 1.0, got[0].Close)
	assert.Equal(t, "2024-05-03", got[1].Day())
	assert.Equal(t, 4.0, got[1].Close, "last candle of a day wins")
	assert.Equal(t, time.UTC, got[0].Timestamp.Location())

	assert.NotNil(t, Normalize(nil, day("2024-05-02"), day("2024-05-06"), ist))
}

const chartBody = `{"chart":{"result":[{"timestamp":[1714621500,1714707900,1714967100],
"indicators":{"quote":[{"open":[100,102,null],"high":[105,106,null],"low":[99,101,null],
"close":[104,103,null],"volume":[1000,null,null]}]}}],"error":null}}`

func TestYahooProviderFetch(t *testing.T) {
	var gotPath, gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chartBody)
	}))
	defer srv.Close()

	p := NewYahooProvider(YahooConfig{BaseURL: srv.URL, MaxRequestPerMinute: 6000, Retry: fastRetry()}, zerolog.Nop())
	candles := p.Fetch(context.Background(), "tcs", day("2024-05-01"), day("2024-05-07"))

	assert.Equal(t, "/v8/finance/chart/TCS.NS", gotPath)
	assert.Equal(t, "1d", gotInterval)
	require.Len(t, candles, 2)
	assert.Equal(t, "2024-05-02", candles[0].Day())
	assert.Equal(t, 104.0, candles[0].Close)
	assert.Equal(t, int64(1000), candles[0].Volume)
	assert.Equal(t, "2024-05-03", candles[1].Day())
	assert.Equal(t, int64(0), candles[1].Volume)
}

func TestYahooProviderDegradesToEmpty(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if strings.Contains(r.URL.Path, "MISSING") {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewYahooProvider(YahooConfig{BaseURL: srv.URL, MaxRequestPerMinute: 6000, Retry: fastRetry()}, zerolog.Nop())

	got := p.Fetch(context.Background(), "TCS", day("2024-05-01"), day("2024-05-07"))
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "server errors are retried")

	atomic.StoreInt32(&calls, 0)
	got = p.Fetch(context.Background(), "MISSING", day("2024-05-01"), day("2024-05-07"))
	assert.Empty(t, got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "not found is not retried")
}

func TestYahooProviderBreakerShortCircuits(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if strings.Contains(r.URL.Path, "MISSING") {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewYahooProvider(YahooConfig{
		BaseURL:             srv.URL,
		MaxRequestPerMinute: 6000,
		Retry:               fastRetry(),
		Breaker:             resilience.Config{FailureThreshold: 2, Cooldown: time.Hour},
	}, zerolog.Nop())
	from, to := day("2024-05-01"), day("2024-05-07")

	// unknown symbols never trip the breaker
	for i := 0; i < 3; i++ {
		p.Fetch(context.Background(), "MISSING", from, to)
	}
	assert.Equal(t, resilience.StateClosed, p.Breaker().State())

	p.Fetch(context.Background(), "TCS", from, to)
	p.Fetch(context.Background(), "INFY", from, to)
	require.Equal(t, resilience.StateOpen, p.Breaker().State())
	before := atomic.LoadInt32(&calls)

	got := p.Fetch(context.Background(), "SBIN", from, to)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
	assert.Equal(t, int64(1), p.Breaker().Stats().Rejected)
}

func TestYahooSymbol(t *testing.T) {
	assert.Equal(t, "RELIANCE.NS", yahooSymbol(" reliance "))
	assert.Equal(t, "RELIANCE.NS", yahooSymbol("RELIANCE.NS"))
	assert.Equal(t, "^NSEI", yahooSymbol("^NSEI"))
}

// stubProvider returns a fixed series per symbol and counts calls.
type stubProvider struct {
	mu     sync.Mutex
	series map[string][]models.Candle
	calls  map[string]int
}

func newStubProvider(series map[string][]models.Candle) *stubProvider {
	return &stubProvider{series: series, calls: make(map[string]int)}
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Fetch(_ context.Context, symbol string, from, to time.Time) []models.Candle {
	s.mu.Lock()
	s.calls[symbol]++
	s.mu.Unlock()
	return Normalize(s.series[symbol], from, to, time.UTC)
}

func dailySeries(start string, n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: day(start).AddDate(0, 0, i),
			Open:      100, High: 101, Low: 99, Close: 100 + float64(i),
			Volume: 1000,
		}
	}
	return out
}

func TestFetchAll(t *testing.T) {
	p := newStubProvider(map[string][]models.Candle{
		"TCS":  dailySeries("2024-04-20", 13),
		"INFY": dailySeries("2024-04-20", 5),
	})
	from, to := Window(day("2024-05-02"), 30)

	got := FetchAll(context.Background(), p, []string{"TCS", "INFY", "NODATA"}, from, to, 2)
	require.Len(t, got, 2)
	assert.Len(t, got["TCS"], 13)
	assert.Len(t, got["INFY"], 5)
	_, ok := got["NODATA"]
	assert.False(t, ok)
	assert.Equal(t, 1, p.calls["NODATA"])
}

func TestCachedProviderStoresAndServes(t *testing.T) {
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "news.db"))
	require.NoError(t, err)
	defer db.Close()

	from, to := day("2024-04-25"), day("2024-05-03")
	p := newStubProvider(map[string][]models.Candle{"TCS": dailySeries("2024-04-25", 8)})

	cached := NewCachedProvider(p, db, time.Hour, zerolog.Nop())
	first := cached.Fetch(context.Background(), "TCS", from, to)
	require.Len(t, first, 8)
	assert.Equal(t, 1, p.calls["TCS"])

	// memoized
	second := cached.Fetch(context.Background(), "TCS", from, to)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.calls["TCS"])

	// a fresh provider over the same store is served from the candle table
	reopened := NewCachedProvider(p, db, time.Hour, zerolog.Nop())
	third := reopened.Fetch(context.Background(), "TCS", from, to)
	require.Len(t, third, 8)
	assert.Equal(t, 1, p.calls["TCS"])
	assert.Equal(t, first[7].Close, third[7].Close)

	// a window ending after the stored data goes back to the provider
	reopened.Fetch(context.Background(), "TCS", from, day("2024-05-04"))
	assert.Equal(t, 2, p.calls["TCS"])
}

type fakeKite struct {
	instrumentCalls int
	instrumentsErr  error
	lastToken       int
	lastTo          time.Time
}

func (f *fakeKite) GetInstruments() (kiteconnect.Instruments, error) {
	f.instrumentCalls++
	if f.instrumentsErr != nil {
		return nil, f.instrumentsErr
	}
	return kiteconnect.Instruments{
		{InstrumentToken: 2953217, Tradingsymbol: "TCS", Exchange: "NSE"},
		{InstrumentToken: 111, Tradingsymbol: "TCS", Exchange: "BSE"},
	}, nil
}

func (f *fakeKite) GetHistoricalData(token int, interval string, from, to time.Time, continuous, oi bool) ([]kiteconnect.HistoricalData, error) {
	f.lastToken = token
	f.lastTo = to
	ist := utils.IndiaLocation
	return []kiteconnect.HistoricalData{
		{Date: kitemodels.Time{Time: time.Date(2024, 5, 2, 0, 0, 0, 0, ist)}, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Date: kitemodels.Time{Time: time.Date(2024, 5, 3, 0, 0, 0, 0, ist)}, Open: 2, High: 3, Low: 1.5, Close: 2.5, Volume: 20},
	}, nil
}

func TestKiteProviderFetch(t *testing.T) {
	client := &fakeKite{}
	k := newKiteProvider(client, KiteConfig{}, zerolog.Nop())

	candles := k.Fetch(context.Background(), "tcs", day("2024-05-01"), day("2024-05-04"))
	require.Len(t, candles, 2)
	assert.Equal(t, 2953217, client.lastToken)
	assert.Equal(t, "2024-05-02", candles[0].Day())
	assert.Equal(t, int64(20), candles[1].Volume)
	assert.True(t, client.lastTo.Before(day("2024-05-04")))

	k.Fetch(context.Background(), "TCS", day("2024-05-01"), day("2024-05-04"))
	assert.Equal(t, 1, client.instrumentCalls, "instrument tokens are cached")

	assert.Empty(t, k.Fetch(context.Background(), "UNKNOWN", day("2024-05-01"), day("2024-05-04")))
}

func TestKiteProviderUnknownSymbolsDoNotReload(t *testing.T) {
	client := &fakeKite{}
	k := newKiteProvider(client, KiteConfig{}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		assert.Empty(t, k.Fetch(context.Background(), "UNKNOWN", day("2024-05-01"), day("2024-05-04")))
	}
	assert.Len(t, k.Fetch(context.Background(), "TCS", day("2024-05-01"), day("2024-05-04")), 2)
	assert.Equal(t, 1, client.instrumentCalls)
}

func TestKiteProviderRetriesInstrumentsAfterFailure(t *testing.T) {
	client := &fakeKite{instrumentsErr: errors.New("gateway timeout")}
	k := newKiteProvider(client, KiteConfig{}, zerolog.Nop())

	assert.Empty(t, k.Fetch(context.Background(), "TCS", day("2024-05-01"), day("2024-05-04")))
	client.instrumentsErr = nil
	assert.Len(t, k.Fetch(context.Background(), "TCS", day("2024-05-01"), day("2024-05-04")), 2)
	assert.Equal(t, 2, client.instrumentCalls)
}

func TestKiteProviderDegradesToEmpty(t *testing.T) {
	k := newKiteProvider(&fakeKite{instrumentsErr: errors.New("token expired")}, KiteConfig{}, zerolog.Nop())
	got := k.Fetch(context.Background(), "TCS", day("2024-05-01"), day("2024-05-04"))
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err := NewKiteProvider(KiteConfig{APIKey: "key"}, zerolog.Nop())
	assert.Error(t, err)
}
