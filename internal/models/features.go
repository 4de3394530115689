package models

// NewsDailyAggregate holds the news-derived features of one symbol for one day.
// Sentiment statistics are nil when no finite score contributed.
type NewsDailyAggregate struct {
	Date        string           `json:"date"`
	Symbol      string           `json:"symbol"`
	NewsCount   int              `json:"news_count"`
	PosCount    int              `json:"pos_count"`
	NegCount    int              `json:"neg_count"`
	NeuCount    int              `json:"neu_count"`
	SentMean    *float64         `json:"sent_mean"`
	SentMax     *float64         `json:"sent_max"`
	SentMin     *float64         `json:"sent_min"`
	PosRatio    float64          `json:"pos_ratio"`
	NegRatio    float64          `json:"neg_ratio"`
	EventCounts map[EventTag]int `json:"event_counts"`
}

// PriceSnapshot is the as-of indicator row of one symbol. Nil fields mean the
// indicator window was not met.
type PriceSnapshot struct {
	Symbol     string   `json:"symbol"`
	Date       string   `json:"price_date"`
	Close      *float64 `json:"close"`
	SMA20      *float64 `json:"sma_20"`
	EMA20      *float64 `json:"ema_20"`
	EMA50      *float64 `json:"ema_50"`
	RSI        *float64 `json:"rsi"`
	MACD       *float64 `json:"macd"`
	MACDSignal *float64 `json:"macd_signal"`
	MACDHist   *float64 `json:"macd_hist"`
	ATR        *float64 `json:"atr"`
	Ret1D      *float64 `json:"ret_1d"`
	Ret5D      *float64 `json:"ret_5d"`
	Vol20      *float64 `json:"vol_20"`
	VolChg     *float64 `json:"vol_chg"`
}

// FeatureRow is the persisted per-(date, symbol) feature record.
// Price is nil when the symbol had no price data as of the date.
type FeatureRow struct {
	Date   string             `json:"fe_date"`
	Symbol string             `json:"symbol"`
	News   NewsDailyAggregate `json:"news"`
	Price  *PriceSnapshot     `json:"price"`
}

// Key returns the composite natural key of the row.
func (r FeatureRow) Key() string {
	return r.Date + "|" + r.Symbol
}
