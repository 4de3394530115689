// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"nse-newsfeatures/internal/models"
)

// ListSeparator joins list fields (symbols, events) in text columns.
const ListSeparator = ","

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// EventColumn returns the features column holding the count of tag.
func EventColumn(tag models.EventTag) string {
	return "ev_" + strings.ToLower(string(tag))
}

// priceColumns are the nullable indicator columns of the features table, in
// the order returned by PriceValues.
var priceColumns = []string{
	"close", "sma_20", "ema_20", "ema_50", "rsi", "macd", "macd_signal",
	"macd_hist", "atr", "ret_1d", "ret_5d", "vol_20", "vol_chg",
}

// PriceValues returns the indicator values of p in column order.
func PriceValues(p *models.PriceSnapshot) []*float64 {
	return []*float64{
		p.Close, p.SMA20, p.EMA20, p.EMA50, p.RSI, p.MACD, p.MACDSignal,
		p.MACDHist, p.ATR, p.Ret1D, p.Ret5D, p.Vol20, p.VolChg,
	}
}

func priceTargets(p *models.PriceSnapshot) []**float64 {
	return []**float64{
		&p.Close, &p.SMA20, &p.EMA20, &p.EMA50, &p.RSI, &p.MACD, &p.MACDSignal,
		&p.MACDHist, &p.ATR, &p.Ret1D, &p.Ret5D, &p.Vol20, &p.VolChg,
	}
}

// FeatureColumns lists every column written by ReplaceFeatureRows. The CSV
// export uses the same order.
func FeatureColumns() []string {
	cols := []string{
		"fe_date", "symbol", "news_count", "pos_count", "neg_count", "neu_count",
		"sent_mean", "sent_max", "sent_min", "pos_ratio", "neg_ratio",
	}
	for _, tag := range models.AllEventTags() {
		cols = append(cols, EventColumn(tag))
	}
	cols = append(cols, "price_date")
	return append(cols, priceColumns...)
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	var eventCols strings.Builder
	for _, tag := range models.AllEventTags() {
		fmt.Fprintf(&eventCols, "\t\t%s INTEGER NOT NULL DEFAULT 0,\n", EventColumn(tag))
	}
	var priceCols strings.Builder
	for _, col := range priceColumns {
		fmt.Fprintf(&priceCols, "\t\t%s REAL,\n", col)
	}

	schema := `
	-- Raw news table
	CREATE TABLE IF NOT EXISTS news (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		title TEXT NOT NULL,
		summary TEXT,
		url TEXT NOT NULL UNIQUE,
		published_at TEXT,
		company_symbols TEXT,
		raw TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- NLP records table
	CREATE TABLE IF NOT EXISTS news_nlp (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		title TEXT,
		published_at TEXT,
		symbols TEXT,
		events TEXT,
		sentiment_label TEXT NOT NULL,
		sentiment_score REAL NOT NULL,
		sentiment_engine TEXT NOT NULL,
		source TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Daily feature rows table
	CREATE TABLE IF NOT EXISTS features (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fe_date TEXT NOT NULL,
		symbol TEXT NOT NULL,
		news_count INTEGER NOT NULL,
		pos_count INTEGER NOT NULL,
		neg_count INTEGER NOT NULL,
		neu_count INTEGER NOT NULL,
		sent_mean REAL,
		sent_max REAL,
		sent_min REAL,
		pos_ratio REAL NOT NULL,
		neg_ratio REAL NOT NULL,
` + eventCols.String() + `		price_date TEXT,
` + priceCols.String() + `		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(fe_date, symbol)
	);

	-- Candles table (price cache)
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_news_published ON news(published_at);
	CREATE INDEX IF NOT EXISTS idx_nlp_published ON news_nlp(published_at);
	CREATE INDEX IF NOT EXISTS idx_features_date ON features(fe_date);
	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Raw News Methods
// ============================================================================

// SaveRawItems inserts items whose URL is not yet stored and returns how many
// were inserted. Items without a URL are skipped.
func (s *SQLiteStore) SaveRawItems(ctx context.Context, items []models.RawItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO news (source, title, summary, url, published_at, company_symbols, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range items {
		url := strings.TrimSpace(item.URL)
		if url == "" {
			continue
		}
		var raw interface{}
		if len(item.Raw) > 0 {
			raw = string(item.Raw)
		}
		result, err := stmt.ExecContext(ctx, item.Source, item.Title, item.Summary, url,
			nullString(item.PublishedAt), strings.Join(item.CompanySymbols, ListSeparator), raw)
		if err != nil {
			return 0, fmt.Errorf("failed to insert news item: %w", err)
		}
		n, _ := result.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// ============================================================================
// NLP Record Methods
// ============================================================================

// UpsertNlpRecords inserts new URLs and overwrites symbols, events and
// sentiment of URLs already stored.
func (s *SQLiteStore) UpsertNlpRecords(ctx context.Context, records []models.NlpRecord) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := tx.PrepareContext(ctx, `SELECT COUNT(1) FROM news_nlp WHERE url = ?`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer exists.Close()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO news_nlp (url, title, published_at, symbols, events, sentiment_label, sentiment_score, sentiment_engine, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			symbols = excluded.symbols,
			events = excluded.events,
			sentiment_label = excluded.sentiment_label,
			sentiment_score = excluded.sentiment_score,
			sentiment_engine = excluded.sentiment_engine,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer upsert.Close()

	var inserted, updated int
	for _, r := range records {
		if r.URL == "" {
			continue
		}
		var count int
		if err := exists.QueryRowContext(ctx, r.URL).Scan(&count); err != nil {
			return 0, 0, fmt.Errorf("failed to check nlp record: %w", err)
		}

		_, err := upsert.ExecContext(ctx, r.URL, r.Title, nullString(r.PublishedAt),
			strings.Join(r.Symbols, ListSeparator), joinEvents(r.Events),
			string(r.SentimentLabel), r.SentimentScore, r.SentimentEngine, r.Source)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to upsert nlp record: %w", err)
		}
		if count > 0 {
			updated++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, updated, nil
}

// GetNlpRecord retrieves the record stored for url, or nil when absent.
func (s *SQLiteStore) GetNlpRecord(ctx context.Context, url string) (*models.NlpRecord, error) {
	var r models.NlpRecord
	var publishedAt sql.NullString
	var symbols, events, label string

	err := s.db.QueryRowContext(ctx, `
		SELECT url, COALESCE(title, ''), published_at, COALESCE(symbols, ''), COALESCE(events, ''),
			sentiment_label, sentiment_score, sentiment_engine, COALESCE(source, '')
		FROM news_nlp WHERE url = ?
	`, url).Scan(&r.URL, &r.Title, &publishedAt, &symbols, &events, &label, &r.SentimentScore, &r.SentimentEngine, &r.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nlp record: %w", err)
	}

	if publishedAt.Valid {
		r.PublishedAt = &publishedAt.String
	}
	r.Symbols = splitList(symbols)
	for _, e := range splitList(events) {
		r.Events = append(r.Events, models.EventTag(e))
	}
	r.SentimentLabel = models.SentimentLabel(label)

	return &r, nil
}

// ============================================================================
// Feature Row Methods
// ============================================================================

// ReplaceFeatureRows deletes any stored row sharing a (date, symbol) key with
// rows and inserts the new values, all in one transaction.
func (s *SQLiteStore) ReplaceFeatureRows(ctx context.Context, rows []models.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.writeFeatureRows(ctx, "", rows)
}

// ReplaceFeatureDay makes rows the complete set of feature rows stored for
// date: every existing row of date is deleted before rows are written, in one
// transaction. Empty rows clears the date.
func (s *SQLiteStore) ReplaceFeatureDay(ctx context.Context, date string, rows []models.FeatureRow) error {
	if date == "" {
		return fmt.Errorf("feature date is required")
	}
	return s.writeFeatureRows(ctx, date, rows)
}

// writeFeatureRows clears clearDate when set, then replaces rows by key.
func (s *SQLiteStore) writeFeatureRows(ctx context.Context, clearDate string, rows []models.FeatureRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if clearDate != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM features WHERE fe_date = ?`, clearDate); err != nil {
			return fmt.Errorf("failed to clear feature rows of %s: %w", clearDate, err)
		}
	}

	del, err := tx.PrepareContext(ctx, `DELETE FROM features WHERE fe_date = ? AND symbol = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer del.Close()

	cols := FeatureColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	ins, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO features (%s) VALUES (%s)", strings.Join(cols, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer ins.Close()

	for _, row := range rows {
		if _, err := del.ExecContext(ctx, row.Date, row.Symbol); err != nil {
			return fmt.Errorf("failed to delete feature row %s: %w", row.Key(), err)
		}
		if _, err := ins.ExecContext(ctx, featureArgs(row)...); err != nil {
			return fmt.Errorf("failed to insert feature row %s: %w", row.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func featureArgs(row models.FeatureRow) []interface{} {
	n := row.News
	args := []interface{}{
		row.Date, row.Symbol, n.NewsCount, n.PosCount, n.NegCount, n.NeuCount,
		nullFloat(n.SentMean), nullFloat(n.SentMax), nullFloat(n.SentMin), n.PosRatio, n.NegRatio,
	}
	for _, tag := range models.AllEventTags() {
		args = append(args, n.EventCounts[tag])
	}

	if row.Price == nil {
		args = append(args, nil)
		for range priceColumns {
			args = append(args, nil)
		}
		return args
	}

	args = append(args, row.Price.Date)
	for _, v := range PriceValues(row.Price) {
		args = append(args, nullFloat(v))
	}
	return args
}

// GetFeatureRows retrieves the feature rows of date ordered by symbol.
func (s *SQLiteStore) GetFeatureRows(ctx context.Context, date string) ([]models.FeatureRow, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM features WHERE fe_date = ? ORDER BY symbol ASC",
		strings.Join(FeatureColumns(), ", ")), date)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature rows: %w", err)
	}
	defer rows.Close()

	tags := models.AllEventTags()
	var result []models.FeatureRow
	for rows.Next() {
		var (
			row                        models.FeatureRow
			sentMean, sentMax, sentMin sql.NullFloat64
			priceDate                  sql.NullString
		)
		eventCounts := make([]int, len(tags))
		prices := make([]sql.NullFloat64, len(priceColumns))

		n := &row.News
		dest := []interface{}{
			&row.Date, &row.Symbol, &n.NewsCount, &n.PosCount, &n.NegCount, &n.NeuCount,
			&sentMean, &sentMax, &sentMin, &n.PosRatio, &n.NegRatio,
		}
		for i := range eventCounts {
			dest = append(dest, &eventCounts[i])
		}
		dest = append(dest, &priceDate)
		for i := range prices {
			dest = append(dest, &prices[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}

		n.Date = row.Date
		n.Symbol = row.Symbol
		n.SentMean = fromNull(sentMean)
		n.SentMax = fromNull(sentMax)
		n.SentMin = fromNull(sentMin)
		n.EventCounts = make(map[models.EventTag]int, len(tags))
		for i, tag := range tags {
			n.EventCounts[tag] = eventCounts[i]
		}

		if priceDate.Valid {
			p := &models.PriceSnapshot{Symbol: row.Symbol, Date: priceDate.String}
			for i, target := range priceTargets(p) {
				*target = fromNull(prices[i])
			}
			row.Price = p
		}

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feature rows: %w", err)
	}

	return result, nil
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database, replacing rows with the same timestamp.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves candles with from <= timestamp < to in ascending order.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
	`, symbol, timeframe, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// ============================================================================
// Helpers
// ============================================================================

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func joinEvents(events []models.EventTag) string {
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = string(e)
	}
	return strings.Join(parts, ListSeparator)
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ListSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
