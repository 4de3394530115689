package features

import (
	"nse-newsfeatures/internal/models"
)

// Merge left-joins news aggregates with price snapshots on symbol. Every
// aggregate yields exactly one row dated date, in input order; symbols present
// only in prices yield nothing.
func Merge(date string, news []models.NewsDailyAggregate, prices map[string]models.PriceSnapshot) []models.FeatureRow {
	rows := make([]models.FeatureRow, 0, len(news))
	for _, agg := range news {
		row := models.FeatureRow{
			Date:   date,
			Symbol: agg.Symbol,
			News:   agg,
		}
		if snap, ok := prices[agg.Symbol]; ok {
			snap := snap
			row.Price = &snap
		}
		rows = append(rows, row)
	}
	return rows
}
