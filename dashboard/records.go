// Package dashboard computes the KPI summaries shown on the operations
// dashboard: per-ASIN aggregation of sales and traffic records, top-product
// ranking and report formatting.
package dashboard

import "time"

// SalesRecord is one ASIN's sales performance for a single day.
type SalesRecord struct {
	Day          time.Time `json:"day"`
	ASIN         string    `json:"asin"`
	Title        string    `json:"title"`
	UnitsOrdered int       `json:"units_ordered"`
	Revenue      float64   `json:"ordered_revenue"`
	Sessions     int       `json:"sessions"`
	Conversions  float64   `json:"conversions"`
	Refunds      int       `json:"refunds"`
}

// TrafficRecord is one ASIN's traffic metrics for a single day.
type TrafficRecord struct {
	Day              time.Time `json:"day"`
	ASIN             string    `json:"asin"`
	Sessions         int       `json:"sessions"`
	PageViews        int       `json:"page_views"`
	BuyBoxPercentage float64   `json:"buy_box_percentage"`
}

// KPIOverview holds the top-level KPI figures for one window.
type KPIOverview struct {
	TotalRevenue   float64 `json:"revenue"`
	TotalUnits     int     `json:"units"`
	TotalSessions  int     `json:"sessions"`
	ConversionRate float64 `json:"conversion_rate"`
	RefundRate     float64 `json:"refund_rate"`
}

// ProductPerformance summarizes one ASIN over the window. BuyBoxPercentage is
// nil when no traffic record carried a buy-box figure.
type ProductPerformance struct {
	ASIN             string   `json:"asin"`
	Title            string   `json:"title"`
	Revenue          float64  `json:"revenue"`
	Units            int      `json:"units"`
	Sessions         int      `json:"sessions"`
	ConversionRate   float64  `json:"conversion_rate"`
	Refunds          int      `json:"refunds"`
	BuyBoxPercentage *float64 `json:"buy_box_percentage"`
}

// Summary is the complete dashboard result for one window.
type Summary struct {
	Start       time.Time            `json:"start"`
	End         time.Time            `json:"end"`
	SourceName  string               `json:"source"`
	Totals      KPIOverview          `json:"totals"`
	TopProducts []ProductPerformance `json:"top_products"`
}
