package dashboard

import (
	"strings"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBuildSummaryAggregatesByASIN(t *testing.T) {
	start, end := day("2026-08-01"), day("2026-08-02")
	sales := []SalesRecord{
		{Day: start, ASIN: "B001", Title: "Widget", UnitsOrdered: 10, Revenue: 100, Sessions: 40, Refunds: 1},
		{Day: end, ASIN: "B001", Title: "Widget", UnitsOrdered: 20, Revenue: 300, Sessions: 60, Refunds: 1},
		{Day: start, ASIN: "B002", Title: "Gadget", UnitsOrdered: 5, Revenue: 500, Sessions: 10, Refunds: 0},
	}
	traffic := []TrafficRecord{
		{Day: start, ASIN: "B001", Sessions: 50, PageViews: 80, BuyBoxPercentage: 90},
		{Day: end, ASIN: "B001", Sessions: 50, PageViews: 90, BuyBoxPercentage: 80},
	}

	s := BuildSummary("unit_test", start, end, sales, traffic, 10)

	if s.Totals.TotalRevenue != 900 {
		t.Errorf("Expected total revenue 900, got %v", s.Totals.TotalRevenue)
	}
	if s.Totals.TotalUnits != 35 {
		t.Errorf("Expected 35 units, got %d", s.Totals.TotalUnits)
	}
	// B001 has real traffic sessions (100); B002 falls back to its sales
	// estimate (10).
	if s.Totals.TotalSessions != 110 {
		t.Errorf("Expected 110 sessions, got %d", s.Totals.TotalSessions)
	}
	if s.Totals.ConversionRate != round4(35.0/110.0) {
		t.Errorf("Expected conversion %v, got %v", round4(35.0/110.0), s.Totals.ConversionRate)
	}
	if s.Totals.RefundRate != round4(2.0/35.0) {
		t.Errorf("Expected refund rate %v, got %v", round4(2.0/35.0), s.Totals.RefundRate)
	}

	if len(s.TopProducts) != 2 {
		t.Fatalf("Expected 2 products, got %d", len(s.TopProducts))
	}
	// B002 has more revenue and ranks first.
	if s.TopProducts[0].ASIN != "B002" || s.TopProducts[1].ASIN != "B001" {
		t.Errorf("Expected revenue ordering [B002 B001], got [%s %s]", s.TopProducts[0].ASIN, s.TopProducts[1].ASIN)
	}
	b001 := s.TopProducts[1]
	if b001.BuyBoxPercentage == nil || *b001.BuyBoxPercentage != 85 {
		t.Errorf("Expected averaged buy box 85 for B001, got %v", b001.BuyBoxPercentage)
	}
	if s.TopProducts[0].BuyBoxPercentage != nil {
		t.Errorf("Expected nil buy box for ASIN without traffic, got %v", *s.TopProducts[0].BuyBoxPercentage)
	}
}

func TestBuildSummaryTrafficOnlyASIN(t *testing.T) {
	start, end := day("2026-08-01"), day("2026-08-01")
	traffic := []TrafficRecord{{Day: start, ASIN: "B009", Sessions: 30, PageViews: 40, BuyBoxPercentage: 70}}

	s := BuildSummary("unit_test", start, end, nil, traffic, 10)
	if len(s.TopProducts) != 1 {
		t.Fatalf("Expected 1 product, got %d", len(s.TopProducts))
	}
	p := s.TopProducts[0]
	if p.Title != "Unknown ASIN" {
		t.Errorf("Expected placeholder title, got %q", p.Title)
	}
	if p.Sessions != 30 || p.Units != 0 || p.ConversionRate != 0 {
		t.Errorf("Unexpected traffic-only aggregate: %+v", p)
	}
}

func TestBuildSummaryTopNTruncation(t *testing.T) {
	start, end := day("2026-08-01"), day("2026-08-01")
	sales := []SalesRecord{
		{Day: start, ASIN: "B001", Title: "A", Revenue: 10, Sessions: 1},
		{Day: start, ASIN: "B002", Title: "B", Revenue: 30, Sessions: 1},
		{Day: start, ASIN: "B003", Title: "C", Revenue: 20, Sessions: 1},
	}
	s := BuildSummary("unit_test", start, end, sales, nil, 2)
	if len(s.TopProducts) != 2 {
		t.Fatalf("Expected top 2, got %d", len(s.TopProducts))
	}
	if s.TopProducts[0].ASIN != "B002" || s.TopProducts[1].ASIN != "B003" {
		t.Errorf("Expected [B002 B003], got [%s %s]", s.TopProducts[0].ASIN, s.TopProducts[1].ASIN)
	}
}

func TestBuildSummaryEmptyInput(t *testing.T) {
	start, end := day("2026-08-01"), day("2026-08-07")
	s := BuildSummary("unit_test", start, end, nil, nil, 10)
	if s.Totals.ConversionRate != 0 || s.Totals.RefundRate != 0 {
		t.Errorf("Expected zero rates for empty input, got %+v", s.Totals)
	}
	if len(s.TopProducts) != 0 {
		t.Errorf("Expected no products, got %d", len(s.TopProducts))
	}
}

func TestResolveWindow(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
		window     int
		wantStart  string
		wantEnd    string
	}{
		{"both given", "2026-01-01", "2026-01-31", 7, "2026-01-01", "2026-01-31"},
		{"start only", "2026-01-01", "", 7, "2026-01-01", "2026-01-07"},
		{"end only", "", "2026-01-07", 7, "2026-01-01", "2026-01-07"},
		{"single day window", "2026-01-05", "", 1, "2026-01-05", "2026-01-05"},
		{"zero window clamps", "2026-01-05", "", 0, "2026-01-05", "2026-01-05"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, err := ResolveWindow(tc.start, tc.end, tc.window)
			if err != nil {
				t.Fatalf("ResolveWindow failed: %v", err)
			}
			if got := start.Format(DateLayout); got != tc.wantStart {
				t.Errorf("Expected start %s, got %s", tc.wantStart, got)
			}
			if got := end.Format(DateLayout); got != tc.wantEnd {
				t.Errorf("Expected end %s, got %s", tc.wantEnd, got)
			}
		})
	}
}

func TestResolveWindowRejectsInvalid(t *testing.T) {
	if _, _, err := ResolveWindow("not-a-date", "", 7); err == nil {
		t.Error("Expected error for malformed start date")
	}
	if _, _, err := ResolveWindow("2026-02-01", "2026-01-01", 7); err == nil {
		t.Error("Expected error for inverted window")
	}
}

func TestResolveWindowDefaultsToRecentPeriod(t *testing.T) {
	start, end, err := ResolveWindow("", "", 7)
	if err != nil {
		t.Fatalf("ResolveWindow failed: %v", err)
	}
	if got := end.Sub(start); got != 6*24*time.Hour {
		t.Errorf("Expected a 7-day inclusive window, got span %v", got)
	}
}

func TestYearAgo(t *testing.T) {
	if got := YearAgo(day("2026-03-15")); got.Format(DateLayout) != "2025-03-15" {
		t.Errorf("Expected 2025-03-15, got %s", got.Format(DateLayout))
	}
	// No Feb 29 in 2023.
	leap := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	if got := YearAgo(leap); got.Format(DateLayout) != "2023-03-01" {
		t.Errorf("Expected 2023-03-01 for leap day, got %s", got.Format(DateLayout))
	}
}

func TestFormatTextReport(t *testing.T) {
	bb := 92.5
	s := Summary{
		Start:      day("2026-08-01"),
		End:        day("2026-08-07"),
		SourceName: "mock_amazon_business_report",
		Totals:     KPIOverview{TotalRevenue: 12345.67, TotalUnits: 100, TotalSessions: 400, ConversionRate: 0.25, RefundRate: 0.02},
		TopProducts: []ProductPerformance{
			{ASIN: "B001", Title: "Widget", Revenue: 12345.67, Units: 100, Sessions: 400, ConversionRate: 0.25, Refunds: 2, BuyBoxPercentage: &bb},
		},
	}
	report := FormatTextReport(s)
	for _, want := range []string{
		"Window: 2026-08-01 to 2026-08-07",
		"Revenue $12,345.67",
		"CVR 25.00%",
		"1. Widget (B001)",
		"Buy Box 92.50%",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, report)
		}
	}

	empty := FormatTextReport(Summary{Start: day("2026-08-01"), End: day("2026-08-01"), SourceName: "x"})
	if !strings.Contains(empty, "No product records available.") {
		t.Errorf("Expected empty-product notice, got:\n%s", empty)
	}
}

func TestSummaryToMap(t *testing.T) {
	s := Summary{
		Start:      day("2026-08-01"),
		End:        day("2026-08-07"),
		SourceName: "mock",
		Totals:     KPIOverview{TotalRevenue: 10, TotalUnits: 2, TotalSessions: 8, ConversionRate: 0.25},
		TopProducts: []ProductPerformance{
			{ASIN: "B001", Title: "Widget", Revenue: 10, Units: 2, Sessions: 8, ConversionRate: 0.25},
		},
	}
	m := SummaryToMap(s)
	window := m["window"].(map[string]interface{})
	if window["start"] != "2026-08-01" || window["end"] != "2026-08-07" {
		t.Errorf("Unexpected window: %v", window)
	}
	totals := m["totals"].(map[string]interface{})
	if totals["revenue"] != 10.0 {
		t.Errorf("Expected revenue 10, got %v", totals["revenue"])
	}
	products := m["top_products"].([]map[string]interface{})
	if len(products) != 1 || products[0]["asin"] != "B001" {
		t.Errorf("Unexpected products: %v", products)
	}
	if products[0]["buy_box_percentage"] != nil {
		t.Errorf("Expected nil buy box, got %v", products[0]["buy_box_percentage"])
	}
}
