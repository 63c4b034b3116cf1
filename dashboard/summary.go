package dashboard

import (
	"math"
	"sort"
	"time"
)

type asinAggregate struct {
	title            string
	revenue          float64
	units            int
	sessionsEstimate int
	sessions         int
	conversion       float64
	refunds          int
	buyBoxSum        float64
	buyBoxCount      int
}

// BuildSummary aggregates sales and traffic records by ASIN and produces the
// window's KPI overview plus the top products ranked by revenue. Traffic
// sessions take precedence over the session estimates embedded in sales
// records; the estimate is the fallback for ASINs without traffic rows.
func BuildSummary(sourceName string, start, end time.Time, sales []SalesRecord, traffic []TrafficRecord, topN int) Summary {
	aggregated := aggregateByASIN(sales, traffic)

	var totalRevenue float64
	var totalUnits, totalSessions, totalRefunds int
	for _, a := range aggregated {
		totalRevenue += a.revenue
		totalUnits += a.units
		totalSessions += a.sessions
		totalRefunds += a.refunds
	}

	var conversionRate, refundRate float64
	if totalSessions > 0 {
		conversionRate = float64(totalUnits) / float64(totalSessions)
	}
	if totalUnits > 0 {
		refundRate = float64(totalRefunds) / float64(totalUnits)
	}

	asins := make([]string, 0, len(aggregated))
	for asin := range aggregated {
		asins = append(asins, asin)
	}
	sort.Slice(asins, func(i, j int) bool {
		ai, aj := aggregated[asins[i]], aggregated[asins[j]]
		if ai.revenue != aj.revenue {
			return ai.revenue > aj.revenue
		}
		return asins[i] < asins[j]
	})
	if topN > 0 && len(asins) > topN {
		asins = asins[:topN]
	}

	top := make([]ProductPerformance, 0, len(asins))
	for _, asin := range asins {
		a := aggregated[asin]
		p := ProductPerformance{
			ASIN:           asin,
			Title:          a.title,
			Revenue:        round2(a.revenue),
			Units:          a.units,
			Sessions:       a.sessions,
			ConversionRate: round4(a.conversion),
			Refunds:        a.refunds,
		}
		if a.buyBoxCount > 0 {
			bb := round2(a.buyBoxSum / float64(a.buyBoxCount))
			p.BuyBoxPercentage = &bb
		}
		top = append(top, p)
	}

	return Summary{
		Start:      start,
		End:        end,
		SourceName: sourceName,
		Totals: KPIOverview{
			TotalRevenue:   round2(totalRevenue),
			TotalUnits:     totalUnits,
			TotalSessions:  totalSessions,
			ConversionRate: round4(conversionRate),
			RefundRate:     round4(refundRate),
		},
		TopProducts: top,
	}
}

func aggregateByASIN(sales []SalesRecord, traffic []TrafficRecord) map[string]*asinAggregate {
	aggregated := make(map[string]*asinAggregate)

	entry := func(asin, title string) *asinAggregate {
		a, ok := aggregated[asin]
		if !ok {
			a = &asinAggregate{title: title}
			aggregated[asin] = a
		}
		return a
	}

	for _, r := range sales {
		a := entry(r.ASIN, r.Title)
		if r.Title != "" {
			a.title = r.Title
		}
		a.revenue += r.Revenue
		a.units += r.UnitsOrdered
		a.sessionsEstimate += r.Sessions
		a.refunds += r.Refunds
	}

	for _, r := range traffic {
		a := entry(r.ASIN, "Unknown ASIN")
		a.sessions += r.Sessions
		a.buyBoxSum += r.BuyBoxPercentage
		a.buyBoxCount++
	}

	for _, a := range aggregated {
		if a.sessions == 0 {
			a.sessions = a.sessionsEstimate
		}
		if a.sessions > 0 {
			a.conversion = float64(a.units) / float64(a.sessions)
		}
	}

	return aggregated
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round4(f float64) float64 { return math.Round(f*10000) / 10000 }
