package datasource

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/opsdash/opsdash/dashboard"
)

// MockSettings controls the pseudo-random behavior of the mock source.
type MockSettings struct {
	Seed  int64
	ASINs []string
}

var defaultASINs = []string{"B0TESTSKU01", "B0TESTSKU02", "B0TESTSKU03"}

// MockSource generates business-report-shaped sales and traffic data from a
// seeded linear congruential generator, so runs are reproducible.
type MockSource struct {
	creds    Credentials
	settings MockSettings
	asins    []string
}

// NewMockSource creates a mock source. A zero Seed defaults to 2024 and an
// empty ASIN list to three sample SKUs.
func NewMockSource(creds Credentials, settings MockSettings) *MockSource {
	if settings.Seed == 0 {
		settings.Seed = 2024
	}
	asins := settings.ASINs
	if len(asins) == 0 {
		asins = defaultASINs
	}
	return &MockSource{creds: creds, settings: settings, asins: asins}
}

func (s *MockSource) Name() string { return "mock_amazon_business_report" }

// FetchSales implements Source.
func (s *MockSource) FetchSales(ctx context.Context, start, end time.Time) ([]dashboard.SalesRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := newLCG(s.settings.Seed + 1)
	timeline := iterDays(start, end)
	var records []dashboard.SalesRecord
	for _, asin := range s.asins {
		baseUnits := max(10, rng.intn(20, 80))
		baseRevenue := max(400, rng.intn(800, 2000))
		for _, d := range timeline {
			units := int(float64(baseUnits) * rng.uniform(0.6, 1.3))
			if units < 0 {
				units = 0
			}
			revenue := math.Round(float64(baseRevenue)*rng.uniform(0.6, 1.2)*100) / 100
			sessions := units * rng.intn(4, 9)
			if sessions < 1 {
				sessions = 1
			}
			conversion := math.Round(float64(units)/float64(sessions)*10000) / 10000
			records = append(records, dashboard.SalesRecord{
				Day:          d,
				ASIN:         asin,
				Title:        fmt.Sprintf("Mock Product %s", asin[len(asin)-2:]),
				UnitsOrdered: units,
				Revenue:      revenue,
				Sessions:     sessions,
				Conversions:  conversion,
				Refunds:      rng.intn(0, 2),
			})
		}
	}
	return records, nil
}

// FetchTraffic implements Source.
func (s *MockSource) FetchTraffic(ctx context.Context, start, end time.Time) ([]dashboard.TrafficRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := newLCG(s.settings.Seed + 2)
	timeline := iterDays(start, end)
	var records []dashboard.TrafficRecord
	for _, asin := range s.asins {
		baseSessions := max(50, rng.intn(150, 400))
		for _, d := range timeline {
			sessions := int(float64(baseSessions) * rng.uniform(0.5, 1.3))
			if sessions < 1 {
				sessions = 1
			}
			records = append(records, dashboard.TrafficRecord{
				Day:              d,
				ASIN:             asin,
				Sessions:         sessions,
				PageViews:        sessions + rng.intn(20, 200),
				BuyBoxPercentage: math.Round(rng.uniform(75, 98)*100) / 100,
			})
		}
	}
	return records, nil
}

var _ Source = (*MockSource)(nil)

// lcg is a MINSTD linear congruential generator. math/rand would do, but this
// keeps sequences identical across Go releases.
type lcg struct {
	state int64
}

func newLCG(seed int64) *lcg {
	state := seed % 2147483647
	if state <= 0 {
		state = 42
	}
	return &lcg{state: state}
}

func (r *lcg) next() float64 {
	r.state = (r.state * 48271) % 2147483647
	return float64(r.state) / 2147483647
}

func (r *lcg) uniform(low, high float64) float64 {
	return low + (high-low)*r.next()
}

func (r *lcg) intn(low, high int) int {
	return low + int(float64(high-low)*r.next())
}
