// Package datasource defines where sales and traffic records come from and
// ships a reproducible mock source for development and tests.
package datasource

import (
	"context"
	"time"

	"github.com/opsdash/opsdash/dashboard"
)

// Source fetches raw sales and traffic records for an inclusive date window.
type Source interface {
	// Name identifies the source in summaries and stored history.
	Name() string

	// FetchSales returns one record per ASIN per day in [start, end].
	FetchSales(ctx context.Context, start, end time.Time) ([]dashboard.SalesRecord, error)

	// FetchTraffic returns one record per ASIN per day in [start, end].
	FetchTraffic(ctx context.Context, start, end time.Time) ([]dashboard.TrafficRecord, error)
}

// Credentials carries the marketplace access fields a real source needs. The
// mock source accepts them for interface compatibility and ignores them.
type Credentials struct {
	AccessKey    string
	SecretKey    string
	AssociateTag string
	Marketplace  string
}

func iterDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
