// Package storage defines the persistence contracts for dashboard history
// and uploaded tables.
package storage

import (
	"context"
	"errors"

	"github.com/opsdash/opsdash/dashboard"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// StoredProduct is one product row attached to a stored summary.
type StoredProduct struct {
	ASIN             string   `json:"asin"`
	Title            string   `json:"title"`
	Revenue          float64  `json:"revenue"`
	Units            int      `json:"units"`
	Sessions         int      `json:"sessions"`
	ConversionRate   float64  `json:"conversion_rate"`
	Refunds          int      `json:"refunds"`
	BuyBoxPercentage *float64 `json:"buy_box_percentage"`
}

// StoredSummary is one persisted dashboard window. Dates are ISO strings to
// keep them payload-compatible with the live summary format.
type StoredSummary struct {
	ID             int64           `json:"id"`
	Start          string          `json:"start"`
	End            string          `json:"end"`
	Source         string          `json:"source"`
	TotalRevenue   float64         `json:"total_revenue"`
	TotalUnits     int             `json:"total_units"`
	TotalSessions  int             `json:"total_sessions"`
	ConversionRate float64         `json:"conversion_rate"`
	RefundRate     float64         `json:"refund_rate"`
	CreatedAt      string          `json:"created_at"`
	Products       []StoredProduct `json:"products"`
}

// Metric returns the named aggregate (revenue, units or sessions).
func (s StoredSummary) Metric(name string) (float64, bool) {
	switch name {
	case "revenue":
		return s.TotalRevenue, true
	case "units":
		return float64(s.TotalUnits), true
	case "sessions":
		return float64(s.TotalSessions), true
	default:
		return 0, false
	}
}

// StoredUpload is one persisted uploaded table, including its cells.
type StoredUpload struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	Headers     []string   `json:"headers"`
	Rows        [][]string `json:"rows"`
	RowCount    int        `json:"row_count"`
	ColumnCount int        `json:"column_count"`
	CreatedAt   string     `json:"created_at"`
}

// UploadInfo is the listing view of an upload, without cell data.
type UploadInfo struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	RowCount    int    `json:"row_count"`
	ColumnCount int    `json:"column_count"`
	CreatedAt   string `json:"created_at"`
}

// Repository persists dashboard summaries and uploaded tables.
type Repository interface {
	// Initialize creates the schema if it does not exist.
	Initialize(ctx context.Context) error

	// SaveSummary stores a summary with its top products and returns the
	// new summary id.
	SaveSummary(ctx context.Context, summary dashboard.Summary) (int64, error)

	// RecentSummaries returns up to limit summaries, newest window first.
	RecentSummaries(ctx context.Context, limit int) ([]StoredSummary, error)

	// SummaryByStartDate returns the latest summary whose window starts on
	// the given ISO date, or ErrNotFound.
	SummaryByStartDate(ctx context.Context, start string) (*StoredSummary, error)

	// SaveUpload stores an uploaded table and returns the stored record.
	SaveUpload(ctx context.Context, filename string, headers []string, rows [][]string) (*StoredUpload, error)

	// Upload returns a stored upload by id, or ErrNotFound.
	Upload(ctx context.Context, id string) (*StoredUpload, error)

	// RecentUploads lists up to limit uploads, newest first.
	RecentUploads(ctx context.Context, limit int) ([]UploadInfo, error)

	// DeleteUpload removes an upload. It reports whether a row was deleted.
	DeleteUpload(ctx context.Context, id string) (bool, error)
}
