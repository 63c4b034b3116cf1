package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/opsdash/opsdash/dashboard"
	"github.com/opsdash/opsdash/storage"
)

// defaultHistoryMetrics are analyzed when the caller does not name any.
var defaultHistoryMetrics = []string{"revenue", "units", "sessions"}

// MetricGrowth holds one metric's current value and its growth rates.
// MoM and YoY are nil when the comparison base is absent or zero.
type MetricGrowth struct {
	Current float64  `json:"current"`
	MoM     *float64 `json:"mom"`
	YoY     *float64 `json:"yoy"`
}

// SeriesPoint is one summary's value for a metric, keyed by window start.
type SeriesPoint struct {
	Start string  `json:"start"`
	Value float64 `json:"value"`
}

// HistoryAnalysis is the result of analyzing stored summaries.
type HistoryAnalysis struct {
	Analysis   map[string]MetricGrowth  `json:"analysis"`
	TimeSeries map[string][]SeriesPoint `json:"time_series"`
}

// AnalyzeDashboardHistory computes month-over-month and year-over-year
// growth for the requested metrics plus a per-metric time series, oldest
// point first.
func (s *Service) AnalyzeDashboardHistory(ctx context.Context, limit int, metrics []string) (*HistoryAnalysis, error) {
	if s.repo == nil {
		return nil, ErrStorageDisabled
	}
	if limit < 1 {
		limit = 6
	}
	if err := s.repo.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	summaries, err := s.repo.RecentSummaries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(summaries) == 0 {
		return nil, ErrNoHistory
	}
	if len(metrics) == 0 {
		metrics = defaultHistoryMetrics
	}

	current := summaries[0]
	var previous *storage.StoredSummary
	if len(summaries) > 1 {
		previous = &summaries[1]
	}
	yoy := s.findYearAgo(ctx, current.Start)

	analysis := make(map[string]MetricGrowth, len(metrics))
	series := make(map[string][]SeriesPoint, len(metrics))
	for _, metric := range metrics {
		value, ok := current.Metric(metric)
		if !ok {
			continue
		}
		var momBase, yoyBase *float64
		if previous != nil {
			if v, ok := previous.Metric(metric); ok {
				momBase = &v
			}
		}
		if yoy != nil {
			if v, ok := yoy.Metric(metric); ok {
				yoyBase = &v
			}
		}
		analysis[metric] = MetricGrowth{
			Current: value,
			MoM:     calcGrowth(value, momBase),
			YoY:     calcGrowth(value, yoyBase),
		}

		points := make([]SeriesPoint, 0, len(summaries))
		for i := len(summaries) - 1; i >= 0; i-- {
			if v, ok := summaries[i].Metric(metric); ok {
				points = append(points, SeriesPoint{Start: summaries[i].Start, Value: v})
			}
		}
		series[metric] = points
	}

	return &HistoryAnalysis{Analysis: analysis, TimeSeries: series}, nil
}

// calcGrowth returns (current-base)/base, or nil when the base is absent
// or zero.
func calcGrowth(current float64, base *float64) *float64 {
	if base == nil || *base == 0 {
		return nil
	}
	growth := (current - *base) / *base
	return &growth
}

// findYearAgo returns the stored summary whose window starts one year
// before the given ISO date, or nil when none exists.
func (s *Service) findYearAgo(ctx context.Context, start string) *storage.StoredSummary {
	day, err := time.Parse(dashboard.DateLayout, start)
	if err != nil {
		return nil
	}
	target := dashboard.YearAgo(day).Format(dashboard.DateLayout)
	summary, err := s.repo.SummaryByStartDate(ctx, target)
	if err != nil {
		return nil
	}
	return summary
}

// ExportResult describes a completed history export.
type ExportResult struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// exportHeader is the CSV column order for history exports.
var exportHeader = []string{
	"id", "start", "end",
	"total_revenue", "total_units", "total_sessions",
	"conversion_rate", "refund_rate", "created_at",
}

// ExportDashboardHistory writes up to limit stored summaries as CSV under
// the configured export root. The requested path is reduced to a safe
// relative subpath first; traversal outside the root is rejected.
func (s *Service) ExportDashboardHistory(ctx context.Context, limit int, path string) (*ExportResult, error) {
	if s.repo == nil {
		return nil, ErrStorageDisabled
	}
	if limit < 1 {
		limit = 6
	}
	if err := s.repo.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	summaries, err := s.repo.RecentSummaries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(summaries) == 0 {
		return nil, ErrNoHistory
	}

	root, err := filepath.Abs(s.opts.ExportRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve export root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create export root: %w", err)
	}

	target := filepath.Join(root, sanitizeExportSubpath(path))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("export path %q escapes the export root", path)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}
	for _, item := range summaries {
		row := []string{
			strconv.FormatInt(item.ID, 10),
			item.Start,
			item.End,
			strconv.FormatFloat(item.TotalRevenue, 'f', -1, 64),
			strconv.Itoa(item.TotalUnits),
			strconv.Itoa(item.TotalSessions),
			strconv.FormatFloat(item.ConversionRate, 'f', -1, 64),
			strconv.FormatFloat(item.RefundRate, 'f', -1, 64),
			item.CreatedAt,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write export: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}

	return &ExportResult{Path: target, Rows: len(summaries)}, nil
}

// sanitizeExportSubpath reduces a user supplied path to a safe relative
// subpath. Absolute anchors and dot segments are dropped; an empty result
// falls back to history.csv.
func sanitizeExportSubpath(raw string) string {
	cleaned := strings.TrimPrefix(raw, filepath.VolumeName(raw))
	parts := strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	safe := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			continue
		}
		safe = append(safe, part)
	}
	if len(safe) == 0 {
		return "history.csv"
	}
	return filepath.Join(safe...)
}

// IsNotFound reports whether err is a missing-record error from any layer.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
