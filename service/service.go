// Package service implements the dashboard operations behind every tool:
// fetching raw records, computing KPI summaries, generating insights,
// analyzing stored history and exporting it.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opsdash/opsdash/dashboard"
	"github.com/opsdash/opsdash/datasource"
	"github.com/opsdash/opsdash/insights"
	"github.com/opsdash/opsdash/storage"
	"github.com/opsdash/opsdash/uploads"
)

var (
	// ErrStorageDisabled is returned by history operations when no
	// repository is configured.
	ErrStorageDisabled = errors.New("service: history storage is not enabled")

	// ErrNoHistory is returned when the repository holds no summaries.
	ErrNoHistory = errors.New("service: no stored history")

	// ErrProviderMissing is returned when insight generation is requested
	// without a configured provider.
	ErrProviderMissing = errors.New("service: no insight provider configured")

	// ErrBestsellersDisabled is returned when bestseller search is requested
	// without a configured catalog source.
	ErrBestsellersDisabled = errors.New("service: no bestseller source configured")
)

// Options carries the dashboard tunables the operations need.
type Options struct {
	WindowDays int
	TopN       int
	ExportRoot string
}

// Service wires the data source, persistence and the insight provider into
// the dashboard operations. Repository, Provider and Uploads may be nil when
// the corresponding feature is disabled.
type Service struct {
	opts        Options
	source      datasource.Source
	repo        storage.Repository
	provider    insights.Provider
	uploads     uploads.Store
	bestsellers datasource.BestsellerSource
}

// New creates a service. source is required; the other dependencies are
// optional and gate the operations that need them.
func New(opts Options, source datasource.Source, repo storage.Repository, provider insights.Provider, uploadStore uploads.Store) *Service {
	if opts.WindowDays < 1 {
		opts.WindowDays = 7
	}
	if opts.TopN < 1 {
		opts.TopN = 20
	}
	return &Service{
		opts:     opts,
		source:   source,
		repo:     repo,
		provider: provider,
		uploads:  uploadStore,
	}
}

// FetchRequest selects the window for a raw data fetch. Start and End are
// ISO dates; either or both may be empty.
type FetchRequest struct {
	Start      string
	End        string
	WindowDays int
	TopN       int
}

// FetchResult carries the raw records for one resolved window.
type FetchResult struct {
	Start   string                    `json:"start"`
	End     string                    `json:"end"`
	Source  string                    `json:"source"`
	Sales   []dashboard.SalesRecord   `json:"sales"`
	Traffic []dashboard.TrafficRecord `json:"traffic"`
	TopN    int                       `json:"top_n,omitempty"`
}

// FetchDashboardData resolves the requested window and pulls raw sales and
// traffic records from the configured source.
func (s *Service) FetchDashboardData(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	window := req.WindowDays
	if window < 1 {
		window = s.opts.WindowDays
	}
	start, end, err := dashboard.ResolveWindow(req.Start, req.End, window)
	if err != nil {
		return nil, err
	}

	sales, err := s.source.FetchSales(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch sales: %w", err)
	}
	traffic, err := s.source.FetchTraffic(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch traffic: %w", err)
	}

	return &FetchResult{
		Start:   start.Format(dashboard.DateLayout),
		End:     end.Format(dashboard.DateLayout),
		Source:  s.source.Name(),
		Sales:   sales,
		Traffic: traffic,
		TopN:    req.TopN,
	}, nil
}

// ComputeRequest carries the records to aggregate into a summary.
type ComputeRequest struct {
	Start   string
	End     string
	Source  string
	Sales   []dashboard.SalesRecord
	Traffic []dashboard.TrafficRecord
	TopN    int
}

// ComputeDashboardMetrics aggregates the given records into a KPI summary.
// When a repository is configured the summary is also persisted.
func (s *Service) ComputeDashboardMetrics(ctx context.Context, req ComputeRequest) (*dashboard.Summary, error) {
	start, err := time.Parse(dashboard.DateLayout, req.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", req.Start, err)
	}
	end, err := time.Parse(dashboard.DateLayout, req.End)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", req.End, err)
	}

	topN := req.TopN
	if topN < 1 {
		topN = s.opts.TopN
	}
	summary := dashboard.BuildSummary(req.Source, start, end, req.Sales, req.Traffic, topN)

	if s.repo != nil {
		if err := s.repo.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("initialize storage: %w", err)
		}
		if _, err := s.repo.SaveSummary(ctx, summary); err != nil {
			return nil, fmt.Errorf("save summary: %w", err)
		}
	}
	return &summary, nil
}

// InsightsRequest selects the summary to analyze. When Summary is nil the
// service computes one for the given window first.
type InsightsRequest struct {
	Summary    map[string]interface{}
	Focus      string
	Start      string
	End        string
	WindowDays int
	TopN       int
}

// GenerateDashboardInsights produces a natural-language analysis of a KPI
// summary via the configured provider.
func (s *Service) GenerateDashboardInsights(ctx context.Context, req InsightsRequest) (*insights.Report, error) {
	working := req.Summary
	if working == nil {
		data, err := s.FetchDashboardData(ctx, FetchRequest{
			Start:      req.Start,
			End:        req.End,
			WindowDays: req.WindowDays,
			TopN:       req.TopN,
		})
		if err != nil {
			return nil, err
		}
		summary, err := s.ComputeDashboardMetrics(ctx, ComputeRequest{
			Start:   data.Start,
			End:     data.End,
			Source:  data.Source,
			Sales:   data.Sales,
			Traffic: data.Traffic,
			TopN:    req.TopN,
		})
		if err != nil {
			return nil, err
		}
		working = dashboard.SummaryToMap(*summary)
	}

	if s.provider == nil {
		return nil, ErrProviderMissing
	}
	report, err := s.provider.Generate(ctx, insights.Request{Summary: working, Focus: req.Focus})
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}
	return report, nil
}

// ListUploadTables lists the uploaded tables currently held in the upload
// store, newest first.
func (s *Service) ListUploadTables(ctx context.Context, limit int) ([]uploads.Info, error) {
	if s.uploads == nil {
		return []uploads.Info{}, nil
	}
	return s.uploads.List(ctx, limit)
}

// SetBestsellerSource configures the optional catalog source behind
// SearchBestsellers.
func (s *Service) SetBestsellerSource(src datasource.BestsellerSource) {
	s.bestsellers = src
}

// BestsellerRequest selects the catalog segment to rank. Category and
// SearchIndex are required; BrowseNodeID targets a node instead of the
// category keywords.
type BestsellerRequest struct {
	Category     string
	SearchIndex  string
	BrowseNodeID string
	MaxItems     int
}

// SearchBestsellers looks up the current bestsellers for a catalog segment.
func (s *Service) SearchBestsellers(ctx context.Context, req BestsellerRequest) ([]datasource.BestsellerItem, error) {
	if s.bestsellers == nil {
		return nil, ErrBestsellersDisabled
	}
	if req.Category == "" {
		return nil, errors.New("category is required")
	}
	if req.SearchIndex == "" {
		return nil, errors.New("search_index is required")
	}
	items, err := s.bestsellers.SearchBestsellers(ctx, datasource.BestsellerQuery{
		Category:     req.Category,
		SearchIndex:  req.SearchIndex,
		BrowseNodeID: req.BrowseNodeID,
		MaxItems:     req.MaxItems,
	})
	if err != nil {
		return nil, fmt.Errorf("search bestsellers: %w", err)
	}
	if len(items) == 0 {
		return nil, errors.New("no bestseller items returned")
	}
	return items, nil
}
