package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opsdash/opsdash/dashboard"
	obs "github.com/opsdash/opsdash/observability"
	"github.com/opsdash/opsdash/service"
)

// NewDashboardTools builds the full local tool set backed by svc.
func NewDashboardTools(svc *service.Service) []Tool {
	return []Tool{
		&fetchTool{svc: svc},
		&metricsTool{svc: svc},
		&insightsTool{svc: svc},
		&historyTool{svc: svc},
		&exportTool{svc: svc},
		&uploadsTool{svc: svc},
		&bestsellerTool{svc: svc},
	}
}

// RegisterDashboardTools registers the full local tool set on the registry.
func RegisterDashboardTools(registry Registry, svc *service.Service) error {
	for _, tool := range NewDashboardTools(svc) {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// ----- argument decoding helpers -----

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg accepts both float64 (decoded JSON) and int values.
func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func mapArg(args map[string]interface{}, key string) map[string]interface{} {
	if v, ok := args[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// toMap round-trips a value through JSON into a generic map so every tool
// returns the same shape regardless of which struct produced it.
func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

func toSlice(v interface{}) ([]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var out []interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

func windowSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"start":       map[string]interface{}{"type": "string", "description": "ISO start date"},
			"end":         map[string]interface{}{"type": "string", "description": "ISO end date"},
			"window_days": map[string]interface{}{"type": "integer", "description": "rolling window when dates are omitted"},
			"top_n":       map[string]interface{}{"type": "integer", "description": "number of top products"},
		},
	}
}

// ----- fetch_dashboard_data -----

type fetchTool struct {
	svc *service.Service
}

func (t *fetchTool) Name() string { return "fetch_dashboard_data" }

func (t *fetchTool) Description() string {
	return "Fetch raw sales and traffic records for a date window from the configured data source."
}

func (t *fetchTool) Schema() map[string]interface{} { return windowSchema() }

func (t *fetchTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	result, err := t.svc.FetchDashboardData(ctx, service.FetchRequest{
		Start:      stringArg(args, "start"),
		End:        stringArg(args, "end"),
		WindowDays: intArg(args, "window_days"),
		TopN:       intArg(args, "top_n"),
	})
	if err != nil {
		return nil, err
	}
	obs.MetricsImpl.IncrementRecords(len(result.Sales)+len(result.Traffic), map[string]string{"source": result.Source})
	return toMap(result)
}

// ----- compute_dashboard_metrics -----

type metricsTool struct {
	svc *service.Service
}

func (t *metricsTool) Name() string { return "compute_dashboard_metrics" }

func (t *metricsTool) Description() string {
	return "Aggregate raw records into a KPI summary, persisting it when storage is enabled."
}

func (t *metricsTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"start":   map[string]interface{}{"type": "string"},
			"end":     map[string]interface{}{"type": "string"},
			"source":  map[string]interface{}{"type": "string"},
			"sales":   map[string]interface{}{"type": "array"},
			"traffic": map[string]interface{}{"type": "array"},
			"top_n":   map[string]interface{}{"type": "integer"},
		},
		"required": []string{"start", "end", "source"},
	}
}

func (t *metricsTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	var sales []dashboard.SalesRecord
	var traffic []dashboard.TrafficRecord
	if raw, ok := args["sales"]; ok {
		if err := reencode(raw, &sales); err != nil {
			return nil, fmt.Errorf("decode sales: %w", err)
		}
	}
	if raw, ok := args["traffic"]; ok {
		if err := reencode(raw, &traffic); err != nil {
			return nil, fmt.Errorf("decode traffic: %w", err)
		}
	}

	summary, err := t.svc.ComputeDashboardMetrics(ctx, service.ComputeRequest{
		Start:   stringArg(args, "start"),
		End:     stringArg(args, "end"),
		Source:  stringArg(args, "source"),
		Sales:   sales,
		Traffic: traffic,
		TopN:    intArg(args, "top_n"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"summary": dashboard.SummaryToMap(*summary)}, nil
}

// reencode converts a generic JSON value into a typed destination.
func reencode(src interface{}, dst interface{}) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// ----- generate_dashboard_insights -----

type insightsTool struct {
	svc *service.Service
}

func (t *insightsTool) Name() string { return "generate_dashboard_insights" }

func (t *insightsTool) Description() string {
	return "Generate natural-language insights for a KPI summary, computing the summary first when absent."
}

func (t *insightsTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"summary":     map[string]interface{}{"type": "object"},
			"focus":       map[string]interface{}{"type": "string"},
			"start":       map[string]interface{}{"type": "string"},
			"end":         map[string]interface{}{"type": "string"},
			"window_days": map[string]interface{}{"type": "integer"},
			"top_n":       map[string]interface{}{"type": "integer"},
		},
	}
}

func (t *insightsTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	report, err := t.svc.GenerateDashboardInsights(ctx, service.InsightsRequest{
		Summary:    mapArg(args, "summary"),
		Focus:      stringArg(args, "focus"),
		Start:      stringArg(args, "start"),
		End:        stringArg(args, "end"),
		WindowDays: intArg(args, "window_days"),
		TopN:       intArg(args, "top_n"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"report": map[string]interface{}{
			"summary":  report.Summary,
			"insights": report.Insights,
		},
	}, nil
}

// ----- analyze_dashboard_history -----

type historyTool struct {
	svc *service.Service
}

func (t *historyTool) Name() string { return "analyze_dashboard_history" }

func (t *historyTool) Description() string {
	return "Compute growth rates and a time series across stored dashboard summaries."
}

func (t *historyTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"limit":   map[string]interface{}{"type": "integer", "description": "number of periods to analyze"},
			"metrics": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		},
	}
}

func (t *historyTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	result, err := t.svc.AnalyzeDashboardHistory(ctx, intArg(args, "limit"), stringSliceArg(args, "metrics"))
	if err != nil {
		// Missing history is an answer, not a failure.
		if errors.Is(err, service.ErrStorageDisabled) || errors.Is(err, service.ErrNoHistory) {
			return map[string]interface{}{
				"analysis":    map[string]interface{}{"error": err.Error()},
				"time_series": map[string]interface{}{},
			}, nil
		}
		return nil, err
	}
	return toMap(result)
}

// ----- export_dashboard_history -----

type exportTool struct {
	svc *service.Service
}

func (t *exportTool) Name() string { return "export_dashboard_history" }

func (t *exportTool) Description() string {
	return "Export stored dashboard summaries as CSV under the trusted export root."
}

func (t *exportTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"limit": map[string]interface{}{"type": "integer"},
			"path":  map[string]interface{}{"type": "string", "description": "relative path under the export root"},
		},
		"required": []string{"limit", "path"},
	}
}

func (t *exportTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	result, err := t.svc.ExportDashboardHistory(ctx, intArg(args, "limit"), stringArg(args, "path"))
	if err != nil {
		if errors.Is(err, service.ErrStorageDisabled) || errors.Is(err, service.ErrNoHistory) {
			return map[string]interface{}{"message": err.Error()}, nil
		}
		return nil, err
	}
	return map[string]interface{}{
		"message": fmt.Sprintf("Exported %d summaries to %s", result.Rows, result.Path),
		"path":    result.Path,
		"rows":    result.Rows,
	}, nil
}

// ----- list_upload_tables -----

type uploadsTool struct {
	svc *service.Service
}

func (t *uploadsTool) Name() string { return "list_upload_tables" }

func (t *uploadsTool) Description() string {
	return "List the uploaded CSV/TSV tables currently available, newest first."
}

func (t *uploadsTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"limit": map[string]interface{}{"type": "integer"},
		},
	}
}

func (t *uploadsTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	limit := intArg(args, "limit")
	if limit < 1 {
		limit = 20
	}
	infos, err := t.svc.ListUploadTables(ctx, limit)
	if err != nil {
		return nil, err
	}
	tables, err := toSlice(infos)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"tables": tables,
		"count":  len(tables),
	}, nil
}

// ----- amazon_bestseller_search -----

type bestsellerTool struct {
	svc *service.Service
}

func (t *bestsellerTool) Name() string { return "amazon_bestseller_search" }

func (t *bestsellerTool) Description() string {
	return "Search the catalog for the current bestsellers in a category or browse node."
}

func (t *bestsellerTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"category":       map[string]interface{}{"type": "string", "description": "business-side category description"},
			"search_index":   map[string]interface{}{"type": "string", "description": "catalog search index, e.g. Books"},
			"browse_node_id": map[string]interface{}{"type": "string"},
			"max_items":      map[string]interface{}{"type": "integer"},
		},
		"required": []string{"category", "search_index"},
	}
}

func (t *bestsellerTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	items, err := t.svc.SearchBestsellers(ctx, service.BestsellerRequest{
		Category:     stringArg(args, "category"),
		SearchIndex:  stringArg(args, "search_index"),
		BrowseNodeID: stringArg(args, "browse_node_id"),
		MaxItems:     intArg(args, "max_items"),
	})
	if err != nil {
		return nil, err
	}
	list, err := toSlice(items)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"items": list}, nil
}
