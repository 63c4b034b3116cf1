package agent

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// toolSummary is the synthetic route that chains fetch and compute.
const toolSummary = "dashboard_summary"

type route struct {
	tool   string
	args   map[string]interface{}
	render func(map[string]interface{}) string
}

// routeMessage picks the tool for a message. Keywords select the route and
// metadata supplies the parameters; message text is never parsed for dates.
func routeMessage(input Message) route {
	text := strings.ToLower(input.Content)
	meta := input.Meta

	switch {
	case containsAny(text, "bestseller", "best seller", "best-seller", "top seller"):
		return route{
			tool: "amazon_bestseller_search",
			args: filterArgs(map[string]interface{}{
				"category":       metaString(meta, "category"),
				"search_index":   metaString(meta, "search_index"),
				"browse_node_id": metaString(meta, "browse_node_id"),
				"max_items":      metaInt(meta, "max_items"),
			}),
			render: renderBestsellers,
		}
	case containsAny(text, "insight", "recommend", "advice", "analysis"):
		return route{
			tool: "generate_dashboard_insights",
			args: filterArgs(map[string]interface{}{
				"focus":       metaString(meta, "focus"),
				"start":       metaString(meta, "start"),
				"end":         metaString(meta, "end"),
				"window_days": metaInt(meta, "window_days"),
				"top_n":       metaInt(meta, "top_n"),
			}),
			render: renderInsights,
		}
	case containsAny(text, "export", "csv", "download"):
		path := metaString(meta, "path")
		if path == "" {
			path = "history.csv"
		}
		return route{
			tool: "export_dashboard_history",
			args: filterArgs(map[string]interface{}{
				"limit": metaIntDefault(meta, "limit", 6),
				"path":  path,
			}),
			render: renderExport,
		}
	case containsAny(text, "history", "trend", "growth", "compare", "mom", "yoy"):
		args := filterArgs(map[string]interface{}{
			"limit": metaIntDefault(meta, "limit", 6),
		})
		if metrics := metaStrings(meta, "metrics"); len(metrics) > 0 {
			args["metrics"] = metrics
		}
		return route{tool: "analyze_dashboard_history", args: args, render: renderHistory}
	case containsAny(text, "upload", "table", "file"):
		return route{
			tool:   "list_upload_tables",
			args:   filterArgs(map[string]interface{}{"limit": metaInt(meta, "limit")}),
			render: renderUploads,
		}
	case containsAny(text, "raw", "fetch", "records"):
		return route{
			tool: "fetch_dashboard_data",
			args: filterArgs(map[string]interface{}{
				"start":       metaString(meta, "start"),
				"end":         metaString(meta, "end"),
				"window_days": metaInt(meta, "window_days"),
			}),
			render: renderFetch,
		}
	default:
		return route{
			tool: toolSummary,
			args: filterArgs(map[string]interface{}{
				"start":       metaString(meta, "start"),
				"end":         metaString(meta, "end"),
				"window_days": metaInt(meta, "window_days"),
				"top_n":       metaInt(meta, "top_n"),
			}),
		}
	}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func metaString(meta map[string]string, key string) string {
	return meta[key]
}

func metaInt(meta map[string]string, key string) int {
	n, _ := strconv.Atoi(meta[key])
	return n
}

func metaIntDefault(meta map[string]string, key string, fallback int) int {
	if n := metaInt(meta, key); n > 0 {
		return n
	}
	return fallback
}

// metaStrings splits a comma-separated metadata value.
func metaStrings(meta map[string]string, key string) []string {
	raw := meta[key]
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// filterArgs drops zero values so tools see only what the caller supplied.
func filterArgs(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		switch typed := v.(type) {
		case string:
			if typed != "" {
				out[k] = typed
			}
		case int:
			if typed != 0 {
				out[k] = typed
			}
		default:
			if v != nil {
				out[k] = v
			}
		}
	}
	return out
}

// ----- reply rendering -----

func renderSummary(result map[string]interface{}) string {
	summary, ok := result["summary"].(map[string]interface{})
	if !ok {
		return "No summary is available for that window."
	}
	var b strings.Builder
	if window, ok := summary["window"].(map[string]interface{}); ok {
		fmt.Fprintf(&b, "Dashboard summary for %v to %v", window["start"], window["end"])
		if source, ok := summary["source"].(string); ok && source != "" {
			fmt.Fprintf(&b, " (source: %s)", source)
		}
		b.WriteString("\n")
	}
	if totals, ok := summary["totals"].(map[string]interface{}); ok {
		fmt.Fprintf(&b, "Revenue $%.2f across %v units and %v sessions; conversion %.2f%%, refund rate %.2f%%.\n",
			floatValue(totals["revenue"]),
			totals["units"],
			totals["sessions"],
			floatValue(totals["conversion_rate"])*100,
			floatValue(totals["refund_rate"])*100,
		)
	}
	if products, ok := summary["top_products"].([]interface{}); ok && len(products) > 0 {
		if top, ok := products[0].(map[string]interface{}); ok {
			fmt.Fprintf(&b, "Top product: %v (%v) with $%.2f revenue.",
				top["title"], top["asin"], floatValue(top["revenue"]))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderInsights(result map[string]interface{}) string {
	if report, ok := result["report"].(map[string]interface{}); ok {
		if text, ok := report["insights"].(string); ok && text != "" {
			return text
		}
	}
	return "No insights were generated."
}

func renderHistory(result map[string]interface{}) string {
	analysis, ok := result["analysis"].(map[string]interface{})
	if !ok || len(analysis) == 0 {
		return "No history analysis is available."
	}
	if msg, ok := analysis["error"].(string); ok {
		return msg
	}

	metrics := make([]string, 0, len(analysis))
	for metric := range analysis {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	var b strings.Builder
	b.WriteString("History analysis:\n")
	for _, metric := range metrics {
		entry, ok := analysis[metric].(map[string]interface{})
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %.2f (MoM %s, YoY %s)\n",
			metric,
			floatValue(entry["current"]),
			formatGrowth(entry["mom"]),
			formatGrowth(entry["yoy"]),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderExport(result map[string]interface{}) string {
	if msg, ok := result["message"].(string); ok && msg != "" {
		return msg
	}
	return "Export finished."
}

func renderUploads(result map[string]interface{}) string {
	tables, _ := result["tables"].([]interface{})
	if len(tables) == 0 {
		return "No uploaded tables are available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d uploaded table(s):\n", len(tables))
	for _, item := range tables {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %v (%v rows x %v columns)\n",
			entry["filename"], entry["row_count"], entry["column_count"])
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderBestsellers(result map[string]interface{}) string {
	items, _ := result["items"].([]interface{})
	if len(items) == 0 {
		return "No bestseller data is available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Current bestsellers (%d):\n", len(items))
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		rank := "n/a"
		if r, ok := entry["sales_rank"].(float64); ok {
			rank = fmt.Sprintf("#%d", int(r))
		}
		fmt.Fprintf(&b, "- %v (%v, rank %s)\n", entry["title"], entry["asin"], rank)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderFetch(result map[string]interface{}) string {
	sales, _ := result["sales"].([]interface{})
	traffic, _ := result["traffic"].([]interface{})
	return fmt.Sprintf("Fetched %d sales and %d traffic records for %v to %v from %v.",
		len(sales), len(traffic), result["start"], result["end"], result["source"])
}

func formatGrowth(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", f*100)
}

func floatValue(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
