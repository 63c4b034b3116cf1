// Package insights turns KPI summaries into natural-language analysis using
// an LLM provider. Providers share a retry policy and an error taxonomy so
// callers can treat OpenAI and Anthropic interchangeably.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ProviderName identifies an insight provider.
type ProviderName string

const (
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
)

// Request carries the summary to analyze and an optional focus topic.
type Request struct {
	// Summary is the JSON-friendly KPI summary produced by the dashboard.
	Summary map[string]interface{} `json:"summary"`

	// Focus names a dimension to emphasize, e.g. "revenue" or "refunds".
	Focus string `json:"focus,omitempty"`
}

// Report is the generated analysis, paired with the summary it was built
// from so clients can render both together.
type Report struct {
	Summary  map[string]interface{} `json:"summary"`
	Insights string                 `json:"insights"`
	Model    string                 `json:"model,omitempty"`
	Provider ProviderName           `json:"provider,omitempty"`
}

// Provider generates an insight report from a KPI summary.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Report, error)
	Name() ProviderName
}

// systemPrompt is shared by every provider so insights stay comparable
// across backends.
const systemPrompt = "You are a senior e-commerce operations consultant. " +
	"Analyze the provided dashboard data and produce structured insights, " +
	"prioritizing sales trends, traffic changes, conversion rate and refunds."

// BuildPrompt renders the request into the system instructions and the user
// message sent to a provider.
func BuildPrompt(req Request) (system string, user string, err error) {
	system = systemPrompt
	if req.Focus != "" {
		system += fmt.Sprintf(" Pay particular attention to %s.", strings.TrimSpace(req.Focus))
	}
	payload, err := json.Marshal(req.Summary)
	if err != nil {
		return "", "", fmt.Errorf("encode summary: %w", err)
	}
	user = fmt.Sprintf("Analyze the following JSON data: %s", payload)
	return system, user, nil
}
