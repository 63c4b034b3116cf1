package agent

import (
	"context"
	"fmt"

	"github.com/opsdash/opsdash/memory"
	obs "github.com/opsdash/opsdash/observability"
)

// DashboardAgent is the default Agent implementation. It records history per
// session and answers by invoking dashboard tools.
type DashboardAgent struct {
	tools   ToolRunner
	history memory.ConversationStore
	config  Config
}

// New creates a dashboard agent. history may be nil to disable conversation
// tracking.
func New(tools ToolRunner, history memory.ConversationStore, config Config) *DashboardAgent {
	return &DashboardAgent{tools: tools, history: history, config: config}
}

// Run implements the Agent interface
func (a *DashboardAgent) Run(ctx context.Context, input Message) (Message, error) {
	span, ctx := obs.TracerImpl.StartSpan(ctx, "agent.run")
	defer span.End()

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	if a.config.Guardrails != nil {
		if err := a.config.Guardrails.Check(input); err != nil {
			span.SetStatus(obs.StatusCodeError, err.Error())
			return Message{}, err
		}
	}

	session := input.SessionID
	if session == "" {
		session = "default"
	}
	if a.history != nil {
		if err := a.history.AppendMessage(ctx, session, "user", input.Content); err != nil {
			return Message{}, fmt.Errorf("store message: %w", err)
		}
	}

	route := routeMessage(input)
	span.SetAttribute(obs.AttrToolName, route.tool)

	reply, err := a.answer(ctx, route, input)
	if err != nil {
		span.SetStatus(obs.StatusCodeError, err.Error())
		return Message{}, err
	}

	result := Message{Role: "assistant", Content: reply, SessionID: session}
	if a.history != nil {
		if err := a.history.AppendMessage(ctx, session, "assistant", result.Content); err != nil {
			span.SetStatus(obs.StatusCodeError, err.Error())
			return Message{}, fmt.Errorf("store response: %w", err)
		}
	}

	span.SetStatus(obs.StatusCodeOk, "")
	return result, nil
}

// answer executes the routed tool and renders its result as chat text.
func (a *DashboardAgent) answer(ctx context.Context, route route, input Message) (string, error) {
	switch route.tool {
	case toolSummary:
		// Summary answers chain two tools: fetch raw records, then compute.
		fetched, err := a.tools.Execute(ctx, "fetch_dashboard_data", route.args)
		if err != nil {
			return "", fmt.Errorf("fetch dashboard data: %w", err)
		}
		computed, err := a.tools.Execute(ctx, "compute_dashboard_metrics", map[string]interface{}{
			"start":   fetched["start"],
			"end":     fetched["end"],
			"source":  fetched["source"],
			"sales":   fetched["sales"],
			"traffic": fetched["traffic"],
			"top_n":   route.args["top_n"],
		})
		if err != nil {
			return "", fmt.Errorf("compute dashboard metrics: %w", err)
		}
		return renderSummary(computed), nil
	default:
		result, err := a.tools.Execute(ctx, route.tool, route.args)
		if err != nil {
			return "", fmt.Errorf("%s: %w", route.tool, err)
		}
		return route.render(result), nil
	}
}

// RunStream implements the Agent interface. The reply is produced whole and
// sent as a single chunk.
func (a *DashboardAgent) RunStream(ctx context.Context, input Message, output chan<- Message) error {
	defer close(output)

	result, err := a.Run(ctx, input)
	if err != nil {
		return err
	}

	select {
	case output <- result:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Agent = (*DashboardAgent)(nil)
