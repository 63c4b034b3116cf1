package mcpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// TimeoutPolicy maps tool names to per-attempt deadlines. Unmapped tools use
// the default; long-running analytic tools get a materially larger budget via
// PerTool entries.
type TimeoutPolicy struct {
	Default time.Duration
	PerTool map[string]time.Duration
}

// For returns the deadline budget for the named tool.
func (p TimeoutPolicy) For(tool string) time.Duration {
	if d, ok := p.PerTool[tool]; ok && d > 0 {
		return d
	}
	if p.Default > 0 {
		return p.Default
	}
	return 15 * time.Second
}

// notifyInitialized sends the fire-and-forget ready signal. The protocol
// requires it to complete before the tool call is issued, so a failure here
// aborts the invocation.
func (c *Client) notifyInitialized(ctx context.Context, sess Session) error {
	payload, err := json.Marshal(request{
		JSONRPC: jsonrpcVersion,
		Method:  methodInitialized,
		Params:  map[string]any{},
	})
	if err != nil {
		return newError(StageNotify, KindProtocol, "marshal notification: "+err.Error(), err)
	}
	// No response body expected beyond a success status.
	_, _, _, err = c.send(ctx, StageNotify, http.MethodPost, payload, sess, c.cfg.Timeouts.For(""))
	return err
}

// callTool issues the tools/call request and returns the structured content of
// the result.
func (c *Client) callTool(ctx context.Context, sess Session, tool string, args map[string]interface{}) (json.RawMessage, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	id := c.seq.Add(1)
	payload, err := json.Marshal(request{
		JSONRPC: jsonrpcVersion,
		ID:      &id,
		Method:  methodCallTool,
		Params:  callToolParams{Name: tool, Arguments: args},
	})
	if err != nil {
		return nil, newError(StageCall, KindProtocol, "marshal tool call: "+err.Error(), err)
	}

	_, header, body, err := c.send(ctx, StageCall, http.MethodPost, payload, sess, c.cfg.Timeouts.For(tool))
	if err != nil {
		return nil, err
	}

	frames, err := decodeResponses(StageCall, body, header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	frame, ok := pickCallFrame(frames, id)
	if !ok {
		return nil, newError(StageCall, KindProtocol, "no frame matching the request id", nil)
	}
	if frame.Error != nil {
		msg := frame.Error.Message
		if msg == "" {
			msg = "tool call failed"
		}
		cerr := newError(StageCall, KindProtocol, msg, nil)
		cerr.RPCCode = frame.Error.Code
		return nil, cerr
	}

	var result struct {
		StructuredContent json.RawMessage `json:"structuredContent"`
	}
	if len(frame.Result) > 0 {
		if err := json.Unmarshal(frame.Result, &result); err != nil {
			return nil, newError(StageCall, KindProtocol, "decode tool result: "+err.Error(), err)
		}
	}
	return result.StructuredContent, nil
}
