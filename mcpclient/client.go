// Package mcpclient implements a minimal session-oriented tool-invocation
// client over HTTP. Each invocation negotiates a session, signals readiness,
// calls one named tool, and unconditionally tears the session down. Responses
// may arrive as plain JSON or as event-stream frames; both decode
// transparently.
package mcpclient

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

// Config holds the immutable client configuration. It is constructed once and
// passed in; the client never reads ambient process state.
type Config struct {
	// Endpoint is the single URL all requests are posted to (and the session
	// DELETE is sent to).
	Endpoint string
	// Timeouts selects the per-attempt deadline by tool name.
	Timeouts TimeoutPolicy
	// MaxRetries is the number of retries after the initial attempt. Only
	// transport failures consume retry budget.
	MaxRetries int
	// RetryBaseDelay is the linear backoff unit between attempts.
	RetryBaseDelay time.Duration
	// HTTPClient overrides the underlying client, mainly for tests. Deadlines
	// come from per-attempt contexts, so the override should not set its own
	// Timeout.
	HTTPClient *http.Client
	// Debug enables verbose request logging.
	Debug bool
}

// Client invokes remote tools. It is stateless between invocations and safe
// for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	seq  atomic.Int64
}

// Invoker abstracts the client for consumers that dispatch tool calls.
type Invoker interface {
	CallTool(ctx context.Context, tool string, args map[string]interface{}) (json.RawMessage, error)
}

// New creates a client. Zero config fields get conservative defaults.
func New(cfg Config) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{cfg: cfg, http: hc}
}

// CallTool runs one full invocation: negotiate, notify (when a session id was
// obtained), call, terminate. Termination runs on every exit path and its
// failures never replace the primary outcome. On success the tool's
// structured content is returned; otherwise the error identifies the failing
// stage and cause.
func (c *Client) CallTool(ctx context.Context, tool string, args map[string]interface{}) (json.RawMessage, error) {
	sess, err := c.negotiate(ctx)
	defer c.terminate(ctx, sess)
	if err != nil {
		return nil, err
	}
	if sess.ID != "" {
		if err := c.notifyInitialized(ctx, sess); err != nil {
			return nil, err
		}
	}
	return c.callTool(ctx, sess, tool, args)
}

// terminate is the best-effort session teardown: an HTTP DELETE carrying the
// session headers, skipped entirely when no identifier was obtained. Errors
// are swallowed so they cannot mask the invocation's outcome.
func (c *Client) terminate(ctx context.Context, sess Session) {
	if sess.ID == "" {
		return
	}
	// Teardown still runs when the primary context was cancelled mid-flight.
	tctx := context.WithoutCancel(ctx)
	if _, _, _, err := c.send(tctx, StageTerminate, http.MethodDelete, nil, sess, c.cfg.Timeouts.For("")); err != nil {
		c.debugf("terminate: %v", err)
	}
}

func (c *Client) debugf(format string, args ...interface{}) {
	if c.cfg.Debug {
		log.Printf("mcpclient: "+format, args...)
	}
}

var _ Invoker = (*Client)(nil)
