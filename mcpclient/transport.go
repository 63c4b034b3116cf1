package mcpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// send issues one logical request to the endpoint: a bounded retry loop of
// individual attempts, each bounded by its own deadline. Only transport
// failures are retried; a deadline-exceeded attempt surfaces immediately.
func (c *Client) send(ctx context.Context, stage Stage, httpMethod string, payload []byte, sess Session, timeout time.Duration) (int, http.Header, []byte, error) {
	maxAttempts := c.cfg.MaxRetries + 1
	var lastErr *ClientError

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return 0, nil, nil, c.wrapContextErr(stage, ctx.Err())
		default:
		}

		status, header, body, aerr := c.attempt(ctx, stage, httpMethod, payload, sess, timeout)
		if aerr == nil {
			c.debugf("%s: %s %s -> %d (attempt %d)", stage, httpMethod, c.cfg.Endpoint, status, attempt)
			return status, header, body, nil
		}
		c.debugf("%s: attempt %d failed: %v", stage, attempt, aerr)

		if aerr.Kind == KindTimeout {
			// Never retried, regardless of remaining budget.
			return 0, nil, nil, aerr
		}
		lastErr = aerr

		if attempt == maxAttempts {
			break
		}
		// Linear backoff: baseDelay scaled by the attempt number.
		delay := c.cfg.RetryBaseDelay * time.Duration(attempt)
		select {
		case <-ctx.Done():
			return 0, nil, nil, c.wrapContextErr(stage, ctx.Err())
		case <-time.After(delay):
		}
	}

	lastErr.Message = fmt.Sprintf("exhausted %d attempts: %s", maxAttempts, lastErr.Message)
	return 0, nil, nil, lastErr
}

// attempt performs a single HTTP round trip with a fresh per-attempt deadline.
// An aborted attempt does not poison subsequent retries.
func (c *Client) attempt(ctx context.Context, stage Stage, httpMethod string, payload []byte, sess Session, timeout time.Duration) (int, http.Header, []byte, *ClientError) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(actx, httpMethod, c.cfg.Endpoint, reader)
	if err != nil {
		return 0, nil, nil, newError(stage, KindTransport, fmt.Sprintf("build request: %v", err), err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sess.ID != "" {
		req.Header.Set(sessionIDHeader, sess.ID)
	}
	if sess.ProtocolVersion != "" {
		req.Header.Set(protocolVersionHeader, sess.ProtocolVersion)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, nil, newError(stage, KindTimeout, fmt.Sprintf("deadline exceeded after %v", timeout), err)
		}
		return 0, nil, nil, newError(stage, KindTransport, fmt.Sprintf("http request failed: %v", err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, nil, newError(stage, KindTimeout, fmt.Sprintf("deadline exceeded after %v", timeout), err)
		}
		return 0, nil, nil, newError(stage, KindTransport, fmt.Sprintf("read response: %v", err), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cerr := newError(stage, KindTransport, fmt.Sprintf("unexpected status %s", resp.Status), nil)
		cerr.HTTPStatus = resp.StatusCode
		cerr.Body = truncateBody(string(body), 512)
		return 0, nil, nil, cerr
	}

	return resp.StatusCode, resp.Header, body, nil
}

func (c *Client) wrapContextErr(stage Stage, err error) *ClientError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(stage, KindTimeout, "context deadline exceeded", err)
	}
	return newError(stage, KindTransport, fmt.Sprintf("context ended: %v", err), err)
}

// truncateBody trims diagnostic bodies attached to errors.
func truncateBody(body string, maxLength int) string {
	if len(body) <= maxLength {
		return body
	}
	return body[:maxLength] + "..."
}
