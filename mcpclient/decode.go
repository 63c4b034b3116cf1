package mcpclient

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"

	"github.com/elnormous/contenttype"
)

var (
	jsonMediaType        = contenttype.NewMediaType("application/json")
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
)

// streamDoneSentinel is the end-of-stream marker some servers emit as a final
// frame. It is not a JSON-RPC envelope and is always skipped.
const streamDoneSentinel = "[DONE]"

// decodeResponses turns a raw body into one or more response envelopes. Plain
// JSON bodies decode to a single envelope; event-stream bodies decode to one
// envelope per parseable frame. A JSON-labelled body that fails to parse
// directly is given a second chance as an event stream before failing.
func decodeResponses(stage Stage, body []byte, contentTypeHeader string) ([]response, error) {
	if mt, err := contenttype.ParseMediaType(contentTypeHeader); err == nil {
		if mt.Matches(eventStreamMediaType) {
			return decodeEventStream(stage, body)
		}
		if mt.Matches(jsonMediaType) {
			if resp, ok := decodeSingle(body); ok {
				return []response{resp}, nil
			}
			return decodeEventStream(stage, body)
		}
	}
	// Unknown or missing content type: try the direct parse first.
	if resp, ok := decodeSingle(body); ok {
		return []response{resp}, nil
	}
	return decodeEventStream(stage, body)
}

func decodeSingle(body []byte) (response, bool) {
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return response{}, false
	}
	if resp.JSONRPC == "" && resp.Result == nil && resp.Error == nil {
		return response{}, false
	}
	return resp, true
}

// decodeEventStream splits the body on blank-line frame boundaries, joins the
// data-prefixed lines of each frame, and parses the result as JSON. Frames
// that fail to parse are skipped; the decode fails only when no frame parses.
func decodeEventStream(stage Stage, body []byte) ([]response, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var frames []response
	var dataLines []string

	flush := func() {
		if len(dataLines) == 0 {
			return
		}
		payload := strings.TrimSpace(strings.Join(dataLines, "\n"))
		dataLines = dataLines[:0]
		if payload == "" || payload == streamDoneSentinel {
			return
		}
		if resp, ok := decodeSingle([]byte(payload)); ok {
			frames = append(frames, resp)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, newError(stage, KindProtocol, "scan event stream: "+err.Error(), err)
	}
	flush()

	if len(frames) == 0 {
		return nil, newError(stage, KindProtocol, "no decodable frames in response body", nil)
	}
	return frames, nil
}

// pickNegotiationFrame prefers the frame that carries a session identifier,
// falling back to the last parsed frame. Initialize responses are small and
// rarely stream progress, so this heuristic is safe here and only here; the
// tool-call path matches frames by response id instead.
func pickNegotiationFrame(frames []response) response {
	for _, f := range frames {
		if bodySessionID(f) != "" {
			return f
		}
	}
	return frames[len(frames)-1]
}

// pickCallFrame selects the frame answering the given request id. Streamed
// progress notifications carry no id, or a different one, and are ignored.
func pickCallFrame(frames []response, id int64) (response, bool) {
	for _, f := range frames {
		if f.matchesID(id) {
			return f, true
		}
	}
	return response{}, false
}

// bodySessionID probes the known result field paths for a session identifier.
func bodySessionID(resp response) string {
	if len(resp.Result) == 0 {
		return ""
	}
	var probe struct {
		SessionID      string `json:"sessionId"`
		SessionIDSnake string `json:"session_id"`
		Meta           struct {
			SessionID string `json:"sessionId"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(resp.Result, &probe); err != nil {
		return ""
	}
	if probe.SessionID != "" {
		return probe.SessionID
	}
	if probe.SessionIDSnake != "" {
		return probe.SessionIDSnake
	}
	return probe.Meta.SessionID
}
