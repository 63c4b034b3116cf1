package mcpclient

import (
	"encoding/json"
	"testing"
)

func TestDecodeResponses_JSONAndEventStreamEquivalence(t *testing.T) {
	envelope := `{"jsonrpc":"2.0","id":2,"result":{"structuredContent":{"ok":true}}}`

	plain, err := decodeResponses(StageCall, []byte(envelope), "application/json")
	if err != nil {
		t.Fatalf("plain decode failed: %v", err)
	}
	streamed, err := decodeResponses(StageCall, []byte("data: "+envelope+"\n\n"), "text/event-stream")
	if err != nil {
		t.Fatalf("stream decode failed: %v", err)
	}

	if len(plain) != 1 || len(streamed) != 1 {
		t.Fatalf("Expected one envelope each, got %d and %d", len(plain), len(streamed))
	}
	if string(plain[0].Result) != string(streamed[0].Result) {
		t.Errorf("Expected identical results, got %s vs %s", plain[0].Result, streamed[0].Result)
	}
}

func TestDecodeResponses_SkipsDoneSentinel(t *testing.T) {
	body := "data: {\"jsonrpc\":\"2.0\",\"id\":2,\"result\":{\"structuredContent\":{\"ok\":true}}}\n\ndata: [DONE]\n\n"
	frames, err := decodeResponses(StageCall, []byte(body), "text/event-stream")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("Expected sentinel frame to be skipped, got %d frames", len(frames))
	}
	frame, ok := pickCallFrame(frames, 2)
	if !ok {
		t.Fatal("Expected a frame matching id 2")
	}
	var result struct {
		StructuredContent json.RawMessage `json:"structuredContent"`
	}
	if err := json.Unmarshal(frame.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if string(result.StructuredContent) != `{"ok":true}` {
		t.Errorf("Expected {\"ok\":true}, got %s", result.StructuredContent)
	}
}

func TestDecodeResponses_SkipsUnparseableFrames(t *testing.T) {
	body := "data: not json\n\ndata: {\"jsonrpc\":\"2.0\",\"id\":7,\"result\":{}}\n\n"
	frames, err := decodeResponses(StageCall, []byte(body), "text/event-stream")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("Expected one parseable frame, got %d", len(frames))
	}
}

func TestDecodeResponses_ZeroFramesIsProtocolError(t *testing.T) {
	_, err := decodeResponses(StageCall, []byte("data: garbage\n\n"), "text/event-stream")
	if err == nil {
		t.Fatal("Expected an error for a body with no decodable frames")
	}
	if !IsProtocol(err) {
		t.Errorf("Expected a protocol error, got %v", err)
	}
}

func TestDecodeResponses_MultilineDataFrame(t *testing.T) {
	// A single frame may spread its JSON payload over several data lines.
	body := "data: {\"jsonrpc\":\"2.0\",\ndata: \"id\":3,\"result\":{}}\n\n"
	frames, err := decodeResponses(StageCall, []byte(body), "text/event-stream")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !frames[0].matchesID(3) {
		t.Errorf("Expected frame to match id 3, got id %s", frames[0].ID)
	}
}

func TestDecodeResponses_JSONLabelFallsBackToStream(t *testing.T) {
	body := "data: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{}}\n\n"
	frames, err := decodeResponses(StageNegotiate, []byte(body), "application/json")
	if err != nil {
		t.Fatalf("Expected fallback to event-stream parsing, got %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("Expected one frame, got %d", len(frames))
	}
}

func TestPickNegotiationFrame_PrefersSessionCarrier(t *testing.T) {
	frames := []response{
		{JSONRPC: "2.0", Result: json.RawMessage(`{"protocolVersion":"2025-03-26"}`)},
		{JSONRPC: "2.0", Result: json.RawMessage(`{"sessionId":"s-9"}`)},
		{JSONRPC: "2.0", Result: json.RawMessage(`{}`)},
	}
	picked := pickNegotiationFrame(frames)
	if bodySessionID(picked) != "s-9" {
		t.Errorf("Expected the session-carrying frame, got %s", picked.Result)
	}
}

func TestPickNegotiationFrame_FallsBackToLast(t *testing.T) {
	frames := []response{
		{JSONRPC: "2.0", Result: json.RawMessage(`{"a":1}`)},
		{JSONRPC: "2.0", Result: json.RawMessage(`{"b":2}`)},
	}
	picked := pickNegotiationFrame(frames)
	if string(picked.Result) != `{"b":2}` {
		t.Errorf("Expected last frame, got %s", picked.Result)
	}
}

func TestBodySessionID_FieldPaths(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"camel", `{"sessionId":"a"}`, "a"},
		{"snake", `{"session_id":"b"}`, "b"},
		{"meta", `{"_meta":{"sessionId":"c"}}`, "c"},
		{"absent", `{"protocolVersion":"x"}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := bodySessionID(response{Result: json.RawMessage(tc.body)})
			if got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestPickCallFrame_IgnoresOtherIDs(t *testing.T) {
	frames := []response{
		{JSONRPC: "2.0", ID: json.RawMessage(`1`), Result: json.RawMessage(`{"progress":true}`)},
		{JSONRPC: "2.0", ID: json.RawMessage(`2`), Result: json.RawMessage(`{"done":true}`)},
	}
	frame, ok := pickCallFrame(frames, 2)
	if !ok || string(frame.Result) != `{"done":true}` {
		t.Fatalf("Expected frame with id 2, got ok=%v result=%s", ok, frame.Result)
	}
	if _, ok := pickCallFrame(frames, 5); ok {
		t.Error("Expected no match for an unknown id")
	}
}
