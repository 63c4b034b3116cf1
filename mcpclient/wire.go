package mcpclient

import "encoding/json"

const (
	jsonrpcVersion = "2.0"

	methodInitialize  = "initialize"
	methodInitialized = "notifications/initialized"
	methodCallTool    = "tools/call"

	sessionIDHeader       = "Mcp-Session-Id"
	protocolVersionHeader = "MCP-Protocol-Version"
)

// request is the outbound JSON-RPC envelope. ID is nil for fire-and-forget
// notifications. Requests are constructed per call and never mutated.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      *int64      `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// response is the inbound JSON-RPC envelope. Result and Error are mutually
// exclusive.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is the JSON-RPC error object.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// matchesID reports whether the response carries the given numeric request id.
func (r *response) matchesID(id int64) bool {
	if len(r.ID) == 0 {
		return false
	}
	var got int64
	if err := json.Unmarshal(r.ID, &got); err != nil {
		return false
	}
	return got == id
}

// initializeParams is the fixed negotiation proposal: a protocol version, an
// empty capability set, and a static client identity.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// callToolParams names the tool and carries its argument object.
type callToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}
