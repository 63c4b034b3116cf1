package mcpclient

import (
	"context"
	"encoding/json"
	"net/http"
)

const (
	// proposedProtocolVersion is the fixed version offered during negotiation.
	// The server may answer with an older one; the negotiated value is echoed
	// on every subsequent request.
	proposedProtocolVersion = "2025-03-26"

	clientName    = "opsdash"
	clientVersion = "0.1.0"
)

// Session holds the outcome of negotiation for exactly one invocation. An
// empty ID is valid and denotes stateless mode: no session header is attached
// to subsequent requests and the notify step is skipped. Sessions are never
// reused across invocations.
type Session struct {
	ID              string
	ProtocolVersion string
}

// negotiate performs the initialize handshake and extracts the session
// identifier and agreed protocol version.
func (c *Client) negotiate(ctx context.Context) (Session, error) {
	id := c.seq.Add(1)
	payload, err := json.Marshal(request{
		JSONRPC: jsonrpcVersion,
		ID:      &id,
		Method:  methodInitialize,
		Params: initializeParams{
			ProtocolVersion: proposedProtocolVersion,
			Capabilities:    map[string]any{},
			ClientInfo:      clientInfo{Name: clientName, Version: clientVersion},
		},
	})
	if err != nil {
		return Session{}, newError(StageNegotiate, KindProtocol, "marshal initialize request: "+err.Error(), err)
	}

	_, header, body, err := c.send(ctx, StageNegotiate, http.MethodPost, payload, Session{}, c.cfg.Timeouts.For(""))
	if err != nil {
		return Session{}, err
	}

	frames, err := decodeResponses(StageNegotiate, body, header.Get("Content-Type"))
	if err != nil {
		return Session{ID: header.Get(sessionIDHeader)}, err
	}
	frame := pickNegotiationFrame(frames)

	sess := Session{ProtocolVersion: proposedProtocolVersion}
	// net/http headers are canonicalized, so one lookup covers every
	// capitalization a server might emit.
	sess.ID = header.Get(sessionIDHeader)

	if frame.Error != nil {
		cerr := newError(StageNegotiate, KindProtocol, frame.Error.Message, nil)
		cerr.RPCCode = frame.Error.Code
		// A session id the server handed out alongside the error still gets
		// torn down by the caller.
		return sess, cerr
	}

	if sess.ID == "" {
		sess.ID = bodySessionID(frame)
	}
	if v := negotiatedVersion(frame); v != "" {
		sess.ProtocolVersion = v
	}

	if sess.ID == "" {
		c.debugf("negotiate: no session id, proceeding stateless")
	} else {
		c.debugf("negotiate: session %s protocol %s", sess.ID, sess.ProtocolVersion)
	}
	return sess, nil
}

func negotiatedVersion(resp response) string {
	if len(resp.Result) == 0 {
		return ""
	}
	var probe struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if err := json.Unmarshal(resp.Result, &probe); err != nil {
		return ""
	}
	return probe.ProtocolVersion
}
