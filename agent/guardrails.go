package agent

import (
	"errors"
	"strings"
)

// Guardrails provides minimal input screening before a message is routed.
type Guardrails struct {
	// Deny if any of these substrings appear in the message
	DenySubstrings []string
	// Allow only if at least one of these substrings appears; if empty, allow all
	AllowSubstrings []string
	// Max message length in characters; zero means unlimited
	MaxInputChars int
}

// ErrBlocked is returned when a message fails a guardrail check.
var ErrBlocked = errors.New("message blocked by guardrails")

// Check validates an inbound message.
func (g *Guardrails) Check(input Message) error {
	content := strings.ToLower(input.Content)

	if g.MaxInputChars > 0 && len(input.Content) > g.MaxInputChars {
		return ErrBlocked
	}
	for _, s := range g.DenySubstrings {
		if s == "" {
			continue
		}
		if strings.Contains(content, strings.ToLower(s)) {
			return ErrBlocked
		}
	}
	if len(g.AllowSubstrings) > 0 {
		allowed := false
		for _, s := range g.AllowSubstrings {
			if s == "" {
				continue
			}
			if strings.Contains(content, strings.ToLower(s)) {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrBlocked
		}
	}
	return nil
}
