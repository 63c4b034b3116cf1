package tools

import (
	"context"
	"encoding/json"
	"log"

	"github.com/opsdash/opsdash/mcpclient"
)

// Dispatcher routes tool calls to a remote endpoint when one is configured
// and falls back to the local registry when the remote call fails or the
// remote result is not a JSON object. With no remote invoker it is a plain
// local dispatcher.
type Dispatcher struct {
	registry Registry
	remote   mcpclient.Invoker
	debug    bool
}

// NewDispatcher creates a dispatcher over the local registry. remote may be
// nil to disable remote calls.
func NewDispatcher(registry Registry, remote mcpclient.Invoker) *Dispatcher {
	return &Dispatcher{registry: registry, remote: remote}
}

// SetDebug enables logging of remote fallbacks.
func (d *Dispatcher) SetDebug(debug bool) { d.debug = debug }

// List returns the locally registered tool names.
func (d *Dispatcher) List() []string { return d.registry.List() }

// Get retrieves a local tool by name.
func (d *Dispatcher) Get(name string) (Tool, bool) { return d.registry.Get(name) }

// Execute runs the named tool, remote first.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	if result, ok := d.callRemote(ctx, name, args); ok {
		return result, nil
	}
	return d.registry.Execute(ctx, name, args)
}

// callRemote attempts the remote endpoint. Any failure, including a result
// that is not a JSON object, falls through to the local implementation.
func (d *Dispatcher) callRemote(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, bool) {
	if d.remote == nil {
		return nil, false
	}
	raw, err := d.remote.CallTool(ctx, name, args)
	if err != nil {
		if d.debug {
			log.Printf("remote tool %s failed, using local implementation: %v", name, err)
		}
		return nil, false
	}
	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil || result == nil {
		if d.debug {
			log.Printf("remote tool %s returned a non-object result, using local implementation", name)
		}
		return nil, false
	}
	return result, true
}
