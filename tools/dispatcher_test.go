package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeInvoker struct {
	result   json.RawMessage
	err      error
	calls    int
	lastTool string
	lastArgs map[string]interface{}
}

func (f *fakeInvoker) CallTool(ctx context.Context, tool string, args map[string]interface{}) (json.RawMessage, error) {
	f.calls++
	f.lastTool = tool
	f.lastArgs = args
	return f.result, f.err
}

func TestDispatcherPrefersRemote(t *testing.T) {
	r := NewRegistry()
	local := &dummyTool{name: "fetch_dashboard_data", out: map[string]interface{}{"origin": "local"}}
	if err := r.Register(local); err != nil {
		t.Fatalf("register: %v", err)
	}
	remote := &fakeInvoker{result: json.RawMessage(`{"origin":"remote"}`)}
	d := NewDispatcher(r, remote)

	out, err := d.Execute(context.Background(), "fetch_dashboard_data", map[string]interface{}{"window_days": 7})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out["origin"] != "remote" {
		t.Fatalf("expected remote result, got %v", out)
	}
	if local.lastArgs != nil {
		t.Fatal("local tool should not run when remote succeeds")
	}
	if remote.lastTool != "fetch_dashboard_data" {
		t.Fatalf("expected remote call for fetch_dashboard_data, got %q", remote.lastTool)
	}
}

func TestDispatcherFallsBackOnRemoteError(t *testing.T) {
	r := NewRegistry()
	local := &dummyTool{name: "analyze_dashboard_history", out: map[string]interface{}{"origin": "local"}}
	if err := r.Register(local); err != nil {
		t.Fatalf("register: %v", err)
	}
	remote := &fakeInvoker{err: errors.New("endpoint unreachable")}
	d := NewDispatcher(r, remote)

	out, err := d.Execute(context.Background(), "analyze_dashboard_history", map[string]interface{}{"limit": 3})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out["origin"] != "local" {
		t.Fatalf("expected local fallback, got %v", out)
	}
	if remote.calls != 1 {
		t.Fatalf("expected 1 remote attempt, got %d", remote.calls)
	}
	if local.lastArgs["limit"] != 3 {
		t.Fatalf("expected args to reach local tool, got %v", local.lastArgs)
	}
}

func TestDispatcherFallsBackOnNonObjectResult(t *testing.T) {
	r := NewRegistry()
	local := &dummyTool{name: "list_upload_tables", out: map[string]interface{}{"origin": "local"}}
	if err := r.Register(local); err != nil {
		t.Fatalf("register: %v", err)
	}
	remote := &fakeInvoker{result: json.RawMessage(`"just a string"`)}
	d := NewDispatcher(r, remote)

	out, err := d.Execute(context.Background(), "list_upload_tables", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out["origin"] != "local" {
		t.Fatalf("expected local fallback, got %v", out)
	}
}

func TestDispatcherLocalOnly(t *testing.T) {
	r := NewRegistry()
	local := &dummyTool{name: "export_dashboard_history", out: map[string]interface{}{"origin": "local"}}
	if err := r.Register(local); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(r, nil)

	out, err := d.Execute(context.Background(), "export_dashboard_history", nil)
	if err != nil || out["origin"] != "local" {
		t.Fatalf("expected local execution, got %v %v", out, err)
	}

	if _, err := d.Execute(context.Background(), "missing", nil); err == nil {
		t.Fatal("expected not found error for unknown tool")
	}
}
