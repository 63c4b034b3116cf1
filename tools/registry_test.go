package tools

import (
	"context"
	"errors"
	"testing"
	"time"
)

type dummyTool struct {
	name, desc string
	out        map[string]interface{}
	err        error
	lastArgs   map[string]interface{}
}

func (d *dummyTool) Name() string                   { return d.name }
func (d *dummyTool) Description() string            { return d.desc }
func (d *dummyTool) Schema() map[string]interface{} { return map[string]interface{}{"type": "object"} }
func (d *dummyTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	d.lastArgs = args
	if d.err != nil {
		return nil, d.err
	}
	return d.out, nil
}

func TestRegistryRegisterGetListExecute(t *testing.T) {
	r := NewRegistry()
	a := &dummyTool{name: "a", desc: "A", out: map[string]interface{}{"from": "a"}}
	b := &dummyTool{name: "b", desc: "B", out: map[string]interface{}{"from": "b"}}

	if err := r.Register(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := r.Register(b); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if err := r.Register(a); err == nil {
		t.Fatalf("expected duplicate register error")
	}

	if _, ok := r.Get("a"); !ok {
		t.Fatalf("expected to get a")
	}
	names := r.List()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, err := r.Execute(ctx, "a", map[string]interface{}{"k": "v"})
	if err != nil || out["from"] != "a" {
		t.Fatalf("execute unexpected: %v %v", err, out)
	}
	if a.lastArgs["k"] != "v" {
		t.Fatalf("expected args to reach the tool, got %v", a.lastArgs)
	}
}

func TestRegistryExecuteErrors(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Execute(context.Background(), "none", nil); err == nil {
		t.Fatalf("expected not found error")
	}

	boom := errors.New("boom")
	bad := &dummyTool{name: "bad", err: boom}
	if err := r.Register(bad); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Execute(context.Background(), "bad", nil); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
