package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testDispatcher(t *testing.T, r *Registry) *Dispatcher {
	t.Helper()
	return NewDispatcher(r, 0, zerolog.Nop())
}

func TestDispatcher_UnknownTool_NeverTouchesHandlers(t *testing.T) {
	r := NewRegistry()
	called := false
	err := r.Register(Descriptor{Name: "t"}, func(ctx context.Context, args map[string]any) (any, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	res := testDispatcher(t, r).Invoke(context.Background(), "missing", nil)
	if res.OK {
		t.Fatalf("expected failure")
	}
	if res.Code != CodeToolNotFound {
		t.Fatalf("code = %q", res.Code)
	}
	if called {
		t.Fatalf("handler was invoked for unknown tool name")
	}
}

func TestDispatcher_MissingRequiredField_SkipsHandler(t *testing.T) {
	r := NewRegistry()
	called := false
	desc := Descriptor{
		Name: "register_dag",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"dagId": map[string]any{"type": "string"},
				"code":  map[string]any{"type": "string"},
			},
			"required": []string{"dagId", "code"},
		},
	}
	err := r.Register(desc, func(ctx context.Context, args map[string]any) (any, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	res := testDispatcher(t, r).Invoke(context.Background(), "register_dag", json.RawMessage(`{"dagId":"x"}`))
	if res.OK || res.Code != CodeValidationError {
		t.Fatalf("got %+v", res)
	}
	if called {
		t.Fatalf("handler ran despite validation failure")
	}
}

func TestDispatcher_InvalidArgumentsJSON(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Descriptor{Name: "t"}, noopHandler); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res := testDispatcher(t, r).Invoke(context.Background(), "t", json.RawMessage(`{"broken":`))
	if res.OK || res.Code != CodeValidationError {
		t.Fatalf("got %+v", res)
	}
	if !strings.Contains(res.Message, "invalid tool arguments JSON") {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestDispatcher_DomainErrorPassesThrough(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Descriptor{Name: "schema_lookup"}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, Errorf("TABLE_NOT_FOUND", "table %q not found", "iptv.missing")
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	res := testDispatcher(t, r).Invoke(context.Background(), "schema_lookup", json.RawMessage(`{}`))
	if res.OK {
		t.Fatalf("expected failure")
	}
	if res.Code != "TABLE_NOT_FOUND" {
		t.Fatalf("code = %q", res.Code)
	}
	if !strings.Contains(res.Message, "iptv.missing") {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestDispatcher_PlainErrorBecomesExecutionError(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Descriptor{Name: "t"}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	res := testDispatcher(t, r).Invoke(context.Background(), "t", nil)
	if res.OK || res.Code != CodeExecutionError {
		t.Fatalf("got %+v", res)
	}
}

func TestDispatcher_HandlerPanic_IsContained(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Descriptor{Name: "t"}, func(ctx context.Context, args map[string]any) (any, error) {
		panic("handler bug")
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	res := testDispatcher(t, r).Invoke(context.Background(), "t", nil)
	if res.OK || res.Code != CodeInternalError {
		t.Fatalf("got %+v", res)
	}
}

func TestDispatcher_SuccessEnvelope(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Descriptor{Name: "t"}, func(ctx context.Context, args map[string]any) (any, error) {
		return map[string]any{"rows": 3}, nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	res := testDispatcher(t, r).Invoke(context.Background(), "t", json.RawMessage(`{}`))
	if !res.OK {
		t.Fatalf("got %+v", res)
	}
	if res.Code != "" || res.Message != "" {
		t.Fatalf("success envelope carries failure fields: %+v", res)
	}
	v, ok := res.Value.(map[string]any)
	if !ok || v["rows"] != 3 {
		t.Fatalf("value = %#v", res.Value)
	}
}

func TestDispatcher_NumericCoercion_IntegerAcceptedForNumber(t *testing.T) {
	r := NewRegistry()
	var got float64
	desc := Descriptor{
		Name: "t",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{"type": "number"},
			},
		},
	}
	err := r.Register(desc, func(ctx context.Context, args map[string]any) (any, error) {
		got, _ = args["limit"].(float64)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	res := testDispatcher(t, r).Invoke(context.Background(), "t", json.RawMessage(`{"limit":25}`))
	if !res.OK {
		t.Fatalf("got %+v", res)
	}
	if got != 25 {
		t.Fatalf("limit = %v", got)
	}
}
