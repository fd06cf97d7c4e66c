package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// fakeCaller records the last forwarded invocation.
type fakeCaller struct {
	lastName string
	lastArgs map[string]any
	result   string
	err      error
}

func (f *fakeCaller) Call(_ context.Context, name string, args map[string]any) (string, error) {
	f.lastName = name
	f.lastArgs = args
	return f.result, f.err
}

func TestMCPTool_ForwardsArguments(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{result: "14:02 UTC"}
	tool := NewMCPTool(caller, &mcp.Tool{Name: "get_current_time", Description: "current time"})

	out, err := tool.InvokableRun(context.Background(), `{"timezone":"Etc/UTC"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	if out != "14:02 UTC" {
		t.Errorf("result not forwarded: %q", out)
	}
	if caller.lastName != "get_current_time" {
		t.Errorf("tool name not forwarded: %q", caller.lastName)
	}
	if caller.lastArgs["timezone"] != "Etc/UTC" {
		t.Errorf("arguments not forwarded: %v", caller.lastArgs)
	}
}

func TestMCPTool_EmptyArguments(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{result: "ok"}
	tool := NewMCPTool(caller, &mcp.Tool{Name: "noop"})

	if _, err := tool.InvokableRun(context.Background(), ""); err != nil {
		t.Fatalf("empty argument string should call with no args: %v", err)
	}
	if len(caller.lastArgs) != 0 {
		t.Errorf("expected empty args map, got %v", caller.lastArgs)
	}
}

func TestMCPTool_ProviderErrorSurfaces(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{err: errors.New("capability github: not connected")}
	tool := NewMCPTool(caller, &mcp.Tool{Name: "search_code"})

	if _, err := tool.InvokableRun(context.Background(), `{}`); err == nil {
		t.Fatal("expected provider error to surface")
	}
}

func TestMCPTool_InfoWithoutSchema(t *testing.T) {
	t.Parallel()

	tool := NewMCPTool(&fakeCaller{}, &mcp.Tool{Name: "noop", Description: "does nothing"})
	info, err := tool.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Name != "noop" || info.Desc != "does nothing" {
		t.Errorf("metadata not carried over: %+v", info)
	}
	if info.ParamsOneOf == nil {
		t.Error("nil input schema must still yield params metadata")
	}
}

func TestParamsFromInputSchema_RoundTrip(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "search query"},
		},
		"required": []any{"query"},
	}

	params, err := paramsFromInputSchema(in)
	if err != nil {
		t.Fatalf("paramsFromInputSchema: %v", err)
	}
	if params == nil {
		t.Fatal("expected non-nil params")
	}

	js, err := params.ToJSONSchema()
	if err != nil {
		t.Fatalf("ToJSONSchema: %v", err)
	}
	if js.Properties == nil {
		t.Fatal("properties lost in round trip")
	}
	if _, ok := js.Properties.Get("query"); !ok {
		t.Error("query property lost in round trip")
	}
}
