package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/byoung/ai-me/internal/capability"
)

// Caller invokes a named tool on a connected capability provider. It is the
// slice of capability.Capability the bridge needs; tests inject fakes.
type Caller interface {
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// MCPTool adapts one tool served by an MCP capability provider to Eino's
// tool contract, so capability tools and native tools register with the
// agent the same way.
type MCPTool struct {
	// caller routes invocations to the owning provider.
	caller Caller

	// def is the tool definition as advertised by the server.
	def *mcp.Tool
}

// NewMCPTool wraps a server-advertised tool definition.
func NewMCPTool(caller Caller, def *mcp.Tool) *MCPTool {
	return &MCPTool{caller: caller, def: def}
}

// Name returns the tool name as advertised by the MCP server.
func (t *MCPTool) Name() string { return t.def.Name }

// Description returns the server-provided tool description.
func (t *MCPTool) Description() string { return t.def.Description }

// Info converts the server's JSON Schema input definition into Eino tool
// metadata. The schema crosses the bridge via a marshal round trip rather
// than a field-by-field translation, so server-side schema features we do
// not model are preserved verbatim.
func (t *MCPTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params, err := paramsFromInputSchema(t.def.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("tools: %s: input schema: %w", t.def.Name, err)
	}
	return &schema.ToolInfo{
		Name:        t.def.Name,
		Desc:        t.def.Description,
		ParamsOneOf: params,
	}, nil
}

// InvokableRun decodes the model's argument JSON and forwards the call to the
// owning capability provider.
func (t *MCPTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	args := map[string]any{}
	if argumentsInJSON != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
			return "", fmt.Errorf("tools: %s: invalid input: %w", t.def.Name, err)
		}
	}
	return t.caller.Call(ctx, t.def.Name, args)
}

// FromCapability lists the tools a connected provider serves and wraps each
// one as an Eino tool.
func FromCapability(ctx context.Context, provider capability.Capability) ([]tool.BaseTool, error) {
	defs, err := provider.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("tools: list %s: %w", provider.ID(), err)
	}
	out := make([]tool.BaseTool, 0, len(defs))
	for _, def := range defs {
		out = append(out, NewMCPTool(provider, def))
	}
	return out, nil
}

// paramsFromInputSchema converts an MCP input schema (any JSON-marshalable
// schema value) into Eino's ParamsOneOf. A nil schema yields an empty object
// schema so no-argument tools still carry valid metadata.
func paramsFromInputSchema(in any) (*schema.ParamsOneOf, error) {
	js := &jsonschema.Schema{Type: "object"}
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal: %w", err)
		}
		if err := json.Unmarshal(raw, js); err != nil {
			return nil, fmt.Errorf("unmarshal: %w", err)
		}
	}
	return schema.NewParamsOneOfByJSONSchema(js), nil
}
