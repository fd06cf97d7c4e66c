// Package tools holds the tool implementations the agent can invoke during a
// conversation: the local knowledge retrieval tool backed by the vector
// index, and the bridge that exposes tools served by MCP capability providers.
// Each tool satisfies Eino's tool.BaseTool interface so it can be registered
// directly with the react agent.
package tools

// AgentTool is the interface all agent-facing tools satisfy. It extends the
// basic Eino tool contract with plain accessors so the composer can log and
// order tools by name without type assertions.
type AgentTool interface {
	// Name returns the unique tool name registered with the agent.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This text is sent to the LLM as part of the tool schema.
	Description() string
}
