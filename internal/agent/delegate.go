package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
)

// Delegate tool names.
const (
	// ResearcherName is the delegate that digs through the persona's source
	// repositories.
	ResearcherName = "source_code_researcher"

	// MemoryCuratorName is the delegate that maintains the session memory
	// graph.
	MemoryCuratorName = "memory_curator"
)

// Delegate is a focused sub-agent exposed to the primary agent as a tool.
// It runs its own ReAct loop over a narrow tool set, so multi-step research
// happens inside one tool call instead of cluttering the primary
// conversation.
type Delegate struct {
	name         string
	description  string
	instructions string
	agent        *react.Agent
}

// DelegateConfig holds the pieces needed to build one Delegate.
type DelegateConfig struct {
	// Name is the tool name the primary agent calls.
	Name string

	// Description is the LLM-facing summary of what the delegate handles.
	Description string

	// Instructions is the delegate's own system prompt.
	Instructions string

	// ChatModel is the LLM backend; delegates share the primary's model.
	ChatModel model.ToolCallingChatModel

	// Tools is the delegate's tool set. Must not be empty — a delegate with
	// nothing to work with is pointless.
	Tools []tool.BaseTool
}

// delegateInput is the JSON-serialisable input schema for a Delegate.
type delegateInput struct {
	// Request is the complete, self-contained task for the delegate.
	Request string `json:"request"`
}

// NewDelegate constructs a Delegate from the given config.
func NewDelegate(ctx context.Context, cfg *DelegateConfig) (*Delegate, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: delegate %s: ChatModel must not be nil", cfg.Name)
	}
	if len(cfg.Tools) == 0 {
		return nil, fmt.Errorf("agent: delegate %s: at least one tool is required", cfg.Name)
	}

	sub, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cfg.ChatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: cfg.Tools,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agent: delegate %s: create react agent: %w", cfg.Name, err)
	}

	return &Delegate{
		name:         cfg.Name,
		description:  cfg.Description,
		instructions: cfg.Instructions,
		agent:        sub,
	}, nil
}

// Name returns the tool name the primary agent calls.
func (d *Delegate) Name() string { return d.name }

// Description returns the LLM-facing delegate summary.
func (d *Delegate) Description() string { return d.description }

// Info returns the Eino tool metadata for the delegate.
func (d *Delegate) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: d.name,
		Desc: d.description,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"request": {
				Type:     schema.String,
				Desc:     "Complete, self-contained task for the delegate, including all needed context.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun runs the delegate's ReAct loop on the request and returns its
// final answer.
func (d *Delegate) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input delegateInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("agent: delegate %s: invalid input: %w", d.name, err)
	}
	if strings.TrimSpace(input.Request) == "" {
		return "", fmt.Errorf("agent: delegate %s: request is required", d.name)
	}

	out, err := d.agent.Generate(ctx, []*schema.Message{
		schema.SystemMessage(d.instructions),
		schema.UserMessage(input.Request),
	})
	if err != nil {
		return "", fmt.Errorf("agent: delegate %s: generate: %w", d.name, err)
	}
	return Normalize(out.Content), nil
}

// NewResearcher builds the source-code research delegate over the given
// GitHub tools.
func NewResearcher(ctx context.Context, chatModel model.ToolCallingChatModel, p Persona, githubTools []tool.BaseTool) (*Delegate, error) {
	instructions := fmt.Sprintf(`You are a research assistant for %s. Answer questions about
their source code using the GitHub tools available to you. Only consult
repositories owned by the %s account. Report concrete findings: repository
names, file paths, and short code excerpts. If you cannot find an answer in
those repositories, say so plainly.`, p.FullName, p.GitHubUser)

	return NewDelegate(ctx, &DelegateConfig{
		Name: ResearcherName,
		Description: "Researches questions about the persona's source code and repositories. " +
			"Hand it a complete question; it searches GitHub and reports findings with file references.",
		Instructions: instructions,
		ChatModel:    chatModel,
		Tools:        githubTools,
	})
}

// NewMemoryCurator builds the session-memory delegate over the given memory
// tools.
func NewMemoryCurator(ctx context.Context, chatModel model.ToolCallingChatModel, memoryTools []tool.BaseTool) (*Delegate, error) {
	return NewDelegate(ctx, &DelegateConfig{
		Name: MemoryCuratorName,
		Description: "Maintains the memory graph for this conversation. " +
			"Hand it facts the visitor shares to store, or ask it to recall what is already known.",
		Instructions: `You curate a memory graph for a single conversation. Store facts as
entities with relations, deduplicate aggressively, and when asked to recall,
report only what the graph actually contains.`,
		ChatModel: chatModel,
		Tools:     memoryTools,
	})
}
