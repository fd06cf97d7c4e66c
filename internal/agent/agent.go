// Package agent composes the persona's conversational agent: a system prompt
// built from deterministic sections, the local knowledge retrieval tool,
// tools bridged from connected MCP capability providers, and specialist
// delegate sub-agents, all wired into an Eino ReAct loop.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/byoung/ai-me/internal/budget"
	"github.com/byoung/ai-me/internal/capability"
	"github.com/byoung/ai-me/internal/logging"
	"github.com/byoung/ai-me/internal/rag"
	"github.com/byoung/ai-me/internal/store"
	"github.com/byoung/ai-me/internal/tools"
)

// Config holds the dependencies required to construct an Agent.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Persona identifies who the agent speaks as. FullName is required.
	Persona Persona

	// Retriever is the local knowledge retriever. May be nil when the index
	// is not configured; the agent then runs without grounding.
	Retriever rag.Retriever

	// RAGTopK controls how many chunks the retrieval tool returns per query.
	// Defaults to rag.DefaultTopK if zero.
	RAGTopK int

	// Capabilities is the session's connected capability providers. Failed
	// providers must already be excluded.
	Capabilities []capability.Capability

	// ExcludeDelegated drops a capability's tools from the primary agent's
	// direct tool set when a delegate already owns that capability. The
	// default keeps both paths: direct calls for simple lookups, delegates
	// for multi-step work.
	ExcludeDelegated bool

	// History is the optional conversation store used to persist and replay
	// prior turns. If nil, each turn is stateless.
	History store.ConversationStore

	// HistoryDepth is the number of prior turns (user+assistant pairs) to
	// inject per query. Defaults to 10 if zero.
	HistoryDepth int

	// MaxContextTokens is the estimated token budget for the full input
	// context. History is trimmed oldest-first to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Agent is the persona's conversational agent for one session.
type Agent struct {
	// reactAgent is the Eino ReAct loop, nil when the session has no tools.
	reactAgent *react.Agent

	// chatModel serves turns directly in the zero-tool degraded mode.
	chatModel model.ToolCallingChatModel

	// systemPrompt is the assembled session prompt, fixed at construction.
	systemPrompt string

	// history is the optional conversation store for multi-turn context.
	history store.ConversationStore

	// historyDepth is the number of recent messages to inject per turn.
	historyDepth int

	// maxContextTokens is the estimated token budget for the input context.
	maxContextTokens int
}

// New constructs an Agent from the provided Config. Tool order is fixed:
// retrieval first, then delegates, then direct capability tools in the
// registry's connect order.
func New(ctx context.Context, cfg *Config) (*Agent, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	if cfg.Persona.FullName == "" {
		return nil, fmt.Errorf("agent: Persona.FullName must not be empty")
	}

	log := logging.FromContext(ctx)

	var agentTools []tool.BaseTool
	if cfg.Retriever != nil {
		agentTools = append(agentTools, tools.NewRetrieveTool(cfg.Retriever, cfg.RAGTopK))
	}

	// Bridge every connected capability's tools once; a provider whose tool
	// listing fails is skipped, same as a connect failure.
	capTools := make(map[string][]tool.BaseTool, len(cfg.Capabilities))
	live := make([]capability.Capability, 0, len(cfg.Capabilities))
	for _, c := range cfg.Capabilities {
		bridged, err := tools.FromCapability(ctx, c)
		if err != nil {
			log.Error("agent: capability tool listing failed, excluding provider",
				slog.String("id", c.ID()),
				slog.Any("error", err))
			continue
		}
		capTools[c.ID()] = bridged
		live = append(live, c)
	}

	delegates, delegated, err := buildDelegates(ctx, cfg, live, capTools)
	if err != nil {
		return nil, err
	}
	delegateNames := make([]string, 0, len(delegates))
	for _, d := range delegates {
		agentTools = append(agentTools, d)
		delegateNames = append(delegateNames, fmt.Sprintf("%s: %s", d.Name(), d.Description()))
	}

	for _, c := range live {
		if cfg.ExcludeDelegated && delegated[c.Category()] {
			continue
		}
		agentTools = append(agentTools, capTools[c.ID()]...)
	}

	a := &Agent{
		systemPrompt:     BuildSystemPrompt(cfg.Persona, live, delegateNames),
		history:          cfg.History,
		historyDepth:     defaultInt(cfg.HistoryDepth, 10),
		maxContextTokens: defaultInt(cfg.MaxContextTokens, budget.DefaultMaxContextTokens),
	}

	if len(agentTools) == 0 {
		// Degraded mode: no index and no capabilities. The persona still
		// answers, it just cannot ground or look anything up.
		log.Warn("agent: no tools available, running in degraded mode")
		a.chatModel = cfg.ChatModel
		return a, nil
	}

	reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cfg.ChatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: agentTools,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agent: create react agent: %w", err)
	}
	a.reactAgent = reactAgent
	return a, nil
}

// buildDelegates constructs the specialist sub-agents for the capabilities
// this session actually has. Returns the delegates plus the set of
// capability categories they own.
func buildDelegates(ctx context.Context, cfg *Config, live []capability.Capability, capTools map[string][]tool.BaseTool) ([]*Delegate, map[capability.Category]bool, error) {
	var delegates []*Delegate
	delegated := make(map[capability.Category]bool)

	for _, c := range live {
		bridged := capTools[c.ID()]
		if len(bridged) == 0 {
			continue
		}
		switch c.Category() {
		case capability.CategoryGitHub:
			d, err := NewResearcher(ctx, cfg.ChatModel, cfg.Persona, bridged)
			if err != nil {
				return nil, nil, err
			}
			delegates = append(delegates, d)
			delegated[capability.CategoryGitHub] = true
		case capability.CategoryMemory:
			d, err := NewMemoryCurator(ctx, cfg.ChatModel, bridged)
			if err != nil {
				return nil, nil, err
			}
			delegates = append(delegates, d)
			delegated[capability.CategoryMemory] = true
		}
	}
	return delegates, delegated, nil
}

// Query sends one visitor message through the agent and returns the
// normalized reply. If a conversation store is configured, prior turns are
// injected and the new turn is persisted after completion.
func (a *Agent) Query(ctx context.Context, sessionID, userMessage string) (string, error) {
	messages := a.buildMessages(ctx, sessionID, userMessage)

	var out *schema.Message
	var err error
	if a.reactAgent != nil {
		out, err = a.reactAgent.Generate(ctx, messages)
	} else {
		out, err = a.chatModel.Generate(ctx, messages)
	}
	if err != nil {
		return "", fmt.Errorf("agent: generate: %w", err)
	}

	reply := Normalize(out.Content)

	// Persist the turn (non-fatal on error).
	if a.history != nil {
		log := logging.FromContext(ctx)
		if err := a.history.Append(ctx, sessionID, store.RoleUser, userMessage); err != nil {
			log.Warn("history: failed to persist user message", slog.Any("error", err))
		}
		if err := a.history.Append(ctx, sessionID, store.RoleAssistant, reply); err != nil {
			log.Warn("history: failed to persist assistant message", slog.Any("error", err))
		}
	}

	return reply, nil
}

// SystemPrompt returns the assembled session prompt.
func (a *Agent) SystemPrompt() string { return a.systemPrompt }

// buildMessages constructs the message slice for one turn: system prompt,
// prior history trimmed to the token budget, then the user message.
func (a *Agent) buildMessages(ctx context.Context, sessionID, userMessage string) []*schema.Message {
	log := logging.FromContext(ctx)

	var historyMsgs []*schema.Message
	if a.history != nil {
		prior, err := a.history.Recent(ctx, sessionID, a.historyDepth*2)
		if err != nil {
			log.Warn("history: failed to load prior messages", slog.Any("error", err))
		} else {
			for _, m := range prior {
				switch m.Role {
				case store.RoleUser:
					historyMsgs = append(historyMsgs, schema.UserMessage(m.Content))
				case store.RoleAssistant:
					historyMsgs = append(historyMsgs, schema.AssistantMessage(m.Content, nil))
				}
			}
		}
	}

	fixed := []*schema.Message{
		schema.SystemMessage(a.systemPrompt),
		schema.UserMessage(userMessage),
	}

	before := len(historyMsgs)
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, a.maxContextTokens)
	if dropped := before - len(historyMsgs); dropped > 0 {
		log.Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(historyMsgs)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	result := make([]*schema.Message, 0, 2+len(historyMsgs))
	result = append(result, schema.SystemMessage(a.systemPrompt))
	result = append(result, historyMsgs...)
	result = append(result, schema.UserMessage(userMessage))
	return result
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
