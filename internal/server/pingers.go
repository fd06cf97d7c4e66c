package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// LLMPinger probes an LLM backend by sending a minimal single-token generate
// request. It satisfies the Pinger interface and is used by GET /api/ready.
// Each probe consumes tokens, so /api/ready should not be polled aggressively
// when this pinger is registered.
type LLMPinger struct {
	// model is the chat model to probe.
	model model.ToolCallingChatModel
	// name identifies the backend in readiness responses (e.g. "groq").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.ToolCallingChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends a one-word prompt and checks for a non-nil response.
func (p *LLMPinger) Ping(ctx context.Context) error {
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// healthChecker is satisfied by any dependency exposing its own reachability
// probe, such as the Qdrant vector store.
type healthChecker interface {
	Ping(ctx context.Context) error
}

// DependencyPinger adapts a healthChecker into a named Pinger for /api/ready.
type DependencyPinger struct {
	// dep is the dependency to probe.
	dep healthChecker
	// name is the dependency label used in readiness responses.
	name string
}

// NewDependencyPinger constructs a DependencyPinger for the given dependency.
func NewDependencyPinger(dep healthChecker, name string) *DependencyPinger {
	return &DependencyPinger{dep: dep, name: name}
}

// Name returns the dependency label used in readiness responses.
func (p *DependencyPinger) Name() string { return p.name }

// Ping delegates to the dependency's own probe.
func (p *DependencyPinger) Ping(ctx context.Context) error {
	return p.dep.Ping(ctx)
}
