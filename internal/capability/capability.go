// Package capability manages the lifecycle of external tool providers (MCP
// servers) exposed to the agent: launching, handshaking, calling, and tearing
// down. Providers are connected independently so one bad server never takes
// down the whole set, and each session owns its providers exclusively.
package capability

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Category classifies a provider for prompt composition and delegation.
type Category string

const (
	// CategoryGitHub marks providers offering source-code research tools.
	CategoryGitHub Category = "github"
	// CategoryTime marks providers offering clock tools.
	CategoryTime Category = "time"
	// CategoryMemory marks providers offering session-scoped memory tools.
	CategoryMemory Category = "memory"
)

// State is the connection state of a capability provider.
type State int

const (
	// StateDisconnected means Connect has not been called yet.
	StateDisconnected State = iota
	// StateConnecting means the handshake is in flight.
	StateConnecting
	// StateConnected means the provider is ready for tool calls.
	StateConnected
	// StateFailed means the connect attempt failed; the provider is
	// excluded from the active set and never retried within a session.
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

// LaunchSpec describes how to start and identify one capability provider.
type LaunchSpec struct {
	// ID is the stable identifier of this provider (e.g. "github").
	ID string

	// Category classifies the provider for prompt composition.
	Category Category

	// Command is the executable to launch.
	Command string

	// Args are the command arguments.
	Args []string

	// Env holds environment variables injected into the subprocess.
	// Credentials go here, never into Args, to avoid process-list leakage.
	Env map[string]string

	// Description is the human-readable summary surfaced in prompts and logs.
	Description string
}

// Capability is a connected external tool provider with a uniform call
// interface. Concrete implementations may be subprocess-backed (MCP over
// stdio), in-process, or network-backed — the registry and the agent
// composer do not care which.
type Capability interface {
	// ID returns the provider's stable identifier.
	ID() string

	// Category returns the provider's category.
	Category() Category

	// Description returns the human-readable provider summary.
	Description() string

	// State returns the current connection state.
	State() State

	// Connect launches the provider and performs the capability handshake.
	// It must complete (or fail) within the registry's connect timeout.
	Connect(ctx context.Context) error

	// Tools lists the tools the connected provider exposes.
	Tools(ctx context.Context) ([]*mcp.Tool, error)

	// Call invokes a named tool with the given arguments and returns the
	// textual result. The provider must be in StateConnected.
	Call(ctx context.Context, name string, args map[string]any) (string, error)

	// Close tears the provider down. It is idempotent and never returns
	// an error that should interrupt session teardown — callers log and
	// move on.
	Close() error
}
