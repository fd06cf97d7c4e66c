package capability

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/byoung/ai-me/internal/version"
)

// connectTimeout bounds the subprocess launch plus MCP handshake. A server
// that cannot initialise within this window is treated as failed.
const connectTimeout = 30 * time.Second

// StdioCapability is a Capability backed by an MCP server subprocess speaking
// the protocol over stdin/stdout.
type StdioCapability struct {
	// spec describes how to launch the server.
	spec LaunchSpec

	// mu guards state and session.
	mu sync.Mutex

	// state is the current connection state.
	state State

	// session is the live MCP client session, nil until connected.
	session *mcp.ClientSession

	// closeOnce makes Close idempotent.
	closeOnce sync.Once
}

// NewStdio constructs a StdioCapability from a launch spec. The subprocess
// is not started until Connect.
func NewStdio(spec LaunchSpec) *StdioCapability {
	return &StdioCapability{spec: spec, state: StateDisconnected}
}

// ID returns the provider's stable identifier.
func (c *StdioCapability) ID() string { return c.spec.ID }

// Category returns the provider's category.
func (c *StdioCapability) Category() Category { return c.spec.Category }

// Description returns the human-readable provider summary.
func (c *StdioCapability) Description() string { return c.spec.Description }

// State returns the current connection state.
func (c *StdioCapability) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect launches the subprocess and performs the MCP initialize handshake,
// bounded by connectTimeout. On failure the capability moves to StateFailed
// and is never retried within the session.
func (c *StdioCapability) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	// The command deliberately does not inherit the handshake context:
	// cancelling it after a successful connect must not kill the server.
	cmd := exec.Command(c.spec.Command, c.spec.Args...)
	cmd.Env = mergedEnv(c.spec.Env)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "ai-me",
		Version: version.Version,
	}, nil)

	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateFailed
		c.mu.Unlock()
		return fmt.Errorf("capability %s: connect: %w", c.spec.ID, err)
	}

	c.mu.Lock()
	c.session = session
	c.state = StateConnected
	c.mu.Unlock()
	return nil
}

// Tools lists the tools the connected server exposes.
func (c *StdioCapability) Tools(ctx context.Context) ([]*mcp.Tool, error) {
	session, err := c.connectedSession()
	if err != nil {
		return nil, err
	}
	res, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("capability %s: list tools: %w", c.spec.ID, err)
	}
	return res.Tools, nil
}

// Call invokes a named tool and concatenates the textual content of the
// result. A tool-level error result is surfaced as a Go error.
func (c *StdioCapability) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	session, err := c.connectedSession()
	if err != nil {
		return "", err
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("capability %s: call %s: %w", c.spec.ID, name, err)
	}

	var sb strings.Builder
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	if res.IsError {
		return "", fmt.Errorf("capability %s: tool %s returned error: %s", c.spec.ID, name, sb.String())
	}
	return sb.String(), nil
}

// Close shuts down the session (and with it the subprocess). Idempotent;
// the underlying close error is returned for debug logging but repeated
// calls always return nil.
func (c *StdioCapability) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		session := c.session
		c.session = nil
		c.state = StateDisconnected
		c.mu.Unlock()
		if session != nil {
			err = session.Close()
		}
	})
	return err
}

// connectedSession returns the live session or an error if the provider is
// not in StateConnected.
func (c *StdioCapability) connectedSession() (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.session == nil {
		return nil, fmt.Errorf("capability %s: not connected (state %s)", c.spec.ID, c.state)
	}
	return c.session, nil
}

// mergedEnv combines the parent environment with the spec's env vars,
// spec values winning on conflict.
func mergedEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return os.Environ()
	}
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
