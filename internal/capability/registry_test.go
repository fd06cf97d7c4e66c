package capability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// fakeCapability is an in-process Capability for registry tests.
type fakeCapability struct {
	spec       LaunchSpec
	state      State
	connectErr error
	closeErr   error
	closeCalls int
}

func (f *fakeCapability) ID() string           { return f.spec.ID }
func (f *fakeCapability) Category() Category   { return f.spec.Category }
func (f *fakeCapability) Description() string  { return f.spec.Description }
func (f *fakeCapability) State() State         { return f.state }

func (f *fakeCapability) Connect(context.Context) error {
	if f.connectErr != nil {
		f.state = StateFailed
		return f.connectErr
	}
	f.state = StateConnected
	return nil
}

func (f *fakeCapability) Tools(context.Context) ([]*mcp.Tool, error) { return nil, nil }

func (f *fakeCapability) Call(context.Context, string, map[string]any) (string, error) {
	if f.state != StateConnected {
		return "", fmt.Errorf("capability %s: not connected", f.spec.ID)
	}
	return "ok", nil
}

func (f *fakeCapability) Close() error {
	f.closeCalls++
	f.state = StateDisconnected
	return f.closeErr
}

// newFakeRegistry builds a Registry producing fakes, failing the IDs listed.
func newFakeRegistry(failIDs map[string]bool, made *[]*fakeCapability) *Registry {
	return &Registry{build: func(spec LaunchSpec) Capability {
		f := &fakeCapability{spec: spec}
		if failIDs[spec.ID] {
			f.connectErr = errors.New("exec: no such file or directory")
		}
		*made = append(*made, f)
		return f
	}}
}

func TestConnectAll_FailureSkippedOrderPreserved(t *testing.T) {
	t.Parallel()

	specs := []LaunchSpec{
		{ID: "github", Category: CategoryGitHub},
		{ID: "time", Category: CategoryTime},
		{ID: "memory", Category: CategoryMemory},
	}

	var made []*fakeCapability
	r := newFakeRegistry(map[string]bool{"time": true}, &made)

	connected := r.ConnectAll(context.Background(), specs)

	if len(connected) != 2 {
		t.Fatalf("expected 2 connected providers, got %d", len(connected))
	}
	if connected[0].ID() != "github" || connected[1].ID() != "memory" {
		t.Errorf("relative order not preserved: got [%s, %s]", connected[0].ID(), connected[1].ID())
	}
	for _, c := range connected {
		if c.State() != StateConnected {
			t.Errorf("provider %s not in connected state: %s", c.ID(), c.State())
		}
	}
}

func TestConnectAll_AllFailYieldsEmptySet(t *testing.T) {
	t.Parallel()

	var made []*fakeCapability
	r := newFakeRegistry(map[string]bool{"a": true, "b": true}, &made)

	connected := r.ConnectAll(context.Background(), []LaunchSpec{{ID: "a"}, {ID: "b"}})
	if len(connected) != 0 {
		t.Errorf("expected empty set, got %d providers", len(connected))
	}
}

func TestCloseAll_SwallowsTeardownErrors(t *testing.T) {
	t.Parallel()

	caps := []Capability{
		&fakeCapability{spec: LaunchSpec{ID: "a"}, state: StateConnected, closeErr: errors.New("broken pipe")},
		&fakeCapability{spec: LaunchSpec{ID: "b"}, state: StateConnected},
	}

	// Must not panic or propagate.
	CloseAll(context.Background(), caps)

	for _, c := range caps {
		if c.(*fakeCapability).closeCalls != 1 {
			t.Errorf("provider %s: expected 1 close call, got %d", c.ID(), c.(*fakeCapability).closeCalls)
		}
	}
}

func TestByCategory(t *testing.T) {
	t.Parallel()

	caps := []Capability{
		&fakeCapability{spec: LaunchSpec{ID: "github", Category: CategoryGitHub}},
		&fakeCapability{spec: LaunchSpec{ID: "time", Category: CategoryTime}},
		&fakeCapability{spec: LaunchSpec{ID: "memory", Category: CategoryMemory}},
	}

	grouped := ByCategory(caps)
	if len(grouped) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(grouped))
	}
	if len(grouped[CategoryGitHub]) != 1 || grouped[CategoryGitHub][0].ID() != "github" {
		t.Errorf("github category wrong: %v", grouped[CategoryGitHub])
	}
}

func TestStdioConnect_NonexistentCommandFails(t *testing.T) {
	t.Parallel()

	c := NewStdio(LaunchSpec{
		ID:      "bogus",
		Command: "/nonexistent/definitely-not-a-binary",
	})
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error for nonexistent command")
	}
	if c.State() != StateFailed {
		t.Errorf("expected StateFailed, got %s", c.State())
	}
}

func TestStdioClose_Idempotent(t *testing.T) {
	t.Parallel()

	c := NewStdio(LaunchSpec{ID: "x", Command: "true"})
	if err := c.Close(); err != nil {
		t.Errorf("close on never-connected capability returned error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("repeated close returned error: %v", err)
	}
}
