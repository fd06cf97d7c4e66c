package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/byoung/ai-me/internal/capability"
	"github.com/byoung/ai-me/internal/store"
)

// fakeRunner answers turns from a fixed reply or error.
type fakeRunner struct {
	reply string
	err   error
	calls atomic.Int64
}

func (f *fakeRunner) Query(_ context.Context, _, _ string) (string, error) {
	f.calls.Add(1)
	return f.reply, f.err
}

// closeRecorder is a connected capability that counts Close calls.
type closeRecorder struct {
	id     string
	closed atomic.Int64
}

func newCloseRecorder(id string) *closeRecorder { return &closeRecorder{id: id} }

func (c *closeRecorder) ID() string                    { return c.id }
func (c *closeRecorder) Category() capability.Category { return capability.CategoryMemory }
func (c *closeRecorder) Description() string           { return "" }
func (c *closeRecorder) State() capability.State       { return capability.StateConnected }
func (c *closeRecorder) Connect(context.Context) error { return nil }
func (c *closeRecorder) Close() error {
	c.closed.Add(1)
	return nil
}
func (c *closeRecorder) Tools(context.Context) ([]*mcp.Tool, error) { return nil, nil }
func (c *closeRecorder) Call(context.Context, string, map[string]any) (string, error) {
	return "", nil
}

func TestManager_RunTurn(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{reply: "hello there"}
	m := NewManager(func(_ context.Context, _ string) (Runner, []capability.Capability, error) {
		return r, nil, nil
	}, nil)

	got, _ := m.RunTurn(context.Background(), "s1", "hi")
	if got != "hello there" {
		t.Errorf("RunTurn = %q", got)
	}
}

func TestManager_TurnFailureReturnsApology(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{err: errors.New("qdrant: connection refused at 10.0.0.3:6334")}
	m := NewManager(func(_ context.Context, _ string) (Runner, []capability.Capability, error) {
		return r, nil, nil
	}, nil)

	got, _ := m.RunTurn(context.Background(), "s1", "hi")
	if got != ApologyMessage {
		t.Errorf("RunTurn = %q, want fixed apology", got)
	}
}

func TestManager_RateLimitReturnsRetryMessage(t *testing.T) {
	t.Parallel()

	tests := []string{
		"HTTP 429 Too Many Requests",
		"groq: rate limit exceeded",
		"rate_limit_exceeded: tokens per minute",
	}
	for _, msg := range tests {
		r := &fakeRunner{err: errors.New(msg)}
		m := NewManager(func(_ context.Context, _ string) (Runner, []capability.Capability, error) {
			return r, nil, nil
		}, nil)
		if got, _ := m.RunTurn(context.Background(), "s1", "hi"); got != RetryMessage {
			t.Errorf("error %q: RunTurn = %q, want retry message", msg, got)
		}
	}
}

func TestManager_BuildFailureReturnsApologyAndRetries(t *testing.T) {
	t.Parallel()

	var builds atomic.Int64
	m := NewManager(func(_ context.Context, _ string) (Runner, []capability.Capability, error) {
		if builds.Add(1) == 1 {
			return nil, nil, errors.New("model provider unreachable")
		}
		return &fakeRunner{reply: "recovered"}, nil, nil
	}, nil)

	if got, _ := m.RunTurn(context.Background(), "s1", "hi"); got != ApologyMessage {
		t.Fatalf("first turn = %q, want apology", got)
	}
	// A failed build must not be cached.
	if got, _ := m.RunTurn(context.Background(), "s1", "hi"); got != "recovered" {
		t.Fatalf("second turn = %q, want recovered reply", got)
	}
}

// firstCallFails errors on its first Query and succeeds afterwards, to
// simulate a warmup turn that fails before the session works normally.
type firstCallFails struct {
	calls atomic.Int64
}

func (f *firstCallFails) Query(_ context.Context, _, _ string) (string, error) {
	if f.calls.Add(1) == 1 {
		return "", errors.New("model cold start timeout")
	}
	return "warm now", nil
}

func TestManager_WarmupRunsOncePerSession(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{reply: "hi"}
	m := NewManager(func(_ context.Context, _ string) (Runner, []capability.Capability, error) {
		return r, nil, nil
	}, nil)
	m.Warmup = "Introduce yourself briefly."

	if got, _ := m.RunTurn(context.Background(), "s1", "hello"); got != "hi" {
		t.Fatalf("RunTurn = %q", got)
	}
	// One warmup call plus one real turn.
	if r.calls.Load() != 2 {
		t.Errorf("expected 2 runner calls (warmup + turn), got %d", r.calls.Load())
	}
	// Second turn on the same session must not re-run the warmup.
	m.RunTurn(context.Background(), "s1", "again")
	if r.calls.Load() != 3 {
		t.Errorf("expected 3 runner calls after second turn, got %d", r.calls.Load())
	}
}

func TestManager_WarmupFailureDoesNotAbortCreation(t *testing.T) {
	t.Parallel()

	r := &firstCallFails{}
	m := NewManager(func(_ context.Context, _ string) (Runner, []capability.Capability, error) {
		return r, nil, nil
	}, nil)
	m.Warmup = "Introduce yourself briefly."

	got, err := m.RunTurn(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("RunTurn after failed warmup: %v", err)
	}
	if got != "warm now" {
		t.Errorf("RunTurn = %q, want real reply despite warmup failure", got)
	}
	if m.Len() != 1 {
		t.Errorf("expected session retained after warmup failure, Len = %d", m.Len())
	}
}

func TestManager_ConcurrentGetBuildsOnce(t *testing.T) {
	t.Parallel()

	var builds atomic.Int64
	m := NewManager(func(_ context.Context, _ string) (Runner, []capability.Capability, error) {
		builds.Add(1)
		return &fakeRunner{reply: "ok"}, nil, nil
	}, nil)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Get(context.Background(), "shared"); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := builds.Load(); n != 1 {
		t.Errorf("expected exactly 1 build for concurrent gets, got %d", n)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 live session, got %d", m.Len())
	}
}

func TestManager_SessionIsolation(t *testing.T) {
	t.Parallel()

	runners := map[string]*fakeRunner{}
	m := NewManager(func(_ context.Context, id string) (Runner, []capability.Capability, error) {
		r := &fakeRunner{reply: "reply for " + id}
		runners[id] = r
		return r, nil, nil
	}, nil)

	ctx := context.Background()
	if got, _ := m.RunTurn(ctx, "alice", "q"); got != "reply for alice" {
		t.Errorf("alice turn = %q", got)
	}
	if got, _ := m.RunTurn(ctx, "bob", "q"); got != "reply for bob" {
		t.Errorf("bob turn = %q", got)
	}
	if runners["alice"].calls.Load() != 1 || runners["bob"].calls.Load() != 1 {
		t.Error("turns routed to the wrong session runner")
	}

	// Ending one session must leave the other intact.
	m.End(ctx, "alice")
	if m.Len() != 1 {
		t.Fatalf("expected 1 session after End, got %d", m.Len())
	}
	if got, _ := m.RunTurn(ctx, "bob", "again"); got != "reply for bob" {
		t.Errorf("bob turn after alice End = %q", got)
	}
}

func TestManager_EndPurgesHistoryAndCloses(t *testing.T) {
	t.Parallel()

	history, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer history.Close()

	ctx := context.Background()
	if err := history.Append(ctx, "gone", store.RoleUser, "secret"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := history.Append(ctx, "kept", store.RoleUser, "other"); err != nil {
		t.Fatalf("append: %v", err)
	}

	closer := newCloseRecorder("memory")
	m := NewManager(func(_ context.Context, _ string) (Runner, []capability.Capability, error) {
		return &fakeRunner{reply: "ok"}, []capability.Capability{closer}, nil
	}, history)

	if _, err := m.Get(ctx, "gone"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	m.End(ctx, "gone")

	if n := closer.closed.Load(); n != 1 {
		t.Errorf("capability closed %d times, want 1", n)
	}
	msgs, err := history.Recent(ctx, "gone", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 0 {
		t.Error("ended session history not purged")
	}
	other, err := history.Recent(ctx, "kept", 10)
	if err != nil {
		t.Fatalf("recent kept: %v", err)
	}
	if len(other) != 1 {
		t.Error("unrelated session history purged")
	}

	// Ending again is a no-op.
	m.End(ctx, "gone")
	if n := closer.closed.Load(); n != 1 {
		t.Errorf("repeated End closed capability again: %d", n)
	}
}

func TestManager_CloseAll(t *testing.T) {
	t.Parallel()

	m := NewManager(func(_ context.Context, id string) (Runner, []capability.Capability, error) {
		return &fakeRunner{reply: id}, nil, nil
	}, nil)

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := m.Get(ctx, id); err != nil {
			t.Fatalf("Get %s: %v", id, err)
		}
	}
	m.CloseAll(ctx)
	if m.Len() != 0 {
		t.Errorf("expected 0 sessions after CloseAll, got %d", m.Len())
	}
}

func TestIsRateLimited(t *testing.T) {
	t.Parallel()

	if isRateLimited(fmt.Errorf("connection refused")) {
		t.Error("plain network error classified as rate limit")
	}
	if !isRateLimited(fmt.Errorf("server said: Too Many Requests")) {
		t.Error("too many requests not classified as rate limit")
	}
}
