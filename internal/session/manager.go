// Package session manages the per-visitor chat runtimes: one agent, one set
// of connected capability providers, and one conversation thread per session
// ID. Sessions are created lazily on first use and torn down explicitly.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/byoung/ai-me/internal/capability"
	"github.com/byoung/ai-me/internal/logging"
	"github.com/byoung/ai-me/internal/store"
)

// Fixed user-facing failure messages. Internal error detail never reaches a
// visitor; it goes to the logs instead.
const (
	// RetryMessage is returned when the model provider rejects the turn for
	// rate limiting.
	RetryMessage = "I'm getting a lot of questions at the moment. Give me a minute and ask again."

	// ApologyMessage is returned for every other turn failure.
	ApologyMessage = "Sorry, something went wrong on my end while answering that. Please try again."
)

// Runner serves one conversational turn. *agent.Agent is the production
// implementation; tests inject fakes.
type Runner interface {
	Query(ctx context.Context, sessionID, userMessage string) (string, error)
}

// Session is one visitor's live runtime.
type Session struct {
	// ID is the session identifier minted by the server.
	ID string

	// mu serializes turns: a session processes one message at a time, in
	// arrival order.
	mu sync.Mutex

	// runner answers turns.
	runner Runner

	// caps are the session's connected capability providers, closed on End.
	caps []capability.Capability
}

// BuildFunc constructs the runtime for a new session: connect capabilities,
// compose the agent, return both. Called at most once per session ID.
type BuildFunc func(ctx context.Context, sessionID string) (Runner, []capability.Capability, error)

// Manager owns all live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// group collapses concurrent creates for the same session ID into one
	// build.
	group singleflight.Group

	// build constructs new session runtimes.
	build BuildFunc

	// history is the optional conversation store, purged on End.
	history store.ConversationStore

	// Warmup, when non-empty, is a fixed introductory prompt run once right
	// after a session is built, to pre-establish context before the first
	// real turn. Warmup failures are logged and otherwise ignored. Set it
	// before the first Get; it is not safe to change afterwards.
	Warmup string
}

// NewManager constructs a Manager. history may be nil.
func NewManager(build BuildFunc, history store.ConversationStore) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		build:    build,
		history:  history,
	}
}

// Get returns the live session for id, creating it on first use. Concurrent
// calls for the same id share a single build; a failed build is not cached,
// so the next call retries.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := m.group.Do(id, func() (any, error) {
		m.mu.RLock()
		s, ok := m.sessions[id]
		m.mu.RUnlock()
		if ok {
			return s, nil
		}

		runner, caps, err := m.build(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("session %s: build: %w", id, err)
		}
		s = &Session{ID: id, runner: runner, caps: caps}

		if m.Warmup != "" {
			if _, err := runner.Query(ctx, id, m.Warmup); err != nil {
				logging.FromContext(ctx).Warn("session: warmup turn failed",
					slog.String("session_id", id),
					slog.Any("error", err))
			}
		}

		m.mu.Lock()
		m.sessions[id] = s
		m.mu.Unlock()

		logging.FromContext(ctx).Info("session created",
			slog.String("session_id", id),
			slog.Int("capabilities", len(caps)))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// RunTurn serves one visitor message. The returned reply is always safe to
// show: on failure it is one of the two fixed fallback messages, with the
// internal error logged in full and returned alongside so callers can count
// outcomes. Error detail never reaches the visitor.
func (m *Manager) RunTurn(ctx context.Context, id, message string) (string, error) {
	log := logging.FromContext(ctx)

	s, err := m.Get(ctx, id)
	if err != nil {
		log.Error("session: create failed",
			slog.String("session_id", id),
			slog.Any("error", err))
		return ApologyMessage, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reply, err := s.runner.Query(ctx, id, message)
	if err != nil {
		if isRateLimited(err) {
			log.Warn("session: turn rate limited",
				slog.String("session_id", id),
				slog.Any("error", err))
			return RetryMessage, err
		}
		log.Error("session: turn failed",
			slog.String("session_id", id),
			slog.String("error_type", fmt.Sprintf("%T", err)),
			slog.Any("error", err))
		return ApologyMessage, err
	}
	return reply, nil
}

// End tears down one session: capability providers are closed, the
// conversation thread and memory file are removed. Teardown is best-effort;
// the session is gone either way. Ending an unknown session is a no-op.
func (m *Manager) End(ctx context.Context, id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}

	log := logging.FromContext(ctx)

	// Wait for an in-flight turn to finish before pulling the capabilities
	// out from under it.
	s.mu.Lock()
	defer s.mu.Unlock()

	capability.CloseAll(ctx, s.caps)

	if m.history != nil {
		if err := m.history.Delete(ctx, id); err != nil {
			log.Warn("session: history purge failed",
				slog.String("session_id", id),
				slog.Any("error", err))
		}
	}
	if err := os.Remove(capability.MemoryFilePath(id)); err != nil && !os.IsNotExist(err) {
		log.Debug("session: memory file removal failed",
			slog.String("session_id", id),
			slog.Any("error", err))
	}

	log.Info("session ended", slog.String("session_id", id))
}

// CloseAll ends every live session. Called on server shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.End(ctx, id)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// isRateLimited reports whether the error looks like a provider rate limit.
// Providers differ in how they surface it, so this is a string match on the
// usual markers.
func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests")
}
