package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/byoung/ai-me/internal/agent"
	"github.com/byoung/ai-me/internal/capability"
	"github.com/byoung/ai-me/internal/config"
	"github.com/byoung/ai-me/internal/embedder"
	"github.com/byoung/ai-me/internal/ingestion"
	"github.com/byoung/ai-me/internal/rag"
	"github.com/byoung/ai-me/internal/session"
	"github.com/byoung/ai-me/internal/store"
)

// defaultCollection is the Qdrant collection name used when QDRANT_COLLECTION
// is unset.
const defaultCollection = "aime-knowledge"

// personaFromEnv resolves the persona identity from the environment
// (projected from YAML by the config layer). The full name is required —
// without it the agent has nobody to be.
func personaFromEnv() (agent.Persona, error) {
	p := agent.Persona{
		FullName:   os.Getenv("AIME_BOT_FULL_NAME"),
		AgentName:  getEnvOrDefault("AIME_AGENT_NAME", "ai-me"),
		GitHubUser: os.Getenv("AIME_GITHUB_USER"),
	}
	if p.FullName == "" {
		return p, fmt.Errorf("persona full name is required (persona.full_name / AIME_BOT_FULL_NAME)")
	}
	return p, nil
}

// buildVectorStore connects to Qdrant with the collection and vector size
// resolved from the environment.
func buildVectorStore(ctx context.Context) (*rag.QdrantStore, error) {
	vectorSize := uint64(embedder.DefaultDimensions(embedder.BackendFromEnv())) //nolint:gosec // dimensions are bounded

	qdrantStore, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", defaultCollection),
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to Qdrant: %w", err)
	}
	return qdrantStore, nil
}

// ingestionConfigFromEnv assembles the ingestion pipeline configuration from
// the environment (projected from YAML by the config layer).
func ingestionConfigFromEnv() *ingestion.Config {
	return &ingestion.Config{
		DocRoot: getEnvOrDefault("AIME_DOC_ROOT", "data"),
		Globs:   config.SplitList(getEnvOrDefault("AIME_DOC_GLOBS", "*.md")),
		Repos:   config.SplitList(os.Getenv("AIME_GITHUB_REPOS")),
		Chunking: ingestion.ChunkConfig{
			Size:    getEnvInt("AIME_CHUNK_SIZE", ingestion.DefaultChunkSize),
			Overlap: getEnvInt("AIME_CHUNK_OVERLAP", ingestion.DefaultChunkOverlap),
		},
		GitHubToken: os.Getenv("GITHUB_PERSONAL_ACCESS_TOKEN"),
	}
}

// newSessionBuilder returns the session.BuildFunc used by the session
// manager: for each new session it connects that session's capability
// providers (GitHub, time, and a memory graph keyed by the session ID) and
// composes the persona agent over them. A session with zero connected
// capabilities still gets a working retrieval-only agent.
func newSessionBuilder(chatModel model.ToolCallingChatModel, persona agent.Persona, retriever rag.Retriever, history store.ConversationStore) session.BuildFunc {
	registry := capability.NewRegistry()
	githubToken := os.Getenv("GITHUB_PERSONAL_ACCESS_TOKEN")

	return func(ctx context.Context, sessionID string) (session.Runner, []capability.Capability, error) {
		caps := registry.ConnectAll(ctx, capability.SessionSpecs(sessionID, githubToken))

		personaAgent, err := agent.New(ctx, &agent.Config{
			ChatModel:    chatModel,
			Persona:      persona,
			Retriever:    retriever,
			Capabilities: caps,
			History:      history,
		})
		if err != nil {
			capability.CloseAll(ctx, caps)
			return nil, nil, err
		}
		return personaAgent, caps, nil
	}
}

// sessionBuilderWithoutCapabilities returns a session.BuildFunc that composes
// the agent with no capability providers at all — retrieval-only mode, used
// by `aime ask --no-capabilities`.
func sessionBuilderWithoutCapabilities(chatModel model.ToolCallingChatModel, persona agent.Persona, retriever rag.Retriever) session.BuildFunc {
	return func(ctx context.Context, _ string) (session.Runner, []capability.Capability, error) {
		personaAgent, err := agent.New(ctx, &agent.Config{
			ChatModel: chatModel,
			Persona:   persona,
			Retriever: retriever,
		})
		if err != nil {
			return nil, nil, err
		}
		return personaAgent, nil, nil
	}
}

// openHistoryStore opens the SQLite conversation history store.
// AIME_HISTORY_DB overrides the default path (~/.aime/history.db); the value
// "disabled" turns history off. Returns nil when history is unavailable —
// the agent then runs each turn stateless.
func openHistoryStore() (*store.SQLiteStore, string, error) {
	dbPath := os.Getenv("AIME_HISTORY_DB")
	if dbPath == "disabled" {
		return nil, "", nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolving default history DB path: %w", err)
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		return nil, dbPath, fmt.Errorf("opening history store at %s: %w", dbPath, err)
	}
	return hs, dbPath, nil
}

// noStoreIfNil converts a possibly-nil *store.SQLiteStore into the
// ConversationStore interface, avoiding the typed-nil trap: a nil pointer
// wrapped in a non-nil interface would defeat the agent's `history != nil`
// checks.
func noStoreIfNil(s *store.SQLiteStore) store.ConversationStore {
	if s == nil {
		return nil
	}
	return s
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float64 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
