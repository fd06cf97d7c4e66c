// Package config provides YAML-based configuration for ai-me.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. AIME_CONFIG environment variable
//  3. ~/.aime/config.yaml
//  4. ./aime.yaml
//
// If no file is found the system runs entirely from env vars.
// Secrets (GITHUB_PERSONAL_ACCESS_TOKEN, GROQ_API_KEY, OPENAI_API_KEY, ...)
// are only ever read from the environment, never from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Persona configures who the bot speaks as.
	Persona PersonaConfig `yaml:"persona"`

	// Model configures the LLM chat model provider.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider for RAG.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Docs configures local document ingestion.
	Docs DocsConfig `yaml:"docs"`

	// GitHub configures remote repository ingestion.
	GitHub GitHubConfig `yaml:"github"`

	// Chunking configures the document splitter.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`
}

// PersonaConfig holds the identity the bot answers as.
type PersonaConfig struct {
	// FullName is the full name of the person being personified.
	FullName string `yaml:"full_name"`
	// AgentName is the internal name of the primary agent.
	AgentName string `yaml:"agent_name"`
	// GitHubUser is the GitHub username used to scope source-code research.
	GitHubUser string `yaml:"github_user"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: groq, openai, ollama, gemini.
	Provider string `yaml:"provider"`
	// Name is the model identifier for the selected backend.
	Name string `yaml:"name"`
	// BaseURL overrides the backend's default API endpoint.
	BaseURL string `yaml:"base_url"`
	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`
}

// EmbeddingConfig holds embedding provider settings for RAG.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// DocsConfig holds local document ingestion settings.
type DocsConfig struct {
	// Root is the directory local glob patterns are resolved against.
	Root string `yaml:"root"`
	// Globs is the list of glob patterns to load (comma-separated in env form).
	Globs string `yaml:"globs"`
}

// GitHubConfig holds remote repository ingestion settings.
type GitHubConfig struct {
	// Repos is the list of owner/name repositories to ingest
	// (comma-separated in env form).
	Repos string `yaml:"repos"`
}

// ChunkingConfig holds document splitter settings.
type ChunkingConfig struct {
	// Size is the maximum chunk size in characters.
	Size int `yaml:"size"`
	// Overlap is the character overlap between adjacent size-split chunks.
	Overlap int `yaml:"overlap"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// RateLimit is requests/second allowed per IP on chat endpoints.
	RateLimit float32 `yaml:"rate_limit"`
	// RateBurst is the maximum instantaneous burst per IP.
	RateBurst int `yaml:"rate_burst"`
}

// envMapping binds each YAML field to the env var the rest of the system reads.
// Env vars that are already set always win over YAML values.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"AIME_BOT_FULL_NAME", func(c *Config) string { return c.Persona.FullName }},
	{"AIME_AGENT_NAME", func(c *Config) string { return c.Persona.AgentName }},
	{"AIME_GITHUB_USER", func(c *Config) string { return c.Persona.GitHubUser }},
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_NAME", func(c *Config) string { return c.Model.Name }},
	{"MODEL_BASE_URL", func(c *Config) string { return c.Model.BaseURL }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"AIME_DOC_ROOT", func(c *Config) string { return c.Docs.Root }},
	{"AIME_DOC_GLOBS", func(c *Config) string { return c.Docs.Globs }},
	{"AIME_GITHUB_REPOS", func(c *Config) string { return c.GitHub.Repos }},
	{"AIME_CHUNK_SIZE", func(c *Config) string { return intStr(c.Chunking.Size) }},
	{"AIME_CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Chunking.Overlap) }},
	{"AIME_HOST", func(c *Config) string { return c.Server.Host }},
	{"AIME_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"AIME_RATE_LIMIT", func(c *Config) string { return float32Str(c.Server.RateLimit) }},
	{"AIME_RATE_BURST", func(c *Config) string { return intStr(c.Server.RateBurst) }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("AIME_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".aime", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("aime.yaml"); err == nil {
		return "aime.yaml"
	}

	return ""
}

// SplitList parses a comma-separated env value into a trimmed string slice,
// dropping empty entries. Used for AIME_DOC_GLOBS and AIME_GITHUB_REPOS.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
