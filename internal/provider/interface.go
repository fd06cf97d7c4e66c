// Package provider selects and constructs the LLM backend the agent runs on.
// Supported backends: Groq, OpenAI, Ollama, Google Gemini.
package provider

import (
	"fmt"
	"os"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendGroq selects the Groq API (OpenAI-compatible).
	BackendGroq Backend = "groq"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// groqBaseURL is the OpenAI-compatible endpoint of the Groq API.
const groqBaseURL = "https://api.groq.com/openai/v1"

// Config holds provider-level configuration resolved from the application
// config and environment variables.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the model name to use (e.g. "llama-3.3-70b-versatile", "gpt-4o").
	Model string

	// BaseURL overrides the default API endpoint. Required for Ollama when the
	// instance is not on localhost; ignored for Gemini.
	BaseURL string

	// APIKey is the authentication credential for the selected provider.
	// Resolved from the backend's native env var when empty; Ollama needs none.
	APIKey string

	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Validate checks that the config carries everything the selected backend
// needs, so callers get a clear error at startup rather than on the first
// request. It resolves a missing APIKey from the backend's native env var.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("provider: model name is required (model.name / MODEL_NAME)")
	}
	switch c.Backend {
	case BackendGroq:
		c.resolveAPIKey("GROQ_API_KEY")
		if c.APIKey == "" {
			return fmt.Errorf("provider: GROQ_API_KEY is required for groq backend")
		}
	case BackendOpenAI:
		c.resolveAPIKey("OPENAI_API_KEY")
		if c.APIKey == "" {
			return fmt.Errorf("provider: OPENAI_API_KEY is required for openai backend")
		}
	case BackendGemini:
		c.resolveAPIKey("GOOGLE_API_KEY")
		if c.APIKey == "" {
			return fmt.Errorf("provider: GOOGLE_API_KEY is required for gemini backend")
		}
	case BackendOllama:
		// Local inference, no credential.
	default:
		return fmt.Errorf("provider: unknown backend %q (valid: groq, openai, ollama, gemini)", c.Backend)
	}
	return nil
}

func (c *Config) resolveAPIKey(envKey string) {
	if c.APIKey == "" {
		c.APIKey = os.Getenv(envKey)
	}
}
