package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"
)

// New constructs a ChatModel from an explicit Config, delegating to the
// appropriate backend constructor. The config is validated first.
func New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendGroq:
		return newGroq(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendGemini:
		return newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("provider: unknown backend %q (valid: groq, openai, ollama, gemini)", cfg.Backend)
	}
}

// NewFromEnv constructs a ChatModel from environment variables. These are
// normally projected from the YAML config at startup, with already-set env
// vars taking precedence.
//
//	MODEL_PROVIDER     = groq | openai | ollama | gemini (default: groq)
//	MODEL_NAME         = model identifier for the backend
//	MODEL_BASE_URL     = endpoint override (Ollama, OpenAI-compatible proxies)
//	MODEL_MAX_TOKENS   = per-response generation cap (default: 2048)
//	MODEL_TEMPERATURE  = response randomness (default: 0.7)
//
// Credentials come from the backend's native env var (GROQ_API_KEY,
// OPENAI_API_KEY, GOOGLE_API_KEY), never from YAML.
func NewFromEnv(ctx context.Context) (model.ToolCallingChatModel, error) {
	return New(ctx, ConfigFromEnv())
}

// ConfigFromEnv reads the provider env vars into a Config without
// constructing the model. Validate resolves the credential.
func ConfigFromEnv() *Config {
	return &Config{
		Backend:     Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendGroq))),
		Model:       os.Getenv("MODEL_NAME"),
		BaseURL:     os.Getenv("MODEL_BASE_URL"),
		MaxTokens:   getEnvInt("MODEL_MAX_TOKENS", 2048),
		Temperature: getEnvFloat32("MODEL_TEMPERATURE", 0.7),
	}
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

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
