package provider

import (
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing model name",
			cfg:     Config{Backend: BackendGroq},
			wantErr: "model name is required",
		},
		{
			name:    "groq without key",
			cfg:     Config{Backend: BackendGroq, Model: "llama-3.3-70b-versatile"},
			wantErr: "GROQ_API_KEY",
		},
		{
			name: "groq with env key",
			cfg:  Config{Backend: BackendGroq, Model: "llama-3.3-70b-versatile"},
			env:  map[string]string{"GROQ_API_KEY": "gsk_test"},
		},
		{
			name:    "openai without key",
			cfg:     Config{Backend: BackendOpenAI, Model: "gpt-4o"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name: "ollama needs no credential",
			cfg:  Config{Backend: BackendOllama, Model: "llama3"},
		},
		{
			name:    "gemini without key",
			cfg:     Config{Backend: BackendGemini, Model: "gemini-2.0-flash"},
			wantErr: "GOOGLE_API_KEY",
		},
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "bedrock", Model: "x"},
			wantErr: "unknown backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Isolate from credentials present in the host environment.
			for _, k := range []string{"GROQ_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigValidate_ExplicitKeyWinsOverEnv(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "from-env")
	cfg := Config{Backend: BackendGroq, Model: "m", APIKey: "explicit"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.APIKey != "explicit" {
		t.Errorf("explicit key overwritten: %q", cfg.APIKey)
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("MODEL_NAME", "llama-3.3-70b-versatile")
	t.Setenv("MODEL_MAX_TOKENS", "")
	t.Setenv("MODEL_TEMPERATURE", "")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendGroq {
		t.Errorf("default backend = %q, want groq", cfg.Backend)
	}
	if cfg.MaxTokens != 2048 {
		t.Errorf("default max tokens = %d, want 2048", cfg.MaxTokens)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("default temperature = %v, want 0.7", cfg.Temperature)
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "ollama")
	t.Setenv("MODEL_NAME", "llama3")
	t.Setenv("MODEL_BASE_URL", "http://ollama.internal:11434")
	t.Setenv("MODEL_MAX_TOKENS", "512")
	t.Setenv("MODEL_TEMPERATURE", "0.2")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendOllama || cfg.Model != "llama3" {
		t.Errorf("backend/model not read: %+v", cfg)
	}
	if cfg.BaseURL != "http://ollama.internal:11434" {
		t.Errorf("base url not read: %q", cfg.BaseURL)
	}
	if cfg.MaxTokens != 512 || cfg.Temperature != 0.2 {
		t.Errorf("tuning not read: %+v", cfg)
	}
}
