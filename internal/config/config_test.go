package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad_YAMLAppliedAsEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aime.yaml")
	yaml := `
persona:
  full_name: Ben Young
  agent_name: ai-me
qdrant:
  host: qdrant.internal
  port: 6334
docs:
  root: ./docs
  globs: "**/*.md"
github:
  repos: "Neosofia/corporate,byoung/me"
chunking:
  size: 1200
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	// Ensure a clean env for the keys this test asserts on.
	for _, k := range []string{"AIME_BOT_FULL_NAME", "QDRANT_HOST", "AIME_GITHUB_REPOS", "AIME_CHUNK_SIZE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	loaded, err := Load(path, slog.Default())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded != path {
		t.Errorf("expected loaded path %q, got %q", path, loaded)
	}

	if got := os.Getenv("AIME_BOT_FULL_NAME"); got != "Ben Young" {
		t.Errorf("AIME_BOT_FULL_NAME = %q, want %q", got, "Ben Young")
	}
	if got := os.Getenv("QDRANT_HOST"); got != "qdrant.internal" {
		t.Errorf("QDRANT_HOST = %q, want %q", got, "qdrant.internal")
	}
	if got := os.Getenv("AIME_CHUNK_SIZE"); got != "1200" {
		t.Errorf("AIME_CHUNK_SIZE = %q, want %q", got, "1200")
	}
}

func TestLoad_EnvAlwaysWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aime.yaml")
	if err := os.WriteFile(path, []byte("persona:\n  full_name: From YAML\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AIME_BOT_FULL_NAME", "From Env")

	if _, err := Load(path, slog.Default()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := os.Getenv("AIME_BOT_FULL_NAME"); got != "From Env" {
		t.Errorf("env var was overwritten by YAML: got %q", got)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), slog.Default())
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
	if loaded != "" {
		t.Errorf("expected empty path for missing file, got %q", loaded)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aime.yaml")
	if err := os.WriteFile(path, []byte("persona: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, slog.Default()); err == nil {
		t.Error("expected parse error for invalid YAML, got nil")
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "single", in: "byoung/me", want: []string{"byoung/me"}},
		{name: "multiple with spaces", in: "Neosofia/corporate, byoung/me ,byoung/ai-me", want: []string{"Neosofia/corporate", "byoung/me", "byoung/ai-me"}},
		{name: "trailing comma", in: "a/b,", want: []string{"a/b"}},
		{name: "only commas", in: ",,", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitList(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitList(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
