package capability

import (
	"fmt"
	"os"
	"path/filepath"
)

// githubMCPImage is the official GitHub MCP server container image.
const githubMCPImage = "ghcr.io/github/github-mcp-server"

// referenceTimezone is the fixed timezone the clock capability reports in.
// UTC keeps answers unambiguous regardless of where the process runs.
const referenceTimezone = "Etc/UTC"

// GitHubSpec returns the launch spec for the GitHub MCP server, giving the
// agent read-only code search, file retrieval, and commit listing. The
// personal access token travels via the subprocess environment — passing it
// in Args would expose it in the host process list.
func GitHubSpec(token string) LaunchSpec {
	return LaunchSpec{
		ID:       "github",
		Category: CategoryGitHub,
		Command:  "docker",
		Args: []string{
			"run", "-i", "--rm",
			"-e", "GITHUB_PERSONAL_ACCESS_TOKEN",
			githubMCPImage,
		},
		Env: map[string]string{
			"GITHUB_PERSONAL_ACCESS_TOKEN": token,
		},
		Description: "Read-only GitHub access: code search, file contents, and commit history.",
	}
}

// TimeSpec returns the launch spec for the time MCP server, which reports
// the current date and time in the fixed reference timezone.
func TimeSpec() LaunchSpec {
	return LaunchSpec{
		ID:          "time",
		Category:    CategoryTime,
		Command:     "uvx",
		Args:        []string{"mcp-server-time", "--local-timezone=" + referenceTimezone},
		Description: "Current date and time in " + referenceTimezone + ".",
	}
}

// MemorySpec returns the launch spec for a session-scoped memory MCP server.
// Each session gets its own backing file, named deterministically from the
// session ID, so facts stored in one conversation never leak into another.
// The file lives under scratch storage and is not expected to survive a
// process restart.
func MemorySpec(sessionID string) LaunchSpec {
	path := MemoryFilePath(sessionID)
	// Best-effort: the memory server will fail to connect (and be excluded)
	// if the scratch directory genuinely cannot be created.
	_ = os.MkdirAll(filepath.Dir(path), 0o700)
	return LaunchSpec{
		ID:       "memory",
		Category: CategoryMemory,
		Command:  "npx",
		Args:     []string{"-y", "@modelcontextprotocol/server-memory"},
		Env: map[string]string{
			"MEMORY_FILE_PATH": path,
		},
		Description: "Session-scoped memory graph for facts learned during this conversation.",
	}
}

// MemoryFilePath returns the deterministic scratch path of a session's
// memory backing file.
func MemoryFilePath(sessionID string) string {
	return filepath.Join(os.TempDir(), "aime-memory", fmt.Sprintf("memory-%s.json", sessionID))
}

// SessionSpecs returns the launch specs for one session, in presentation
// order. The GitHub spec is included only when a token is available —
// launching the server without credentials just burns the connect timeout.
func SessionSpecs(sessionID, githubToken string) []LaunchSpec {
	specs := make([]LaunchSpec, 0, 3)
	if githubToken != "" {
		specs = append(specs, GitHubSpec(githubToken))
	}
	specs = append(specs, TimeSpec(), MemorySpec(sessionID))
	return specs
}
