package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/byoung/ai-me/internal/logging"
	"github.com/byoung/ai-me/internal/rag"
)

// boilerplateFiles are common repository housekeeping filenames excluded from
// ingestion — they describe the repo, not the person, and pollute retrieval.
// Matching is case-insensitive on the basename without extension.
var boilerplateFiles = map[string]bool{
	"readme":          true,
	"contributing":    true,
	"code_of_conduct": true,
	"security":        true,
}

// GitHubLoader loads markdown documents from GitHub repositories by cloning
// each repo's default branch into an ephemeral scratch directory.
type GitHubLoader struct {
	// ScratchDir is where working copies are cloned. It is purged before
	// each run to avoid stale-content bugs. Defaults to <tmp>/aime-repos.
	ScratchDir string

	// Token is the GitHub personal access token used for the default-branch
	// lookup. Cloning public repos works without it; without a token the
	// default branch falls back to "main".
	Token string

	// branches resolves a repo's default branch. Overridable in tests.
	branches branchResolver

	// clone clones one repository. Overridable in tests.
	clone cloneFunc
}

// branchResolver resolves the default branch of owner/name.
type branchResolver interface {
	DefaultBranch(ctx context.Context, owner, name string) (string, error)
}

// cloneFunc obtains a working copy of repo's branch at dest.
type cloneFunc func(ctx context.Context, repo, branch, dest string) error

// NewGitHubLoader constructs a GitHubLoader with the real GitHub API branch
// resolver and git-based cloner.
func NewGitHubLoader(scratchDir, token string) *GitHubLoader {
	if scratchDir == "" {
		scratchDir = filepath.Join(os.TempDir(), "aime-repos")
	}
	return &GitHubLoader{
		ScratchDir: scratchDir,
		Token:      token,
		branches:   newAPIBranchResolver(token),
		clone:      gitClone,
	}
}

// Load clones each owner/name repository and returns the markdown documents
// found in it, tagged with the owning repo and its default branch. A repo
// that fails to clone or enumerate is skipped with a warning — a single bad
// repo never aborts the batch. The scratch directory is purged first.
func (l *GitHubLoader) Load(ctx context.Context, repos []string) []rag.Document {
	log := logging.FromContext(ctx)

	if err := os.RemoveAll(l.ScratchDir); err != nil {
		log.Warn("ingestion: failed to purge scratch directory",
			slog.String("dir", l.ScratchDir),
			slog.Any("error", err))
	}

	var docs []rag.Document
	for _, repo := range repos {
		owner, name, ok := splitRepoID(repo)
		if !ok {
			log.Warn("ingestion: malformed repo identifier, expected owner/name, skipping",
				slog.String("repo", repo))
			continue
		}

		branch, err := l.branches.DefaultBranch(ctx, owner, name)
		if err != nil {
			log.Warn("ingestion: default branch lookup failed, assuming main",
				slog.String("repo", repo),
				slog.Any("error", err))
			branch = "main"
		}

		dest := filepath.Join(l.ScratchDir, owner, name)
		if err := l.clone(ctx, repo, branch, dest); err != nil {
			log.Warn("ingestion: clone failed, skipping repo",
				slog.String("repo", repo),
				slog.Any("error", err))
			continue
		}

		repoDocs, err := loadRepoMarkdown(dest, repo, branch)
		if err != nil {
			log.Warn("ingestion: repo enumeration failed, skipping repo",
				slog.String("repo", repo),
				slog.Any("error", err))
			continue
		}

		log.Info("ingestion: repo loaded",
			slog.String("repo", repo),
			slog.String("branch", branch),
			slog.Int("documents", len(repoDocs)))
		docs = append(docs, repoDocs...)
	}

	log.Info("ingestion: github documents loaded", slog.Int("total", len(docs)))
	return docs
}

// loadRepoMarkdown walks a cloned working copy and loads every markdown file
// that is not repository boilerplate.
func loadRepoMarkdown(dir, repo, branch string) ([]rag.Document, error) {
	var docs []rag.Document
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), ".md") {
			return nil
		}
		base := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		if boilerplateFiles[strings.ToLower(base)] {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		docs = append(docs, rag.Document{
			Content: string(data),
			Source:  rel,
			RepoID:  repo,
			Metadata: map[string]string{
				rag.MetaRepo:   repo,
				rag.MetaPath:   rel,
				rag.MetaBranch: branch,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// splitRepoID splits "owner/name" into its parts.
func splitRepoID(repo string) (owner, name string, ok bool) {
	owner, name, found := strings.Cut(repo, "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}

// gitClone performs a shallow single-branch clone using the git binary.
// The token is deliberately not embedded in the URL — only public content
// is cloned, and credentials in argv would leak via the process list.
func gitClone(ctx context.Context, repo, branch, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating clone parent dir: %w", err)
	}
	url := "https://github.com/" + repo
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--branch", branch, "--single-branch", url, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone %s: %w: %s", repo, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// apiBranchResolver resolves default branches via the GitHub REST API.
type apiBranchResolver struct {
	// client is the go-github client, authenticated when a token is set.
	client *gh.Client
}

// newAPIBranchResolver constructs an apiBranchResolver. With an empty token
// the client is unauthenticated, which is fine for public repos but subject
// to stricter rate limits.
func newAPIBranchResolver(token string) *apiBranchResolver {
	client := gh.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &apiBranchResolver{client: client}
}

// DefaultBranch returns the repository's default branch name.
func (r *apiBranchResolver) DefaultBranch(ctx context.Context, owner, name string) (string, error) {
	repo, _, err := r.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return "", fmt.Errorf("github api: get %s/%s: %w", owner, name, err)
	}
	if repo.GetDefaultBranch() == "" {
		return "", fmt.Errorf("github api: %s/%s has no default branch", owner, name)
	}
	return repo.GetDefaultBranch(), nil
}
