// Package ingestion implements the knowledge-base ingestion pipeline.
// It loads markdown from a local docs directory and from cloned GitHub
// repositories, rewrites relative links to browsable URLs, splits the
// result into retrieval-sized chunks, embeds each chunk, and rebuilds
// the vector store collection.
package ingestion

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/byoung/ai-me/internal/logging"
	"github.com/byoung/ai-me/internal/rag"
)

// LoadLocal loads documents matching the given glob patterns under root.
// A missing root directory yields zero documents with a warning — it is not
// an error, because local docs are optional when GitHub repos are configured.
// A pattern that fails to resolve is skipped with a warning and loading
// continues with the remaining patterns.
func LoadLocal(ctx context.Context, root string, globs []string) []rag.Document {
	log := logging.FromContext(ctx)

	if _, err := os.Stat(root); err != nil {
		log.Warn("ingestion: local docs root not found, skipping local documents",
			slog.String("root", root))
		return nil
	}

	var docs []rag.Document
	for _, pattern := range globs {
		matches, err := resolveGlob(root, pattern)
		if err != nil {
			log.Warn("ingestion: glob pattern failed, skipping",
				slog.String("pattern", pattern),
				slog.Any("error", err))
			continue
		}

		loaded := 0
		for _, rel := range matches {
			full := filepath.Join(root, rel)
			data, err := os.ReadFile(full)
			if err != nil {
				log.Warn("ingestion: unreadable file, skipping",
					slog.String("path", full),
					slog.Any("error", err))
				continue
			}
			docs = append(docs, rag.Document{
				Content: string(data),
				Source:  full,
				Metadata: map[string]string{
					rag.MetaPath: rel,
				},
			})
			loaded++
		}
		log.Info("ingestion: local pattern loaded",
			slog.String("pattern", pattern),
			slog.Int("documents", loaded))
	}

	log.Info("ingestion: local documents loaded", slog.Int("total", len(docs)))
	return docs
}

// resolveGlob walks root and returns the relative paths of regular files
// matching pattern. Patterns support a leading "**/" to match at any depth
// (e.g. "**/*.md"); all other metacharacters follow [path.Match] rules.
// A malformed pattern returns an error so the caller can skip it.
func resolveGlob(root, pattern string) ([]string, error) {
	// Validate the pattern up front so bad globs fail before the walk.
	probe := pattern
	if tail, ok := strings.CutPrefix(pattern, "**/"); ok {
		probe = tail
	}
	if _, err := path.Match(probe, "probe"); err != nil {
		return nil, err
	}

	var matches []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: skip it, keep walking the rest.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matchPattern(pattern, rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// matchPattern reports whether the slash-separated relative path rel matches
// pattern. "**/" prefixed patterns match the tail pattern at any depth,
// including depth zero.
func matchPattern(pattern, rel string) bool {
	if tail, ok := strings.CutPrefix(pattern, "**/"); ok {
		if ok, _ := path.Match(tail, rel); ok {
			return true
		}
		ok, _ := path.Match(tail, path.Base(rel))
		return ok
	}
	ok, _ := path.Match(pattern, rel)
	return ok
}
