package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byoung/ai-me/internal/logging"
	"github.com/byoung/ai-me/internal/rag"
)

// embedBatchSize bounds the number of chunk texts sent to the embedder per
// call so very large knowledge bases do not produce oversized requests.
const embedBatchSize = 64

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// DocRoot is the directory local glob patterns are resolved against.
	DocRoot string

	// Globs is the list of local glob patterns to load.
	Globs []string

	// Repos is the list of owner/name GitHub repositories to ingest.
	Repos []string

	// Chunking configures the document splitter.
	Chunking ChunkConfig

	// GitHubToken is used for default-branch lookups. Optional.
	GitHubToken string

	// ScratchDir is where repo working copies are cloned. Optional.
	ScratchDir string
}

// Pipeline orchestrates the load → rewrite → chunk → embed → upsert flow
// that turns the configured sources into a fresh, queryable vector index.
type Pipeline struct {
	// embedder converts chunk texts into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// load gathers all raw documents. Defaults to the local + GitHub
	// loaders; tests override it to avoid the filesystem and network.
	load func(ctx context.Context) []rag.Document
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	p := &Pipeline{embedder: embedder, store: store, cfg: cfg}
	p.load = p.loadAll
	return p, nil
}

// loadAll gathers documents from the local docs root and all configured
// GitHub repositories. Source failures are warned about and skipped inside
// the loaders — partial results are expected and fine.
func (p *Pipeline) loadAll(ctx context.Context) []rag.Document {
	docs := LoadLocal(ctx, p.cfg.DocRoot, p.cfg.Globs)
	if len(p.cfg.Repos) > 0 {
		gl := NewGitHubLoader(p.cfg.ScratchDir, p.cfg.GitHubToken)
		docs = append(docs, gl.Load(ctx, p.cfg.Repos)...)
	}
	return docs
}

// Run executes the full pipeline and returns the number of chunks indexed.
// An empty chunk list is a configuration error, not a valid empty index:
// a silently empty collection would answer every question with "I don't
// know" and hide the misconfiguration from the operator.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	log := logging.FromContext(ctx)

	docs := p.load(ctx)
	for i := range docs {
		docs[i] = RewriteLinks(docs[i])
	}

	chunks := Chunk(docs, &p.cfg.Chunking)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("ingestion: no chunks produced — nothing to index. " +
			"Check docs.root / AIME_DOC_ROOT, docs.globs / AIME_DOC_GLOBS, and " +
			"github.repos / AIME_GITHUB_REPOS: at least one source must yield documents")
	}
	log.Info("ingestion: chunked documents",
		slog.Int("documents", len(docs)),
		slog.Int("chunks", len(chunks)))

	// Fresh build: drop any prior collection of the same name, then
	// recreate it so this run's chunks are the only authoritative index.
	if err := p.store.Reset(ctx); err != nil {
		return 0, fmt.Errorf("ingestion: resetting collection: %w", err)
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		embeddings, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("ingestion: embedding batch %d-%d: %w", start, end, err)
		}
		if len(embeddings) != len(batch) {
			return 0, fmt.Errorf("ingestion: embedder returned %d vectors for %d texts", len(embeddings), len(batch))
		}

		if err := p.store.Upsert(ctx, batch, embeddings); err != nil {
			return 0, fmt.Errorf("ingestion: upsert batch %d-%d: %w", start, end, err)
		}
	}

	log.Info("ingestion: index built", slog.Int("chunks", len(chunks)))
	return len(chunks), nil
}
