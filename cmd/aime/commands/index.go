package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/byoung/ai-me/internal/embedder"
	"github.com/byoung/ai-me/internal/ingestion"
	"github.com/byoung/ai-me/internal/logging"
)

// NewIndexCmd constructs the `aime index` command, which runs the knowledge
// base ingestion pipeline without starting the server.
func NewIndexCmd() *cobra.Command {
	var root string
	var globs []string
	var repos []string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Ingest the knowledge base into the vector store",
		Long: `Load the persona's knowledge base and build a fresh vector index.

Sources are local markdown files (AIME_DOC_ROOT + AIME_DOC_GLOBS) and the
GitHub repositories listed in AIME_GITHUB_REPOS (owner/name form, comma
separated). The existing collection is dropped and rebuilt: the new index
atomically replaces the old one.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: aime-knowledge)
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai (default: ollama)

Examples:
  aime index
  aime index --root ./data --glob "*.md" --glob "notes/*.md"
  aime index --repo byoung/ai-me --repo byoung/resume`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("index: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("index: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", embedder.BackendFromEnv()))

			vectorStore, err := buildVectorStore(ctx)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer vectorStore.Close()

			cfg := ingestionConfigFromEnv()
			if cmd.Flags().Changed("root") {
				cfg.DocRoot = root
			}
			if cmd.Flags().Changed("glob") {
				cfg.Globs = globs
			}
			if cmd.Flags().Changed("repo") {
				cfg.Repos = repos
			}

			pipeline, err := ingestion.NewPipeline(emb, vectorStore, cfg)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			log.Info("starting ingestion",
				slog.String("root", cfg.DocRoot),
				slog.Int("globs", len(cfg.Globs)),
				slog.Int("repos", len(cfg.Repos)))

			chunks, err := pipeline.Run(ctx)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			log.Info("ingestion complete", slog.Int("chunks", chunks))
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Directory local glob patterns are resolved against (overrides AIME_DOC_ROOT)")
	cmd.Flags().StringArrayVar(&globs, "glob", nil, "Local glob pattern to load (repeatable, overrides AIME_DOC_GLOBS)")
	cmd.Flags().StringArrayVar(&repos, "repo", nil, "GitHub repository in owner/name form (repeatable, overrides AIME_GITHUB_REPOS)")

	return cmd
}
