package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/byoung/ai-me/internal/embedder"
	"github.com/byoung/ai-me/internal/ingestion"
	"github.com/byoung/ai-me/internal/logging"
	"github.com/byoung/ai-me/internal/provider"
	"github.com/byoung/ai-me/internal/rag"
	"github.com/byoung/ai-me/internal/server"
	"github.com/byoung/ai-me/internal/session"
	"github.com/byoung/ai-me/internal/tracing"
)

// warmupPrompt is the fixed introductory turn run once per new session when
// --warmup is set, so the first real answer does not pay the cold-start cost.
const warmupPrompt = "Please introduce yourself in one short sentence."

// NewServeCmd constructs the `aime serve` command, which indexes the
// knowledge base and starts the HTTP chat API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var skipIndex bool
	var warmup bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Index the knowledge base and start the ai-me HTTP server",
		Long: `Start the ai-me HTTP chat API on localhost.

At startup the knowledge base (local markdown under AIME_DOC_ROOT plus the
repositories in AIME_GITHUB_REPOS) is re-ingested into a fresh Qdrant
collection, so the index always reflects the current sources. Pass
--skip-index to reuse the existing collection instead.

Each chat session gets its own agent with its own capability providers:
GitHub research, the current time, and a private memory graph.

Examples:
  aime serve
  aime serve --port 9090
  aime serve --skip-index --warmup`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			persona, err := personaFromEnv()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}

			vectorStore, err := buildVectorStore(ctx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer vectorStore.Close()

			if skipIndex {
				log.Info("ingestion skipped, reusing existing collection")
			} else {
				pipeline, err := ingestion.NewPipeline(emb, vectorStore, ingestionConfigFromEnv())
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				chunks, err := pipeline.Run(ctx)
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				log.Info("knowledge base indexed", slog.Int("chunks", chunks))
			}

			retriever, err := rag.NewRetriever(emb, vectorStore, getEnvInt("AIME_RAG_TOP_K", rag.DefaultTopK))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			historyStore, dbPath, err := openHistoryStore()
			if err != nil {
				log.Warn("history: unavailable, running stateless", slog.Any("error", err))
			}
			if historyStore != nil {
				defer func() { _ = historyStore.Close() }()
				log.Info("history: store opened", slog.String("path", dbPath))
			}

			history := noStoreIfNil(historyStore)
			manager := session.NewManager(
				newSessionBuilder(chatModel, persona, retriever, history), history)
			if warmup {
				manager.Warmup = warmupPrompt
			}

			srv, err := server.New(manager, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				APIKey:    os.Getenv("AIME_API_KEY"),
				RateLimit: getEnvFloat("AIME_RATE_LIMIT", 0),
				RateBurst: getEnvInt("AIME_RATE_BURST", 0),
				Pingers: []server.Pinger{
					server.NewDependencyPinger(vectorStore, "qdrant"),
					server.NewLLMPinger(chatModel, string(providerCfg.Backend)),
				},
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().BoolVar(&skipIndex, "skip-index", false, "Reuse the existing collection instead of re-ingesting at startup")
	cmd.Flags().BoolVar(&warmup, "warmup", false, "Run a fixed introductory turn when a session is created")

	return cmd
}
