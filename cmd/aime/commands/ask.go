package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/byoung/ai-me/internal/embedder"
	"github.com/byoung/ai-me/internal/logging"
	"github.com/byoung/ai-me/internal/provider"
	"github.com/byoung/ai-me/internal/rag"
	"github.com/byoung/ai-me/internal/session"
)

// NewAskCmd constructs the `aime ask` command, which runs a single question
// through a one-off session and prints the answer.
func NewAskCmd() *cobra.Command {
	var noCapabilities bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the persona a single question",
		Long: `Ask the persona one question and print the answer.

The question runs against the existing vector index (build it first with
'aime index' or a prior 'aime serve'). A throwaway session is created for
the turn and torn down afterwards, including its memory graph.

Examples:
  aime ask "where have you worked?"
  aime ask --no-capabilities "summarise your resume"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			persona, err := personaFromEnv()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ask: failed to initialise embedder: %w", err)
			}

			vectorStore, err := buildVectorStore(ctx)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer vectorStore.Close()

			retriever, err := rag.NewRetriever(emb, vectorStore, rag.DefaultTopK)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			build := newSessionBuilder(chatModel, persona, retriever, nil)
			if noCapabilities {
				// Skip capability providers entirely so the turn needs
				// nothing beyond the model and the index.
				build = sessionBuilderWithoutCapabilities(chatModel, persona, retriever)
			}
			manager := session.NewManager(build, nil)

			sessionID := uuid.NewString()
			defer manager.End(ctx, sessionID)

			reply, _ := manager.RunTurn(ctx, sessionID, strings.Join(args, " "))
			fmt.Println(reply)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCapabilities, "no-capabilities", false, "Skip capability providers (GitHub, time, memory) for this question")

	return cmd
}
