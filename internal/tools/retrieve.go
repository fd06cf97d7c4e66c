package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/byoung/ai-me/internal/logging"
	"github.com/byoung/ai-me/internal/rag"
)

// RetrieveToolName is the name the knowledge retrieval tool registers under.
// The composer places this tool first so the model consults the persona's own
// documents before reaching for external capabilities.
const RetrieveToolName = "get_local_info"

// RetrieveTool is an Eino tool that answers questions from the persona's
// indexed documents. It embeds the query, searches the vector store, and
// returns the most relevant chunks with citations.
type RetrieveTool struct {
	// retriever performs the embed-then-search round trip.
	retriever rag.Retriever

	// topK is the number of chunks returned per query.
	topK int
}

// retrieveInput is the JSON-serialisable input schema for RetrieveTool.
type retrieveInput struct {
	// Query is the natural-language question to search the index with.
	Query string `json:"query"`
}

// NewRetrieveTool constructs a RetrieveTool. A topK of zero or less falls
// back to rag.DefaultTopK.
func NewRetrieveTool(retriever rag.Retriever, topK int) *RetrieveTool {
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	return &RetrieveTool{retriever: retriever, topK: topK}
}

// Name returns the tool name registered with the agent.
func (t *RetrieveTool) Name() string { return RetrieveToolName }

// Description returns the LLM-facing description of this tool.
func (t *RetrieveTool) Description() string {
	return "Searches the persona's own documents — biography, projects, blog posts, and " +
		"repository docs — and returns the most relevant passages with source citations. " +
		"Always call this first when the user asks about the persona, their work, or their opinions."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *RetrieveTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Natural-language question to search the indexed documents with.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun retrieves the top chunks for the query and formats them with
// citations for the model to ground its answer on.
func (t *RetrieveTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input retrieveInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("%s: invalid input: %w", RetrieveToolName, err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", fmt.Errorf("%s: query is required", RetrieveToolName)
	}

	docs, err := t.retriever.Retrieve(ctx, input.Query, t.topK)
	if err != nil {
		return "", fmt.Errorf("%s: retrieve: %w", RetrieveToolName, err)
	}

	scores := make([]string, len(docs))
	for i, doc := range docs {
		scores[i] = fmt.Sprintf("%.3f", doc.Score)
	}
	log := logging.FromContext(ctx)
	log.Debug("retrieval query served",
		slog.String("query", input.Query),
		slog.Int("results", len(docs)),
		slog.Any("scores", scores))

	if len(docs) == 0 {
		return "No relevant documents found for this query.", nil
	}

	var sb strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&sb, "[%d] %s (score %.3f)\n", i+1, Citation(doc), doc.Score)
		if headings := doc.Metadata[rag.MetaHeadings]; headings != "" {
			fmt.Fprintf(&sb, "Section: %s\n", headings)
		}
		sb.WriteString(doc.Content)
		if i < len(docs)-1 {
			sb.WriteString("\n\n---\n\n")
		}
	}
	return sb.String(), nil
}

// Citation renders the source reference for one retrieved chunk. Chunks that
// came from a cloned repository cite the file's GitHub URL on its default
// branch; local documents cite their relative source path.
func Citation(doc rag.Document) string {
	if doc.RepoID == "" {
		return doc.Source
	}
	branch := doc.Metadata[rag.MetaBranch]
	if branch == "" {
		branch = "main"
	}
	path := doc.Metadata[rag.MetaPath]
	if path == "" {
		path = doc.Source
	}
	return fmt.Sprintf("https://github.com/%s/tree/%s/%s", doc.RepoID, branch, path)
}
