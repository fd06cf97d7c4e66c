package tools

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/byoung/ai-me/internal/logging"
	"github.com/byoung/ai-me/internal/rag"
)

// fakeRetriever returns a canned document list and records the last query.
type fakeRetriever struct {
	docs      []rag.Document
	err       error
	lastQuery string
	lastTopK  int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, topK int) ([]rag.Document, error) {
	f.lastQuery = query
	f.lastTopK = topK
	return f.docs, f.err
}

func TestRetrieveTool_FormatsResultsWithCitations(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{docs: []rag.Document{
		{
			Content: "IT-245 tracks the migration of the billing exporter.",
			Source:  "docs/projects.md",
			Score:   0.91,
			Metadata: map[string]string{
				rag.MetaHeadings: "Projects > Billing",
			},
		},
		{
			Content: "The exporter design doc lives in the platform repo.",
			Source:  "design/exporter.md",
			RepoID:  "byoung/platform",
			Score:   0.78,
			Metadata: map[string]string{
				rag.MetaPath:   "design/exporter.md",
				rag.MetaBranch: "trunk",
			},
		},
	}}

	tool := NewRetrieveTool(r, 5)
	out, err := tool.InvokableRun(context.Background(), `{"query":"what is IT-245?"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}

	if r.lastQuery != "what is IT-245?" {
		t.Errorf("query not forwarded: %q", r.lastQuery)
	}
	if r.lastTopK != 5 {
		t.Errorf("topK not forwarded: %d", r.lastTopK)
	}
	for _, want := range []string{
		"docs/projects.md",
		"Section: Projects > Billing",
		"IT-245 tracks the migration",
		"https://github.com/byoung/platform/tree/trunk/design/exporter.md",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRetrieveTool_EmptyQueryRejected(t *testing.T) {
	t.Parallel()

	tool := NewRetrieveTool(&fakeRetriever{}, 0)
	if _, err := tool.InvokableRun(context.Background(), `{"query":"  "}`); err == nil {
		t.Fatal("expected error for blank query")
	}
	if _, err := tool.InvokableRun(context.Background(), `{`); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestRetrieveTool_LogsResultCountAndScores(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := logging.WithLogger(context.Background(), log)

	r := &fakeRetriever{docs: []rag.Document{
		{Content: "a", Source: "a.md", Score: 0.91, Metadata: map[string]string{}},
		{Content: "b", Source: "b.md", Score: 0.78, Metadata: map[string]string{}},
	}}
	tool := NewRetrieveTool(r, 2)
	if _, err := tool.InvokableRun(ctx, `{"query":"q"}`); err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"results":2`, `"scores"`, "0.910", "0.780"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestRetrieveTool_NoResults(t *testing.T) {
	t.Parallel()

	tool := NewRetrieveTool(&fakeRetriever{}, 3)
	out, err := tool.InvokableRun(context.Background(), `{"query":"anything"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	if !strings.Contains(out, "No relevant documents") {
		t.Errorf("expected explicit empty-result message, got %q", out)
	}
}

func TestRetrieveTool_DefaultTopK(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{}
	tool := NewRetrieveTool(r, 0)
	if _, err := tool.InvokableRun(context.Background(), `{"query":"q"}`); err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	if r.lastTopK != rag.DefaultTopK {
		t.Errorf("expected default topK %d, got %d", rag.DefaultTopK, r.lastTopK)
	}
}

func TestCitation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  rag.Document
		want string
	}{
		{
			name: "local document cites source path",
			doc:  rag.Document{Source: "docs/bio.md"},
			want: "docs/bio.md",
		},
		{
			name: "repo document cites github url",
			doc: rag.Document{
				RepoID: "byoung/ai-me",
				Metadata: map[string]string{
					rag.MetaPath:   "README.md",
					rag.MetaBranch: "main",
				},
			},
			want: "https://github.com/byoung/ai-me/tree/main/README.md",
		},
		{
			name: "missing branch falls back to main",
			doc: rag.Document{
				RepoID:   "byoung/ai-me",
				Metadata: map[string]string{rag.MetaPath: "docs/x.md"},
			},
			want: "https://github.com/byoung/ai-me/tree/main/docs/x.md",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Citation(tt.doc); got != tt.want {
				t.Errorf("Citation() = %q, want %q", got, tt.want)
			}
		})
	}
}
