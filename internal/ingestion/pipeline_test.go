package ingestion

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/byoung/ai-me/internal/rag"
)

// hashEmbedder is a deterministic, dependency-free embedder for tests.
// It hashes each whitespace token into a fixed-size bag-of-words vector, so
// texts sharing tokens get similar embeddings under cosine similarity.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 64)
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			tok = strings.Trim(tok, ".,;:!?()[]\"'")
			if tok == "" {
				continue
			}
			h := fnv.New32a()
			h.Write([]byte(tok))
			vec[h.Sum32()%64]++
		}
		out[i] = vec
	}
	return out, nil
}

// memStore is an in-memory VectorStore with brute-force cosine search.
type memStore struct {
	docs    []rag.Document
	vecs    [][]float32
	resets  int
	upserts int
}

func (m *memStore) Reset(_ context.Context) error {
	m.resets++
	m.docs = nil
	m.vecs = nil
	return nil
}

func (m *memStore) Upsert(_ context.Context, docs []rag.Document, embeddings [][]float32) error {
	m.upserts++
	m.docs = append(m.docs, docs...)
	m.vecs = append(m.vecs, embeddings...)
	return nil
}

func (m *memStore) Search(_ context.Context, query []float32, topK int) ([]rag.Document, error) {
	type scored struct {
		doc   rag.Document
		score float32
	}
	results := make([]scored, 0, len(m.docs))
	for i, doc := range m.docs {
		results = append(results, scored{doc: doc, score: cosine(query, m.vecs[i])})
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].score > results[b].score })
	if topK < len(results) {
		results = results[:topK]
	}
	out := make([]rag.Document, len(results))
	for i, r := range results {
		out[i] = r.doc
		out[i].Score = r.score
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// newTestPipeline builds a Pipeline whose load step returns the given docs.
func newTestPipeline(t *testing.T, store rag.VectorStore, docs []rag.Document) *Pipeline {
	t.Helper()
	p, err := NewPipeline(hashEmbedder{}, store, &Config{})
	if err != nil {
		t.Fatal(err)
	}
	p.load = func(context.Context) []rag.Document { return docs }
	return p
}

func TestPipeline_EmptyChunkListIsConfigurationError(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	p := newTestPipeline(t, store, nil)

	_, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected configuration error for zero chunks, got nil")
	}
	for _, knob := range []string{"AIME_DOC_ROOT", "AIME_DOC_GLOBS", "AIME_GITHUB_REPOS"} {
		if !strings.Contains(err.Error(), knob) {
			t.Errorf("error %q does not name configuration knob %s", err.Error(), knob)
		}
	}
	if store.resets != 0 || store.upserts != 0 {
		t.Error("store was touched despite the configuration error")
	}
}

func TestPipeline_ResetsBeforeUpsert(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	p := newTestPipeline(t, store, []rag.Document{
		{Content: "# About\n\nsome text", Source: "about.md", Metadata: map[string]string{}},
	})

	n, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n == 0 {
		t.Fatal("expected chunks indexed")
	}
	if store.resets != 1 {
		t.Errorf("expected exactly 1 reset, got %d", store.resets)
	}
	if len(store.docs) != n {
		t.Errorf("store holds %d docs, Run reported %d", len(store.docs), n)
	}
}

func TestPipeline_RewritesLinksBeforeChunking(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	p := newTestPipeline(t, store, []rag.Document{{
		Content:  "# Links\n\n[resume](/resume.md)",
		Source:   "links.md",
		RepoID:   "byoung/ai-me",
		Metadata: map[string]string{rag.MetaRepo: "byoung/ai-me", rag.MetaBranch: "main"},
	}})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var all strings.Builder
	for _, d := range store.docs {
		all.WriteString(d.Content)
	}
	if !strings.Contains(all.String(), "https://github.com/byoung/ai-me/blob/main/resume.md") {
		t.Errorf("indexed content does not contain rewritten link: %q", all.String())
	}
}

// End-to-end: ingest a fixture containing a distinctive fact, then retrieve
// it through the standard retriever. The top result must contain the fact.
func TestPipeline_EndToEndRetrieval(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	p := newTestPipeline(t, store, []rag.Document{
		{
			Content:  "# Projects\n\n## Ticketing\n\nIT-245 migrated the build system to reproducible containers.\n",
			Source:   "projects.md",
			Metadata: map[string]string{},
		},
		{
			Content:  "# Hobbies\n\nCycling and photography.\n",
			Source:   "hobbies.md",
			Metadata: map[string]string{},
		},
	})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	retriever, err := rag.NewRetriever(hashEmbedder{}, store, 5)
	if err != nil {
		t.Fatal(err)
	}
	docs, err := retriever.Retrieve(context.Background(), "What is IT-245?", 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("expected retrieval results")
	}
	if !strings.Contains(docs[0].Content, "IT-245") {
		t.Errorf("top result does not contain the ingested fact: %q", docs[0].Content)
	}
}
