// Package rag defines the interfaces for retrieval-augmented generation
// components: vector storage, document retrieval, and embedding.
// Concrete implementations (Qdrant, etc.) satisfy these interfaces so the
// agent layer never depends on a specific backend.
package rag

import (
	"context"
)

// Metadata keys used on Document chunks throughout the pipeline.
const (
	// MetaRepo is the owning GitHub repository in owner/name form.
	// Absent for documents loaded from the local filesystem.
	MetaRepo = "github_repo"

	// MetaPath is the file path of the document relative to its repo root
	// (remote documents) or the docs root (local documents).
	MetaPath = "file_path"

	// MetaBranch is the default branch of the owning repository, recorded
	// at clone time so citations link to the right ref.
	MetaBranch = "branch"

	// MetaHeadings is the nearest enclosing heading path of a chunk,
	// joined with " > " (e.g. "Experience > Neosofia").
	MetaHeadings = "heading_path"

	// MetaChunkIndex is the dense, zero-based, run-global chunk index,
	// formatted as a decimal string.
	MetaChunkIndex = "chunk_index"
)

// Document represents a unit of ingested or retrieved knowledge.
// Before chunking it holds a whole source file; after chunking each
// Document is one retrieval-granularity chunk.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Source is the origin URI or file path of the document.
	Source string

	// RepoID is the owning GitHub repository in owner/name form.
	// Empty for local documents.
	RepoID string

	// Metadata holds the keys defined above plus any loader-specific extras.
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval.
	// Higher is more similar (cosine). Zero value means not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching document embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Reset drops the collection if it exists and recreates it empty.
	// Absence of a prior collection is not an error. After Reset the
	// collection is the single authoritative index for its name.
	Reset(ctx context.Context) error

	// Upsert stores or updates a batch of documents with their pre-computed embeddings.
	// The embeddings slice must be parallel to docs — embeddings[i] is the vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search performs a semantic similarity search and returns the top-k
	// most relevant documents for the given query embedding, ordered by
	// descending similarity score.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the retrieval tool to fetch
// relevant context for a given query. It combines embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}
