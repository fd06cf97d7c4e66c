package ingestion

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/byoung/ai-me/internal/rag"
)

// Chunking defaults. 1200/0 keeps each chunk within a few hundred tokens
// while the structural split already yields self-coherent pieces, so no
// character overlap is needed between adjacent size-split chunks.
const (
	// DefaultChunkSize is the maximum chunk size in characters.
	DefaultChunkSize = 1200

	// DefaultChunkOverlap is the character overlap between adjacent
	// size-split chunks.
	DefaultChunkOverlap = 0
)

// headingRe matches markdown headings of levels 1-3 at the start of a line.
var headingRe = regexp.MustCompile(`^(#{1,3})\s+(.+?)\s*$`)

// ChunkConfig holds the splitter settings.
type ChunkConfig struct {
	// Size is the maximum chunk size in characters. Defaults to DefaultChunkSize.
	Size int

	// Overlap is the character overlap between adjacent size-split chunks.
	// Defaults to DefaultChunkOverlap.
	Overlap int
}

// Chunk splits each document along heading boundaries (levels 1-3), then
// size-splits any piece still over the threshold, and finally assigns a
// dense, zero-based chunk index across the entire result. Each chunk
// inherits its document's source, repo tag, and metadata, plus the heading
// path of its enclosing section.
func Chunk(docs []rag.Document, cfg *ChunkConfig) []rag.Document {
	if cfg == nil {
		cfg = &ChunkConfig{}
	}
	size := cfg.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := cfg.Overlap
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}

	var chunks []rag.Document
	for _, doc := range docs {
		for _, sec := range splitSections(doc.Content) {
			for _, piece := range splitBySize(sec.text, size, overlap) {
				md := make(map[string]string, len(doc.Metadata)+2)
				for k, v := range doc.Metadata {
					md[k] = v
				}
				if sec.headingPath != "" {
					md[rag.MetaHeadings] = sec.headingPath
				}
				chunks = append(chunks, rag.Document{
					Content:  piece,
					Source:   doc.Source,
					RepoID:   doc.RepoID,
					Metadata: md,
				})
			}
		}
	}

	// Indices are assigned after all splitting passes so they are dense and
	// globally unique for this indexing run, not per document.
	for i := range chunks {
		chunks[i].ID = fmt.Sprintf("%s#%d", chunks[i].Source, i)
		chunks[i].Metadata[rag.MetaChunkIndex] = strconv.Itoa(i)
	}

	return chunks
}

// section is one structurally-split piece of a document: the text starting at
// a heading (heading line included) up to the next heading of level 1-3,
// plus the heading path in effect for that text.
type section struct {
	// text is the section content, heading line included.
	text string

	// headingPath is the enclosing heading trail joined with " > ".
	headingPath string
}

// splitSections splits content at markdown heading boundaries (levels 1-3).
// Concatenating the returned texts reproduces content exactly: splitting only
// cuts, it never drops or rewrites characters.
func splitSections(content string) []section {
	if content == "" {
		return nil
	}

	lines := strings.SplitAfter(content, "\n")

	// headings[level-1] holds the most recent heading text at that level.
	var headings [3]string
	var sections []section
	var buf strings.Builder
	currentPath := ""

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		sections = append(sections, section{text: buf.String(), headingPath: currentPath})
		buf.Reset()
	}

	for _, line := range lines {
		m := headingRe.FindStringSubmatch(strings.TrimRight(line, "\n"))
		if m != nil {
			flush()
			level := len(m[1])
			headings[level-1] = m[2]
			for i := level; i < len(headings); i++ {
				headings[i] = ""
			}
			currentPath = joinHeadings(headings)
		}
		buf.WriteString(line)
	}
	flush()

	return sections
}

// joinHeadings joins the non-empty heading levels with " > ".
func joinHeadings(headings [3]string) string {
	parts := make([]string, 0, len(headings))
	for _, h := range headings {
		if h != "" {
			parts = append(parts, h)
		}
	}
	return strings.Join(parts, " > ")
}

// splitBySize divides text into pieces no longer than size characters,
// preferring to cut after a paragraph break, then a line break, then a
// space, and only cutting mid-word as a last resort. Cuts never land inside
// a multibyte rune, so every piece is valid UTF-8. With overlap > 0 each
// piece begins overlap characters before the previous cut point.
func splitBySize(text string, size, overlap int) []string {
	if len(text) <= size {
		return []string{text}
	}

	var pieces []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			pieces = append(pieces, text[start:])
			break
		}

		// The window boundary must start a rune, or the hard-cut fallback
		// in findCut would slice through a multibyte character.
		for end > start && !utf8.RuneStart(text[end]) {
			end--
		}
		if end == start {
			// A single rune wider than size: emit it whole.
			_, n := utf8.DecodeRuneInString(text[start:])
			end = start + n
			if end >= len(text) {
				pieces = append(pieces, text[start:])
				break
			}
		}

		cut := findCut(text[start:end])
		pieces = append(pieces, text[start:start+cut])

		next := start + cut - overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			// Overlap must never stall the scan.
			next = start + cut
		}
		start = next
	}
	return pieces
}

// findCut returns the index just past the best natural boundary in window,
// searching for a paragraph break first, then a newline, then a space.
// Falls back to the full window length (hard cut).
func findCut(window string) int {
	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return i + 2
	}
	if i := strings.LastIndexByte(window, '\n'); i > 0 {
		return i + 1
	}
	if i := strings.LastIndexByte(window, ' '); i > 0 {
		return i + 1
	}
	return len(window)
}
