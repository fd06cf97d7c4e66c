package ingestion

import (
	"regexp"

	"github.com/byoung/ai-me/internal/rag"
)

// githubHost is the host used when rewriting repo-relative links.
const githubHost = "github.com"

// barePathRe matches absolute-looking directory paths like "/website/" that
// appear at start-of-text or after whitespace. Markdown in the ingested repos
// uses these to reference sibling directories; without rewriting, the model
// cites dead links.
var barePathRe = regexp.MustCompile(`(^|\s)(/[a-zA-Z0-9_-]+/)`)

// inlineLinkRe matches inline markdown links to repo-relative markdown files,
// with an optional anchor: [text](/path/to/doc.md#section).
var inlineLinkRe = regexp.MustCompile(`\[([^\]]*)\]\((/[^)#\s]+\.md)(#[^)\s]*)?\)`)

// RewriteLinks rewrites repo-relative links in a remote document's content to
// absolute GitHub URLs so citations in answers are browsable:
//
//   - "/segment/"            -> https://github.com/<repo>/tree/<branch>/segment/
//   - "[t](/doc.md#anchor)"  -> [t](https://github.com/<repo>/blob/<branch>/doc.md#anchor)
//
// Anchors are preserved verbatim. Documents without a RepoID pass through
// unmodified.
func RewriteLinks(doc rag.Document) rag.Document {
	if doc.RepoID == "" {
		return doc
	}

	branch := doc.Metadata[rag.MetaBranch]
	if branch == "" {
		branch = "main"
	}

	base := "https://" + githubHost + "/" + doc.RepoID

	content := barePathRe.ReplaceAllString(doc.Content, "${1}"+base+"/tree/"+branch+"${2}")
	content = inlineLinkRe.ReplaceAllString(content, "[${1}]("+base+"/blob/"+branch+"${2}${3})")

	doc.Content = content
	return doc
}
