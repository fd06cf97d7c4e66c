package agent

import "strings"

// outputReplacer maps typographic characters that LLMs habitually emit onto
// their plain-ASCII equivalents. The frontends this bot speaks through render
// plain text, and the persona's own writing uses ASCII punctuation, so model
// output is normalized before it leaves the agent.
var outputReplacer = strings.NewReplacer(
	"“", `"`, // left double quotation mark
	"”", `"`, // right double quotation mark
	"‘", "'", // left single quotation mark
	"’", "'", // right single quotation mark
	"—", "-", // em dash
	"–", "-", // en dash
	" ", " ", // no-break space
	"　", " ", // ideographic space
	"「", `"`, // left corner bracket
	"」", `"`, // right corner bracket
	"『", `"`, // left white corner bracket
	"』", `"`, // right white corner bracket
)

// Normalize rewrites typographic punctuation in model output to ASCII in a
// single pass and trims surrounding whitespace. Idempotent.
func Normalize(s string) string {
	return strings.TrimSpace(outputReplacer.Replace(s))
}
