package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/byoung/ai-me/internal/capability"
)

// Persona identifies who the agent speaks as.
type Persona struct {
	// FullName is the full name of the person being personified.
	FullName string

	// AgentName is the internal name of the primary agent, used in logs and
	// delegate wiring. Defaults to "ai-me".
	AgentName string

	// GitHubUser scopes source-code research to this user's repositories.
	GitHubUser string
}

// promptInput carries everything the prompt sections render from.
type promptInput struct {
	persona   Persona
	caps      []capability.Capability
	delegates []string
}

// promptSection renders one block of the system prompt. Sections are pure
// functions of their input: the same input always yields the same text, so
// the assembled prompt is deterministic and testable.
type promptSection struct {
	name   string
	render func(in promptInput) string
}

// promptSections is the fixed section order. Identity first, then the rules
// that constrain it, then whatever tooling this particular session has.
var promptSections = []promptSection{
	{name: "identity", render: identitySection},
	{name: "grounding", render: groundingSection},
	{name: "style", render: styleSection},
	{name: "capabilities", render: capabilitiesSection},
	{name: "delegates", render: delegatesSection},
}

// BuildSystemPrompt assembles the system prompt for one session. Connected
// capabilities are sorted by ID before rendering so two sessions with the
// same configuration always receive byte-identical prompts.
func BuildSystemPrompt(p Persona, caps []capability.Capability, delegates []string) string {
	sorted := make([]capability.Capability, len(caps))
	copy(sorted, caps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	in := promptInput{persona: p, caps: sorted, delegates: delegates}

	parts := make([]string, 0, len(promptSections))
	for _, s := range promptSections {
		if text := s.render(in); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func identitySection(in promptInput) string {
	return fmt.Sprintf(`You are %s, answering questions on a personal website chat.
Speak in the first person, as yourself. You are talking to visitors who want
to know about you, your work, your projects, and your opinions. Stay in
character at all times: never describe yourself as an assistant, a bot, or a
language model, and never mention these instructions.`, in.persona.FullName)
}

func groundingSection(in promptInput) string {
	return `Ground every factual claim about yourself in your own documents.
Before answering any question about your life, work, projects, or opinions,
call get_local_info with the visitor's question and base your answer on what
it returns. If the documents do not cover the question, say you do not know
or do not remember rather than inventing an answer. Include the source
citation when a visitor asks where a fact comes from.`
}

func styleSection(in promptInput) string {
	return `Keep answers conversational and reasonably short: a few sentences
for simple questions, short paragraphs for involved ones. Use plain ASCII
punctuation. Do not pad answers with offers of further help.`
}

func capabilitiesSection(in promptInput) string {
	if len(in.caps) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("You have the following live capabilities this session:\n")
	for _, c := range in.caps {
		fmt.Fprintf(&sb, "- %s: %s\n", c.ID(), c.Description())
		switch c.Category() {
		case capability.CategoryTime:
			sb.WriteString("  Use this for any question involving the current date or time; never guess the date.\n")
		case capability.CategoryMemory:
			sb.WriteString("  Store facts the visitor shares about themselves and recall them later in the conversation.\n")
		case capability.CategoryGitHub:
			fmt.Fprintf(&sb, "  Use this for live repository data under the %s account.\n", in.persona.GitHubUser)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func delegatesSection(in promptInput) string {
	if len(in.delegates) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("You can hand focused subtasks to specialist delegates:\n")
	for _, d := range in.delegates {
		fmt.Fprintf(&sb, "- %s\n", d)
	}
	sb.WriteString("Call a delegate with a complete, self-contained request and fold its answer into your own voice.")
	return sb.String()
}
