// Package composer turns retrieved passages, conversation history and a
// question into chat messages for the language model.
package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/texttutor/internal/document"
	"github.com/kalambet/texttutor/internal/engine"
	"github.com/kalambet/texttutor/internal/retrieval"
	"github.com/kalambet/texttutor/internal/session"
)

const defaultMaxContextTokens = 4000

const instructions = "You are a study assistant. Answer the user's question using the passages " +
	"under [Retrieved Context]. If the passages do not contain the answer, say that you " +
	"don't know instead of making one up."

const contextHeader = "[Retrieved Context]\n"

const noContext = "(no matching passages)\n"

// Composer assembles the messages for one answering call.
type Composer struct {
	MaxContextTokens int
}

// New creates a Composer with the given token budget for injected context.
// If maxContextTokens <= 0, the default (4000) is used.
func New(maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Composer{MaxContextTokens: maxContextTokens}
}

// Compose returns a system message carrying the retrieved passages, then
// the history as alternating user/assistant messages, then the question.
// omitted is the number of passages left out to stay within the budget.
func (c *Composer) Compose(question string, history []session.Turn, passages []retrieval.ScoredRecord) (msgs []engine.Message, omitted int) {
	system, written := c.buildSystem(passages)
	msgs = make([]engine.Message, 0, 2+2*len(history))
	msgs = append(msgs, engine.Message{Role: engine.RoleSystem, Content: system})
	for _, t := range history {
		msgs = append(msgs,
			engine.Message{Role: engine.RoleUser, Content: t.Question},
			engine.Message{Role: engine.RoleAssistant, Content: t.Answer},
		)
	}
	return append(msgs, engine.Message{Role: engine.RoleUser, Content: question}), len(passages) - written
}

// buildSystem writes the instructions and as many passages as fit in the
// token budget, highest score first. A passage that does not fit is
// skipped so a smaller one further down can still be used.
func (c *Composer) buildSystem(passages []retrieval.ScoredRecord) (string, int) {
	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(contextHeader)

	sorted := make([]retrieval.ScoredRecord, len(passages))
	copy(sorted, passages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	remaining := c.MaxContextTokens - EstimateTokens(sb.String())
	written := 0
	for _, p := range sorted {
		entry := formatPassage(p)
		tokens := EstimateTokens(entry)
		if tokens > remaining {
			continue
		}
		sb.WriteString(entry)
		remaining -= tokens
		written++
	}
	if written == 0 {
		sb.WriteString(noContext)
	}
	return strings.TrimRight(sb.String(), "\n"), written
}

func formatPassage(p retrieval.ScoredRecord) string {
	src := document.FormatSource(p.Segment.Source())
	if page, ok := p.Segment.Metadata[document.MetaPage]; ok {
		src += ", page " + page
	}
	return fmt.Sprintf("(Score: %.2f, Source: %s)\n%s\n\n", p.Score, src, p.Segment.Text)
}

// CondenseQuestion builds a prompt that asks the model to rewrite a
// follow-up question so it can be understood without the history.
func CondenseQuestion(question string, history []session.Turn) []engine.Message {
	var sb strings.Builder
	sb.WriteString("Given the conversation below and a follow-up question, rephrase the follow-up ")
	sb.WriteString("as a standalone question in its original language. Reply with the question only.\n\n")
	sb.WriteString("Conversation:\n")
	for _, t := range history {
		fmt.Fprintf(&sb, "Human: %s\nAssistant: %s\n", t.Question, t.Answer)
	}
	fmt.Fprintf(&sb, "\nFollow-up question: %s\nStandalone question:", question)
	return []engine.Message{{Role: engine.RoleUser, Content: sb.String()}}
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
