package composer

import (
	"strings"
	"testing"

	"github.com/kalambet/texttutor/internal/document"
	"github.com/kalambet/texttutor/internal/engine"
	"github.com/kalambet/texttutor/internal/retrieval"
	"github.com/kalambet/texttutor/internal/session"
)

func passage(text, source string, score float32) retrieval.ScoredRecord {
	return retrieval.ScoredRecord{
		Record: retrieval.Record{
			Segment: document.NewSegment(text, map[string]string{document.MetaSource: source}),
		},
		Score: score,
	}
}

func TestCompose_MessageOrder(t *testing.T) {
	c := New(4000)
	history := []session.Turn{
		{Question: "What is Go?", Answer: "A language."},
		{Question: "Who made it?", Answer: "Google."},
	}

	msgs, _ := c.Compose("When was it released?", history, []retrieval.ScoredRecord{
		passage("Go was announced in 2009.", "direct_input", 0.9),
	})

	wantRoles := []string{
		engine.RoleSystem,
		engine.RoleUser, engine.RoleAssistant,
		engine.RoleUser, engine.RoleAssistant,
		engine.RoleUser,
	}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(wantRoles))
	}
	for i, r := range wantRoles {
		if msgs[i].Role != r {
			t.Errorf("msgs[%d].Role = %q, want %q", i, msgs[i].Role, r)
		}
	}
	if msgs[1].Content != "What is Go?" || msgs[4].Content != "Google." {
		t.Errorf("history not threaded in order: %+v", msgs[1:5])
	}
	if last := msgs[len(msgs)-1].Content; last != "When was it released?" {
		t.Errorf("last message = %q, want the question", last)
	}
	if !strings.Contains(msgs[0].Content, "Go was announced in 2009.") {
		t.Errorf("system message missing passage: %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[0].Content, "Source: Direct Text Input") {
		t.Errorf("system message missing formatted source: %q", msgs[0].Content)
	}
}

func TestCompose_NoPassages(t *testing.T) {
	c := New(4000)
	msgs, omitted := c.Compose("Anything?", nil, nil)
	if omitted != 0 {
		t.Errorf("omitted = %d, want 0", omitted)
	}

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if !strings.Contains(msgs[0].Content, contextHeader) {
		t.Error("system message missing context header")
	}
	if !strings.Contains(msgs[0].Content, strings.TrimSpace(noContext)) {
		t.Errorf("system message = %q, want the empty-context marker", msgs[0].Content)
	}
}

func TestCompose_PageInSource(t *testing.T) {
	c := New(4000)
	p := retrieval.ScoredRecord{
		Record: retrieval.Record{Segment: document.NewSegment("text", map[string]string{
			document.MetaSource: "/tmp/book.pdf",
			document.MetaPage:   "7",
		})},
		Score: 0.5,
	}
	msgs, _ := c.Compose("q", nil, []retrieval.ScoredRecord{p})
	if !strings.Contains(msgs[0].Content, "Source: PDF: book.pdf, page 7") {
		t.Errorf("system message = %q, want source with page", msgs[0].Content)
	}
}

func TestCompose_TokenBudgetDropsLowest(t *testing.T) {
	base := EstimateTokens(instructions + "\n\n" + contextHeader)
	big := strings.Repeat("x", 400)
	c := New(base + EstimateTokens(formatPassage(passage(big, "s", 0.9))) + 5)

	msgs, omitted := c.Compose("q", nil, []retrieval.ScoredRecord{
		passage(big+"low", "s", 0.1),
		passage(big, "s", 0.9),
	})
	if omitted != 1 {
		t.Errorf("omitted = %d, want 1", omitted)
	}
	sys := msgs[0].Content
	if !strings.Contains(sys, "Score: 0.90") {
		t.Error("highest scoring passage was dropped")
	}
	if strings.Contains(sys, "Score: 0.10") {
		t.Error("lowest scoring passage should not fit the budget")
	}
}

func TestCondenseQuestion(t *testing.T) {
	msgs := CondenseQuestion("And its author?", []session.Turn{{Question: "What is SICP?", Answer: "A textbook."}})
	if len(msgs) != 1 || msgs[0].Role != engine.RoleUser {
		t.Fatalf("msgs = %+v, want one user message", msgs)
	}
	for _, want := range []string{"Human: What is SICP?", "Assistant: A textbook.", "Follow-up question: And its author?"} {
		if !strings.Contains(msgs[0].Content, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
	}
	for _, c := range cases {
		if got := EstimateTokens(c.in); got != c.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
