package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/texttutor/internal/composer"
	"github.com/kalambet/texttutor/internal/retrieval"
	"github.com/kalambet/texttutor/internal/session"
)

// Answer is the model's reply with the provenance of every passage it was
// shown, in retrieval rank order. Sources keeps duplicates.
type Answer struct {
	Text     string                   `json:"answer"`
	Sources  []string                 `json:"sources"`
	Passages []retrieval.ScoredRecord `json:"-"`
}

// Answer retrieves passages for question and asks the model, threading
// history into the prompt. It does not touch the session history or the
// conversation log, so the same inputs can be replayed.
func (p *Pipeline) Answer(ctx context.Context, sess *session.Session, question string, history []session.Turn) (Answer, error) {
	unlock := sess.Lock()
	defer unlock()
	return p.answer(ctx, sess, question, history)
}

// Ask answers with the session's own history, appends the turn to it and
// records it in the conversation log. When recording fails the answer is
// still returned along with an error wrapping conversation.ErrPersistence.
func (p *Pipeline) Ask(ctx context.Context, sess *session.Session, question string) (Answer, error) {
	unlock := sess.Lock()
	defer unlock()

	ans, err := p.answer(ctx, sess, question, sess.History())
	if err != nil {
		return Answer{}, err
	}
	sess.AppendTurn(session.Turn{Question: question, Answer: ans.Text})

	if p.recorder == nil {
		return ans, nil
	}
	if _, err := p.recorder.Record(question, ans.Text, ans.Sources); err != nil {
		p.logger.Error("recording conversation", "session_id", sess.ID, "error", err)
		return ans, err
	}
	return ans, nil
}

func (p *Pipeline) answer(ctx context.Context, sess *session.Session, question string, history []session.Turn) (Answer, error) {
	if sess.CorpusSize() == 0 {
		return Answer{}, ErrNoCorpus
	}
	if strings.TrimSpace(question) == "" {
		return Answer{}, ErrEmptyQuestion
	}

	query := question
	if p.opts.CondenseQuestion && len(history) > 0 {
		standalone, err := p.generator.Generate(ctx, composer.CondenseQuestion(question, history))
		if err != nil {
			return Answer{}, fmt.Errorf("%w: condensing question: %w", ErrGeneration, err)
		}
		if s := strings.TrimSpace(standalone); s != "" {
			query = s
		}
		p.logger.Debug("question condensed", "session_id", sess.ID, "query", query)
	}

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return Answer{}, fmt.Errorf("embedding question: %w", err)
	}
	passages, err := sess.Index().Search(ctx, vec, p.opts.TopK)
	if err != nil {
		return Answer{}, fmt.Errorf("searching index: %w", err)
	}

	msgs, omitted := p.composer.Compose(question, history, passages)
	if omitted > 0 {
		p.logger.Warn("passages omitted from prompt",
			"session_id", sess.ID,
			"omitted", omitted,
			"retrieved", len(passages),
		)
	}
	text, err := p.generator.Generate(ctx, msgs)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	sources := make([]string, len(passages))
	for i, ps := range passages {
		sources[i] = ps.Segment.Source()
	}

	p.logger.Debug("question answered",
		"session_id", sess.ID,
		"passages", len(passages),
		"history_turns", len(history),
	)
	return Answer{Text: strings.TrimSpace(text), Sources: sources, Passages: passages}, nil
}
