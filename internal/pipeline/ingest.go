package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/texttutor/internal/document"
	"github.com/kalambet/texttutor/internal/retrieval"
	"github.com/kalambet/texttutor/internal/session"
)

// Input is either raw text or a PDF file.
type Input struct {
	Text     string
	PDF      []byte
	Filename string
}

// TextInput wraps pasted text.
func TextInput(text string) Input {
	return Input{Text: text}
}

// PDFInput wraps the bytes of an uploaded PDF.
func PDFInput(filename string, data []byte) Input {
	return Input{PDF: data, Filename: filename}
}

func (in Input) isPDF() bool {
	return in.PDF != nil || in.Filename != ""
}

// IngestResult summarizes a successful ingestion.
type IngestResult struct {
	Source string `json:"source"`
	Pages  int    `json:"pages,omitempty"`
	Chunks int    `json:"chunks"`
}

// Ingest extracts, chunks and embeds the input, then adds every chunk to
// the session index and corpus. Nothing is indexed unless every chunk was
// embedded, so a failed call leaves the session unchanged. Empty text is a
// no-op.
func (p *Pipeline) Ingest(ctx context.Context, sess *session.Session, in Input) (IngestResult, error) {
	unlock := sess.Lock()
	defer unlock()

	start := time.Now()

	var (
		segs []document.Segment
		res  IngestResult
	)
	if in.isPDF() {
		var err error
		segs, err = document.ExtractPDF(in.Filename, in.PDF)
		if err != nil {
			return IngestResult{}, err
		}
		res.Source = in.Filename
		res.Pages = len(segs)
	} else {
		segs = document.FromText(in.Text)
		res.Source = document.SourceDirectInput
	}

	chunks := p.splitter.Split(segs)
	if len(chunks) == 0 {
		return res, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return IngestResult{}, fmt.Errorf("embedding %s: %w", res.Source, err)
	}

	records := make([]retrieval.Record, len(chunks))
	for i, c := range chunks {
		records[i] = retrieval.Record{
			ID:        uuid.NewString(),
			Segment:   c,
			Embedding: vecs[i],
		}
	}
	if err := sess.Index().Insert(ctx, records); err != nil {
		return IngestResult{}, fmt.Errorf("indexing %s: %w", res.Source, err)
	}
	sess.AppendCorpus(chunks)

	res.Chunks = len(chunks)
	p.logger.Info("document ingested",
		"session_id", sess.ID,
		"source", res.Source,
		"pages", res.Pages,
		"chunks", res.Chunks,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
