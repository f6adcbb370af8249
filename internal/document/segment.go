// Package document turns user input into text segments and formats their
// provenance for display.
package document

import (
	"path/filepath"
	"strings"
)

// Metadata keys carried on every segment.
const (
	MetaSource = "source"
	MetaPage   = "page"
)

// SourceDirectInput marks segments that came from pasted text.
const SourceDirectInput = "direct_input"

// Segment is a unit of text with provenance metadata. Treat it as immutable
// once constructed: callers that need to change metadata build a new one.
type Segment struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// NewSegment copies metadata so later changes by the caller do not leak
// into the segment.
func NewSegment(text string, metadata map[string]string) Segment {
	return Segment{Text: text, Metadata: copyMeta(metadata)}
}

// Source returns the segment's source label, or "Unknown" when absent.
func (s Segment) Source() string {
	if src, ok := s.Metadata[MetaSource]; ok && src != "" {
		return src
	}
	return "Unknown"
}

// FromText wraps raw user text as a single segment. Empty or
// whitespace-only text yields no segments.
func FromText(text string) []Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []Segment{NewSegment(text, map[string]string{MetaSource: SourceDirectInput})}
}

// FormatSource renders a source label for humans.
func FormatSource(source string) string {
	if source == SourceDirectInput {
		return "Direct Text Input"
	}
	if strings.HasSuffix(source, ".pdf") {
		return "PDF: " + filepath.Base(source)
	}
	return source
}

func copyMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
