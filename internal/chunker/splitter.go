// Package chunker splits segments into overlapping windows that prefer
// natural text boundaries.
package chunker

import (
	"fmt"

	"github.com/kalambet/texttutor/internal/document"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by
// consecutive chunks.
const DefaultChunkOverlap = 200

// separators are tried in order; the first one found in the usable part of
// a window decides where the window ends.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
	[]rune(" "),
}

// Splitter cuts text into windows of at most chunkSize characters where
// consecutive windows share exactly overlap characters.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the window size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) { s.chunkSize = size }
}

// WithOverlap sets the number of characters shared by consecutive windows.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) { s.overlap = overlap }
}

// New returns a Splitter or an error when the options violate
// 0 <= overlap < chunkSize.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", s.chunkSize)
	}
	if s.overlap < 0 || s.overlap >= s.chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", s.chunkSize, s.overlap)
	}
	return s, nil
}

// Split chunks every segment in order. Each chunk carries a copy of its
// parent's metadata.
func (s *Splitter) Split(docs []document.Segment) []document.Segment {
	var out []document.Segment
	for _, d := range docs {
		for _, text := range s.SplitText(d.Text) {
			out = append(out, document.NewSegment(text, d.Metadata))
		}
	}
	return out
}

// SplitText returns the windows for a single text. Concatenating the first
// window with every later window minus its first overlap characters
// reproduces text exactly.
func (s *Splitter) SplitText(text string) []string {
	r := []rune(text)
	if len(r) == 0 {
		return nil
	}
	if len(r) <= s.chunkSize {
		return []string{text}
	}

	var out []string
	start := 0
	for len(r)-start > s.chunkSize {
		end := s.boundary(r, start)
		out = append(out, string(r[start:end]))
		start = end - s.overlap
	}
	return append(out, string(r[start:]))
}

// boundary picks the end of the window that begins at start. The end must
// lie past start+overlap so the next window advances, and past the window's
// midpoint so chunks do not degrade into slivers.
func (s *Splitter) boundary(r []rune, start int) int {
	limit := start + s.chunkSize
	lo := start + s.overlap + 1
	if mid := start + s.chunkSize/2; mid > lo {
		lo = mid
	}
	if lo > limit {
		return limit
	}

	for _, sep := range separators {
		if end := lastEnd(r[:limit], sep, lo); end > 0 {
			return end
		}
	}
	return limit
}

// lastEnd returns the index just past the last occurrence of sep in r that
// ends at or after lo, or 0 when there is none.
func lastEnd(r []rune, sep []rune, lo int) int {
	for i := len(r) - len(sep); i >= 0 && i+len(sep) >= lo; i-- {
		if runesEqual(r[i:i+len(sep)], sep) {
			return i + len(sep)
		}
	}
	return 0
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
