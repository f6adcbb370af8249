package document

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrExtraction is returned when a document cannot be read or yields no text.
var ErrExtraction = errors.New("extraction failed")

// ExtractPDF returns one segment per page that carries text. Each segment's
// source is name and its page metadata is the zero-based page index.
func ExtractPDF(name string, data []byte) (segs []Segment, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			segs = nil
			err = fmt.Errorf("%w: reading %s: %v", ErrExtraction, name, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrExtraction, name, err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, fn := range p.Fonts() {
			f := p.Font(fn)
			fonts[fn] = &f
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d of %s: %v", ErrExtraction, i, name, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segs = append(segs, NewSegment(text, map[string]string{
			MetaSource: name,
			MetaPage:   strconv.Itoa(i - 1),
		}))
	}

	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: no text found in %s", ErrExtraction, name)
	}
	return segs, nil
}
