package document

import "testing"

func TestFormatSource(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"direct_input", "Direct Text Input"},
		{"/tmp/x/report.pdf", "PDF: report.pdf"},
		{"notes.pdf", "PDF: notes.pdf"},
		{"notes.txt", "notes.txt"},
		{"Unknown", "Unknown"},
	}
	for _, c := range cases {
		if got := FormatSource(c.in); got != c.want {
			t.Errorf("FormatSource(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFromText(t *testing.T) {
	segs := FromText("hello world")
	if len(segs) != 1 {
		t.Fatalf("len(segs) = %d, want 1", len(segs))
	}
	if segs[0].Text != "hello world" {
		t.Errorf("Text = %q, want %q", segs[0].Text, "hello world")
	}
	if got := segs[0].Source(); got != SourceDirectInput {
		t.Errorf("Source() = %q, want %q", got, SourceDirectInput)
	}

	if got := FromText("  \n\t"); len(got) != 0 {
		t.Errorf("FromText(whitespace) returned %d segments, want 0", len(got))
	}
}

func TestNewSegmentCopiesMetadata(t *testing.T) {
	meta := map[string]string{MetaSource: "a.pdf"}
	seg := NewSegment("x", meta)
	meta[MetaSource] = "b.pdf"

	if got := seg.Metadata[MetaSource]; got != "a.pdf" {
		t.Errorf("segment source = %q after caller mutation, want %q", got, "a.pdf")
	}
}

func TestSourceUnknown(t *testing.T) {
	if got := (Segment{Text: "x"}).Source(); got != "Unknown" {
		t.Errorf("Source() = %q, want %q", got, "Unknown")
	}
}
