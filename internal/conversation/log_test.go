package conversation

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLog(t *testing.T, dir string) *Log {
	t.Helper()
	return NewLog(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRecordThenList(t *testing.T) {
	l := newTestLog(t, filepath.Join(t.TempDir(), "data", "conversations"))

	first, err := l.Record("q1", "a1", []string{"direct_input"})
	if err != nil {
		t.Fatalf("Record first: %v", err)
	}
	l.now = func() time.Time { return time.Now().Add(2 * time.Second) }
	second, err := l.Record("q2", "a2", []string{"b.pdf", "a.pdf", "b.pdf"})
	if err != nil {
		t.Fatalf("Record second: %v", err)
	}

	got, err := l.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List returned %d records, want 2", len(got))
	}
	if got[0].Question != "q2" || got[1].Question != "q1" {
		t.Errorf("order = %q, %q, want q2, q1", got[0].Question, got[1].Question)
	}
	if want := []string{"b.pdf", "a.pdf", "b.pdf"}; strings.Join(got[0].Sources, ",") != strings.Join(want, ",") {
		t.Errorf("sources = %v, want %v", got[0].Sources, want)
	}
	if got[0].Timestamp != second.Timestamp || got[1].Timestamp != first.Timestamp {
		t.Error("listed timestamps differ from the recorded ones")
	}
	if _, err := time.Parse(time.RFC3339Nano, got[0].Timestamp); err != nil {
		t.Errorf("timestamp %q is not ISO-8601: %v", got[0].Timestamp, err)
	}
}

func TestRecordFileFormat(t *testing.T) {
	dir := t.TempDir()
	l := newTestLog(t, dir)
	fixed := time.Date(2026, 3, 14, 15, 9, 26, 535897000, time.UTC)
	l.now = func() time.Time { return fixed }

	if _, err := l.Record("What is pi?", "About 3.14.", nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	path := filepath.Join(dir, "conversation_20260314_150926.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	want := `{
  "timestamp": "2026-03-14T15:09:26.535897Z",
  "question": "What is pi?",
  "answer": "About 3.14.",
  "sources": []
}`
	if string(data) != want {
		t.Errorf("file content =\n%s\nwant\n%s", data, want)
	}
}

func TestRecordSameSecondDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	l := newTestLog(t, dir)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	for _, q := range []string{"one", "two", "three"} {
		if _, err := l.Record(q, "a", nil); err != nil {
			t.Fatalf("Record %s: %v", q, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d files, want 3", len(entries))
	}
	got, err := l.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 || got[0].Question != "three" {
		t.Errorf("List = %+v, want three records with the latest first", got)
	}
}

func TestListMissingDir(t *testing.T) {
	l := newTestLog(t, filepath.Join(t.TempDir(), "never-created"))
	got, err := l.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}

func TestListSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	l := newTestLog(t, dir)
	if _, err := l.Record("ok", "fine", nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	os.WriteFile(filepath.Join(dir, "conversation_broken.json"), []byte("{not json"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	got, err := l.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Question != "ok" {
		t.Errorf("List = %+v, want only the valid record", got)
	}
}

func TestListAcceptsZonelessTimestamps(t *testing.T) {
	dir := t.TempDir()
	l := newTestLog(t, dir)
	rec := Record{Timestamp: "2020-05-01T10:00:00.123456", Question: "old", Answer: "a", Sources: []string{}}
	data, _ := json.MarshalIndent(rec, "", "  ")
	os.WriteFile(filepath.Join(dir, "conversation_20200501_100000.json"), data, 0o644)

	if _, err := l.Record("new", "b", nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := l.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Question != "new" || got[1].Question != "old" {
		t.Errorf("List = %+v, want new then old", got)
	}
}

func TestRecordUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	l := newTestLog(t, filepath.Join(blocker, "conversations"))

	_, err := l.Record("q", "a", nil)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
}
