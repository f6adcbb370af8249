// Package conversation persists answered questions as one JSON file per
// turn and lists them back newest first.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrPersistence marks failures to write a record.
var ErrPersistence = errors.New("persisting conversation failed")

// TimestampLayout is ISO-8601 with microseconds and a zone offset.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

const fileLayout = "20060102_150405"

// Record is one persisted turn. Field names are part of the on-disk format.
type Record struct {
	Timestamp string   `json:"timestamp"`
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
}

// Log is an append-only store of Records in a directory.
type Log struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewLog returns a Log rooted at dir. The directory is created on first write.
func NewLog(dir string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{dir: dir, now: time.Now, logger: logger}
}

// Dir returns the directory records are written to.
func (l *Log) Dir() string {
	return l.dir
}

// Record persists one turn and returns what was written. Records are never
// overwritten: a second record within the same second gets a numeric suffix.
func (l *Log) Record(question, answer string, sources []string) (Record, error) {
	now := l.now()
	rec := Record{
		Timestamp: now.Format(TimestampLayout),
		Question:  question,
		Answer:    answer,
		Sources:   append([]string{}, sources...),
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Record{}, fmt.Errorf("%w: encoding record: %w", ErrPersistence, err)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return Record{}, fmt.Errorf("%w: creating %s: %w", ErrPersistence, l.dir, err)
	}

	f, path, err := l.create(now)
	if err != nil {
		return Record{}, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return Record{}, fmt.Errorf("%w: writing %s: %w", ErrPersistence, path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return Record{}, fmt.Errorf("%w: syncing %s: %w", ErrPersistence, path, err)
	}
	if err := f.Close(); err != nil {
		return Record{}, fmt.Errorf("%w: closing %s: %w", ErrPersistence, path, err)
	}

	l.logger.Debug("conversation recorded", "path", path, "sources", len(rec.Sources))
	return rec, nil
}

// create opens a new file named after now, adding _1, _2, ... when a record
// for the same second already exists.
func (l *Log) create(now time.Time) (*os.File, string, error) {
	base := "conversation_" + now.Format(fileLayout)
	for i := 0; i < 1000; i++ {
		name := base + ".json"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.json", base, i)
		}
		path := filepath.Join(l.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("%w: creating %s: %w", ErrPersistence, path, err)
		}
	}
	return nil, "", fmt.Errorf("%w: too many records for %s", ErrPersistence, base)
}

// List returns every readable record, newest first. A missing directory
// yields an empty list. Files that cannot be parsed are skipped.
func (l *Log) List() ([]Record, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", l.dir, err)
	}

	type dated struct {
		rec  Record
		at   time.Time
		name string
	}
	var all []dated
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("skipping unreadable conversation", "path", path, "error", err)
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			l.logger.Warn("skipping malformed conversation", "path", path, "error", err)
			continue
		}
		at, err := parseTimestamp(rec.Timestamp)
		if err != nil {
			l.logger.Warn("skipping conversation with bad timestamp", "path", path, "error", err)
			continue
		}
		all = append(all, dated{rec: rec, at: at, name: e.Name()})
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].at.Equal(all[j].at) {
			return all[i].at.After(all[j].at)
		}
		return all[i].name > all[j].name
	})

	out := make([]Record, len(all))
	for i, d := range all {
		out[i] = d.rec
	}
	return out, nil
}

// parseTimestamp accepts RFC 3339 and zone-less timestamps, the latter
// read as local time.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999", s, time.Local)
}
