package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/jobharvest/internal/model"
)

func sampleRecord(id string) model.CanonicalRecord {
	return model.CanonicalRecord{
		ID:              id,
		SourceID:        id,
		Title:           "Développeur Go",
		Company:         "ACME",
		Location:        "Paris",
		DescriptionHTML: "<p>Go & <b>SQL</b></p>",
		DescriptionText: "Go & SQL",
		URL:             "https://www.apec.fr/detail/" + id,
		Channel:         model.ChannelAPI,
		FetchedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T) *RecordStore {
	t.Helper()

	s, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestJSONLines(t *testing.T) {
	t.Parallel()

	t.Run("writes one record per line without escaping html", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		sink := NewJSONLines(&buf)
		for _, id := range []string{"1", "2"} {
			if err := sink.Append(context.Background(), sampleRecord(id)); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
		}
		if err := sink.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("got %d lines, want 2", len(lines))
		}
		if !strings.Contains(lines[0], "<p>Go & <b>SQL</b></p>") {
			t.Errorf("html was escaped: %s", lines[0])
		}
		var got model.CanonicalRecord
		if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if got.ID != "2" || got.Channel != model.ChannelAPI {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("appends to an existing file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out.jsonl")
		for _, id := range []string{"a", "b"} {
			sink, err := OpenJSONLines(path)
			if err != nil {
				t.Fatalf("OpenJSONLines() error = %v", err)
			}
			if err := sink.Append(context.Background(), sampleRecord(id)); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			if err := sink.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}
		}

		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		n := 0
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			n++
		}
		if n != 2 {
			t.Errorf("got %d lines, want 2", n)
		}
	})
}

type failingSink struct {
	appended int
	closed   bool
}

var errSinkDown = errors.New("sink down")

func (f *failingSink) Append(context.Context, model.CanonicalRecord) error {
	f.appended++
	return errSinkDown
}

func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestMultiSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bad := &failingSink{}
	m := NewMultiSink(NewJSONLines(&buf), nil, bad)
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}

	err := m.Append(context.Background(), sampleRecord("1"))
	if !errors.Is(err, errSinkDown) {
		t.Errorf("Append() error = %v, want errSinkDown", err)
	}
	if buf.Len() == 0 {
		t.Error("healthy sink did not receive the record")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !bad.closed {
		t.Error("failing sink was not closed")
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "newdir", "subdir")
		s, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer s.Close()

		if _, err := os.Stat(filepath.Join(dir, DBFileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if s.Path() != filepath.Join(dir, DBFileName) {
			t.Errorf("Path() = %s", s.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "missing")
		if _, err := Open(dir, Options{}); err == nil {
			t.Error("expected error for missing database")
		}
	})
}

func TestRecordStoreSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	criteria := model.SearchCriteria{Keyword: "go", DesiredCount: 2, PageSize: 20, MaxPages: 5}

	w, err := s.BeginSession(ctx, "run-1", started, criteria)
	if err != nil {
		t.Fatalf("BeginSession() error = %v", err)
	}
	if w.RunID() != "run-1" {
		t.Errorf("RunID() = %s", w.RunID())
	}
	for _, id := range []string{"b", "a"} {
		if err := w.Append(ctx, sampleRecord(id)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := w.Append(ctx, sampleRecord("a")); err == nil {
		t.Error("duplicate record id within a session should fail")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	summary := model.Summary{
		RunID:        "run-1",
		Criteria:     criteria,
		StartedAt:    started,
		Elapsed:      3 * time.Second,
		RecordsSaved: 2,
		Outcome:      model.OutcomeComplete,
	}
	if err := s.FinishSession(ctx, summary); err != nil {
		t.Fatalf("FinishSession() error = %v", err)
	}

	t.Run("records keep insertion order", func(t *testing.T) {
		recs, err := s.Records(ctx, "run-1")
		if err != nil {
			t.Fatalf("Records() error = %v", err)
		}
		if len(recs) != 2 || recs[0].ID != "b" || recs[1].ID != "a" {
			t.Fatalf("Records() = %+v", recs)
		}
		if recs[0].DescriptionText != "Go & SQL" || recs[0].Salary != "" {
			t.Errorf("record fields not round-tripped: %+v", recs[0])
		}
		if !recs[0].FetchedAt.Equal(sampleRecord("b").FetchedAt) {
			t.Errorf("FetchedAt = %v", recs[0].FetchedAt)
		}
	})

	t.Run("sessions list finished runs", func(t *testing.T) {
		sessions, err := s.ListSessions(ctx, 10)
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		if len(sessions) != 1 {
			t.Fatalf("got %d sessions, want 1", len(sessions))
		}
		got := sessions[0]
		if got.Outcome != model.OutcomeComplete || got.RecordsSaved != 2 || got.Criteria.Keyword != "go" {
			t.Errorf("session = %+v", got)
		}
		if !got.FinishedAt.Equal(started.Add(3 * time.Second)) {
			t.Errorf("FinishedAt = %v", got.FinishedAt)
		}
	})

	t.Run("summary round-trips", func(t *testing.T) {
		got, err := s.Summary(ctx, "run-1")
		if err != nil {
			t.Fatalf("Summary() error = %v", err)
		}
		if got == nil || got.RecordsSaved != 2 || got.Elapsed != 3*time.Second {
			t.Errorf("Summary() = %+v", got)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		if _, err := s.Summary(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Summary() error = %v, want ErrSessionNotFound", err)
		}
		err := s.FinishSession(ctx, model.Summary{RunID: "nope"})
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("FinishSession() error = %v, want ErrSessionNotFound", err)
		}
	})
}

func TestPostgresSink(t *testing.T) {
	t.Parallel()

	dsn := os.Getenv("JOBHARVEST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("JOBHARVEST_TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()
	table := "jobharvest_test_" + time.Now().Format("20060102150405")
	sink, err := OpenPostgres(ctx, dsn, "run-pg", PostgresOptions{Table: table})
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	t.Cleanup(func() {
		_, _ = sink.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+sink.table)
		_ = sink.Close()
	})

	for range 2 {
		if err := sink.Append(ctx, sampleRecord("pg-1")); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	var n int
	if err := sink.pool.QueryRow(ctx, "SELECT count(*) FROM "+sink.table).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("got %d rows, want 1", n)
	}
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	if got := quoteIdent("public.jobs"); got != `"public"."jobs"` {
		t.Errorf("quoteIdent() = %s", got)
	}
}
