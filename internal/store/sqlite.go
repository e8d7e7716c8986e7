package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/jobharvest/internal/model"
)

// DBFileName is the SQLite file created inside the data directory.
const DBFileName = "jobharvest.db"

// ErrSessionNotFound is returned when a run id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// RecordStore keeps sessions and their records in SQLite.
type RecordStore struct {
	db     *sql.DB
	dbPath string
}

// Options configures RecordStore.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool
	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{CreateIfNotExists: true, EnableWAL: true}
}

// Open opens or creates the store in dir.
func Open(dir string, opts Options) (*RecordStore, error) {
	dbPath := filepath.Join(dir, DBFileName)

	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &RecordStore{db: db, dbPath: dbPath}
	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := s.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *RecordStore) Path() string {
	return s.dbPath
}

// Close closes the database.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

func (s *RecordStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		run_id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		criteria_json TEXT NOT NULL,
		summary_json TEXT,
		outcome TEXT,
		records_saved INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES sessions(run_id),
		record_id TEXT NOT NULL,
		source_id TEXT,
		title TEXT,
		company TEXT,
		location TEXT,
		salary TEXT,
		job_type TEXT,
		experience TEXT,
		remote_work TEXT,
		date_posted TEXT,
		description_html TEXT,
		description_text TEXT,
		apply_url TEXT,
		url TEXT,
		channel TEXT NOT NULL,
		fetched_at DATETIME NOT NULL,
		UNIQUE(run_id, record_id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
	CREATE INDEX IF NOT EXISTS idx_records_source ON records(source_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// BeginSession registers a run and returns a sink bound to it.
func (s *RecordStore) BeginSession(ctx context.Context, runID string, startedAt time.Time, criteria model.SearchCriteria) (*SessionWriter, error) {
	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to encode criteria: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (run_id, started_at, criteria_json) VALUES (?, ?, ?)`,
		runID, startedAt.UTC().Format(time.RFC3339Nano), string(criteriaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return &SessionWriter{store: s, runID: runID}, nil
}

// FinishSession stores the summary of a run.
func (s *RecordStore) FinishSession(ctx context.Context, summary model.Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET finished_at = ?, summary_json = ?, outcome = ?, records_saved = ? WHERE run_id = ?`,
		summary.StartedAt.Add(summary.Elapsed).UTC().Format(time.RFC3339Nano),
		string(summaryJSON), string(summary.Outcome), summary.RecordsSaved, summary.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, summary.RunID)
	}
	return nil
}

func (s *RecordStore) insertRecord(ctx context.Context, runID string, rec model.CanonicalRecord) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO records (
		run_id, record_id, source_id, title, company, location, salary, job_type,
		experience, remote_work, date_posted, description_html, description_text,
		apply_url, url, channel, fetched_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.ID, nullable(rec.SourceID), nullable(rec.Title), nullable(rec.Company),
		nullable(rec.Location), nullable(rec.Salary), nullable(rec.JobType),
		nullable(rec.Experience), nullable(rec.RemoteWork), nullable(rec.DatePosted),
		nullable(rec.DescriptionHTML), nullable(rec.DescriptionText), nullable(rec.ApplyURL),
		nullable(rec.URL), string(rec.Channel), rec.FetchedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
	}
	return nil
}

// SessionMetadata describes a stored run without its records.
type SessionMetadata struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Outcome      model.Outcome
	RecordsSaved int
	Criteria     model.SearchCriteria
}

// ListSessions returns the most recent runs first. limit <= 0 lists all.
func (s *RecordStore) ListSessions(ctx context.Context, limit int) ([]SessionMetadata, error) {
	query := `
	SELECT run_id, started_at, finished_at, outcome, records_saved, criteria_json
	FROM sessions
	ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionMetadata
	for rows.Next() {
		var (
			meta              SessionMetadata
			started           string
			finished, outcome sql.NullString
			criteriaJSON      string
		)
		if err := rows.Scan(&meta.RunID, &started, &finished, &outcome, &meta.RecordsSaved, &criteriaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		meta.StartedAt = parseTimestamp(started)
		if finished.Valid {
			meta.FinishedAt = parseTimestamp(finished.String)
		}
		meta.Outcome = model.Outcome(outcome.String)
		_ = json.Unmarshal([]byte(criteriaJSON), &meta.Criteria) //nolint:errcheck // criteria is informational
		out = append(out, meta)
	}
	return out, rows.Err()
}

// Summary returns the stored summary of a finished run.
func (s *RecordStore) Summary(ctx context.Context, runID string) (*model.Summary, error) {
	var summaryJSON sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT summary_json FROM sessions WHERE run_id = ?`, runID).Scan(&summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	if !summaryJSON.Valid {
		return nil, nil
	}
	var summary model.Summary
	if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return &summary, nil
}

// Records returns the records of a run in insertion order.
func (s *RecordStore) Records(ctx context.Context, runID string) ([]model.CanonicalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT record_id, source_id, title, company, location, salary, job_type,
		experience, remote_work, date_posted, description_html, description_text,
		apply_url, url, channel, fetched_at
	FROM records WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []model.CanonicalRecord
	for rows.Next() {
		var (
			rec     model.CanonicalRecord
			cols    [13]sql.NullString
			channel string
			fetched string
		)
		dest := []any{&rec.ID}
		for i := range cols {
			dest = append(dest, &cols[i])
		}
		dest = append(dest, &channel, &fetched)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		fields := []*string{
			&rec.SourceID, &rec.Title, &rec.Company, &rec.Location, &rec.Salary, &rec.JobType,
			&rec.Experience, &rec.RemoteWork, &rec.DatePosted, &rec.DescriptionHTML,
			&rec.DescriptionText, &rec.ApplyURL, &rec.URL,
		}
		for i, f := range fields {
			*f = cols[i].String
		}
		rec.Channel = model.Channel(channel)
		rec.FetchedAt = parseTimestamp(fetched)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SessionWriter is a Sink appending records to one run.
type SessionWriter struct {
	store *RecordStore
	runID string
}

// RunID returns the run the writer is bound to.
func (w *SessionWriter) RunID() string {
	return w.runID
}

// Append implements Sink.
func (w *SessionWriter) Append(ctx context.Context, rec model.CanonicalRecord) error {
	return w.store.insertRecord(ctx, w.runID, rec)
}

// Close implements Sink. The store itself stays open.
func (w *SessionWriter) Close() error {
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// timestampFormats are the layouts SQLite may hand back.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when no layout matches.
func parseTimestamp(s string) time.Time {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
