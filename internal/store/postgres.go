package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nao1215/jobharvest/internal/model"
)

// DefaultPostgresTable is the table PostgresSink writes to.
const DefaultPostgresTable = "job_postings"

// PostgresSink upserts records into a PostgreSQL table.
// A record id that already exists is left untouched.
type PostgresSink struct {
	pool  *pgxpool.Pool
	table string
	runID string
}

// PostgresOptions configures PostgresSink.
type PostgresOptions struct {
	// Table defaults to DefaultPostgresTable. It may be schema-qualified.
	Table string
	// MaxConns defaults to 2.
	MaxConns int32
	// SimpleProtocol disables prepared statements, for use behind pgbouncer.
	SimpleProtocol bool
}

// OpenPostgres connects to dsn, verifies the connection and creates the
// table when it does not exist. Records are tagged with runID.
func OpenPostgres(ctx context.Context, dsn, runID string, opts PostgresOptions) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 2
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.SimpleProtocol {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	table := opts.Table
	if table == "" {
		table = DefaultPostgresTable
	}
	s := &PostgresSink{pool: pool, table: quoteIdent(table), runID: runID}
	if err := s.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) ensureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		record_id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
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
		fetched_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create postgres table: %w", err)
	}
	return nil
}

// Append implements Sink.
func (s *PostgresSink) Append(ctx context.Context, rec model.CanonicalRecord) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO `+s.table+` (
		record_id, run_id, source_id, title, company, location, salary, job_type,
		experience, remote_work, date_posted, description_html, description_text,
		apply_url, url, channel, fetched_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (record_id) DO NOTHING`,
		rec.ID, s.runID, textOrNil(rec.SourceID), textOrNil(rec.Title), textOrNil(rec.Company),
		textOrNil(rec.Location), textOrNil(rec.Salary), textOrNil(rec.JobType),
		textOrNil(rec.Experience), textOrNil(rec.RemoteWork), textOrNil(rec.DatePosted),
		textOrNil(rec.DescriptionHTML), textOrNil(rec.DescriptionText), textOrNil(rec.ApplyURL),
		textOrNil(rec.URL), string(rec.Channel), rec.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
	}
	return nil
}

// Close implements Sink.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// quoteIdent quotes each dot-separated part of a table name.
func quoteIdent(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
