// Package pgstore keeps stack histories in PostgreSQL for deployments that
// share one database between the recorder and the dashboard.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lucasnoah/ecosystemci/internal/history"
	"github.com/lucasnoah/ecosystemci/internal/store"
)

// Store is a store.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS stacks (
    stack      TEXT PRIMARY KEY,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS commit_records (
    stack            TEXT NOT NULL REFERENCES stacks(stack) ON DELETE CASCADE,
    commit_sha       TEXT NOT NULL,
    position         INTEGER NOT NULL,
    commit_timestamp TEXT NOT NULL,
    commit_message   TEXT NOT NULL,
    author_name      TEXT NOT NULL DEFAULT '',
    author_email     TEXT NOT NULL DEFAULT '',
    author_login     TEXT NOT NULL DEFAULT '',
    author_avatar    TEXT NOT NULL DEFAULT '',
    repo_full_name   TEXT NOT NULL,
    repo_name        TEXT NOT NULL,
    workflow_run_url TEXT NOT NULL DEFAULT '',
    overall_status   TEXT NOT NULL CHECK (overall_status IN ('success','failure','cancelled')),
    PRIMARY KEY (stack, commit_sha)
);

CREATE TABLE IF NOT EXISTS suite_outcomes (
    stack       TEXT NOT NULL,
    commit_sha  TEXT NOT NULL,
    position    INTEGER NOT NULL,
    name        TEXT NOT NULL,
    status      TEXT NOT NULL CHECK (status IN ('success','failure','cancelled')),
    duration_ms BIGINT,
    log_url     TEXT NOT NULL DEFAULT '',
    notes       TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (stack, commit_sha, position),
    FOREIGN KEY (stack, commit_sha) REFERENCES commit_records(stack, commit_sha) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS record_events (
    id         BIGSERIAL PRIMARY KEY,
    stack      TEXT NOT NULL,
    commit_sha TEXT NOT NULL,
    status     TEXT NOT NULL DEFAULT '',
    kind       TEXT NOT NULL CHECK (kind IN ('recorded','rejected','failed')),
    detail     TEXT NOT NULL DEFAULT '',
    timestamp  TEXT NOT NULL DEFAULT to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
);
`

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

// Reset drops every table and re-applies the schema.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS record_events, suite_outcomes, commit_records, stacks`); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return s.Migrate(ctx)
}

// LoadHistory returns a stack's records in stored order.
func (s *Store) LoadHistory(ctx context.Context, stack string) (history.History, error) {
	if err := store.ValidateStack(stack); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT commit_sha, commit_timestamp, commit_message,
		       author_name, author_email, author_login, author_avatar,
		       repo_full_name, repo_name, workflow_run_url, overall_status
		FROM commit_records WHERE stack = $1 ORDER BY position`, stack)
	if err != nil {
		return nil, fmt.Errorf("load %s history: %w", stack, err)
	}
	h := history.History{}
	index := make(map[string]int)
	for rows.Next() {
		var r history.CommitRecord
		var status string
		if err := rows.Scan(&r.CommitSHA, &r.CommitTimestamp, &r.CommitMessage,
			&r.Author.Name, &r.Author.Email, &r.Author.Login, &r.Author.AvatarURL,
			&r.Repository.FullName, &r.Repository.Name, &r.WorkflowRunURL, &status); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan commit record: %w", err)
		}
		r.OverallStatus = history.Status(status)
		r.Suites = []history.SuiteOutcome{}
		index[r.CommitSHA] = len(h)
		h = append(h, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s history: %w", stack, err)
	}

	suites, err := s.pool.Query(ctx, `
		SELECT commit_sha, name, status, duration_ms, log_url, notes
		FROM suite_outcomes WHERE stack = $1 ORDER BY commit_sha, position`, stack)
	if err != nil {
		return nil, fmt.Errorf("load %s suites: %w", stack, err)
	}
	defer suites.Close()
	for suites.Next() {
		var sha, status string
		var o history.SuiteOutcome
		if err := suites.Scan(&sha, &o.Name, &status, &o.DurationMs, &o.LogURL, &o.Notes); err != nil {
			return nil, fmt.Errorf("scan suite outcome: %w", err)
		}
		o.Status = history.Status(status)
		if i, ok := index[sha]; ok {
			h[i].Suites = append(h[i].Suites, o)
		}
	}
	return h, suites.Err()
}

// SaveHistory replaces all of a stack's rows in one transaction.
func (s *Store) SaveHistory(ctx context.Context, stack string, h history.History) error {
	if err := store.ValidateStack(stack); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM commit_records WHERE stack = $1`, stack); err != nil {
			return fmt.Errorf("clear %s records: %w", stack, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO stacks (stack) VALUES ($1)
			ON CONFLICT (stack) DO UPDATE SET updated_at = now()`, stack); err != nil {
			return fmt.Errorf("touch stack %s: %w", stack, err)
		}

		batch := &pgx.Batch{}
		for pos, r := range h {
			batch.Queue(`
				INSERT INTO commit_records (stack, commit_sha, position, commit_timestamp, commit_message,
					author_name, author_email, author_login, author_avatar,
					repo_full_name, repo_name, workflow_run_url, overall_status)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
				stack, r.CommitSHA, pos, r.CommitTimestamp, r.CommitMessage,
				r.Author.Name, r.Author.Email, r.Author.Login, r.Author.AvatarURL,
				r.Repository.FullName, r.Repository.Name, r.WorkflowRunURL, string(r.OverallStatus))
			for i, o := range r.Suites {
				batch.Queue(`
					INSERT INTO suite_outcomes (stack, commit_sha, position, name, status, duration_ms, log_url, notes)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
					stack, r.CommitSHA, i, o.Name, string(o.Status), o.DurationMs, o.LogURL, o.Notes)
			}
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert %s history: %w", stack, err)
		}
		return nil
	})
}

// Stacks lists stacks that have been saved at least once.
func (s *Store) Stacks(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT stack FROM stacks ORDER BY stack`)
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	stacks, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	return stacks, nil
}

// LogEvent records one reconciliation outcome.
func (s *Store) LogEvent(ctx context.Context, e store.Event) error {
	var err error
	if e.Timestamp == "" {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO record_events (stack, commit_sha, status, kind, detail) VALUES ($1, $2, $3, $4, $5)`,
			e.Stack, e.CommitSHA, string(e.Status), e.Kind, e.Detail)
	} else {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO record_events (stack, commit_sha, status, kind, detail, timestamp) VALUES ($1, $2, $3, $4, $5, $6)`,
			e.Stack, e.CommitSHA, string(e.Status), e.Kind, e.Detail, e.Timestamp)
	}
	if err != nil {
		return fmt.Errorf("log record event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]store.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, stack, commit_sha, status, kind, detail, timestamp
		 FROM record_events ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Event, error) {
		var e store.Event
		var status string
		err := row.Scan(&e.ID, &e.Stack, &e.CommitSHA, &status, &e.Kind, &e.Detail, &e.Timestamp)
		e.Status = history.Status(status)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return events, nil
}
