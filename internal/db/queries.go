package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lucasnoah/ecosystemci/internal/history"
	"github.com/lucasnoah/ecosystemci/internal/store"
)

// LoadHistory returns a stack's records in stored order. An unknown stack is
// an empty history.
func (d *DB) LoadHistory(ctx context.Context, stack string) (history.History, error) {
	if err := store.ValidateStack(stack); err != nil {
		return nil, err
	}
	rows, err := d.conn.QueryContext(ctx, `
		SELECT commit_sha, commit_timestamp, commit_message,
		       author_name, author_email, author_login, author_avatar,
		       repo_full_name, repo_name, workflow_run_url, overall_status
		FROM commit_records WHERE stack = ? ORDER BY position`, stack)
	if err != nil {
		return nil, fmt.Errorf("load %s history: %w", stack, err)
	}
	defer rows.Close()

	h := history.History{}
	index := make(map[string]int)
	for rows.Next() {
		var r history.CommitRecord
		var name, email, login, avatar, runURL sql.NullString
		if err := rows.Scan(&r.CommitSHA, &r.CommitTimestamp, &r.CommitMessage,
			&name, &email, &login, &avatar,
			&r.Repository.FullName, &r.Repository.Name, &runURL, &r.OverallStatus); err != nil {
			return nil, fmt.Errorf("scan commit record: %w", err)
		}
		r.Author = history.Author{Name: name.String, Email: email.String, Login: login.String, AvatarURL: avatar.String}
		r.WorkflowRunURL = runURL.String
		r.Suites = []history.SuiteOutcome{}
		index[r.CommitSHA] = len(h)
		h = append(h, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s history: %w", stack, err)
	}
	rows.Close()

	suites, err := d.conn.QueryContext(ctx, `
		SELECT commit_sha, name, status, duration_ms, log_url, notes
		FROM suite_outcomes WHERE stack = ? ORDER BY commit_sha, position`, stack)
	if err != nil {
		return nil, fmt.Errorf("load %s suites: %w", stack, err)
	}
	defer suites.Close()

	for suites.Next() {
		var sha string
		var s history.SuiteOutcome
		var duration sql.NullInt64
		var logURL, notes sql.NullString
		if err := suites.Scan(&sha, &s.Name, &s.Status, &duration, &logURL, &notes); err != nil {
			return nil, fmt.Errorf("scan suite outcome: %w", err)
		}
		if duration.Valid {
			s.DurationMs = history.Int64(duration.Int64)
		}
		s.LogURL = logURL.String
		s.Notes = notes.String
		if i, ok := index[sha]; ok {
			h[i].Suites = append(h[i].Suites, s)
		}
	}
	return h, suites.Err()
}

// SaveHistory replaces all of a stack's rows in one transaction.
func (d *DB) SaveHistory(ctx context.Context, stack string, h history.History) error {
	if err := store.ValidateStack(stack); err != nil {
		return err
	}
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM suite_outcomes WHERE stack = ?`, stack); err != nil {
		return fmt.Errorf("clear %s suites: %w", stack, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM commit_records WHERE stack = ?`, stack); err != nil {
		return fmt.Errorf("clear %s records: %w", stack, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stacks (stack) VALUES (?)
		 ON CONFLICT(stack) DO UPDATE SET updated_at = datetime('now')`, stack); err != nil {
		return fmt.Errorf("touch stack %s: %w", stack, err)
	}

	for pos, r := range h {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO commit_records (stack, commit_sha, position, commit_timestamp, commit_message,
				author_name, author_email, author_login, author_avatar,
				repo_full_name, repo_name, workflow_run_url, overall_status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stack, r.CommitSHA, pos, r.CommitTimestamp, r.CommitMessage,
			nullString(r.Author.Name), nullString(r.Author.Email), nullString(r.Author.Login), nullString(r.Author.AvatarURL),
			r.Repository.FullName, r.Repository.Name, nullString(r.WorkflowRunURL), string(r.OverallStatus))
		if err != nil {
			return fmt.Errorf("insert commit %s: %w", r.CommitSHA, err)
		}
		for i, s := range r.Suites {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO suite_outcomes (stack, commit_sha, position, name, status, duration_ms, log_url, notes)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				stack, r.CommitSHA, i, s.Name, string(s.Status), s.DurationMs, nullString(s.LogURL), nullString(s.Notes))
			if err != nil {
				return fmt.Errorf("insert suite %s for %s: %w", s.Name, r.CommitSHA, err)
			}
		}
	}
	return tx.Commit()
}

// Stacks lists stacks that have been saved at least once.
func (d *DB) Stacks(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT stack FROM stacks ORDER BY stack`)
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	defer rows.Close()

	var stacks []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan stack: %w", err)
		}
		stacks = append(stacks, s)
	}
	return stacks, rows.Err()
}

// LogEvent records one reconciliation outcome.
func (d *DB) LogEvent(ctx context.Context, e store.Event) error {
	var err error
	if e.Timestamp == "" {
		_, err = d.conn.ExecContext(ctx,
			`INSERT INTO record_events (stack, commit_sha, status, kind, detail) VALUES (?, ?, ?, ?, ?)`,
			e.Stack, e.CommitSHA, nullString(string(e.Status)), e.Kind, nullString(e.Detail))
	} else {
		_, err = d.conn.ExecContext(ctx,
			`INSERT INTO record_events (stack, commit_sha, status, kind, detail, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
			e.Stack, e.CommitSHA, nullString(string(e.Status)), e.Kind, nullString(e.Detail), e.Timestamp)
	}
	if err != nil {
		return fmt.Errorf("log record event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (d *DB) RecentEvents(ctx context.Context, limit int) ([]store.Event, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, stack, commit_sha, status, kind, detail, timestamp
		 FROM record_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var events []store.Event
	for rows.Next() {
		var e store.Event
		var status, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Stack, &e.CommitSHA, &status, &e.Kind, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan record event: %w", err)
		}
		e.Status = history.Status(status.String)
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
