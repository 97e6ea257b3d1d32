package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devlog/internal/domain"
)

func (d *Database) RecordRequest(ctx context.Context, record domain.RequestRecord) error {
	if record.Task == "" {
		return errors.New("task is empty")
	}

	contentHash := strings.TrimSpace(record.ContentHash)
	if contentHash == "" {
		return errors.New("content hash is empty")
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `insert into assistant_requests
	(task, content_sha256, content_len, model, outcome, error_kind, duration_ms, created_at)
	values (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		string(record.Task),
		contentHash,
		record.ContentLen,
		record.Model,
		string(record.Outcome),
		record.ErrorKind,
		record.Duration.Milliseconds(),
		createdAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	return nil
}

func (d *Database) DeleteRequestsBefore(ctx context.Context, before time.Time) (int64, error) {
	query := "delete from assistant_requests where created_at < ?"

	res, err := d.db.ExecContext(ctx, query, before.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return deleted, nil
}

func (d *Database) GetRequestStats(ctx context.Context, since time.Time) ([]domain.TaskStats, error) {
	query := `select task, outcome, count(*)
	from assistant_requests
	where created_at >= ?
	group by task, outcome
	order by task, outcome`

	rows, err := d.db.QueryContext(ctx, query, since.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"since", since,
				"operation", "GetRequestStats")
		}
	}()

	stats := []domain.TaskStats{}
	for rows.Next() {
		var (
			s       domain.TaskStats
			task    string
			outcome string
		)
		if err = rows.Scan(&task, &outcome, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.Task = domain.Task(task)
		s.Outcome = domain.Outcome(outcome)
		stats = append(stats, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return stats, nil
}
