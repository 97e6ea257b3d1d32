package database_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"devlog/internal/database"
	"devlog/internal/domain"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"), log)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})

	return db
}

func record(task domain.Task, outcome domain.Outcome, createdAt time.Time) domain.RequestRecord {
	return domain.RequestRecord{
		Task:        task,
		ContentHash: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		ContentLen:  4,
		Model:       "llama-3.1-8b-instant",
		Outcome:     outcome,
		Duration:    1200 * time.Millisecond,
		CreatedAt:   createdAt,
	}
}

func TestNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	for i := range 2 {
		db, err := database.New(context.Background(), path, log)
		if err != nil {
			t.Fatalf("open %d: unexpected error: %v", i, err)
		}
		if err = db.Close(); err != nil {
			t.Fatalf("close %d: unexpected error: %v", i, err)
		}
	}
}

func TestRecordRequestAndStats(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	records := []domain.RequestRecord{
		record(domain.TaskSummarize, domain.OutcomeSuccess, now),
		record(domain.TaskSummarize, domain.OutcomeSuccess, now.Add(time.Minute)),
		record(domain.TaskSummarize, domain.OutcomeCached, now.Add(time.Minute)),
		record(domain.TaskTag, domain.OutcomeFailure, now.Add(time.Minute)),
		record(domain.TaskTag, domain.OutcomeSuccess, now.Add(-48*time.Hour)),
	}
	records[3].ErrorKind = "rate_limited"

	for _, r := range records {
		if err := db.RecordRequest(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stats, err := db.GetRequestStats(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.TaskStats{
		{Task: domain.TaskSummarize, Outcome: domain.OutcomeCached, Count: 1},
		{Task: domain.TaskSummarize, Outcome: domain.OutcomeSuccess, Count: 2},
		{Task: domain.TaskTag, Outcome: domain.OutcomeFailure, Count: 1},
	}
	if len(stats) != len(want) {
		t.Fatalf("Expected %v stats, got %v", want, stats)
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Errorf("Expected %v stats at %d, got %v", want[i], i, stats[i])
		}
	}
}

func TestRecordRequestValidates(t *testing.T) {
	db := newTestDatabase(t)
	now := time.Now()

	missingTask := record("", domain.OutcomeSuccess, now)
	if err := db.RecordRequest(context.Background(), missingTask); err == nil {
		t.Fatalf("expected error for empty task")
	}

	missingHash := record(domain.TaskTag, domain.OutcomeSuccess, now)
	missingHash.ContentHash = "  "
	if err := db.RecordRequest(context.Background(), missingHash); err == nil {
		t.Fatalf("expected error for empty content hash")
	}
}

func TestDeleteRequestsBefore(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)

	for _, createdAt := range []time.Time{now.Add(-60 * 24 * time.Hour), now.Add(-40 * 24 * time.Hour), now} {
		if err := db.RecordRequest(ctx, record(domain.TaskTag, domain.OutcomeSuccess, createdAt)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	deleted, err := db.DeleteRequestsBefore(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected two deleted rows, got %d", deleted)
	}

	stats, err := db.GetRequestStats(ctx, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 1 || stats[0].Count != 1 {
		t.Fatalf("expected one remaining row, got %v", stats)
	}
}
