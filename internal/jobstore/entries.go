package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"genstudio/internal/api"
)

// Entry is one journaled batch job.
type Entry struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Status          api.BatchStatus `json:"status"`
	TotalImages     int             `json:"total_images"`
	CompletedImages int             `json:"completed_images"`
	FailedImages    int             `json:"failed_images"`
	LastMessage     string          `json:"last_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// EntryFromJob converts a tracked job into a journal entry.
func EntryFromJob(job api.BatchJob, message string) Entry {
	entry := Entry{
		ID:              job.ID,
		Name:            job.Name,
		Status:          job.Status,
		TotalImages:     job.TotalImages,
		CompletedImages: job.CompletedImages,
		FailedImages:    job.FailedImages,
		LastMessage:     message,
		CreatedAt:       job.CreatedAt,
	}
	if job.CompletedAt != nil {
		ts := *job.CompletedAt
		entry.CompletedAt = &ts
	}
	return entry
}

const entryColumns = "id, name, status, total_images, completed_images, failed_images, last_message, created_at, updated_at, completed_at"

// Record upserts entry. An empty CreatedAt keeps the stored creation time
// (or uses now for new rows); UpdatedAt is always stamped with now.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("journal entry requires an id")
	}
	now := time.Now().UTC()
	created := now
	if !entry.CreatedAt.IsZero() {
		created = entry.CreatedAt.UTC()
	}
	var completed any
	if entry.CompletedAt != nil {
		completed = entry.CompletedAt.UTC().Format(time.RFC3339Nano)
	} else if entry.Status.IsTerminal() {
		completed = now.Format(time.RFC3339Nano)
	}

	_, err := s.exec(ctx,
		`INSERT INTO batch_jobs (`+entryColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE batch_jobs.name END,
            status = excluded.status,
            total_images = excluded.total_images,
            completed_images = excluded.completed_images,
            failed_images = excluded.failed_images,
            last_message = COALESCE(excluded.last_message, batch_jobs.last_message),
            updated_at = excluded.updated_at,
            completed_at = COALESCE(batch_jobs.completed_at, excluded.completed_at)`,
		entry.ID,
		entry.Name,
		string(entry.Status),
		entry.TotalImages,
		entry.CompletedImages,
		entry.FailedImages,
		nullableString(entry.LastMessage),
		created.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		completed,
	)
	if err != nil {
		return fmt.Errorf("record batch job %s: %w", entry.ID, err)
	}
	return nil
}

// Get returns the entry for id, or nil when it was never journaled.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+entryColumns+" FROM batch_jobs WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch job %s: %w", id, err)
	}
	return entry, nil
}

// List returns journaled entries, most recently updated first. When statuses
// are given only matching entries are returned.
func (s *Store) List(ctx context.Context, statuses ...api.BatchStatus) ([]Entry, error) {
	query := "SELECT " + entryColumns + " FROM batch_jobs"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY updated_at DESC, id"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batch jobs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch job: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Remove deletes the entry for id. Missing entries are not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, "DELETE FROM batch_jobs WHERE id = ?", id); err != nil {
		return fmt.Errorf("remove batch job %s: %w", id, err)
	}
	return nil
}

// ClearFinished removes every entry in a terminal status and reports how many
// were deleted.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, "DELETE FROM batch_jobs WHERE status IN (?, ?, ?)",
		string(api.BatchCompleted), string(api.BatchFailed), string(api.BatchCancelled))
	if err != nil {
		return 0, fmt.Errorf("clear finished batch jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry        Entry
		status       string
		lastMessage  sql.NullString
		createdRaw   string
		updatedRaw   string
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.Name,
		&status,
		&entry.TotalImages,
		&entry.CompletedImages,
		&entry.FailedImages,
		&lastMessage,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}
	entry.Status = api.BatchStatus(status)
	entry.LastMessage = lastMessage.String
	entry.CreatedAt = parseTime(createdRaw)
	entry.UpdatedAt = parseTime(updatedRaw)
	if completedRaw.Valid && completedRaw.String != "" {
		ts := parseTime(completedRaw.String)
		entry.CompletedAt = &ts
	}
	return &entry, nil
}

func parseTime(raw string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
