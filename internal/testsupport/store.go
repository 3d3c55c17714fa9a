package testsupport

import (
	"context"
	"testing"

	"genstudio/internal/api"
	"genstudio/internal/config"
	"genstudio/internal/jobstore"
)

// MustOpenJournal opens a jobstore.Store for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *jobstore.Store {
	t.Helper()

	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordJob journals a batch job with the given status and counts.
func RecordJob(t testing.TB, store *jobstore.Store, id string, status api.BatchStatus, total, completed, failed int) {
	t.Helper()

	err := store.Record(context.Background(), jobstore.Entry{
		ID:              id,
		Name:            "job " + id,
		Status:          status,
		TotalImages:     total,
		CompletedImages: completed,
		FailedImages:    failed,
	})
	if err != nil {
		t.Fatalf("store.Record: %v", err)
	}
}
