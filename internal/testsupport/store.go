package testsupport

import (
	"context"
	"testing"

	"astropitography/internal/config"
	"astropitography/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSession creates a new capture session item for tests using the provided store.
func NewSession(t testing.TB, store *queue.Store, kind queue.Kind, target string) *queue.Item {
	t.Helper()

	item, err := store.NewSession(context.Background(), kind, target, "")
	if err != nil {
		t.Fatalf("store.NewSession: %v", err)
	}
	return item
}
