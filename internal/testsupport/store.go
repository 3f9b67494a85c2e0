package testsupport

import (
	"context"
	"testing"

	"jellywatch/internal/config"
	"jellywatch/internal/settings"
)

// MustOpenStore opens a settings.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *settings.Store {
	t.Helper()

	store, err := settings.Open(cfg)
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SaveService stores a service row pointing at baseURL and applies mutate
// before saving.
func SaveService(t testing.TB, store *settings.Store, baseURL string, mutate func(*settings.Service)) settings.Service {
	t.Helper()

	svc := settings.Service{JellyfinURL: baseURL, JellyfinAPIKey: "test-key"}
	if mutate != nil {
		mutate(&svc)
	}
	saved, err := store.SaveService(context.Background(), svc)
	if err != nil {
		t.Fatalf("store.SaveService: %v", err)
	}
	return saved
}
