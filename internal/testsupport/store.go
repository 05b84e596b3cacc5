package testsupport

import (
	"testing"

	"slidecast/internal/config"
	"slidecast/internal/registry"
)

// MustOpenHistory opens a registry.History for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *registry.History {
	t.Helper()

	history, err := registry.OpenHistory(cfg.History.Path)
	if err != nil {
		t.Fatalf("registry.OpenHistory: %v", err)
	}
	t.Cleanup(func() {
		history.Close()
	})
	return history
}
