package testsupport

import (
	"testing"

	"fieldrec/internal/catalog"
	"fieldrec/internal/config"
)

// MustOpenCatalog opens the config's session catalog and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg.Paths.CatalogPath)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
