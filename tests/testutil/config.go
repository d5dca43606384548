package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTestConfig writes yamlContent to kvconfig.yaml in a temporary directory
// and returns its path. The directory is removed when the test ends.
//
// Example:
//
//	path := WriteTestConfig(t, `
//	version: 0
//	store:
//	  url: https://my-vault.vault.azure.net/
//	`)
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "kvconfig.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}
