package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/gatekeeper/internal/db"
)

// Harness is a lightweight integration test environment.
//
// It provisions a temp project directory with a `.gatekeeper/state.db` and keeps
// cleanup automatic via t.Cleanup.
type Harness struct {
	T             *testing.T
	ProjectDir    string
	GatekeeperDir string
	DBPath        string
	DB            *db.DB
}

func NewHarness(t *testing.T) *Harness {
	t.Helper()

	projectDir := t.TempDir()
	gkDir := filepath.Join(projectDir, ".gatekeeper")
	if err := os.MkdirAll(gkDir, 0750); err != nil {
		t.Fatalf("NewHarness: mkdir .gatekeeper: %v", err)
	}

	dbPath := filepath.Join(gkDir, "state.db")
	database := NewTestDBAtPath(t, dbPath)

	return &Harness{
		T:             t,
		ProjectDir:    projectDir,
		GatekeeperDir: gkDir,
		DBPath:        dbPath,
		DB:            database,
	}
}

// MustPath joins ProjectDir with parts, failing the test on error.
func (h *Harness) MustPath(parts ...string) string {
	h.T.Helper()
	if h.ProjectDir == "" {
		h.T.Fatalf("Harness.MustPath: harness not initialized")
	}
	all := append([]string{h.ProjectDir}, parts...)
	return filepath.Join(all...)
}

// WriteFile writes a file relative to the project directory.
func (h *Harness) WriteFile(rel string, data []byte, perm os.FileMode) string {
	h.T.Helper()
	if strings.TrimSpace(rel) == "" {
		h.T.Fatalf("Harness.WriteFile: rel path is required")
	}
	abs := h.MustPath(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0750); err != nil {
		h.T.Fatalf("Harness.WriteFile: mkdir: %v", err)
	}
	if err := os.WriteFile(abs, data, perm); err != nil {
		h.T.Fatalf("Harness.WriteFile: write: %v", err)
	}
	return abs
}

// WriteConfig writes .gatekeeper/config.toml.
func (h *Harness) WriteConfig(toml string) string {
	h.T.Helper()
	return h.WriteFile(filepath.Join(".gatekeeper", "config.toml"), []byte(toml), 0600)
}

func (h *Harness) String() string {
	if h == nil {
		return "Harness<nil>"
	}
	return fmt.Sprintf("Harness(project=%s, db=%s)", h.ProjectDir, h.DBPath)
}
