package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

func testConfig(dataDir string) types.Config {
	return types.Config{DataDir: dataDir}.WithDefaults()
}

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend(zaptest.NewLogger(t).Sugar())
	config := testConfig(tmpDir)

	if err := b.Attach(config); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	// Verify database and state files created
	for _, name := range []string{dbFileName, jsonlFileName} {
		if _, err := os.Stat(filepath.Join(tmpDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}

	// Verify double attach fails
	if err := b.Attach(config); err != types.ErrAlreadyAttached {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}

	b.Detach()
}

func TestBackend_AttachRejectsInvalidConfig(t *testing.T) {
	b := NewBackend(zaptest.NewLogger(t).Sugar())
	err := b.Attach(types.Config{Backend: "postgres"})
	if err != types.ErrBackendUnknown {
		t.Fatalf("expected ErrBackendUnknown, got %v", err)
	}
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend(zaptest.NewLogger(t).Sugar())
	b.Attach(testConfig(t.TempDir()))

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	// Verify idempotent
	if err := b.Detach(); err != nil {
		t.Errorf("second Detach should not error, got %v", err)
	}

	// Verify operations fail after detach
	if _, _, err := b.Get("k"); err != types.ErrStoreDetached {
		t.Errorf("expected ErrStoreDetached from Get, got %v", err)
	}
	if err := b.Update("k", "v"); err != types.ErrStoreDetached {
		t.Errorf("expected ErrStoreDetached from Update, got %v", err)
	}
}

func TestBackend_GetMissingKey(t *testing.T) {
	b := NewBackend(zaptest.NewLogger(t).Sugar())
	b.Attach(testConfig(t.TempDir()))
	defer b.Detach()

	value, ok, err := b.Get("missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok || value != "" {
		t.Errorf("expected missing key, got %q ok=%v", value, ok)
	}
}

func TestBackend_UpdateReplacesValue(t *testing.T) {
	b := NewBackend(zaptest.NewLogger(t).Sugar())
	b.Attach(testConfig(t.TempDir()))
	defer b.Detach()

	if err := b.Update("accounts", `["a"]`); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := b.Update("accounts", `["a","b"]`); err != nil {
		t.Fatalf("second Update failed: %v", err)
	}

	value, ok, err := b.Get("accounts")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if value != `["a","b"]` {
		t.Errorf("expected latest value, got %q", value)
	}
}

func TestBackend_ValuesSurviveReattach(t *testing.T) {
	tmpDir := t.TempDir()
	logger := zaptest.NewLogger(t).Sugar()

	b := NewBackend(logger)
	b.Attach(testConfig(tmpDir))
	if err := b.Update("accounts", `[{"id":"x"}]`); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	b.Detach()

	// Remove the database; the JSONL file is the source of truth.
	os.Remove(filepath.Join(tmpDir, dbFileName))

	b2 := NewBackend(logger)
	if err := b2.Attach(testConfig(tmpDir)); err != nil {
		t.Fatalf("reattach failed: %v", err)
	}
	defer b2.Detach()

	value, ok, err := b2.Get("accounts")
	if err != nil || !ok {
		t.Fatalf("Get after reattach failed: ok=%v err=%v", ok, err)
	}
	if value != `[{"id":"x"}]` {
		t.Errorf("unexpected value after reattach: %q", value)
	}
}
