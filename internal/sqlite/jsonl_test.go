package sqlite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestReadJSONL_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.jsonl")
	content := strings.Join([]string{
		`{"key":"a","value":"1","updated_at":"2026-01-01T00:00:00Z"}`,
		`not json`,
		``,
		`{"key":"b","value":"2","updated_at":"2026-01-01T00:00:00Z"}`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := readJSONL(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestWriteJSONL_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.jsonl")

	records := []json.RawMessage{
		json.RawMessage(`{"key":"a"}`),
		json.RawMessage(`{"key":"b"}`),
	}
	require.NoError(t, writeJSONL(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"key\":\"a\"}\n{\"key\":\"b\"}\n", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestInitJSONL_KeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"key":"a","value":"1"}`+"\n"), 0o644))

	require.NoError(t, initJSONL(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key":"a"`)
}

func TestAttach_LoadsJSONLWithMalformedAndKeylessLines(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		`{"key":"accounts","value":"[\"acct1\"]","updated_at":"2026-01-01T00:00:00Z"}`,
		`{garbage`,
		`{"value":"no key"}`,
		`{"key":"other","value":"x","updated_at":"2026-01-01T00:00:00Z","future_field":true}`,
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, jsonlFileName), []byte(content), 0o644))

	b := NewBackend(zaptest.NewLogger(t).Sugar())
	require.NoError(t, b.Attach(testConfig(dir)))
	defer b.Detach()

	value, ok, err := b.Get("accounts")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["acct1"]`, value)

	value, ok, err = b.Get("other")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", value)
}

func TestUpdate_RewritesJSONL(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend(zaptest.NewLogger(t).Sugar())
	require.NoError(t, b.Attach(testConfig(dir)))
	defer b.Detach()

	require.NoError(t, b.Update("k", "v1"))
	require.NoError(t, b.Update("k", "v2"))

	records, err := readJSONL(filepath.Join(dir, jsonlFileName))
	require.NoError(t, err)
	require.Len(t, records, 1)

	var rec stateRecord
	require.NoError(t, json.Unmarshal(records[0], &rec))
	assert.Equal(t, "k", rec.Key)
	assert.Equal(t, "v2", rec.Value)
	assert.NotEmpty(t, rec.UpdatedAt)
}
