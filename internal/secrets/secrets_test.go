package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

const testService = "test.cosmosx.connectionStrings"

func TestNoop_NeverFails(t *testing.T) {
	ctx := context.Background()
	var store types.CredentialStore = Noop{}

	assert.False(t, store.Available())
	require.NoError(t, store.SetSecret(ctx, testService, "acct", "cs"))

	value, ok, err := store.GetSecret(ctx, testService, "acct")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)

	require.NoError(t, store.DeleteSecret(ctx, testService, "acct"))
}

func TestFileVault_RoundTrip(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t).Sugar()
	path := filepath.Join(t.TempDir(), "secrets.vault")

	v, err := NewFileVault(path, "correct horse", logger)
	require.NoError(t, err)
	require.NoError(t, v.SetSecret(ctx, testService, "acct1", "mongodb://localhost"))
	require.NoError(t, v.SetSecret(ctx, testService, "acct2", "AccountEndpoint=https://a/;AccountKey=k"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "mongodb://localhost", "vault must not hold cleartext")

	reopened, err := NewFileVault(path, "correct horse", logger)
	require.NoError(t, err)
	value, ok, err := reopened.GetSecret(ctx, testService, "acct1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "mongodb://localhost", value)

	require.NoError(t, reopened.DeleteSecret(ctx, testService, "acct1"))
	_, ok, err = reopened.GetSecret(ctx, testService, "acct1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, reopened.DeleteSecret(ctx, testService, "missing"))
}

func TestFileVault_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t).Sugar()
	path := filepath.Join(t.TempDir(), "secrets.vault")

	v, err := NewFileVault(path, "right", logger)
	require.NoError(t, err)
	require.NoError(t, v.SetSecret(ctx, testService, "acct", "cs"))

	_, err = NewFileVault(path, "wrong", logger)
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestDetect_NoneSelectsNoop(t *testing.T) {
	cfg := types.Config{Vault: types.VaultNone}.WithDefaults()
	store, err := Detect(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.IsType(t, Noop{}, store)
	assert.False(t, store.Available())
}

func TestDetect_FileRequiresPassphrase(t *testing.T) {
	t.Setenv(EnvPassphrase, "")
	cfg := types.Config{Vault: types.VaultFile, DataDir: t.TempDir()}.WithDefaults()
	_, err := Detect(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	require.Error(t, err)
}

func TestDetect_FileVault(t *testing.T) {
	t.Setenv(EnvPassphrase, "pass")
	cfg := types.Config{Vault: types.VaultFile, DataDir: t.TempDir()}.WithDefaults()
	store, err := Detect(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.True(t, store.Available())
	assert.IsType(t, &FileVault{}, store)
}
