// Package secrets provides CredentialStore implementations: the OS keyring,
// an encrypted file vault, and a no-op store used when no vault exists.
package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// EnvPassphrase holds the passphrase of the encrypted file vault.
const EnvPassphrase = "COSMOSX_VAULT_PASSPHRASE"

// vaultFileName is the encrypted file vault inside the data directory.
const vaultFileName = "secrets.vault"

// Detect selects the CredentialStore for cfg.Vault. "auto" probes the OS
// keyring and falls back to Noop; an unavailable vault is a configuration
// fact, so Detect only fails for a forced vault it cannot open.
func Detect(ctx context.Context, cfg types.Config, logger *zap.SugaredLogger) (types.CredentialStore, error) {
	switch cfg.Vault {
	case types.VaultNone:
		logger.Infow("secret vault disabled; accounts are attached for this session only")
		return Noop{}, nil
	case types.VaultKeyring:
		return NewKeyring(logger), nil
	case types.VaultFile:
		return openFileVault(cfg, logger)
	case types.VaultAuto, "":
		kr := NewKeyring(logger)
		if kr.Probe(ctx, cfg.ServiceName) {
			return kr, nil
		}
		if os.Getenv(EnvPassphrase) != "" {
			return openFileVault(cfg, logger)
		}
		logger.Warnw("no secret vault available; accounts are attached for this session only")
		return Noop{}, nil
	default:
		return nil, types.ErrVaultUnknown
	}
}

func openFileVault(cfg types.Config, logger *zap.SugaredLogger) (types.CredentialStore, error) {
	passphrase := os.Getenv(EnvPassphrase)
	if passphrase == "" {
		return nil, fmt.Errorf("file vault requires %s", EnvPassphrase)
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	return NewFileVault(filepath.Join(dataDir, vaultFileName), passphrase, logger)
}

// Noop is the CredentialStore of hosts without a secret vault.
type Noop struct{}

// Available always reports false.
func (Noop) Available() bool { return false }

func (Noop) SetSecret(context.Context, string, string, string) error { return nil }

func (Noop) GetSecret(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

func (Noop) DeleteSecret(context.Context, string, string) error { return nil }
