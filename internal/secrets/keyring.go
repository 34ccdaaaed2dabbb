package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
)

// probeKey is looked up to decide whether the OS keyring is reachable.
const probeKey = "__cosmosx_probe__"

// Keyring stores secrets in the OS credential vault (Secret Service on
// Linux, Keychain on macOS, Credential Manager on Windows).
type Keyring struct {
	logger *zap.SugaredLogger
}

// NewKeyring returns a keyring-backed CredentialStore.
func NewKeyring(logger *zap.SugaredLogger) *Keyring {
	return &Keyring{logger: logger}
}

// Probe reports whether the keyring answers a lookup. A missing probe key
// counts as available.
func (k *Keyring) Probe(_ context.Context, service string) bool {
	_, err := keyring.Get(service, probeKey)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return true
	}
	k.logger.Debugw("keyring unavailable", "error", err)
	return false
}

// Available reports true; use Probe to test reachability.
func (k *Keyring) Available() bool { return true }

func (k *Keyring) SetSecret(_ context.Context, service, key, value string) error {
	if err := keyring.Set(service, key, value); err != nil {
		return fmt.Errorf("keyring set %q: %w", key, err)
	}
	return nil
}

func (k *Keyring) GetSecret(_ context.Context, service, key string) (string, bool, error) {
	value, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("keyring get %q: %w", key, err)
	}
	return value, true, nil
}

func (k *Keyring) DeleteSecret(_ context.Context, service, key string) error {
	err := keyring.Delete(service, key)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("keyring delete %q: %w", key, err)
}
