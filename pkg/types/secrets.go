package types

import "context"

// CredentialStore wraps an optional OS-level secret vault. When the vault
// is unavailable, Available reports false and every call is a no-op that
// returns nil; GetSecret then reports the secret as missing.
type CredentialStore interface {
	// Available reports whether secrets survive the process.
	Available() bool

	SetSecret(ctx context.Context, service, key, value string) error

	// GetSecret returns the secret and whether it was found.
	GetSecret(ctx context.Context, service, key string) (string, bool, error)

	// DeleteSecret removes the secret. Deleting a missing secret succeeds.
	DeleteSecret(ctx context.Context, service, key string) error
}
