package types

// StateStore is the durable key/value store holding single string values,
// such as the serialized attached-account list. Callers attach to a
// backend, read and update keys, and detach when done.
type StateStore interface {
	// Attach connects the store to the backend described by config.
	// Creates DataDir if it does not exist. Returns ErrAlreadyAttached if
	// called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	// After Detach, Get and Update return ErrStoreDetached.
	Detach() error

	// Get returns the value stored under key and whether it exists.
	Get(key string) (string, bool, error)

	// Update stores value under key, replacing any previous value.
	Update(key, value string) error
}
