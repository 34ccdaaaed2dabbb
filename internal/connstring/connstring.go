// Package connstring validates and decomposes provider connection strings
// into descriptors, builds emulator connection strings, and checks
// database naming rules.
package connstring

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// Descriptor is the structured form of a connection string.
type Descriptor struct {
	Kind types.ProviderKind

	// AccountID is the stable account identity derived from the string:
	// the host list for MongoDB, the endpoint for the DocumentDB family.
	AccountID string

	Endpoint     string
	Username     string
	Key          string
	DatabaseName string
	IsEmulator   bool
	Original     string
}

// Parse decomposes cs according to kind. Unknown kinds return a
// ConfigurationError.
func Parse(cs string, kind types.ProviderKind) (*Descriptor, error) {
	switch kind {
	case types.ProviderMongoDB:
		return ParseMongo(cs)
	case types.ProviderDocumentDB, types.ProviderGraph, types.ProviderTable:
		d, err := ParseDocDB(cs)
		if err != nil {
			return nil, err
		}
		d.Kind = kind
		return d, nil
	default:
		return nil, &types.ConfigurationError{Kind: kind}
	}
}

// Validate returns the user-facing message for an invalid connection
// string of the given kind, or "" when it is acceptable.
func Validate(cs string, kind types.ProviderKind) string {
	if kind == types.ProviderMongoDB {
		return ValidateMongo(cs)
	}
	return ValidateDocDB(cs)
}

// Lazy defers parsing until a descriptor is needed and memoizes the
// result. Concurrent callers share one parse.
type Lazy struct {
	connectionString string
	kind             types.ProviderKind
	id               string

	once sync.Once
	desc *Descriptor
	err  error
}

// NewLazy returns a Lazy whose ID is only known after parsing.
func NewLazy(cs string, kind types.ProviderKind) *Lazy {
	return &Lazy{connectionString: cs, kind: kind}
}

// NewLazyWithID returns a Lazy whose ID is known up front, so ID never
// triggers a parse.
func NewLazyWithID(cs string, kind types.ProviderKind, id string) *Lazy {
	return &Lazy{connectionString: cs, kind: kind, id: id}
}

// NewResolved wraps an already parsed descriptor.
func NewResolved(d *Descriptor) *Lazy {
	l := &Lazy{connectionString: d.Original, kind: d.Kind, id: d.AccountID, desc: d}
	l.once.Do(func() {})
	return l
}

// ConnectionString returns the raw string.
func (l *Lazy) ConnectionString() string {
	return l.connectionString
}

// Kind returns the provider kind the string is parsed as.
func (l *Lazy) Kind() types.ProviderKind {
	return l.kind
}

// ID returns the account ID without parsing when it was supplied up front.
// ok is false when only Descriptor can produce it.
func (l *Lazy) ID() (id string, ok bool) {
	if l.id != "" {
		return l.id, true
	}
	return "", false
}

// Descriptor parses the connection string once and returns the cached
// result on every later call.
func (l *Lazy) Descriptor() (*Descriptor, error) {
	l.once.Do(func() {
		l.desc, l.err = Parse(l.connectionString, l.kind)
	})
	return l.desc, l.err
}

// Mask hides credentials in a connection string for logging.
func Mask(cs string) string {
	if strings.HasPrefix(cs, mongoPrefix) || strings.HasPrefix(cs, mongoSRVPrefix) {
		scheme, rest, _ := strings.Cut(cs, "://")
		at := strings.LastIndex(rest, "@")
		if at < 0 {
			return cs
		}
		user, _, _ := strings.Cut(rest[:at], ":")
		return fmt.Sprintf("%s://%s:****%s", scheme, user, rest[at:])
	}

	parts := strings.Split(cs, ";")
	for i, part := range parts {
		key, _, found := strings.Cut(part, "=")
		if found && strings.EqualFold(strings.TrimSpace(key), docDBKeyAccountKey) {
			parts[i] = key + "=****"
		}
	}
	return strings.Join(parts, ";")
}
