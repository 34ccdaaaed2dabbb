package tree

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/cosmosx/internal/connstring"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// Session is a scoped connection used only to enumerate databases. The
// caller closes it on every exit path.
type Session interface {
	ListDatabases(ctx context.Context) ([]types.DatabaseInfo, error)
	Close(ctx context.Context) error
}

// Provider is the data access a provider kind offers the tree.
type Provider interface {
	Open(ctx context.Context, d *connstring.Descriptor) (Session, error)
	ListCollections(ctx context.Context, d *connstring.Descriptor, database string) ([]string, error)
	ListDocuments(ctx context.Context, d *connstring.Descriptor, database, collection string, skip, limit int) ([]types.Document, error)
	CreateCollection(ctx context.Context, d *connstring.Descriptor, database, collection string) error
	DropDatabase(ctx context.Context, d *connstring.Descriptor, database string) error
	DropCollection(ctx context.Context, d *connstring.Descriptor, database, collection string) error
	InsertDocument(ctx context.Context, d *connstring.Descriptor, database, collection string, doc types.Document) (types.Document, error)
	// ReplaceDocument replaces the document whose _id is id and returns
	// the modified count. doc never contains _id.
	ReplaceDocument(ctx context.Context, d *connstring.Descriptor, database, collection string, id any, doc types.Document) (int64, error)
	DeleteDocument(ctx context.Context, d *connstring.Descriptor, database, collection string, id any) (int64, error)
}

// DatabaseCreator is implemented by providers whose store keeps empty
// databases. New databases are created immediately instead of pending.
type DatabaseCreator interface {
	CreateDatabase(ctx context.Context, d *connstring.Descriptor, database string) error
}

// Evicter is implemented by providers that cache clients per connection.
type Evicter interface {
	Evict(ctx context.Context, d *connstring.Descriptor)
}

// Providers holds one Provider per protocol family.
type Providers struct {
	Mongo Provider
	DocDB Provider
}

// For returns the provider serving kind.
func (p Providers) For(kind types.ProviderKind) (Provider, error) {
	var prov Provider
	switch kind {
	case types.ProviderMongoDB:
		prov = p.Mongo
	case types.ProviderDocumentDB, types.ProviderGraph, types.ProviderTable:
		prov = p.DocDB
	default:
		return nil, &types.ConfigurationError{Kind: kind}
	}
	if prov == nil {
		return nil, fmt.Errorf("%s: %w", kind.DisplayName(), types.ErrUnsupported)
	}
	return prov, nil
}

// Location addresses a collection through its provider.
type Location struct {
	Provider   Provider
	Descriptor *connstring.Descriptor
	Database   string
	Collection string
}
