package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/cosmosx/internal/connstring"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

const adminDatabase = "admin"

// AccountSpec describes an account to add to the tree.
type AccountSpec struct {
	ID         string
	Label      string
	Conn       *connstring.Lazy
	IsEmulator bool
}

// AccountNode is the root of one attached account's subtree.
type AccountNode struct {
	base
	id         string
	label      string
	conn       *connstring.Lazy
	provider   Provider
	isEmulator bool
}

// NewAccount adds an account node under the attached-accounts root. The
// node is not listed by the root until the account source returns it.
// An unsupported provider kind is a ConfigurationError.
func (t *Tree) NewAccount(spec AccountSpec) (*AccountNode, error) {
	kind, err := AccountKind(spec.Conn.Kind())
	if err != nil {
		return nil, err
	}
	provider, err := t.providers.For(spec.Conn.Kind())
	if err != nil {
		return nil, err
	}
	label := spec.Label
	if label == "" {
		label = spec.ID
	}
	n := &AccountNode{
		base:       t.newBase(kind, t.root.handle),
		id:         spec.ID,
		label:      label,
		conn:       spec.Conn,
		provider:   provider,
		isEmulator: spec.IsEmulator,
	}
	t.register(n)
	return n, nil
}

func (n *AccountNode) ID() string       { return n.id }
func (n *AccountNode) FullID() string   { return string(KindAttachedAccounts) + "/" + n.id }
func (n *AccountNode) Label() string    { return n.label }
func (n *AccountNode) IconHint() string { return iconHints[n.kind] }

// ProviderKind returns the account's provider kind.
func (n *AccountNode) ProviderKind() types.ProviderKind { return n.conn.Kind() }

// IsEmulator reports whether the account targets a local emulator.
func (n *AccountNode) IsEmulator() bool { return n.isEmulator }

// ConnectionString returns the raw connection string.
func (n *AccountNode) ConnectionString() string { return n.conn.ConnectionString() }

// Descriptor returns the parsed connection string.
func (n *AccountNode) Descriptor() (*connstring.Descriptor, error) { return n.conn.Descriptor() }

// Provider returns the data access for the account's kind.
func (n *AccountNode) Provider() Provider { return n.provider }

func (n *AccountNode) LoadChildren(ctx context.Context, force bool) ([]Node, error) {
	return n.tree.loadChildren(ctx, n, force)
}

func (n *AccountNode) fetch(ctx context.Context, _ int) ([]Node, bool, error) {
	d, err := n.conn.Descriptor()
	if err != nil {
		return nil, false, err
	}
	infos, err := n.listDatabases(ctx, d)
	if err != nil {
		return nil, false, err
	}
	children := make([]Node, 0, len(infos))
	for _, info := range infos {
		children = append(children, n.tree.newDatabase(n, info.Name, DatabaseMaterialized))
	}
	return children, false, nil
}

// listDatabases returns the visible databases. A database embedded in the
// connection string is the only one shown, since listing all databases
// may not be permitted.
func (n *AccountNode) listDatabases(ctx context.Context, d *connstring.Descriptor) ([]types.DatabaseInfo, error) {
	if d.DatabaseName != "" {
		return []types.DatabaseInfo{{Name: d.DatabaseName}}, nil
	}

	session, err := n.provider.Open(ctx, d)
	if err != nil {
		return nil, n.connectionError(err)
	}
	defer func() {
		if cerr := session.Close(ctx); cerr != nil {
			n.tree.logger.Warnw("close session failed", "account", n.id, "error", cerr)
		}
	}()

	all, err := session.ListDatabases(ctx)
	if err != nil {
		return nil, n.connectionError(err)
	}
	if n.kind != KindMongoAccount {
		return all, nil
	}
	infos := make([]types.DatabaseInfo, 0, len(all))
	for _, info := range all {
		if info.Name == adminDatabase && info.Empty {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (n *AccountNode) connectionError(err error) error {
	if errors.Is(err, context.Canceled) || types.IsCancelled(err) {
		return err
	}
	cerr := &types.ConnectionError{Account: n.id, Err: err}
	if n.isEmulator {
		cerr.Hint = emulatorHint(n.conn.Kind())
	}
	return cerr
}

func emulatorHint(kind types.ProviderKind) string {
	return fmt.Sprintf("Unable to reach the %s. Make sure it is started and listening on the configured port. Details: ",
		connstring.EmulatorLabel(kind))
}

// CreateDatabase adds a database named name. For providers without
// DatabaseCreator the node stays pending until a collection is created
// under it; nothing is sent to the server here.
func (n *AccountNode) CreateDatabase(ctx context.Context, name string) (*DatabaseNode, error) {
	if msg := validateName(n.conn.Kind(), "Database", name); msg != "" {
		return nil, types.NewValidationError("database", msg)
	}
	state := DatabasePending
	if creator, ok := n.provider.(DatabaseCreator); ok {
		d, err := n.conn.Descriptor()
		if err != nil {
			return nil, err
		}
		if err := creator.CreateDatabase(ctx, d, name); err != nil {
			return nil, fmt.Errorf("create database %s: %w", name, err)
		}
		state = DatabaseMaterialized
	}
	db := n.tree.newDatabase(n, name, state)
	n.tree.appendChild(n, db)
	return db, nil
}

func validateName(kind types.ProviderKind, what, name string) string {
	if kind == types.ProviderMongoDB {
		if what == "Database" {
			return connstring.ValidateDatabaseName(name)
		}
		return connstring.ValidateCollectionName(name)
	}
	return connstring.ValidateDocDBName(what, name)
}
