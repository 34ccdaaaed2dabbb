package tree

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// DatabaseState tracks whether a database exists on the server.
type DatabaseState int

const (
	// DatabasePending is a client-side placeholder. MongoDB does not keep
	// empty databases, so the database appears on the server only once a
	// collection is created in it.
	DatabasePending DatabaseState = iota
	DatabaseMaterialized
)

func (s DatabaseState) String() string {
	if s == DatabasePending {
		return "pending"
	}
	return "materialized"
}

// DatabaseNode is a database under an account.
type DatabaseNode struct {
	base
	name    string
	account Handle
	dbState DatabaseState
}

func (t *Tree) newDatabase(account *AccountNode, name string, state DatabaseState) *DatabaseNode {
	n := &DatabaseNode{
		base:    t.newBase(KindDatabase, account.handle),
		name:    name,
		account: account.handle,
		dbState: state,
	}
	t.register(n)
	return n
}

func (n *DatabaseNode) ID() string       { return n.name }
func (n *DatabaseNode) Label() string    { return n.name }
func (n *DatabaseNode) IconHint() string { return iconHints[KindDatabase] }

func (n *DatabaseNode) FullID() string {
	a, err := n.Account()
	if err != nil {
		return n.name
	}
	return a.FullID() + "/" + n.name
}

// Name returns the database name.
func (n *DatabaseNode) Name() string { return n.name }

// State reports whether the database exists on the server yet.
func (n *DatabaseNode) State() DatabaseState {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	return n.dbState
}

// Account follows the back reference to the owning account.
func (n *DatabaseNode) Account() (*AccountNode, error) {
	return lookup[*AccountNode](n.tree, n.account)
}

func (n *DatabaseNode) LoadChildren(ctx context.Context, force bool) ([]Node, error) {
	return n.tree.loadChildren(ctx, n, force)
}

// fetch lists collections. A pending database has none and is not queried.
func (n *DatabaseNode) fetch(ctx context.Context, _ int) ([]Node, bool, error) {
	if n.State() == DatabasePending {
		return nil, false, nil
	}
	loc, err := n.location()
	if err != nil {
		return nil, false, err
	}
	names, err := loc.Provider.ListCollections(ctx, loc.Descriptor, n.name)
	if err != nil {
		return nil, false, fmt.Errorf("list collections of %s: %w", n.name, err)
	}
	children := make([]Node, 0, len(names))
	for _, name := range names {
		children = append(children, n.tree.newCollection(n, name))
	}
	return children, false, nil
}

// CreateCollection creates a collection, materializing a pending
// database as a side effect.
func (n *DatabaseNode) CreateCollection(ctx context.Context, name string) (*CollectionNode, error) {
	loc, err := n.location()
	if err != nil {
		return nil, err
	}
	account, err := n.Account()
	if err != nil {
		return nil, err
	}
	if msg := validateName(account.ProviderKind(), "Collection", name); msg != "" {
		return nil, types.NewValidationError("collection", msg)
	}
	if err := loc.Provider.CreateCollection(ctx, loc.Descriptor, n.name, name); err != nil {
		return nil, fmt.Errorf("create collection %s.%s: %w", n.name, name, err)
	}

	n.tree.mu.Lock()
	if n.dbState == DatabasePending {
		n.tree.logger.Debugw("database materialized", "database", n.name)
	}
	n.dbState = DatabaseMaterialized
	n.tree.mu.Unlock()

	coll := n.tree.newCollection(n, name)
	n.tree.appendChild(n, coll)
	return coll, nil
}

// DeleteSelf drops the database. A pending database only leaves the tree.
func (n *DatabaseNode) DeleteSelf(ctx context.Context) error {
	if n.State() == DatabaseMaterialized {
		loc, err := n.location()
		if err != nil {
			return err
		}
		if err := loc.Provider.DropDatabase(ctx, loc.Descriptor, n.name); err != nil {
			return fmt.Errorf("drop database %s: %w", n.name, err)
		}
	}
	n.tree.Remove(n)
	return nil
}

func (n *DatabaseNode) location() (Location, error) {
	account, err := n.Account()
	if err != nil {
		return Location{}, err
	}
	d, err := account.Descriptor()
	if err != nil {
		return Location{}, err
	}
	return Location{Provider: account.provider, Descriptor: d, Database: n.name}, nil
}
