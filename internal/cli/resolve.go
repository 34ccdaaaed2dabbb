package cli

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/cosmosx/internal/tree"
)

// findAccount returns the attached account whose ID or label is name.
func (a *app) findAccount(ctx context.Context, name string) (*tree.AccountNode, error) {
	accounts, err := a.registry.GetAttachedAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, acct := range accounts {
		if acct.ID() == name || acct.Label() == name {
			return acct, nil
		}
	}
	return nil, fmt.Errorf("account %q: %w", name, errNotFound)
}

// findChild scans the children of parent for id, loading further pages
// while the parent reports more.
func (a *app) findChild(ctx context.Context, parent tree.Node, id string) (tree.Node, error) {
	children, err := parent.LoadChildren(ctx, false)
	if err != nil {
		return nil, err
	}
	for {
		for _, c := range children {
			if c.ID() == id {
				return c, nil
			}
		}
		if !parent.HasMoreChildren() {
			return nil, fmt.Errorf("%s %q: %w", parent.Label(), id, errNotFound)
		}
		if children, err = a.tree.LoadMore(ctx, parent); err != nil {
			return nil, err
		}
	}
}

func (a *app) findDatabase(ctx context.Context, account, database string) (*tree.DatabaseNode, error) {
	acct, err := a.findAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	n, err := a.findChild(ctx, acct, database)
	if err != nil {
		return nil, err
	}
	db, ok := n.(*tree.DatabaseNode)
	if !ok {
		return nil, fmt.Errorf("database %q: %w", database, errNotFound)
	}
	return db, nil
}

func (a *app) findCollection(ctx context.Context, account, database, collection string) (*tree.CollectionNode, error) {
	db, err := a.findDatabase(ctx, account, database)
	if err != nil {
		return nil, err
	}
	n, err := a.findChild(ctx, db, collection)
	if err != nil {
		return nil, err
	}
	coll, ok := n.(*tree.CollectionNode)
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", collection, errNotFound)
	}
	return coll, nil
}

func (a *app) findDocument(ctx context.Context, account, database, collection, id string) (*tree.DocumentNode, error) {
	coll, err := a.findCollection(ctx, account, database, collection)
	if err != nil {
		return nil, err
	}
	n, err := a.findChild(ctx, coll, id)
	if err != nil {
		return nil, err
	}
	doc, ok := n.(*tree.DocumentNode)
	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, errNotFound)
	}
	return doc, nil
}
