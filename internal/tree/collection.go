package tree

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// CollectionNode is a collection (container) within a database. Its
// documents load in pages.
type CollectionNode struct {
	base
	name     string
	database Handle
}

func (t *Tree) newCollection(db *DatabaseNode, name string) *CollectionNode {
	n := &CollectionNode{
		base:     t.newBase(KindCollection, db.handle),
		name:     name,
		database: db.handle,
	}
	t.register(n)
	return n
}

func (n *CollectionNode) ID() string       { return n.name }
func (n *CollectionNode) Label() string    { return n.name }
func (n *CollectionNode) IconHint() string { return iconHints[KindCollection] }

func (n *CollectionNode) FullID() string {
	db, err := n.Database()
	if err != nil {
		return n.name
	}
	return db.FullID() + "/" + n.name
}

// Name returns the collection name.
func (n *CollectionNode) Name() string { return n.name }

// Database follows the back reference to the owning database.
func (n *CollectionNode) Database() (*DatabaseNode, error) {
	return lookup[*DatabaseNode](n.tree, n.database)
}

// Location returns the provider address of the collection.
func (n *CollectionNode) Location() (Location, error) {
	db, err := n.Database()
	if err != nil {
		return Location{}, err
	}
	loc, err := db.location()
	if err != nil {
		return Location{}, err
	}
	loc.Collection = n.name
	return loc, nil
}

func (n *CollectionNode) LoadChildren(ctx context.Context, force bool) ([]Node, error) {
	return n.tree.loadChildren(ctx, n, force)
}

// LoadMoreChildren appends the next page of documents.
func (n *CollectionNode) LoadMoreChildren(ctx context.Context) ([]Node, error) {
	return n.tree.LoadMore(ctx, n)
}

// fetch reads one page starting at offset. One extra document is requested
// to learn whether another page exists.
func (n *CollectionNode) fetch(ctx context.Context, offset int) ([]Node, bool, error) {
	loc, err := n.Location()
	if err != nil {
		return nil, false, err
	}
	pageSize := n.tree.pageSize
	docs, err := loc.Provider.ListDocuments(ctx, loc.Descriptor, loc.Database, n.name, offset, pageSize+1)
	if err != nil {
		return nil, false, fmt.Errorf("list documents of %s.%s: %w", loc.Database, n.name, err)
	}
	more := len(docs) > pageSize
	if more {
		docs = docs[:pageSize]
	}
	children := make([]Node, 0, len(docs))
	for _, doc := range docs {
		children = append(children, n.tree.newDocument(n, doc))
	}
	return children, more, nil
}

// CreateDocument inserts doc and adds its node. The stored document,
// including a generated _id, is what the node holds.
func (n *CollectionNode) CreateDocument(ctx context.Context, doc types.Document) (*DocumentNode, error) {
	loc, err := n.Location()
	if err != nil {
		return nil, err
	}
	stored, err := loc.Provider.InsertDocument(ctx, loc.Descriptor, loc.Database, n.name, doc)
	if err != nil {
		return nil, fmt.Errorf("insert into %s.%s: %w", loc.Database, n.name, err)
	}
	node := n.tree.newDocument(n, stored)
	n.tree.appendChild(n, node)
	return node, nil
}

// DeleteSelf drops the collection.
func (n *CollectionNode) DeleteSelf(ctx context.Context) error {
	loc, err := n.Location()
	if err != nil {
		return err
	}
	if err := loc.Provider.DropCollection(ctx, loc.Descriptor, loc.Database, n.name); err != nil {
		return fmt.Errorf("drop collection %s.%s: %w", loc.Database, n.name, err)
	}
	n.tree.Remove(n)
	return nil
}
