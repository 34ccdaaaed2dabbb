package tree

import (
	"context"
	"fmt"
	"maps"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// DocumentNode is a leaf holding one document. The cached copy is
// replaced after a successful update.
type DocumentNode struct {
	base
	collection Handle
	doc        types.Document
}

func (t *Tree) newDocument(coll *CollectionNode, doc types.Document) *DocumentNode {
	n := &DocumentNode{
		base:       t.newBase(KindDocument, coll.handle),
		collection: coll.handle,
		doc:        doc,
	}
	t.register(n)
	return n
}

func (n *DocumentNode) ID() string {
	id, ok := n.Document().ID()
	if !ok {
		return ""
	}
	return FormatID(id)
}

func (n *DocumentNode) Label() string    { return n.ID() }
func (n *DocumentNode) IconHint() string { return iconHints[KindDocument] }

func (n *DocumentNode) FullID() string {
	coll, err := n.Collection()
	if err != nil {
		return n.ID()
	}
	return coll.FullID() + "/" + n.ID()
}

// Document returns a copy of the cached document.
func (n *DocumentNode) Document() types.Document {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	return maps.Clone(n.doc)
}

// SetDocument replaces the cached document.
func (n *DocumentNode) SetDocument(doc types.Document) {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	n.doc = maps.Clone(doc)
}

// Collection follows the back reference to the owning collection.
func (n *DocumentNode) Collection() (*CollectionNode, error) {
	return lookup[*CollectionNode](n.tree, n.collection)
}

// Remove drops the node from the tree.
func (n *DocumentNode) Remove() {
	n.tree.Remove(n)
}

func (n *DocumentNode) LoadChildren(context.Context, bool) ([]Node, error) {
	return nil, nil
}

func (n *DocumentNode) fetch(context.Context, int) ([]Node, bool, error) {
	return nil, false, nil
}

// FormatID renders a document _id for labels. Object identifiers print as
// their hex form.
func FormatID(id any) string {
	if hex, ok := id.(interface{ Hex() string }); ok {
		return hex.Hex()
	}
	return fmt.Sprint(id)
}
