// Package document updates and deletes single documents of the tree.
//
// Both operations address the document by its _id and require exactly one
// affected document; any other count is a ConflictError. Delete asks for
// confirmation before anything is sent to the server.
package document

import (
	"context"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/cosmosx/internal/tree"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

const (
	msgIDRequired  = `The "_id" field is required to update a document.`
	msgIDImmutable = `The "_id" field cannot be changed.`
)

// Mutator performs document updates and deletes.
type Mutator struct {
	prompter types.Prompter
	logger   *zap.SugaredLogger
}

// New returns a Mutator that confirms deletes through prompter.
func New(prompter types.Prompter, logger *zap.SugaredLogger) *Mutator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Mutator{prompter: prompter, logger: logger}
}

// Update replaces node's document with newDoc. newDoc must carry the
// node's _id; the _id itself is never part of the replacement. On success
// the node caches newDoc and it is returned.
func (m *Mutator) Update(ctx context.Context, node *tree.DocumentNode, newDoc types.Document) (types.Document, error) {
	newID, ok := newDoc.ID()
	if !ok {
		return nil, types.NewValidationError(types.DocumentIDKey, msgIDRequired)
	}
	if oldID, ok := node.Document().ID(); ok && !reflect.DeepEqual(oldID, newID) {
		return nil, types.NewValidationError(types.DocumentIDKey, msgIDImmutable)
	}

	loc, err := location(node)
	if err != nil {
		return nil, err
	}
	modified, err := loc.Provider.ReplaceDocument(ctx, loc.Descriptor, loc.Database, loc.Collection, newID, newDoc.WithoutID())
	if err != nil {
		return nil, fmt.Errorf("update document %s: %w", tree.FormatID(newID), err)
	}
	if modified != 1 {
		return nil, &types.ConflictError{Op: "update", ID: tree.FormatID(newID), Count: modified}
	}

	node.SetDocument(newDoc)
	m.logger.Debugw("document updated", "id", tree.FormatID(newID), "collection", loc.Collection)
	return node.Document(), nil
}

// UpdateJSON parses text as MongoDB extended JSON and calls Update.
func (m *Mutator) UpdateJSON(ctx context.Context, node *tree.DocumentNode, text string) (types.Document, error) {
	doc, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return m.Update(ctx, node, doc)
}

// Delete removes node's document after the user confirms. Declining
// returns ErrCancelled and nothing is sent.
func (m *Mutator) Delete(ctx context.Context, node *tree.DocumentNode) error {
	id, ok := node.Document().ID()
	if !ok {
		return types.NewValidationError(types.DocumentIDKey, msgIDRequired)
	}
	confirmed, err := m.prompter.ShowConfirm(ctx,
		fmt.Sprintf("Are you sure you want to delete document '%s'?", node.Label()), "Delete")
	if err != nil {
		return err
	}
	if !confirmed {
		return types.ErrCancelled
	}

	loc, err := location(node)
	if err != nil {
		return err
	}
	deleted, err := loc.Provider.DeleteDocument(ctx, loc.Descriptor, loc.Database, loc.Collection, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", tree.FormatID(id), err)
	}
	if deleted != 1 {
		return &types.ConflictError{Op: "delete", ID: tree.FormatID(id), Count: deleted}
	}

	node.Remove()
	m.logger.Debugw("document deleted", "id", tree.FormatID(id), "collection", loc.Collection)
	return nil
}

func location(node *tree.DocumentNode) (tree.Location, error) {
	coll, err := node.Collection()
	if err != nil {
		return tree.Location{}, err
	}
	return coll.Location()
}

// Parse decodes relaxed or canonical MongoDB extended JSON.
func Parse(text string) (types.Document, error) {
	var m bson.M
	if err := bson.UnmarshalExtJSON([]byte(text), false, &m); err != nil {
		return nil, types.NewValidationError("document", fmt.Sprintf("invalid document JSON: %v", err))
	}
	return types.Document(m), nil
}

// Format renders doc as indented relaxed extended JSON.
func Format(doc types.Document) (string, error) {
	out, err := bson.MarshalExtJSONIndent(bson.M(doc), false, false, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format document: %w", err)
	}
	return string(out), nil
}
