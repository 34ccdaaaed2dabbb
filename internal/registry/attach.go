package registry

import (
	"context"
	"strings"

	"github.com/mesh-intelligence/cosmosx/internal/connstring"
	"github.com/mesh-intelligence/cosmosx/internal/tree"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

const (
	pickKindPrompt   = "Select a Database type..."
	connStringPrompt = "Enter the connection string for your database account"
)

var connStringPlaceholders = map[types.ProviderKind]string{
	types.ProviderMongoDB:    "mongodb://host:port",
	types.ProviderDocumentDB: "AccountEndpoint=...;AccountKey=...",
	types.ProviderGraph:      "AccountEndpoint=...;AccountKey=...",
	types.ProviderTable:      "AccountEndpoint=...;AccountKey=...",
}

// AttachNewAccount asks for a provider kind and a connection string, then
// attaches the account. Dismissing either prompt returns ErrCancelled.
func (r *Registry) AttachNewAccount(ctx context.Context) (*tree.AccountNode, error) {
	kind, err := r.pickKind(ctx)
	if err != nil {
		return nil, err
	}
	cs, err := r.prompter.ShowInput(ctx, types.InputOptions{
		Prompt:      connStringPrompt,
		Placeholder: connStringPlaceholders[kind],
		Password:    true,
		Validate: func(v string) string {
			return connstring.Validate(strings.TrimSpace(v), kind)
		},
	})
	if err != nil {
		return nil, err
	}
	return r.AttachConnectionString(ctx, strings.TrimSpace(cs), kind)
}

// AttachEmulator attaches the local emulator for kind using the configured
// port. An empty kind asks the user to pick one.
func (r *Registry) AttachEmulator(ctx context.Context, kind types.ProviderKind) (*tree.AccountNode, error) {
	if kind == "" {
		picked, err := r.pickKind(ctx)
		if err != nil {
			return nil, err
		}
		kind = picked
	}
	cs, err := connstring.Emulator(kind, r.cfg.Emulator)
	if err != nil {
		return nil, err
	}
	d, err := connstring.Parse(cs, kind)
	if err != nil {
		return nil, err
	}
	d.IsEmulator = true
	return r.attachDescriptor(ctx, d)
}

// AttachConnectionString validates cs as kind and attaches the account it
// names. The account ID is taken from the connection string.
func (r *Registry) AttachConnectionString(ctx context.Context, cs string, kind types.ProviderKind) (*tree.AccountNode, error) {
	if _, err := tree.AccountKind(kind); err != nil {
		return nil, err
	}
	if msg := connstring.Validate(cs, kind); msg != "" {
		return nil, types.NewValidationError("connectionString", msg)
	}
	d, err := connstring.Parse(cs, kind)
	if err != nil {
		return nil, err
	}
	return r.attachDescriptor(ctx, d)
}

func (r *Registry) attachDescriptor(ctx context.Context, d *connstring.Descriptor) (*tree.AccountNode, error) {
	label := d.AccountID
	if d.IsEmulator {
		label = connstring.EmulatorLabel(d.Kind)
	}
	account, err := r.tree.NewAccount(tree.AccountSpec{
		ID:         d.AccountID,
		Label:      label,
		Conn:       connstring.NewResolved(d),
		IsEmulator: d.IsEmulator,
	})
	if err != nil {
		return nil, err
	}
	return r.AttachAccount(ctx, account, d.Original)
}

func (r *Registry) pickKind(ctx context.Context) (types.ProviderKind, error) {
	items := make([]string, len(types.SupportedProviders))
	for i, k := range types.SupportedProviders {
		items[i] = k.DisplayName()
	}
	idx, err := r.prompter.ShowPick(ctx, pickKindPrompt, items)
	if err != nil {
		return "", err
	}
	return types.SupportedProviders[idx], nil
}
