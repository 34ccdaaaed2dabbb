package tree

import "context"

// AccountSource lists attached accounts for the root. The registry
// implements it and owns the account cache.
type AccountSource interface {
	GetAttachedAccounts(ctx context.Context) ([]*AccountNode, error)
	Invalidate()
}

const (
	attachedAccountsLabel = "Attached Database Accounts"
	attachActionID        = "cosmosDBAttachDatabaseAccount"
	attachActionLabel     = "Attach Database Account..."
)

// AttachedAccountsNode groups attached accounts. With nothing attached it
// has a single "Attach Database Account..." action child.
type AttachedAccountsNode struct {
	base
	action *ActionNode
}

func (r *AttachedAccountsNode) ID() string       { return string(KindAttachedAccounts) }
func (r *AttachedAccountsNode) FullID() string   { return string(KindAttachedAccounts) }
func (r *AttachedAccountsNode) Label() string    { return attachedAccountsLabel }
func (r *AttachedAccountsNode) IconHint() string { return iconHints[KindAttachedAccounts] }

// LoadChildren returns the attached accounts. The account list is cached
// by the source, so force invalidates it there.
func (r *AttachedAccountsNode) LoadChildren(ctx context.Context, force bool) ([]Node, error) {
	r.tree.mu.RLock()
	src := r.tree.source
	r.tree.mu.RUnlock()
	if src == nil {
		return nil, nil
	}
	if force {
		src.Invalidate()
	}

	accounts, err := src.GetAttachedAccounts(ctx)
	if err != nil {
		return nil, err
	}
	children := make([]Node, 0, len(accounts))
	for _, a := range accounts {
		children = append(children, a)
	}
	if len(children) == 0 {
		children = append(children, r.attachAction())
	}

	r.tree.mu.Lock()
	r.children = handles(children)
	r.loaded = true
	r.tree.mu.Unlock()
	return children, nil
}

func (r *AttachedAccountsNode) fetch(context.Context, int) ([]Node, bool, error) {
	return nil, false, nil
}

func (r *AttachedAccountsNode) attachAction() *ActionNode {
	r.tree.mu.Lock()
	if r.action != nil {
		a := r.action
		r.tree.mu.Unlock()
		return a
	}
	r.action = &ActionNode{
		base:  r.tree.newBase(KindAction, r.handle),
		id:    attachActionID,
		label: attachActionLabel,
	}
	a := r.action
	r.tree.mu.Unlock()
	r.tree.register(a)
	return a
}

// ActionNode is a leaf that stands for a command rather than a resource.
type ActionNode struct {
	base
	id    string
	label string
}

func (a *ActionNode) ID() string       { return a.id }
func (a *ActionNode) FullID() string   { return string(KindAttachedAccounts) + "/" + a.id }
func (a *ActionNode) Label() string    { return a.label }
func (a *ActionNode) IconHint() string { return iconHints[KindAction] }

func (a *ActionNode) LoadChildren(context.Context, bool) ([]Node, error) {
	return nil, nil
}

func (a *ActionNode) fetch(context.Context, int) ([]Node, bool, error) {
	return nil, false, nil
}
