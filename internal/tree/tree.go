// Package tree holds the resource tree of attached database accounts.
//
// Nodes live in an arena owned by Tree and are addressed by an opaque
// Handle. A child records only its parent's handle, so removing a subtree
// is removing its handles from the arena. Children are loaded lazily and
// cached per node; concurrent loads of one node share a single fetch.
package tree

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// Handle identifies a node within its Tree.
type Handle = uuid.UUID

// ErrNodeRemoved is returned when a node's ancestor has been removed from
// the tree, for example after its account was detached.
var ErrNodeRemoved = errors.New("tree node no longer exists")

// DefaultPageSize is the document batch size when none is configured.
const DefaultPageSize = types.DefaultPageSize

// Node is the capability set shared by every tree node.
type Node interface {
	Handle() Handle
	Kind() Kind
	// ID is the node's own identifier; FullID is unique in the tree.
	ID() string
	FullID() string
	Label() string
	IconHint() string
	HasMoreChildren() bool
	LoadChildren(ctx context.Context, force bool) ([]Node, error)
	// IsAncestorKindOf reports whether actions for nodes of kind apply
	// beneath this node. It is not the structural relation; see
	// Tree.IsStructuralAncestor.
	IsAncestorKindOf(kind Kind) bool
}

// Deleter is implemented by nodes that can delete their backing resource.
type Deleter interface {
	DeleteSelf(ctx context.Context) error
}

// fetcher is a node whose children come from fetch. offset is the number
// of children already loaded; only paged nodes use it.
type fetcher interface {
	Node
	state() *base
	fetch(ctx context.Context, offset int) (children []Node, more bool, err error)
}

// base carries the arena bookkeeping shared by all nodes. children, loaded
// and more are guarded by tree.mu.
type base struct {
	tree   *Tree
	handle Handle
	parent Handle
	kind   Kind

	children []Handle
	loaded   bool
	more     bool
}

func (b *base) Handle() Handle { return b.handle }
func (b *base) Kind() Kind     { return b.kind }
func (b *base) state() *base   { return b }

func (b *base) HasMoreChildren() bool {
	b.tree.mu.RLock()
	defer b.tree.mu.RUnlock()
	return b.more
}

func (b *base) IsAncestorKindOf(kind Kind) bool {
	return slices.Contains(descendantKinds[b.kind], kind)
}

// Tree is the node arena.
type Tree struct {
	mu    sync.RWMutex
	nodes map[Handle]fetcher

	providers Providers
	pageSize  int
	logger    *zap.SugaredLogger
	group     singleflight.Group

	root   *AttachedAccountsNode
	source AccountSource
}

// New returns a tree with an empty attached-accounts root. pageSize bounds
// each document batch; zero selects DefaultPageSize.
func New(providers Providers, pageSize int, logger *zap.SugaredLogger) *Tree {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	t := &Tree{
		nodes:     make(map[Handle]fetcher),
		providers: providers,
		pageSize:  pageSize,
		logger:    logger,
	}
	t.root = &AttachedAccountsNode{base: t.newBase(KindAttachedAccounts, uuid.Nil)}
	t.register(t.root)
	return t
}

// Root returns the attached-accounts grouping node.
func (t *Tree) Root() *AttachedAccountsNode {
	return t.root
}

// SetAccountSource binds the source the root lists accounts from.
func (t *Tree) SetAccountSource(src AccountSource) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.source = src
}

// Get returns the node for h.
func (t *Tree) Get(h Handle) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[h]
	return n, ok
}

// Parent returns n's parent. The root has none.
func (t *Tree) Parent(n Node) (Node, bool) {
	f, ok := n.(fetcher)
	if !ok {
		return nil, false
	}
	return t.Get(f.state().parent)
}

// Len returns the number of nodes in the arena, root included.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// IsStructuralAncestor reports whether ancestor lies on the path from n to
// the root. Unlike IsAncestorKindOf this follows tree edges only.
func (t *Tree) IsStructuralAncestor(ancestor, n Node) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cur, ok := t.nodes[n.Handle()]
	for ok {
		parent := cur.state().parent
		if parent == ancestor.Handle() {
			return true
		}
		cur, ok = t.nodes[parent]
	}
	return false
}

// Remove drops n and its subtree from the arena and from its parent's
// cached children.
func (t *Tree) Remove(n Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.nodes[n.Handle()]
	if !ok {
		return
	}
	if parent, ok := t.nodes[f.state().parent]; ok {
		pb := parent.state()
		pb.children = slices.DeleteFunc(pb.children, func(h Handle) bool { return h == n.Handle() })
	}
	t.removeLocked(n.Handle())
}

// LoadMore appends the next batch of children to a paged node and returns
// only the new ones. It loads the first batch when nothing is cached.
func (t *Tree) LoadMore(ctx context.Context, n Node) ([]Node, error) {
	f, ok := n.(fetcher)
	if !ok {
		return nil, nil
	}
	b := f.state()
	t.mu.RLock()
	loaded, more, offset := b.loaded, b.more, len(b.children)
	t.mu.RUnlock()
	if !loaded {
		return t.loadChildren(ctx, f, false)
	}
	if !more {
		return nil, nil
	}

	v, err, _ := t.group.Do("more/"+b.handle.String(), func() (any, error) {
		t.mu.RLock()
		stale := len(b.children) != offset
		t.mu.RUnlock()
		if stale {
			// The page after offset was appended by an earlier flight.
			return []Node(nil), nil
		}
		children, more, err := f.fetch(ctx, offset)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if len(b.children) != offset {
			for _, c := range children {
				t.removeLocked(c.Handle())
			}
			return []Node(nil), nil
		}
		b.children = append(b.children, handles(children)...)
		b.more = more
		return children, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Node), nil
}

func (t *Tree) newBase(kind Kind, parent Handle) base {
	return base{tree: t, handle: uuid.Must(uuid.NewV7()), parent: parent, kind: kind}
}

func (t *Tree) register(n fetcher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[n.Handle()] = n
}

// appendChild adds child to parent's cached children.
func (t *Tree) appendChild(parent, child fetcher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pb := parent.state()
	pb.children = append(pb.children, child.Handle())
}

func (t *Tree) removeLocked(h Handle) {
	n, ok := t.nodes[h]
	if !ok {
		return
	}
	for _, child := range n.state().children {
		t.removeLocked(child)
	}
	delete(t.nodes, h)
}

// lookup returns the node for h as type N.
func lookup[N fetcher](t *Tree, h Handle) (N, error) {
	var zero N
	n, ok := t.Get(h)
	if !ok {
		return zero, ErrNodeRemoved
	}
	typed, ok := n.(N)
	if !ok {
		return zero, ErrNodeRemoved
	}
	return typed, nil
}

// loadChildren returns the cached children of n, fetching them when the
// cache is empty or force is set. A forced load releases the previous
// children so they are re-created rather than reused.
//
// Soft and forced loads use separate flight keys so a forced load never
// joins a soft load that started before it. A soft load re-checks the
// cache inside its flight: a caller that saw an empty cache may only
// reach the flight after another load has filled it.
func (t *Tree) loadChildren(ctx context.Context, n fetcher, force bool) ([]Node, error) {
	b := n.state()
	if force {
		return t.reload(ctx, n)
	}
	if nodes, ok := t.cachedChildren(b); ok {
		return nodes, nil
	}

	v, err, _ := t.group.Do("children/"+b.handle.String(), func() (any, error) {
		if nodes, ok := t.cachedChildren(b); ok {
			return nodes, nil
		}
		children, more, err := n.fetch(ctx, 0)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if b.loaded {
			// A forced load finished while this one was fetching.
			for _, c := range children {
				t.removeLocked(c.Handle())
			}
			return t.resolveLocked(b.children), nil
		}
		b.children = handles(children)
		b.loaded = true
		b.more = more
		return children, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]Node)), nil
}

func (t *Tree) reload(ctx context.Context, n fetcher) ([]Node, error) {
	b := n.state()
	v, err, _ := t.group.Do("reload/"+b.handle.String(), func() (any, error) {
		children, more, err := n.fetch(ctx, 0)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		for _, old := range b.children {
			t.removeLocked(old)
		}
		b.children = handles(children)
		b.loaded = true
		b.more = more
		return children, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]Node)), nil
}

func (t *Tree) cachedChildren(b *base) ([]Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !b.loaded {
		return nil, false
	}
	return t.resolveLocked(b.children), true
}

func (t *Tree) resolveLocked(hs []Handle) []Node {
	nodes := make([]Node, 0, len(hs))
	for _, h := range hs {
		if n, ok := t.nodes[h]; ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func handles(nodes []Node) []Handle {
	hs := make([]Handle, len(nodes))
	for i, n := range nodes {
		hs[i] = n.Handle()
	}
	return hs
}
