// Package registry owns the list of attached database accounts.
//
// Account identities are persisted as one JSON value in the state store;
// connection strings live only in the credential store, keyed by account
// ID. When no credential store is available accounts are attached for the
// session only and nothing is persisted.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mesh-intelligence/cosmosx/internal/connstring"
	"github.com/mesh-intelligence/cosmosx/internal/tree"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

var errMissingSecret = errors.New("connection string not found in credential store")

// Deps are the collaborators a Registry works with.
type Deps struct {
	Tree     *tree.Tree
	State    types.StateStore
	Secrets  types.CredentialStore
	Prompter types.Prompter
	Logger   *zap.SugaredLogger
}

// Registry tracks attached accounts and serves them as the children of
// the tree's attached-accounts root.
type Registry struct {
	cfg      types.Config
	tree     *tree.Tree
	state    types.StateStore
	secrets  types.CredentialStore
	prompter types.Prompter
	logger   *zap.SugaredLogger

	mu         sync.Mutex
	accounts   []*tree.AccountNode
	loaded     bool
	generation uint64
	group      singleflight.Group
}

// New returns a Registry and binds it as the account source of deps.Tree.
func New(cfg types.Config, deps Deps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r := &Registry{
		cfg:      cfg.WithDefaults(),
		tree:     deps.Tree,
		state:    deps.State,
		secrets:  deps.Secrets,
		prompter: deps.Prompter,
		logger:   logger,
	}
	deps.Tree.SetAccountSource(r)
	return r
}

// Root returns the attached-accounts grouping node.
func (r *Registry) Root() *tree.AttachedAccountsNode {
	return r.tree.Root()
}

// GetAttachedAccounts returns the cached account list, loading it at most
// once per cache generation. Callers arriving during a load share its
// result. The load is detached from the first caller's cancellation since
// every waiter depends on it.
//
// A failed load caches zero accounts for the generation; the error goes to
// the callers that shared that load. Callers whose load was invalidated
// before it finished wait for a load of the new generation.
func (r *Registry) GetAttachedAccounts(ctx context.Context) ([]*tree.AccountNode, error) {
	for {
		r.mu.Lock()
		if r.loaded {
			accounts := slices.Clone(r.accounts)
			r.mu.Unlock()
			return accounts, nil
		}
		gen := r.generation
		r.mu.Unlock()

		v, err, _ := r.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
			return r.loadGeneration(context.WithoutCancel(ctx), gen)
		})
		if err != nil {
			return nil, err
		}
		res := v.(loadResult)
		if !res.stale {
			return slices.Clone(res.accounts), nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// loadResult is the outcome of one generation's load. stale marks a load
// that was invalidated before it finished.
type loadResult struct {
	accounts []*tree.AccountNode
	stale    bool
}

// loadGeneration loads the accounts for generation gen. The cache is
// checked again first: a caller that saw no cache may only get here after
// an earlier flight for gen has completed and left the group.
func (r *Registry) loadGeneration(ctx context.Context, gen uint64) (loadResult, error) {
	r.mu.Lock()
	switch {
	case r.generation != gen:
		r.mu.Unlock()
		return loadResult{stale: true}, nil
	case r.loaded:
		accounts := slices.Clone(r.accounts)
		r.mu.Unlock()
		return loadResult{accounts: accounts}, nil
	}
	r.mu.Unlock()

	accounts, err := r.LoadPersistedAccounts(ctx)
	if err != nil {
		r.logger.Errorw("load attached accounts failed", "error", err)
		accounts = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen {
		for _, a := range accounts {
			r.tree.Remove(a)
		}
		return loadResult{stale: true}, nil
	}
	r.accounts = accounts
	r.loaded = true
	return loadResult{accounts: slices.Clone(accounts)}, err
}

// LoadPersistedAccounts reads the persisted records and builds an account
// node for each. A record that cannot be rebuilt is skipped and reported
// in a single warning; failing to read the list itself is an error.
func (r *Registry) LoadPersistedAccounts(ctx context.Context) ([]*tree.AccountNode, error) {
	if !r.secrets.Available() {
		return nil, nil
	}
	value, _, err := r.state.Get(r.cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("read attached accounts: %w", err)
	}
	records, err := types.DecodeAccountRecords(value)
	if err != nil {
		return nil, err
	}

	var (
		accounts []*tree.AccountNode
		failures []string
	)
	for _, rec := range records {
		account, err := r.rebuild(ctx, rec)
		if err != nil {
			r.logger.Warnw("skipping attached account", "id", rec.ID, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", rec.ID, err))
			continue
		}
		accounts = append(accounts, account)
	}
	if len(failures) > 0 {
		r.prompter.ShowWarning(ctx, "Some attached accounts could not be loaded:\n"+strings.Join(failures, "\n"))
	}
	r.logger.Debugw("attached accounts loaded", "count", len(accounts), "skipped", len(failures))
	return accounts, nil
}

func (r *Registry) rebuild(ctx context.Context, rec types.PersistedAccountRecord) (*tree.AccountNode, error) {
	if _, err := tree.AccountKind(rec.DefaultExperience); err != nil {
		return nil, err
	}
	cs, ok, err := r.secrets.GetSecret(ctx, r.cfg.ServiceName, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("read secret: %w", err)
	}
	if !ok {
		return nil, errMissingSecret
	}
	if msg := connstring.Validate(cs, rec.DefaultExperience); msg != "" {
		return nil, types.NewValidationError("connectionString", msg)
	}

	label := rec.ID
	if rec.IsEmulator {
		label = connstring.EmulatorLabel(rec.DefaultExperience)
	}
	return r.tree.NewAccount(tree.AccountSpec{
		ID:         rec.ID,
		Label:      label,
		Conn:       connstring.NewLazyWithID(cs, rec.DefaultExperience, rec.ID),
		IsEmulator: rec.IsEmulator,
	})
}

// Invalidate drops the cached list and any in-flight load so the next
// GetAttachedAccounts starts over. Cached account subtrees leave the tree.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	old := r.accounts
	r.accounts = nil
	r.loaded = false
	r.generation++
	r.mu.Unlock()

	for _, a := range old {
		r.tree.Remove(a)
	}
}

// AttachAccount adds account unless an account with the same ID is
// attached, in which case the user is warned, nothing changes, and the
// existing account is returned.
func (r *Registry) AttachAccount(ctx context.Context, account *tree.AccountNode, cs string) (*tree.AccountNode, error) {
	if _, err := r.GetAttachedAccounts(ctx); err != nil {
		r.prompter.ShowError(ctx, err.Error())
	}

	r.mu.Lock()
	idx := slices.IndexFunc(r.accounts, func(a *tree.AccountNode) bool { return a.ID() == account.ID() })
	if idx >= 0 {
		existing := r.accounts[idx]
		r.mu.Unlock()
		r.tree.Remove(account)
		r.prompter.ShowWarning(ctx, fmt.Sprintf("Database Account '%s' is already attached.", account.ID()))
		return existing, nil
	}
	r.accounts = append(r.accounts, account)
	records := r.recordsLocked()
	r.mu.Unlock()

	r.logger.Infow("account attached", "id", account.ID(), "kind", account.ProviderKind(),
		"emulator", account.IsEmulator(), "connection", connstring.Mask(cs))

	if !r.secrets.Available() {
		r.logger.Warnw("no credential store; account attached for this session only", "id", account.ID())
		return account, nil
	}
	if err := r.secrets.SetSecret(ctx, r.cfg.ServiceName, account.ID(), cs); err != nil {
		return account, fmt.Errorf("store connection string for %s: %w", account.ID(), err)
	}
	if err := r.persist(records); err != nil {
		return account, err
	}
	return account, nil
}

// Detach removes the account whose FullID matches account. Unknown
// accounts are ignored. The secret and the persisted list are updated
// before the in-memory list, so a failure leaves the account attached.
func (r *Registry) Detach(ctx context.Context, account tree.Node) error {
	r.mu.Lock()
	idx := slices.IndexFunc(r.accounts, func(a *tree.AccountNode) bool { return a.FullID() == account.FullID() })
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}
	removed := r.accounts[idx]
	records := accountRecords(slices.Delete(slices.Clone(r.accounts), idx, idx+1))
	r.mu.Unlock()

	if r.secrets.Available() {
		if err := r.secrets.DeleteSecret(ctx, r.cfg.ServiceName, removed.ID()); err != nil {
			return fmt.Errorf("delete connection string for %s: %w", removed.ID(), err)
		}
		if err := r.persist(records); err != nil {
			if rerr := r.secrets.SetSecret(ctx, r.cfg.ServiceName, removed.ID(), removed.ConnectionString()); rerr != nil {
				r.logger.Errorw("restore connection string failed", "id", removed.ID(), "error", rerr)
			}
			return err
		}
	}

	r.mu.Lock()
	r.accounts = slices.DeleteFunc(slices.Clone(r.accounts), func(a *tree.AccountNode) bool { return a == removed })
	r.mu.Unlock()

	if ev, ok := removed.Provider().(tree.Evicter); ok {
		if d, err := removed.Descriptor(); err == nil {
			ev.Evict(ctx, d)
		}
	}
	r.tree.Remove(removed)
	r.logger.Infow("account detached", "id", removed.ID())
	return nil
}

func (r *Registry) recordsLocked() []types.PersistedAccountRecord {
	return accountRecords(r.accounts)
}

func accountRecords(accounts []*tree.AccountNode) []types.PersistedAccountRecord {
	records := make([]types.PersistedAccountRecord, 0, len(accounts))
	for _, a := range accounts {
		records = append(records, types.PersistedAccountRecord{
			ID:                a.ID(),
			DefaultExperience: a.ProviderKind(),
			IsEmulator:        a.IsEmulator(),
		})
	}
	return records
}

// persist rewrites the whole record list. Snapshots are written outside
// the registry lock, so two concurrent attaches race here and the last
// write wins.
func (r *Registry) persist(records []types.PersistedAccountRecord) error {
	value, err := types.EncodeAccountRecords(records)
	if err != nil {
		return err
	}
	if err := r.state.Update(r.cfg.ServiceName, value); err != nil {
		return fmt.Errorf("persist attached accounts: %w", err)
	}
	return nil
}
