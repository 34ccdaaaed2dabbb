package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/cosmosx/internal/connstring"
	"github.com/mesh-intelligence/cosmosx/internal/sqlite"
	"github.com/mesh-intelligence/cosmosx/internal/testutil"
	"github.com/mesh-intelligence/cosmosx/internal/tree"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

const (
	service   = types.DefaultServiceName
	acctCS    = "mongodb://user:pw@acct1.example.com:27017/"
	docdbCS   = "AccountEndpoint=https://acct2.documents.azure.com:443/;AccountKey=a2V5;"
	docdbAcct = "https://acct2.documents.azure.com:443/"
)

type fixture struct {
	reg      *Registry
	tree     *tree.Tree
	state    types.StateStore
	secrets  *testutil.Secrets
	prompter *testutil.Prompter
	provider *testutil.Provider
}

func newFixture(t *testing.T, state types.StateStore, secrets *testutil.Secrets) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	provider := testutil.NewProvider()
	tr := tree.New(tree.Providers{Mongo: provider, DocDB: provider}, 0, logger)
	prompter := &testutil.Prompter{}
	reg := New(types.Config{}, Deps{
		Tree:     tr,
		State:    state,
		Secrets:  secrets,
		Prompter: prompter,
		Logger:   logger,
	})
	return &fixture{reg: reg, tree: tr, state: state, secrets: secrets, prompter: prompter, provider: provider}
}

func persisted(t *testing.T, s types.StateStore) []types.PersistedAccountRecord {
	t.Helper()
	value, _, err := s.Get(service)
	require.NoError(t, err)
	records, err := types.DecodeAccountRecords(value)
	require.NoError(t, err)
	return records
}

func ids(accounts []*tree.AccountNode) []string {
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = a.ID()
	}
	return out
}

func TestGetAttachedAccounts_SingleFlight(t *testing.T) {
	state := testutil.NewState(map[string]string{service: `["acct1.example.com:27017"]`})
	secrets := testutil.NewSecrets()
	require.NoError(t, secrets.SetSecret(context.Background(), service, "acct1.example.com:27017", acctCS))
	secrets.Gate = make(chan struct{})
	f := newFixture(t, state, secrets)

	const callers = 8
	results := make([][]*tree.AccountNode, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			accounts, err := f.reg.GetAttachedAccounts(context.Background())
			assert.NoError(t, err)
			results[i] = accounts
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(secrets.Gate)
	wg.Wait()

	assert.Equal(t, 1, secrets.GetCount(), "one load for all concurrent callers")
	for _, accounts := range results {
		require.Len(t, accounts, 1)
		assert.Same(t, results[0][0], accounts[0])
	}
}

func TestGetAttachedAccounts_LateCallersReuseCache(t *testing.T) {
	ctx := context.Background()
	for range 200 {
		state := testutil.NewState(map[string]string{service: `["acct1.example.com:27017"]`})
		secrets := testutil.NewSecrets()
		require.NoError(t, secrets.SetSecret(ctx, service, "acct1.example.com:27017", acctCS))
		f := newFixture(t, state, secrets)

		const callers = 64
		results := make([][]*tree.AccountNode, callers)
		var wg sync.WaitGroup
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				accounts, err := f.reg.GetAttachedAccounts(ctx)
				assert.NoError(t, err)
				results[i] = accounts
			}()
		}
		wg.Wait()

		require.Equal(t, 1, secrets.GetCount(), "one load per generation")
		for _, accounts := range results {
			require.Len(t, accounts, 1)
			assert.Same(t, results[0][0], accounts[0])
		}
	}
}

func TestLoadGeneration_CompletedGenerationIsNotReloaded(t *testing.T) {
	ctx := context.Background()
	state := testutil.NewState(map[string]string{service: `["acct1.example.com:27017"]`})
	secrets := testutil.NewSecrets()
	require.NoError(t, secrets.SetSecret(ctx, service, "acct1.example.com:27017", acctCS))
	f := newFixture(t, state, secrets)

	first, err := f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)

	// A caller that saw an empty cache before the load finished.
	res, err := f.reg.loadGeneration(ctx, 0)
	require.NoError(t, err)
	assert.False(t, res.stale)
	require.Len(t, res.accounts, 1)
	assert.Same(t, first[0], res.accounts[0])
	assert.Equal(t, 1, secrets.GetCount())
	_, ok := f.tree.Get(first[0].Handle())
	assert.True(t, ok)
}

func TestGetAttachedAccounts_InvalidatedDuringLoadReloads(t *testing.T) {
	ctx := context.Background()
	state := testutil.NewState(map[string]string{service: `["acct1.example.com:27017"]`})
	secrets := testutil.NewSecrets()
	require.NoError(t, secrets.SetSecret(ctx, service, "acct1.example.com:27017", acctCS))
	secrets.Gate = make(chan struct{})
	f := newFixture(t, state, secrets)

	done := make(chan []*tree.AccountNode)
	go func() {
		accounts, err := f.reg.GetAttachedAccounts(ctx)
		assert.NoError(t, err)
		done <- accounts
	}()
	time.Sleep(50 * time.Millisecond)
	f.reg.Invalidate()
	close(secrets.Gate)

	accounts := <-done
	require.Len(t, accounts, 1, "invalidated callers get the next generation's accounts")
	assert.Equal(t, 2, secrets.GetCount())
	_, ok := f.tree.Get(accounts[0].Handle())
	assert.True(t, ok)
}

func TestInvalidate_StartsFreshLoad(t *testing.T) {
	ctx := context.Background()
	state := testutil.NewState(map[string]string{service: `["acct1.example.com:27017"]`})
	secrets := testutil.NewSecrets()
	require.NoError(t, secrets.SetSecret(ctx, service, "acct1.example.com:27017", acctCS))
	f := newFixture(t, state, secrets)

	first, err := f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	_, err = f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, secrets.GetCount())

	f.reg.Invalidate()
	second, err := f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, secrets.GetCount())
	assert.NotSame(t, first[0], second[0])
	_, ok := f.tree.Get(first[0].Handle())
	assert.False(t, ok, "invalidated accounts leave the tree")
}

func TestLoad_LegacyStringRecord(t *testing.T) {
	ctx := context.Background()
	state := testutil.NewState(map[string]string{service: `["acct1"]`})
	secrets := testutil.NewSecrets()
	require.NoError(t, secrets.SetSecret(ctx, service, "acct1", acctCS))
	f := newFixture(t, state, secrets)

	accounts, err := f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acct1", accounts[0].ID())
	assert.Equal(t, types.ProviderMongoDB, accounts[0].ProviderKind())
	assert.False(t, accounts[0].IsEmulator())
}

func TestLoad_LegacyRecordNormalizedOnWrite(t *testing.T) {
	ctx := context.Background()
	state := testutil.NewState(map[string]string{service: `["acct1"]`})
	secrets := testutil.NewSecrets()
	require.NoError(t, secrets.SetSecret(ctx, service, "acct1", acctCS))
	f := newFixture(t, state, secrets)

	_, err := f.reg.AttachConnectionString(ctx, docdbCS, types.ProviderDocumentDB)
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal([]byte(state.Value(service)), &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, map[string]any{"id": "acct1", "defaultExperience": "MongoDB", "isEmulator": false}, raw[0])
}

func TestLoad_BadRecordSkipsOnlyThatRecord(t *testing.T) {
	ctx := context.Background()
	value := `[{"id":"good","defaultExperience":"MongoDB","isEmulator":false},` +
		`{"id":"weird","defaultExperience":"Cassandra","isEmulator":false},` +
		`{"id":"nosecret","defaultExperience":"MongoDB","isEmulator":false}]`
	state := testutil.NewState(map[string]string{service: value})
	secrets := testutil.NewSecrets()
	require.NoError(t, secrets.SetSecret(ctx, service, "good", acctCS))
	require.NoError(t, secrets.SetSecret(ctx, service, "weird", acctCS))
	f := newFixture(t, state, secrets)

	accounts, err := f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, ids(accounts))
	require.Len(t, f.prompter.Warnings, 1)
	assert.Contains(t, f.prompter.Warnings[0], "weird")
	assert.Contains(t, f.prompter.Warnings[0], "nosecret")
}

func TestLoad_BulkFailureMeansZeroAccounts(t *testing.T) {
	ctx := context.Background()
	state := testutil.NewState(nil)
	state.GetErr = errors.New("disk on fire")
	f := newFixture(t, state, testutil.NewSecrets())

	accounts, err := f.reg.GetAttachedAccounts(ctx)
	require.Error(t, err)
	assert.Empty(t, accounts)

	accounts, err = f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err, "the failed generation is cached as empty")
	assert.Empty(t, accounts)
}

func TestLoad_MalformedValueIsBulkFailure(t *testing.T) {
	state := testutil.NewState(map[string]string{service: `{not json`})
	f := newFixture(t, state, testutil.NewSecrets())

	accounts, err := f.reg.GetAttachedAccounts(context.Background())
	require.Error(t, err)
	assert.Empty(t, accounts)
}

func TestAttach_DuplicateIsNoop(t *testing.T) {
	ctx := context.Background()
	state := testutil.NewState(nil)
	secrets := testutil.NewSecrets()
	f := newFixture(t, state, secrets)

	first, err := f.reg.AttachConnectionString(ctx, acctCS, types.ProviderMongoDB)
	require.NoError(t, err)
	arena := f.tree.Len()

	again, err := f.reg.AttachConnectionString(ctx, acctCS, types.ProviderMongoDB)
	require.NoError(t, err)
	assert.Same(t, first, again)

	accounts, err := f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Equal(t, 1, secrets.Sets, "secret written once")
	assert.Equal(t, 1, secrets.Len())
	assert.Len(t, persisted(t, state), 1)
	assert.Equal(t, []string{"Database Account 'acct1.example.com:27017' is already attached."}, f.prompter.Warnings)
	assert.Equal(t, arena, f.tree.Len(), "rejected duplicate leaves no node behind")
}

func TestAttach_EmbeddedDatabasesAreDistinctAccounts(t *testing.T) {
	ctx := context.Background()
	state := testutil.NewState(nil)
	secrets := testutil.NewSecrets()
	f := newFixture(t, state, secrets)

	orders, err := f.reg.AttachConnectionString(ctx, "mongodb://db.example.com:27017/orders", types.ProviderMongoDB)
	require.NoError(t, err)
	sales, err := f.reg.AttachConnectionString(ctx, "mongodb://db.example.com:27017/sales", types.ProviderMongoDB)
	require.NoError(t, err)

	assert.Empty(t, f.prompter.Warnings)
	assert.NotSame(t, orders, sales)
	accounts, err := f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"db.example.com:27017/orders", "db.example.com:27017/sales"}, ids(accounts))
	assert.Equal(t, 2, secrets.Len())
}

func TestAttach_InvalidConnectionString(t *testing.T) {
	f := newFixture(t, testutil.NewState(nil), testutil.NewSecrets())

	_, err := f.reg.AttachConnectionString(context.Background(), "postgres://x", types.ProviderMongoDB)
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, connstring.MongoPrefixMessage, verr.Message)

	_, err = f.reg.AttachConnectionString(context.Background(), "AccountEndpoint=x", types.ProviderDocumentDB)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, connstring.DocDBFormatMessage, verr.Message)
}

func TestAttach_UnknownKind(t *testing.T) {
	f := newFixture(t, testutil.NewState(nil), testutil.NewSecrets())

	_, err := f.reg.AttachConnectionString(context.Background(), acctCS, "Cassandra")
	var cerr *types.ConfigurationError
	require.ErrorAs(t, err, &cerr)
}

func TestDetach(t *testing.T) {
	ctx := context.Background()
	state := testutil.NewState(nil)
	secrets := testutil.NewSecrets()
	f := newFixture(t, state, secrets)

	a, err := f.reg.AttachConnectionString(ctx, acctCS, types.ProviderMongoDB)
	require.NoError(t, err)
	b, err := f.reg.AttachConnectionString(ctx, docdbCS, types.ProviderDocumentDB)
	require.NoError(t, err)

	require.NoError(t, f.reg.Detach(ctx, a))
	accounts, err := f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID()}, ids(accounts))
	assert.Equal(t, 1, secrets.Len())
	assert.Equal(t, []types.PersistedAccountRecord{{ID: docdbAcct, DefaultExperience: types.ProviderDocumentDB}}, persisted(t, state))
	assert.Equal(t, []string{a.ID()}, f.provider.Evicted)
	_, ok := f.tree.Get(a.Handle())
	assert.False(t, ok)

	// Detaching again is a no-op.
	require.NoError(t, f.reg.Detach(ctx, a))
	accounts, err = f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Len(t, f.provider.Evicted, 1)
}

func TestDetach_PersistFailureKeepsAccount(t *testing.T) {
	ctx := context.Background()
	state := testutil.NewState(nil)
	secrets := testutil.NewSecrets()
	f := newFixture(t, state, secrets)

	a, err := f.reg.AttachConnectionString(ctx, acctCS, types.ProviderMongoDB)
	require.NoError(t, err)

	state.UpdateErr = errors.New("disk full")
	err = f.reg.Detach(ctx, a)
	require.Error(t, err)

	accounts, err := f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID()}, ids(accounts))
	cs, ok, err := secrets.GetSecret(ctx, service, a.ID())
	require.NoError(t, err)
	assert.True(t, ok, "connection string restored")
	assert.Equal(t, acctCS, cs)
	assert.Empty(t, f.provider.Evicted)
	_, ok = f.tree.Get(a.Handle())
	assert.True(t, ok)
	assert.Equal(t, []types.PersistedAccountRecord{{ID: a.ID(), DefaultExperience: types.ProviderMongoDB}}, persisted(t, state))
}

func TestRoundTrip_SQLiteState(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	cfg := types.Config{DataDir: dataDir}.WithDefaults()
	secrets := testutil.NewSecrets()

	store := sqlite.NewBackend(zaptest.NewLogger(t).Sugar())
	require.NoError(t, store.Attach(cfg))
	f := newFixture(t, store, secrets)
	emu, err := f.reg.AttachEmulator(ctx, types.ProviderMongoDB)
	require.NoError(t, err)
	remote, err := f.reg.AttachConnectionString(ctx, docdbCS, types.ProviderGraph)
	require.NoError(t, err)
	require.NoError(t, store.Detach())

	reopened := sqlite.NewBackend(zaptest.NewLogger(t).Sugar())
	require.NoError(t, reopened.Attach(cfg))
	t.Cleanup(func() { _ = reopened.Detach() })
	g := newFixture(t, reopened, secrets)

	accounts, err := g.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	for i, want := range []*tree.AccountNode{emu, remote} {
		assert.Equal(t, want.ID(), accounts[i].ID())
		assert.Equal(t, want.ProviderKind(), accounts[i].ProviderKind())
		assert.Equal(t, want.IsEmulator(), accounts[i].IsEmulator())
		assert.Equal(t, want.Label(), accounts[i].Label())
	}
	assert.Equal(t, "MongoDB Emulator", accounts[0].Label())
	assert.True(t, accounts[0].IsEmulator())
}

func TestNoVault_SessionOnly(t *testing.T) {
	ctx := context.Background()
	state := testutil.NewState(nil)
	secrets := testutil.NewSecrets()
	secrets.Unavailable = true
	f := newFixture(t, state, secrets)

	a, err := f.reg.AttachConnectionString(ctx, acctCS, types.ProviderMongoDB)
	require.NoError(t, err)
	accounts, err := f.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID()}, ids(accounts), "usable for this session")
	assert.Zero(t, state.Updates, "nothing persisted")

	// A new process sees nothing.
	g := newFixture(t, state, secrets)
	accounts, err = g.reg.GetAttachedAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	require.NoError(t, f.reg.Detach(ctx, a))
}

func TestAttachNewAccount_Prompts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewState(nil), testutil.NewSecrets())
	f.prompter.Picks = []int{1}
	f.prompter.Inputs = []string{"mongodb://wrong-kind", docdbCS}

	a, err := f.reg.AttachNewAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ProviderDocumentDB, a.ProviderKind())
	assert.Equal(t, []string{connstring.DocDBFormatMessage}, f.prompter.Rejected)
}

func TestAttachNewAccount_Cancelled(t *testing.T) {
	ctx := context.Background()
	state := testutil.NewState(nil)
	f := newFixture(t, state, testutil.NewSecrets())
	f.prompter.Picks = []int{0}

	_, err := f.reg.AttachNewAccount(ctx)
	assert.ErrorIs(t, err, types.ErrCancelled)
	assert.Zero(t, state.Updates)
}

func TestRoot_ListsRegistryAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewState(nil), testutil.NewSecrets())

	children, err := f.reg.Root().LoadChildren(ctx, false)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, tree.KindAction, children[0].Kind())

	_, err = f.reg.AttachConnectionString(ctx, acctCS, types.ProviderMongoDB)
	require.NoError(t, err)
	children, err = f.reg.Root().LoadChildren(ctx, false)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, tree.KindMongoAccount, children[0].Kind())
}
