package tree

import (
	"context"
	"sync"

	"github.com/mesh-intelligence/cosmosx/internal/connstring"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// fakeProvider records calls and serves canned data.
type fakeProvider struct {
	mu sync.Mutex

	databases   []types.DatabaseInfo
	collections map[string][]string
	documents   map[string][]types.Document
	openErr     error
	listErr     error

	opens, closes, lists int
	collectionLists      int
	created              []string
	dropped              []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		collections: make(map[string][]string),
		documents:   make(map[string][]types.Document),
	}
}

type fakeSession struct{ p *fakeProvider }

func (s fakeSession) ListDatabases(context.Context) ([]types.DatabaseInfo, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.lists++
	if s.p.listErr != nil {
		return nil, s.p.listErr
	}
	return append([]types.DatabaseInfo(nil), s.p.databases...), nil
}

func (s fakeSession) Close(context.Context) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.closes++
	return nil
}

func (p *fakeProvider) Open(context.Context, *connstring.Descriptor) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	if p.openErr != nil {
		return nil, p.openErr
	}
	return fakeSession{p: p}, nil
}

func (p *fakeProvider) ListCollections(_ context.Context, _ *connstring.Descriptor, database string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collectionLists++
	return p.collections[database], nil
}

func (p *fakeProvider) ListDocuments(_ context.Context, _ *connstring.Descriptor, database, collection string, skip, limit int) ([]types.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	docs := p.documents[database+"/"+collection]
	if skip >= len(docs) {
		return nil, nil
	}
	end := min(skip+limit, len(docs))
	return docs[skip:end], nil
}

func (p *fakeProvider) CreateCollection(_ context.Context, _ *connstring.Descriptor, database, collection string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, database+"/"+collection)
	p.collections[database] = append(p.collections[database], collection)
	return nil
}

func (p *fakeProvider) DropDatabase(_ context.Context, _ *connstring.Descriptor, database string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped = append(p.dropped, database)
	return nil
}

func (p *fakeProvider) DropCollection(_ context.Context, _ *connstring.Descriptor, database, collection string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped = append(p.dropped, database+"/"+collection)
	return nil
}

func (p *fakeProvider) InsertDocument(_ context.Context, _ *connstring.Descriptor, database, collection string, doc types.Document) (types.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := database + "/" + collection
	p.documents[key] = append(p.documents[key], doc)
	return doc, nil
}

func (p *fakeProvider) ReplaceDocument(context.Context, *connstring.Descriptor, string, string, any, types.Document) (int64, error) {
	return 1, nil
}

func (p *fakeProvider) DeleteDocument(context.Context, *connstring.Descriptor, string, string, any) (int64, error) {
	return 1, nil
}

// eagerProvider creates databases immediately.
type eagerProvider struct {
	*fakeProvider
	databasesCreated []string
}

func (p *eagerProvider) CreateDatabase(_ context.Context, _ *connstring.Descriptor, database string) error {
	p.databasesCreated = append(p.databasesCreated, database)
	return nil
}

// fakeSource serves a fixed account list to the root.
type fakeSource struct {
	accounts    []*AccountNode
	invalidated int
}

func (s *fakeSource) GetAttachedAccounts(context.Context) ([]*AccountNode, error) {
	return s.accounts, nil
}

func (s *fakeSource) Invalidate() { s.invalidated++ }
