package testutil

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/mesh-intelligence/cosmosx/internal/connstring"
	"github.com/mesh-intelligence/cosmosx/internal/tree"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// Provider is an in-memory tree.Provider. Documents are keyed by
// "database/collection" and matched on _id.
type Provider struct {
	mu sync.Mutex

	Databases   []types.DatabaseInfo
	Collections map[string][]string
	Documents   map[string][]types.Document

	Opens, Closes     int
	Replaces, Deletes int
	Evicted           []string
}

// NewProvider returns an empty Provider.
func NewProvider() *Provider {
	return &Provider{
		Collections: make(map[string][]string),
		Documents:   make(map[string][]types.Document),
	}
}

// AddDocuments stores docs in database/collection and lists both.
func (p *Provider) AddDocuments(database, collection string, docs ...types.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	found := false
	for _, db := range p.Databases {
		if db.Name == database {
			found = true
		}
	}
	if !found {
		p.Databases = append(p.Databases, types.DatabaseInfo{Name: database})
	}
	if _, ok := p.Documents[database+"/"+collection]; !ok {
		p.Collections[database] = append(p.Collections[database], collection)
	}
	p.Documents[database+"/"+collection] = append(p.Documents[database+"/"+collection], docs...)
}

// Stored returns the stored copy of the document with id.
func (p *Provider) Stored(database, collection string, id any) (types.Document, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexLocked(database+"/"+collection, id)
	if i < 0 {
		return nil, false
	}
	return maps.Clone(p.Documents[database+"/"+collection][i]), true
}

func (p *Provider) indexLocked(key string, id any) int {
	for i, doc := range p.Documents[key] {
		if docID, ok := doc.ID(); ok && docID == id {
			return i
		}
	}
	return -1
}

type session struct{ p *Provider }

func (s session) ListDatabases(context.Context) ([]types.DatabaseInfo, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	return append([]types.DatabaseInfo(nil), s.p.Databases...), nil
}

func (s session) Close(context.Context) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.Closes++
	return nil
}

func (p *Provider) Open(context.Context, *connstring.Descriptor) (tree.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Opens++
	return session{p: p}, nil
}

func (p *Provider) ListCollections(_ context.Context, _ *connstring.Descriptor, database string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Collections[database]...), nil
}

func (p *Provider) ListDocuments(_ context.Context, _ *connstring.Descriptor, database, collection string, skip, limit int) ([]types.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	docs := p.Documents[database+"/"+collection]
	if skip >= len(docs) {
		return nil, nil
	}
	out := make([]types.Document, 0, limit)
	for _, doc := range docs[skip:min(skip+limit, len(docs))] {
		out = append(out, maps.Clone(doc))
	}
	return out, nil
}

func (p *Provider) CreateCollection(_ context.Context, _ *connstring.Descriptor, database, collection string) error {
	p.AddDocuments(database, collection)
	return nil
}

func (p *Provider) DropDatabase(_ context.Context, _ *connstring.Descriptor, database string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.Collections[database] {
		delete(p.Documents, database+"/"+c)
	}
	delete(p.Collections, database)
	return nil
}

func (p *Provider) DropCollection(_ context.Context, _ *connstring.Descriptor, database, collection string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Documents, database+"/"+collection)
	return nil
}

func (p *Provider) InsertDocument(_ context.Context, _ *connstring.Descriptor, database, collection string, doc types.Document) (types.Document, error) {
	stored := maps.Clone(doc)
	if _, ok := stored.ID(); !ok {
		p.mu.Lock()
		stored[types.DocumentIDKey] = fmt.Sprintf("gen-%d", len(p.Documents[database+"/"+collection]))
		p.mu.Unlock()
	}
	p.AddDocuments(database, collection, stored)
	return stored, nil
}

func (p *Provider) ReplaceDocument(_ context.Context, _ *connstring.Descriptor, database, collection string, id any, doc types.Document) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Replaces++
	key := database + "/" + collection
	i := p.indexLocked(key, id)
	if i < 0 {
		return 0, nil
	}
	stored := maps.Clone(doc)
	stored[types.DocumentIDKey] = id
	p.Documents[key][i] = stored
	return 1, nil
}

func (p *Provider) DeleteDocument(_ context.Context, _ *connstring.Descriptor, database, collection string, id any) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Deletes++
	key := database + "/" + collection
	i := p.indexLocked(key, id)
	if i < 0 {
		return 0, nil
	}
	p.Documents[key] = append(p.Documents[key][:i], p.Documents[key][i+1:]...)
	return 1, nil
}

func (p *Provider) Evict(_ context.Context, d *connstring.Descriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Evicted = append(p.Evicted, d.AccountID)
}

// Calls returns the replace and delete call counts.
func (p *Provider) Calls() (replaces, deletes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Replaces, p.Deletes
}
