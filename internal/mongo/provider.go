// Package mongo serves MongoDB accounts through the official Go driver.
//
// Database listing uses a connection opened for that call only. All other
// calls share a client cached per connection string until Evict.
package mongo

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/cosmosx/internal/connstring"
	"github.com/mesh-intelligence/cosmosx/internal/tree"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
	appName        = "cosmosx"
)

// Provider implements tree.Provider for MongoDB.
type Provider struct {
	mu      sync.Mutex
	clients map[string]*mongo.Client
	logger  *zap.SugaredLogger
}

// New returns a Provider with an empty client cache.
func New(logger *zap.SugaredLogger) *Provider {
	return &Provider{
		clients: make(map[string]*mongo.Client),
		logger:  logger,
	}
}

// connect opens a client and pings the primary.
func (p *Provider) connect(ctx context.Context, d *connstring.Descriptor) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(d.Original).
		SetConnectTimeout(connectTimeout).
		SetAppName(appName)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", d.AccountID, err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, pingTimeout)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping %s: %w", d.AccountID, err)
	}
	p.logger.Debugw("connected", "account", d.AccountID, "uri", connstring.Mask(d.Original))
	return client, nil
}

// client returns the cached client for d, connecting on first use.
func (p *Provider) client(ctx context.Context, d *connstring.Descriptor) (*mongo.Client, error) {
	p.mu.Lock()
	c, ok := p.clients[d.Original]
	p.mu.Unlock()
	if ok {
		return c, nil
	}

	c, err := p.connect(ctx, d)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[d.Original]; ok {
		_ = c.Disconnect(ctx)
		return existing, nil
	}
	p.clients[d.Original] = c
	return c, nil
}

func (p *Provider) collection(ctx context.Context, d *connstring.Descriptor, database, collection string) (*mongo.Collection, error) {
	c, err := p.client(ctx, d)
	if err != nil {
		return nil, err
	}
	return c.Database(database).Collection(collection), nil
}

// Open returns a session on a fresh connection.
func (p *Provider) Open(ctx context.Context, d *connstring.Descriptor) (tree.Session, error) {
	c, err := p.connect(ctx, d)
	if err != nil {
		return nil, err
	}
	return &session{client: c}, nil
}

type session struct {
	client *mongo.Client
}

func (s *session) ListDatabases(ctx context.Context) ([]types.DatabaseInfo, error) {
	result, err := s.client.ListDatabases(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return databaseInfos(result), nil
}

func (s *session) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func databaseInfos(result mongo.ListDatabasesResult) []types.DatabaseInfo {
	infos := make([]types.DatabaseInfo, 0, len(result.Databases))
	for _, spec := range result.Databases {
		infos = append(infos, types.DatabaseInfo{Name: spec.Name, Empty: spec.Empty})
	}
	return infos
}

func (p *Provider) ListCollections(ctx context.Context, d *connstring.Descriptor, database string) ([]string, error) {
	c, err := p.client(ctx, d)
	if err != nil {
		return nil, err
	}
	names, err := c.Database(database).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

func (p *Provider) ListDocuments(ctx context.Context, d *connstring.Descriptor, database, collection string, skip, limit int) ([]types.Document, error) {
	coll, err := p.collection(ctx, d, database, collection)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSkip(int64(skip)).SetLimit(int64(limit))
	cursor, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}
	docs := make([]types.Document, len(raw))
	for i, m := range raw {
		docs[i] = types.Document(m)
	}
	return docs, nil
}

// CreateCollection creates the collection, which also creates its
// database on the server.
func (p *Provider) CreateCollection(ctx context.Context, d *connstring.Descriptor, database, collection string) error {
	c, err := p.client(ctx, d)
	if err != nil {
		return err
	}
	return c.Database(database).CreateCollection(ctx, collection)
}

func (p *Provider) DropDatabase(ctx context.Context, d *connstring.Descriptor, database string) error {
	c, err := p.client(ctx, d)
	if err != nil {
		return err
	}
	return c.Database(database).Drop(ctx)
}

func (p *Provider) DropCollection(ctx context.Context, d *connstring.Descriptor, database, collection string) error {
	coll, err := p.collection(ctx, d, database, collection)
	if err != nil {
		return err
	}
	return coll.Drop(ctx)
}

// InsertDocument inserts doc and returns it with the server-assigned _id.
func (p *Provider) InsertDocument(ctx context.Context, d *connstring.Descriptor, database, collection string, doc types.Document) (types.Document, error) {
	coll, err := p.collection(ctx, d, database, collection)
	if err != nil {
		return nil, err
	}
	res, err := coll.InsertOne(ctx, bson.M(doc))
	if err != nil {
		return nil, err
	}
	stored := maps.Clone(doc)
	stored[types.DocumentIDKey] = res.InsertedID
	return stored, nil
}

// ReplaceDocument replaces the document matching id and reports how many
// documents were modified.
func (p *Provider) ReplaceDocument(ctx context.Context, d *connstring.Descriptor, database, collection string, id any, doc types.Document) (int64, error) {
	coll, err := p.collection(ctx, d, database, collection)
	if err != nil {
		return 0, err
	}
	res, err := coll.ReplaceOne(ctx, bson.M{types.DocumentIDKey: id}, bson.M(doc))
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (p *Provider) DeleteDocument(ctx context.Context, d *connstring.Descriptor, database, collection string, id any) (int64, error) {
	coll, err := p.collection(ctx, d, database, collection)
	if err != nil {
		return 0, err
	}
	res, err := coll.DeleteOne(ctx, bson.M{types.DocumentIDKey: id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Evict disconnects and forgets the cached client for d.
func (p *Provider) Evict(ctx context.Context, d *connstring.Descriptor) {
	p.mu.Lock()
	c, ok := p.clients[d.Original]
	delete(p.clients, d.Original)
	p.mu.Unlock()
	if !ok {
		return
	}
	if err := c.Disconnect(ctx); err != nil {
		p.logger.Warnw("disconnect evicted client failed", "account", d.AccountID, "error", err)
	}
}

// Close disconnects every cached client.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	clients := p.clients
	p.clients = make(map[string]*mongo.Client)
	p.mu.Unlock()

	var firstErr error
	for _, c := range clients {
		if err := c.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Cached reports how many clients are cached.
func (p *Provider) Cached() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}
