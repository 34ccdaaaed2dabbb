// Package cosmos serves DocumentDB-family accounts (SQL, Graph, Table)
// through the azcosmos SDK. Item writes are routed by the partition key
// declared on the container.
package cosmos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/cosmosx/internal/connstring"
	"github.com/mesh-intelligence/cosmosx/internal/tree"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

const (
	queryDatabases  = "SELECT * FROM root"
	queryContainers = "SELECT * FROM root"
	queryDocuments  = "SELECT * FROM c"
	queryDocumentID = "SELECT * FROM c WHERE c.id = @id"

	// defaultPartitionKeyPath is used for containers created from the tree.
	defaultPartitionKeyPath = "/id"
)

// containerKey identifies one container of one attached account.
type containerKey struct {
	original   string
	database   string
	collection string
}

// cursor is a continuation token that resumes a listing at offset.
type cursor struct {
	offset int
	token  string
}

// Provider implements tree.Provider and tree.DatabaseCreator.
type Provider struct {
	mu            sync.Mutex
	clients       map[string]*azcosmos.Client
	cursors       map[containerKey][]cursor
	partitionKeys map[containerKey][]string
	logger        *zap.SugaredLogger
}

// New returns a Provider with an empty client cache.
func New(logger *zap.SugaredLogger) *Provider {
	return &Provider{
		clients:       make(map[string]*azcosmos.Client),
		cursors:       make(map[containerKey][]cursor),
		partitionKeys: make(map[containerKey][]string),
		logger:        logger,
	}
}

func newClient(d *connstring.Descriptor) (*azcosmos.Client, error) {
	cred, err := azcosmos.NewKeyCredential(d.Key)
	if err != nil {
		return nil, fmt.Errorf("account key for %s: %w", d.AccountID, err)
	}
	client, err := azcosmos.NewClientWithKey(d.Endpoint, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("client for %s: %w", d.AccountID, err)
	}
	return client, nil
}

func (p *Provider) client(d *connstring.Descriptor) (*azcosmos.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[d.Original]; ok {
		return c, nil
	}
	c, err := newClient(d)
	if err != nil {
		return nil, err
	}
	p.clients[d.Original] = c
	p.logger.Debugw("client created", "account", d.AccountID, "connection", connstring.Mask(d.Original))
	return c, nil
}

func (p *Provider) database(d *connstring.Descriptor, database string) (*azcosmos.DatabaseClient, error) {
	c, err := p.client(d)
	if err != nil {
		return nil, err
	}
	return c.NewDatabase(database)
}

// Open returns a session on a client used for this listing only.
func (p *Provider) Open(_ context.Context, d *connstring.Descriptor) (tree.Session, error) {
	c, err := newClient(d)
	if err != nil {
		return nil, err
	}
	return &session{client: c}, nil
}

type session struct {
	client *azcosmos.Client
}

func (s *session) ListDatabases(ctx context.Context) ([]types.DatabaseInfo, error) {
	var infos []types.DatabaseInfo
	pager := s.client.NewQueryDatabasesPager(queryDatabases, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list databases: %w", err)
		}
		for _, db := range page.Databases {
			infos = append(infos, types.DatabaseInfo{Name: db.ID})
		}
	}
	return infos, nil
}

// Close is a no-op: the SDK client holds no connection of its own.
func (s *session) Close(context.Context) error {
	return nil
}

func (p *Provider) CreateDatabase(ctx context.Context, d *connstring.Descriptor, database string) error {
	c, err := p.client(d)
	if err != nil {
		return err
	}
	_, err = c.CreateDatabase(ctx, azcosmos.DatabaseProperties{ID: database}, nil)
	return err
}

func (p *Provider) ListCollections(ctx context.Context, d *connstring.Descriptor, database string) ([]string, error) {
	db, err := p.database(d, database)
	if err != nil {
		return nil, err
	}
	var names []string
	pager := db.NewQueryContainersPager(queryContainers, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range page.Containers {
			names = append(names, c.ID)
		}
	}
	return names, nil
}

func (p *Provider) container(d *connstring.Descriptor, database, collection string) (*azcosmos.ContainerClient, error) {
	db, err := p.database(d, database)
	if err != nil {
		return nil, err
	}
	return db.NewContainer(collection)
}

// ListDocuments pages a cross-partition query with continuation tokens.
// Tokens seen at page boundaries are kept so a later page resumes from
// the nearest boundary at or before skip. A listing from offset zero
// starts over.
func (p *Provider) ListDocuments(ctx context.Context, d *connstring.Descriptor, database, collection string, skip, limit int) ([]types.Document, error) {
	container, err := p.container(d, database, collection)
	if err != nil {
		return nil, err
	}
	key := containerKey{original: d.Original, database: database, collection: collection}
	if skip == 0 {
		p.forgetCursors(func(k containerKey) bool { return k == key })
	}

	pos, token := p.resumeAt(key, skip)
	opts := &azcosmos.QueryOptions{PageSizeHint: int32(limit)}
	if token != "" {
		opts.ContinuationToken = &token
	}
	var docs []types.Document
	pager := container.NewQueryItemsPager(queryDocuments, azcosmos.NewPartitionKey(), opts)
	for pager.More() && len(docs) < limit {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if pos >= skip && len(docs) < limit {
				doc, err := decodeItem(item)
				if err != nil {
					return nil, err
				}
				docs = append(docs, doc)
			}
			pos++
		}
		if page.ContinuationToken != nil {
			p.remember(key, pos, *page.ContinuationToken)
		}
	}
	return docs, nil
}

// resumeAt returns the furthest known boundary at or before skip.
func (p *Provider) resumeAt(key containerKey, skip int) (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, token := 0, ""
	for _, c := range p.cursors[key] {
		if c.offset > skip {
			break
		}
		pos, token = c.offset, c.token
	}
	return pos, token
}

func (p *Provider) remember(key containerKey, offset int, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cursors := p.cursors[key]
	i := sort.Search(len(cursors), func(i int) bool { return cursors[i].offset >= offset })
	if i < len(cursors) && cursors[i].offset == offset {
		cursors[i].token = token
		return
	}
	p.cursors[key] = slices.Insert(cursors, i, cursor{offset: offset, token: token})
}

// forgetCursors drops listing cursors and partition key paths for every
// container matching match.
func (p *Provider) forgetCursors(match func(containerKey) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	maps.DeleteFunc(p.cursors, func(k containerKey, _ []cursor) bool { return match(k) })
	maps.DeleteFunc(p.partitionKeys, func(k containerKey, _ []string) bool { return match(k) })
}

// decodeItem exposes the item's "id" as _id so documents from every
// provider share one identity key.
func decodeItem(item []byte) (types.Document, error) {
	var doc types.Document
	if err := json.Unmarshal(item, &doc); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	if _, ok := doc[types.DocumentIDKey]; !ok {
		if id, ok := doc["id"]; ok {
			doc[types.DocumentIDKey] = id
		}
	}
	return doc, nil
}

func (p *Provider) CreateCollection(ctx context.Context, d *connstring.Descriptor, database, collection string) error {
	db, err := p.database(d, database)
	if err != nil {
		return err
	}
	props := azcosmos.ContainerProperties{
		ID: collection,
		PartitionKeyDefinition: azcosmos.PartitionKeyDefinition{
			Paths: []string{defaultPartitionKeyPath},
		},
	}
	_, err = db.CreateContainer(ctx, props, nil)
	return err
}

func (p *Provider) DropDatabase(ctx context.Context, d *connstring.Descriptor, database string) error {
	db, err := p.database(d, database)
	if err != nil {
		return err
	}
	if _, err = db.Delete(ctx, nil); err != nil {
		return err
	}
	p.forgetCursors(func(k containerKey) bool { return k.original == d.Original && k.database == database })
	return nil
}

func (p *Provider) DropCollection(ctx context.Context, d *connstring.Descriptor, database, collection string) error {
	container, err := p.container(d, database, collection)
	if err != nil {
		return err
	}
	if _, err = container.Delete(ctx, nil); err != nil {
		return err
	}
	key := containerKey{original: d.Original, database: database, collection: collection}
	p.forgetCursors(func(k containerKey) bool { return k == key })
	return nil
}

// partitionKeyPaths reads the container's partition key definition once
// and caches it.
func (p *Provider) partitionKeyPaths(ctx context.Context, key containerKey, container *azcosmos.ContainerClient) ([]string, error) {
	p.mu.Lock()
	paths, ok := p.partitionKeys[key]
	p.mu.Unlock()
	if ok {
		return paths, nil
	}
	resp, err := container.Read(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("read container %s: %w", key.collection, err)
	}
	if resp.ContainerProperties != nil {
		paths = resp.ContainerProperties.PartitionKeyDefinition.Paths
	}
	if len(paths) == 0 {
		paths = []string{defaultPartitionKeyPath}
	}
	p.mu.Lock()
	p.partitionKeys[key] = paths
	p.mu.Unlock()
	return paths, nil
}

// InsertDocument creates an item. The item id comes from _id, then id,
// and is generated when the document carries neither.
func (p *Provider) InsertDocument(ctx context.Context, d *connstring.Descriptor, database, collection string, doc types.Document) (types.Document, error) {
	id, err := insertID(doc)
	if err != nil {
		return nil, err
	}
	container, err := p.container(d, database, collection)
	if err != nil {
		return nil, err
	}
	body, item, err := encodeItem(id, doc)
	if err != nil {
		return nil, err
	}
	key := containerKey{original: d.Original, database: database, collection: collection}
	paths, err := p.partitionKeyPaths(ctx, key, container)
	if err != nil {
		return nil, err
	}
	pk, err := partitionKeyFor(paths, item)
	if err != nil {
		return nil, err
	}
	if _, err := container.CreateItem(ctx, pk, body, nil); err != nil {
		return nil, err
	}
	stored := maps.Clone(doc)
	stored["id"] = id
	stored[types.DocumentIDKey] = id
	return stored, nil
}

// ReplaceDocument replaces the item whose id is id within the partition
// named by doc. It reports one on success and zero when no such item
// exists there.
func (p *Provider) ReplaceDocument(ctx context.Context, d *connstring.Descriptor, database, collection string, id any, doc types.Document) (int64, error) {
	name, err := itemID(id)
	if err != nil {
		return 0, err
	}
	container, err := p.container(d, database, collection)
	if err != nil {
		return 0, err
	}
	body, item, err := encodeItem(name, doc)
	if err != nil {
		return 0, err
	}
	key := containerKey{original: d.Original, database: database, collection: collection}
	paths, err := p.partitionKeyPaths(ctx, key, container)
	if err != nil {
		return 0, err
	}
	pk, err := partitionKeyFor(paths, item)
	if err != nil {
		return 0, err
	}
	if _, err := container.ReplaceItem(ctx, pk, name, body, nil); err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return 1, nil
}

// DeleteDocument looks the item up by id across partitions and deletes
// it only when exactly one item matches. The match count is returned
// unchanged when it is not one.
func (p *Provider) DeleteDocument(ctx context.Context, d *connstring.Descriptor, database, collection string, id any) (int64, error) {
	name, err := itemID(id)
	if err != nil {
		return 0, err
	}
	container, err := p.container(d, database, collection)
	if err != nil {
		return 0, err
	}
	opts := &azcosmos.QueryOptions{
		QueryParameters: []azcosmos.QueryParameter{{Name: "@id", Value: name}},
	}
	var matches []map[string]any
	pager := container.NewQueryItemsPager(queryDocumentID, azcosmos.NewPartitionKey(), opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		for _, raw := range page.Items {
			var item map[string]any
			if err := json.Unmarshal(raw, &item); err != nil {
				return 0, fmt.Errorf("decode item: %w", err)
			}
			matches = append(matches, item)
		}
	}
	if len(matches) != 1 {
		return int64(len(matches)), nil
	}

	key := containerKey{original: d.Original, database: database, collection: collection}
	paths, err := p.partitionKeyPaths(ctx, key, container)
	if err != nil {
		return 0, err
	}
	pk, err := partitionKeyFor(paths, matches[0])
	if err != nil {
		return 0, err
	}
	if _, err := container.DeleteItem(ctx, pk, name, nil); err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return 1, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// itemID returns id as an item id. Items are keyed by strings only.
func itemID(id any) (string, error) {
	s, ok := id.(string)
	if !ok || s == "" {
		return "", types.NewValidationError(types.DocumentIDKey, "document _id must be a non-empty string for this account")
	}
	return s, nil
}

func insertID(doc types.Document) (string, error) {
	if id, ok := doc.ID(); ok {
		return itemID(id)
	}
	if id, ok := doc["id"]; ok {
		return itemID(id)
	}
	return uuid.NewString(), nil
}

// encodeItem renders doc as the item body stored under id. _id is not
// stored; it is derived from id on read. The decoded body is returned
// alongside so partition key values are read from what the server sees.
func encodeItem(id string, doc types.Document) ([]byte, map[string]any, error) {
	m := bson.M(maps.Clone(doc))
	delete(m, types.DocumentIDKey)
	m["id"] = id
	body, err := bson.MarshalExtJSON(m, false, false)
	if err != nil {
		return nil, nil, fmt.Errorf("encode item: %w", err)
	}
	var item map[string]any
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, nil, fmt.Errorf("encode item: %w", err)
	}
	return body, item, nil
}

// partitionKeyFor builds the partition key of item from the container's
// key paths. Hierarchical keys have one path per level.
func partitionKeyFor(paths []string, item map[string]any) (azcosmos.PartitionKey, error) {
	pk := azcosmos.NewPartitionKey()
	for _, path := range paths {
		v, ok := lookupPath(item, path)
		if !ok {
			return pk, types.NewValidationError("document", fmt.Sprintf("document has no value for partition key %s", path))
		}
		switch v := v.(type) {
		case string:
			pk = pk.AppendString(v)
		case bool:
			pk = pk.AppendBool(v)
		case float64:
			pk = pk.AppendNumber(v)
		case nil:
			pk = pk.AppendNull()
		default:
			return pk, types.NewValidationError("document", fmt.Sprintf("partition key %s must be a string, number, boolean or null", path))
		}
	}
	return pk, nil
}

// lookupPath resolves a partition key path such as /address/"zip code"
// against a decoded item.
func lookupPath(item map[string]any, path string) (any, bool) {
	var cur any = item
	for _, seg := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[strings.Trim(seg, `"`)]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Evict forgets the cached client and listing state for d.
func (p *Provider) Evict(_ context.Context, d *connstring.Descriptor) {
	p.forgetCursors(func(k containerKey) bool { return k.original == d.Original })
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.clients, d.Original)
}

// Cached reports how many clients are cached.
func (p *Provider) Cached() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}
