package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/cosmosx/internal/connstring"
	"github.com/mesh-intelligence/cosmosx/internal/tree"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

var (
	_ tree.Provider = (*Provider)(nil)
	_ tree.Evicter  = (*Provider)(nil)
)

func TestDatabaseInfos(t *testing.T) {
	result := mongo.ListDatabasesResult{
		Databases: []mongo.DatabaseSpecification{
			{Name: "admin", Empty: true},
			{Name: "sales", SizeOnDisk: 4096},
		},
	}
	assert.Equal(t, []types.DatabaseInfo{
		{Name: "admin", Empty: true},
		{Name: "sales"},
	}, databaseInfos(result))
}

func TestEvict_UnknownDescriptorIsNoop(t *testing.T) {
	p := New(zaptest.NewLogger(t).Sugar())
	p.Evict(context.Background(), &connstring.Descriptor{Original: "mongodb://nowhere:27017/"})
	assert.Zero(t, p.Cached())
	assert.NoError(t, p.Close(context.Background()))
}
