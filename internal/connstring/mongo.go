package connstring

import (
	"strings"

	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

const (
	mongoPrefix    = "mongodb://"
	mongoSRVPrefix = "mongodb+srv://"
)

// MongoPrefixMessage is shown when a MongoDB connection string has neither
// accepted prefix.
const MongoPrefixMessage = `Connection string must start with "mongodb://" or "mongodb+srv://"`

// ValidateMongo checks the prefix only; it never performs I/O.
func ValidateMongo(cs string) string {
	cs = strings.TrimSpace(cs)
	if strings.HasPrefix(cs, mongoPrefix) || strings.HasPrefix(cs, mongoSRVPrefix) {
		return ""
	}
	return MongoPrefixMessage
}

// ParseMongo validates and decomposes a MongoDB connection string.
// mongodb+srv strings are resolved through DNS by the driver's parser.
func ParseMongo(cs string) (*Descriptor, error) {
	cs = strings.TrimSpace(cs)
	if msg := ValidateMongo(cs); msg != "" {
		return nil, types.NewValidationError("connectionString", msg)
	}

	parsed, err := connstring.ParseAndValidate(cs)
	if err != nil {
		return nil, types.NewValidationError("connectionString", err.Error())
	}

	// The embedded database scopes the visible tree, so it is part of the
	// account identity: host[/database].
	id := strings.Join(parsed.Hosts, ",")
	if parsed.Database != "" {
		id += "/" + parsed.Database
	}
	d := &Descriptor{
		Kind:         types.ProviderMongoDB,
		AccountID:    id,
		Username:     parsed.Username,
		Key:          parsed.Password,
		DatabaseName: parsed.Database,
		Original:     cs,
	}
	d.IsEmulator = allLocal(parsed.Hosts)
	return d, nil
}

func allLocal(hosts []string) bool {
	if len(hosts) == 0 {
		return false
	}
	for _, h := range hosts {
		name := h
		if i := strings.LastIndex(h, ":"); i >= 0 {
			name = h[:i]
		}
		if name != "localhost" && name != "127.0.0.1" {
			return false
		}
	}
	return true
}
