package connstring

import (
	"net/url"
	"strings"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// DocDBFormatMessage is shown when a DocumentDB-family connection string
// cannot be decomposed.
const DocDBFormatMessage = `Connection string must be of the form "AccountEndpoint=...;AccountKey=..."`

const (
	docDBKeyEndpoint   = "AccountEndpoint"
	docDBKeyAccountKey = "AccountKey"
	docDBKeyDatabase   = "Database"
)

// ValidateDocDB returns DocDBFormatMessage when cs lacks a non-empty
// AccountEndpoint or AccountKey.
func ValidateDocDB(cs string) string {
	if _, err := ParseDocDB(cs); err != nil {
		return DocDBFormatMessage
	}
	return ""
}

// ParseDocDB decomposes semicolon-separated Key=Value pairs. Keys are
// matched case-insensitively; AccountEndpoint and AccountKey are required.
func ParseDocDB(cs string) (*Descriptor, error) {
	values := map[string]string{}
	for _, part := range strings.Split(strings.TrimSpace(cs), ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return nil, types.NewValidationError("connectionString", DocDBFormatMessage)
		}
		values[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	endpoint := values[strings.ToLower(docDBKeyEndpoint)]
	key := values[strings.ToLower(docDBKeyAccountKey)]
	if endpoint == "" || key == "" {
		return nil, types.NewValidationError("connectionString", DocDBFormatMessage)
	}

	d := &Descriptor{
		Kind:         types.ProviderDocumentDB,
		AccountID:    endpoint,
		Endpoint:     endpoint,
		Key:          key,
		DatabaseName: values[strings.ToLower(docDBKeyDatabase)],
		Original:     strings.TrimSpace(cs),
	}
	if u, err := url.Parse(endpoint); err == nil {
		host := u.Hostname()
		d.IsEmulator = host == "localhost" || host == "127.0.0.1" || key == EmulatorKey
	}
	return d, nil
}
