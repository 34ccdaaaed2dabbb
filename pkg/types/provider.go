package types

// ProviderKind is the wire-protocol family an attached account speaks.
// The string values are the persisted "defaultExperience" values and must
// not change.
type ProviderKind string

// Supported provider kinds.
const (
	ProviderMongoDB    ProviderKind = "MongoDB"
	ProviderDocumentDB ProviderKind = "DocumentDB"
	ProviderGraph      ProviderKind = "Graph"
	ProviderTable      ProviderKind = "Table"
)

// FirstSupportedProvider is the kind implied by a legacy bare-string record.
const FirstSupportedProvider = ProviderMongoDB

// SupportedProviders lists the kinds in display order.
var SupportedProviders = []ProviderKind{
	ProviderMongoDB,
	ProviderDocumentDB,
	ProviderGraph,
	ProviderTable,
}

var providerDisplayNames = map[ProviderKind]string{
	ProviderMongoDB:    "MongoDB",
	ProviderDocumentDB: "SQL (DocumentDB)",
	ProviderGraph:      "Graph (Gremlin)",
	ProviderTable:      "Azure Table",
}

// Valid reports whether k is one of SupportedProviders.
func (k ProviderKind) Valid() bool {
	_, ok := providerDisplayNames[k]
	return ok
}

// DisplayName returns the label shown in pickers.
func (k ProviderKind) DisplayName() string {
	if name, ok := providerDisplayNames[k]; ok {
		return name
	}
	return string(k)
}

// IsDocDBFamily reports whether k speaks the AccountEndpoint/AccountKey
// connection string format.
func (k ProviderKind) IsDocDBFamily() bool {
	return k == ProviderDocumentDB || k == ProviderGraph || k == ProviderTable
}

// ParseProviderKind maps user input (persisted value, display name, or a
// short alias such as "mongo" or "sql") to a ProviderKind.
// Returns a ConfigurationError for anything else.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch s {
	case string(ProviderMongoDB), "mongo", "mongodb":
		return ProviderMongoDB, nil
	case string(ProviderDocumentDB), "sql", "docdb", "documentdb":
		return ProviderDocumentDB, nil
	case string(ProviderGraph), "graph", "gremlin":
		return ProviderGraph, nil
	case string(ProviderTable), "table":
		return ProviderTable, nil
	}
	for k, name := range providerDisplayNames {
		if s == name {
			return k, nil
		}
	}
	return "", &ConfigurationError{Kind: ProviderKind(s)}
}
