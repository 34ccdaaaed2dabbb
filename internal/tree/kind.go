package tree

import "github.com/mesh-intelligence/cosmosx/pkg/types"

// Kind tags every node. Behavior that differs per provider switches on
// the account kind, never on the node's Go type.
type Kind string

const (
	KindAttachedAccounts Kind = "cosmosDBAttachedAccounts"
	KindMongoAccount     Kind = "cosmosDBMongoAccount"
	KindDocDBAccount     Kind = "cosmosDBDocumentAccount"
	KindGraphAccount     Kind = "cosmosDBGraphAccount"
	KindTableAccount     Kind = "cosmosDBTableAccount"
	KindDatabase         Kind = "cosmosDBDatabase"
	KindCollection       Kind = "cosmosDBCollection"
	KindDocument         Kind = "cosmosDBDocument"
	KindAction           Kind = "cosmosDBAction"
)

// AccountKinds lists the account node kinds.
var AccountKinds = []Kind{KindMongoAccount, KindDocDBAccount, KindGraphAccount, KindTableAccount}

// AccountKind maps a provider kind to its account node kind. Unknown
// provider kinds are a ConfigurationError.
func AccountKind(p types.ProviderKind) (Kind, error) {
	switch p {
	case types.ProviderMongoDB:
		return KindMongoAccount, nil
	case types.ProviderDocumentDB:
		return KindDocDBAccount, nil
	case types.ProviderGraph:
		return KindGraphAccount, nil
	case types.ProviderTable:
		return KindTableAccount, nil
	default:
		return "", &types.ConfigurationError{Kind: p}
	}
}

var accountDescendants = []Kind{KindDatabase, KindCollection, KindDocument}

// descendantKinds drives IsAncestorKindOf. The attached-accounts root
// omits the account kinds so that account actions meant for
// portal-managed accounts are not offered for attached ones.
var descendantKinds = map[Kind][]Kind{
	KindAttachedAccounts: {KindDatabase, KindCollection, KindDocument, KindAction},
	KindMongoAccount:     accountDescendants,
	KindDocDBAccount:     accountDescendants,
	KindGraphAccount:     accountDescendants,
	KindTableAccount:     accountDescendants,
	KindDatabase:         {KindCollection, KindDocument},
	KindCollection:       {KindDocument},
}

var iconHints = map[Kind]string{
	KindAttachedAccounts: "attached-accounts",
	KindMongoAccount:     "mongo-account",
	KindDocDBAccount:     "docdb-account",
	KindGraphAccount:     "graph-account",
	KindTableAccount:     "table-account",
	KindDatabase:         "database",
	KindCollection:       "collection",
	KindDocument:         "document",
	KindAction:           "add",
}
