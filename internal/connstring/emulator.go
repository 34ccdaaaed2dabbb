package connstring

import (
	"fmt"
	"net/url"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// EmulatorKey is the fixed, publicly documented key of the local emulator.
const EmulatorKey = "C2y6yDjf5/R+ob0N8A7Cgv30VRDJIWEHLM+4QDU5DE2nQ9nDuVTqobD4b8mGGyPMbIZnqyMsEcaGQy67XIw/Jw=="

// MongoEmulator builds the emulator connection string for port. The key is
// percent-encoded because the driver rejects raw '/', '+' and '=' in the
// password position, and the "/" path segment must precede the options
// even though no database is named.
func MongoEmulator(port int) string {
	return fmt.Sprintf("mongodb://localhost:%s@localhost:%d/?ssl=true", url.QueryEscape(EmulatorKey), port)
}

// DocDBEmulator builds the DocumentDB-family emulator connection string.
func DocDBEmulator(port int) string {
	return fmt.Sprintf("AccountEndpoint=https://localhost:%d/;AccountKey=%s;", port, EmulatorKey)
}

// Emulator returns the emulator connection string for kind.
func Emulator(kind types.ProviderKind, cfg types.EmulatorConfig) (string, error) {
	switch kind {
	case types.ProviderMongoDB:
		return MongoEmulator(cfg.MongoPort), nil
	case types.ProviderDocumentDB, types.ProviderGraph, types.ProviderTable:
		return DocDBEmulator(cfg.Port), nil
	default:
		return "", &types.ConfigurationError{Kind: kind}
	}
}

// EmulatorLabel is the display label of an emulator account.
func EmulatorLabel(kind types.ProviderKind) string {
	return fmt.Sprintf("%s Emulator", kind.DisplayName())
}
