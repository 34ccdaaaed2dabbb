// Package cli implements the cosmosx command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errNotFound marks lookups of accounts, databases, collections or
// documents that do not exist.
var errNotFound = errors.New("not found")

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	debug     bool
	jsonMode  bool
	yes       bool
}

var flags rootFlags

// NewRootCmd creates the top-level "cosmosx" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags = rootFlags{}
	root := &cobra.Command{
		Use:   "cosmosx",
		Short: "Browse and edit attached database accounts",
		Long: "cosmosx remembers attached MongoDB and Azure Cosmos DB accounts, browses their\n" +
			"databases, collections and documents, and updates or deletes single documents.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&flags.yes, "yes", "y", false, "answer yes to confirmations")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newAccountsCmd())
	root.AddCommand(newTreeCmd())
	root.AddCommand(newDatabaseCmd())
	root.AddCommand(newCollectionCmd())
	root.AddCommand(newDocumentCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		if types.IsCancelled(err) {
			fmt.Fprintln(os.Stderr, "Cancelled.")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// exitCode maps user-correctable failures to exitUserError and the rest
// to exitSysError.
func exitCode(err error) int {
	var (
		verr   *types.ValidationError
		cerr   *types.ConflictError
		cfgErr *types.ConfigurationError
	)
	switch {
	case err == nil:
		return exitSuccess
	case types.IsCancelled(err),
		errors.Is(err, errNotFound),
		errors.As(err, &verr),
		errors.As(err, &cerr),
		errors.As(err, &cfgErr):
		return exitUserError
	default:
		return exitSysError
	}
}
