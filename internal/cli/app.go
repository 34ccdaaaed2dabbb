package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/cosmosx/internal/cosmos"
	"github.com/mesh-intelligence/cosmosx/internal/document"
	"github.com/mesh-intelligence/cosmosx/internal/logging"
	"github.com/mesh-intelligence/cosmosx/internal/mongo"
	"github.com/mesh-intelligence/cosmosx/internal/paths"
	"github.com/mesh-intelligence/cosmosx/internal/registry"
	"github.com/mesh-intelligence/cosmosx/internal/secrets"
	"github.com/mesh-intelligence/cosmosx/internal/sqlite"
	"github.com/mesh-intelligence/cosmosx/internal/tree"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// newPrompter builds the Prompter used by commands. Tests replace it.
var newPrompter = func(cmd *cobra.Command) types.Prompter {
	return newLinePrompter(cmd.ErrOrStderr(), flags.yes)
}

// app wires the state store, credential store, providers, resource tree
// and registry for a single command invocation.
type app struct {
	cfg      types.Config
	logger   *zap.SugaredLogger
	state    *sqlite.Backend
	mongo    *mongo.Provider
	cosmos   *cosmos.Provider
	tree     *tree.Tree
	registry *registry.Registry
	mutator  *document.Mutator
	prompter types.Prompter
}

// openApp resolves configuration from flags, config.yaml and the
// environment, then attaches the state store and detects the vault.
func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return nil, err
	}
	dataDir, err := paths.ResolveDataDir(flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := configFromViper(v, dataDir)
	if flags.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, err
	}

	state := sqlite.NewBackend(logger.Named("state"))
	if err := state.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach state store: %w", err)
	}
	vault, err := secrets.Detect(ctx, cfg, logger.Named("secrets"))
	if err != nil {
		state.Detach()
		return nil, fmt.Errorf("open secret vault: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		state:    state,
		mongo:    mongo.New(logger.Named("mongo")),
		cosmos:   cosmos.New(logger.Named("cosmos")),
		prompter: newPrompter(cmd),
	}
	a.tree = tree.New(tree.Providers{Mongo: a.mongo, DocDB: a.cosmos}, cfg.PageSize, logger.Named("tree"))
	a.registry = registry.New(cfg, registry.Deps{
		Tree:     a.tree,
		State:    state,
		Secrets:  vault,
		Prompter: a.prompter,
		Logger:   logger.Named("registry"),
	})
	a.mutator = document.New(a.prompter, logger.Named("document"))
	return a, nil
}

// close disconnects cached clients and detaches the state store.
func (a *app) close(ctx context.Context) {
	if err := a.mongo.Close(ctx); err != nil {
		a.logger.Warnw("disconnect mongo clients", "error", err)
	}
	if err := a.state.Detach(); err != nil {
		a.logger.Warnw("detach state store", "error", err)
	}
	_ = a.logger.Sync()
}

// withApp opens the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}
