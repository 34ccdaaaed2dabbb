package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cosmosx/internal/logging"
	"github.com/mesh-intelligence/cosmosx/internal/paths"
	"github.com/mesh-intelligence/cosmosx/internal/sqlite"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize cosmosx configuration and storage",
		Long:  "Create the configuration and data directories, write a default config.yaml, then initialize the state store.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	dataDir, err := paths.ResolveDataDir(flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := configFromViper(v, dataDir)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := logging.New(flags.debug || cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store := sqlite.NewBackend(logger)
	if err := store.Attach(cfg); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	if err := store.Detach(); err != nil {
		return fmt.Errorf("finalize storage: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config: %s\n", filepath.Join(configDir, configFileExt))
	fmt.Fprintf(out, "Data:   %s\n", dataDir)
	fmt.Fprintln(out, "cosmosx initialized successfully")
	return nil
}
