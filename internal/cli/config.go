package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "COSMOSX"

	cfgKeyBackend           = "backend"
	cfgKeyDataDir           = "data_dir"
	cfgKeyVault             = "vault"
	cfgKeyServiceName       = "service_name"
	cfgKeyEmulatorMongoPort = "emulator.mongo_port"
	cfgKeyEmulatorPort      = "emulator.port"
	cfgKeyPageSize          = "page_size"
	cfgKeyDebug             = "debug"
)

// configFile is the structure written to config.yaml on first run.
type configFile struct {
	Backend     string         `yaml:"backend"`
	DataDir     string         `yaml:"data_dir,omitempty"`
	Vault       string         `yaml:"vault"`
	ServiceName string         `yaml:"service_name"`
	Emulator    emulatorConfig `yaml:"emulator"`
	PageSize    int            `yaml:"page_size"`
	Debug       bool           `yaml:"debug"`
}

type emulatorConfig struct {
	MongoPort int `yaml:"mongo_port"`
	Port      int `yaml:"port"`
}

func defaultConfigFile(dataDir string) configFile {
	d := types.Config{}.WithDefaults()
	return configFile{
		Backend:     d.Backend,
		DataDir:     dataDir,
		Vault:       d.Vault,
		ServiceName: d.ServiceName,
		Emulator:    emulatorConfig{MongoPort: d.Emulator.MongoPort, Port: d.Emulator.Port},
		PageSize:    d.PageSize,
	}
}

// loadConfig reads config.yaml from configDir with Viper, creating the
// directory and a default file on first run. COSMOSX_* environment
// variables override file values (for example COSMOSX_EMULATOR_PORT).
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := writeConfigIfMissing(filepath.Join(configDir, configFileExt), ""); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	d := types.Config{}.WithDefaults()
	v := viper.New()
	v.SetDefault(cfgKeyBackend, d.Backend)
	v.SetDefault(cfgKeyVault, d.Vault)
	v.SetDefault(cfgKeyServiceName, d.ServiceName)
	v.SetDefault(cfgKeyEmulatorMongoPort, d.Emulator.MongoPort)
	v.SetDefault(cfgKeyEmulatorPort, d.Emulator.Port)
	v.SetDefault(cfgKeyPageSize, d.PageSize)
	v.SetDefault(cfgKeyDebug, false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// configFromViper builds the runtime Config. dataDir is already resolved.
func configFromViper(v *viper.Viper, dataDir string) types.Config {
	return types.Config{
		Backend:     v.GetString(cfgKeyBackend),
		DataDir:     dataDir,
		Vault:       v.GetString(cfgKeyVault),
		ServiceName: v.GetString(cfgKeyServiceName),
		PageSize:    v.GetInt(cfgKeyPageSize),
		Emulator: types.EmulatorConfig{
			MongoPort: v.GetInt(cfgKeyEmulatorMongoPort),
			Port:      v.GetInt(cfgKeyEmulatorPort),
		},
		Debug: v.GetBool(cfgKeyDebug),
	}
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. An existing file is left untouched.
func writeConfigIfMissing(path, dataDir string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	cfg := defaultConfigFile(dataDir)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# cosmosx configuration\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
