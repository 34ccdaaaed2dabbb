package types

import "errors"

// Config holds state-store, vault, and provider settings.
type Config struct {
	Backend     string         `json:"backend" yaml:"backend"`
	DataDir     string         `json:"data_dir" yaml:"data_dir"`
	Vault       string         `json:"vault" yaml:"vault"`
	ServiceName string         `json:"service_name" yaml:"service_name"`
	PageSize    int            `json:"page_size" yaml:"page_size"`
	Emulator    EmulatorConfig `json:"emulator" yaml:"emulator"`
	Debug       bool           `json:"debug" yaml:"debug"`
}

// EmulatorConfig holds the local emulator ports.
type EmulatorConfig struct {
	MongoPort int `json:"mongo_port" yaml:"mongo_port"`
	Port      int `json:"port" yaml:"port"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Supported vault names.
const (
	VaultAuto    = "auto"
	VaultKeyring = "keyring"
	VaultFile    = "file"
	VaultNone    = "none"
)

// Defaults applied by WithDefaults.
const (
	DefaultServiceName       = "mesh-intelligence.cosmosx.connectionStrings"
	DefaultEmulatorMongoPort = 10255
	DefaultEmulatorPort      = 8081
	DefaultPageSize          = 50
)

// Config validation errors.
var (
	ErrBackendEmpty     = errors.New("backend must not be empty")
	ErrBackendUnknown   = errors.New("unknown backend")
	ErrVaultUnknown     = errors.New("unknown vault")
	ErrServiceNameEmpty = errors.New("service name must not be empty")
	ErrPortInvalid      = errors.New("emulator port must be between 1 and 65535")
	ErrPageSizeInvalid  = errors.New("page size must be positive")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

var knownVaults = map[string]bool{
	VaultAuto:    true,
	VaultKeyring: true,
	VaultFile:    true,
	VaultNone:    true,
}

// WithDefaults returns a copy of c with zero fields filled in.
func (c Config) WithDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.Vault == "" {
		c.Vault = VaultAuto
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Emulator.MongoPort == 0 {
		c.Emulator.MongoPort = DefaultEmulatorMongoPort
	}
	if c.Emulator.Port == 0 {
		c.Emulator.Port = DefaultEmulatorPort
	}
	return c
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Vault != "" && !knownVaults[c.Vault] {
		return ErrVaultUnknown
	}
	if c.ServiceName == "" {
		return ErrServiceNameEmpty
	}
	if !validPort(c.Emulator.MongoPort) || !validPort(c.Emulator.Port) {
		return ErrPortInvalid
	}
	if c.PageSize <= 0 {
		return ErrPageSizeInvalid
	}
	return nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
