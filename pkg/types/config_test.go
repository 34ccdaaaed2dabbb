package types

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{DataDir: "/tmp/data"}.WithDefaults()

	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", ServiceName: "svc", PageSize: 1},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  Config{Backend: "postgres", ServiceName: "svc"},
			wantErr: ErrBackendUnknown,
		},
		{
			name: "unknown vault returns ErrVaultUnknown",
			config: func() Config {
				c := valid
				c.Vault = "s3"
				return c
			}(),
			wantErr: ErrVaultUnknown,
		},
		{
			name: "empty service name returns ErrServiceNameEmpty",
			config: func() Config {
				c := valid
				c.ServiceName = ""
				return c
			}(),
			wantErr: ErrServiceNameEmpty,
		},
		{
			name: "out of range emulator port returns ErrPortInvalid",
			config: func() Config {
				c := valid
				c.Emulator.MongoPort = 70000
				return c
			}(),
			wantErr: ErrPortInvalid,
		},
		{
			name: "zero page size returns ErrPageSizeInvalid",
			config: func() Config {
				c := valid
				c.PageSize = 0
				return c
			}(),
			wantErr: ErrPageSizeInvalid,
		},
		{
			name:    "defaults are valid",
			config:  valid,
			wantErr: nil,
		},
		{
			name:    "sqlite with empty DataDir is valid at config level",
			config:  Config{}.WithDefaults(),
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	c := Config{Emulator: EmulatorConfig{MongoPort: 10260}}.WithDefaults()
	if c.Backend != BackendSQLite {
		t.Errorf("Backend = %q, want %q", c.Backend, BackendSQLite)
	}
	if c.Vault != VaultAuto {
		t.Errorf("Vault = %q, want %q", c.Vault, VaultAuto)
	}
	if c.Emulator.MongoPort != 10260 {
		t.Errorf("MongoPort = %d, want explicit value kept", c.Emulator.MongoPort)
	}
	if c.Emulator.Port != DefaultEmulatorPort {
		t.Errorf("Port = %d, want %d", c.Emulator.Port, DefaultEmulatorPort)
	}
}
