package config

import (
	"os"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"PORT", "ADDRESS", "ENV", "LOG_LEVEL", "LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE", "MAX_REQUEST_BODY", "MAX_HEADER_SIZE",
		"DATA_DIR", "RXNORM_BASE_URL", "RXNORM_TIMEOUT_SECONDS", "RXNORM_CACHE_SIZE",
	}
	for _, v := range vars {
		if val, ok := os.LookupEnv(v); ok {
			t.Setenv(v, val) // restore after test
			os.Unsetenv(v)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults should not fail: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Address != "127.0.0.1" {
		t.Errorf("expected default address 127.0.0.1, got %s", cfg.Address)
	}
	if cfg.DataDir != "refdata/datasets" {
		t.Errorf("expected default data dir, got %s", cfg.DataDir)
	}
	if cfg.RxNormTimeoutSecs != 10 {
		t.Errorf("expected default resolver timeout 10, got %d", cfg.RxNormTimeoutSecs)
	}
	if cfg.RxNormCacheEntries != 1000 {
		t.Errorf("expected default cache size 1000, got %d", cfg.RxNormCacheEntries)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "invalid port text",
			env:     map[string]string{"PORT": "abc"},
			wantErr: "PORT",
		},
		{
			name:    "privileged port",
			env:     map[string]string{"PORT": "80"},
			wantErr: "privileged",
		},
		{
			name:    "port out of range",
			env:     map[string]string{"PORT": "70000"},
			wantErr: "PORT",
		},
		{
			name:    "invalid address",
			env:     map[string]string{"ADDRESS": "not-an-ip"},
			wantErr: "ADDRESS",
		},
		{
			name:    "public address rejected",
			env:     map[string]string{"ADDRESS": "8.8.8.8"},
			wantErr: "public IP",
		},
		{
			name:    "invalid env",
			env:     map[string]string{"ENV": "production-ish"},
			wantErr: "ENV",
		},
		{
			name:    "invalid log level",
			env:     map[string]string{"LOG_LEVEL": "verbose"},
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "resolver url without scheme",
			env:     map[string]string{"RXNORM_BASE_URL": "rxnav.nlm.nih.gov/REST"},
			wantErr: "RXNORM_BASE_URL",
		},
		{
			name:    "resolver timeout too large",
			env:     map[string]string{"RXNORM_TIMEOUT_SECONDS": "500"},
			wantErr: "RXNORM_TIMEOUT_SECONDS",
		},
		{
			name:    "cache size zero",
			env:     map[string]string{"RXNORM_CACHE_SIZE": "0"},
			wantErr: "RXNORM_CACHE_SIZE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadCustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9100")
	t.Setenv("ENV", "prod")
	t.Setenv("DATA_DIR", "/var/lib/rxguard")
	t.Setenv("RXNORM_BASE_URL", "http://localhost:4000/REST")
	t.Setenv("RXNORM_CACHE_SIZE", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not fail: %v", err)
	}

	if cfg.Port != "9100" {
		t.Errorf("expected port 9100, got %s", cfg.Port)
	}
	if cfg.Env != "prod" {
		t.Errorf("expected env prod, got %s", cfg.Env)
	}
	if cfg.DataDir != "/var/lib/rxguard" {
		t.Errorf("expected custom data dir, got %s", cfg.DataDir)
	}
	if cfg.RxNormCacheEntries != 250 {
		t.Errorf("expected cache size 250, got %d", cfg.RxNormCacheEntries)
	}
}
