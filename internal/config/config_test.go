package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "iam",
				Password: "secret",
				Name:     "platform_iam",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=iam password=secret dbname=platform_iam sslmode=require",
		},
		{
			name: "disable ssl mode",
			cfg: DatabaseConfig{
				Host:     "db.example.com",
				Port:     5433,
				User:     "admin",
				Password: "pass",
				Name:     "mydb",
				SSLMode:  "disable",
			},
			want: "host=db.example.com port=5433 user=admin password=pass dbname=mydb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetDSN()
			if got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ServerConfig.GetAddress
// ---------------------------------------------------------------------------

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"localhost", ServerConfig{Host: "localhost", Port: 3000}, "localhost:3000"},
		{"empty host", ServerConfig{Host: "", Port: 8080}, ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetAddress(); got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Load defaults
// ---------------------------------------------------------------------------

func TestLoad_Defaults(t *testing.T) {
	// Load from an empty directory so no config.yaml is picked up.
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Auth.Tokens.AccessTTL != 15*time.Minute {
		t.Errorf("default access TTL = %v, want 15m", cfg.Auth.Tokens.AccessTTL)
	}
	if cfg.Auth.Tokens.BcryptCost != 12 {
		t.Errorf("default bcrypt cost = %d, want 12", cfg.Auth.Tokens.BcryptCost)
	}
	if cfg.Auth.Resolver.IncludeDeletedResources {
		t.Error("include_deleted_resources must default to false")
	}
	if cfg.Auth.APIKeys.Prefix != "iam_" {
		t.Errorf("default api key prefix = %q, want iam_", cfg.Auth.APIKeys.Prefix)
	}
	if cfg.Auth.PasswordReset.RequestCooldown != 30*time.Minute {
		t.Errorf("default reset cooldown = %v, want 30m", cfg.Auth.PasswordReset.RequestCooldown)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	t.Setenv("IAM_DATABASE_HOST", "db.internal")
	t.Setenv("IAM_AUTH_TOKENS_ACCESS_TTL", "5m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("env override failed: database host = %q", cfg.Database.Host)
	}
	if cfg.Auth.Tokens.AccessTTL != 5*time.Minute {
		t.Errorf("env override failed: access TTL = %v", cfg.Auth.Tokens.AccessTTL)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9999
auth:
  resolver:
    include_deleted_resources: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("yaml port = %d, want 9999", cfg.Server.Port)
	}
	if !cfg.Auth.Resolver.IncludeDeletedResources {
		t.Error("yaml include_deleted_resources not applied")
	}
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080, BaseURL: "http://localhost:8080"},
			Database: DatabaseConfig{Host: "localhost", Name: "platform_iam", User: "iam"},
			Auth: AuthConfig{
				Tokens: TokenConfig{
					AccessTTL:     15 * time.Minute,
					RefreshMaxAge: 720 * time.Hour,
					BcryptCost:    12,
				},
				PasswordReset: PasswordResetConfig{TokenTTL: 30 * time.Minute},
			},
			Logging: LoggingConfig{Level: "info"},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("refresh max age must exceed access ttl", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.Tokens.RefreshMaxAge = 5 * time.Minute
		if err := cfg.Validate(); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("bcrypt cost bounds", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.Tokens.BcryptCost = 3
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for cost 3, got nil")
		}
	})

	t.Run("missing database host", func(t *testing.T) {
		cfg := valid()
		cfg.Database.Host = ""
		if err := cfg.Validate(); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("invalid logging level", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Level = "verbose"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("tls requires cert and key", func(t *testing.T) {
		cfg := valid()
		cfg.Security.TLS.Enabled = true
		if err := cfg.Validate(); err == nil {
			t.Error("expected error, got nil")
		}
	})
}
