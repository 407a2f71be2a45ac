package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTH_CONFIG_FILE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, DriverFile, cfg.StoreDriver)
	require.Equal(t, 5, cfg.MaxLoginAttempts)
	require.Equal(t, 30*time.Minute, cfg.LockDuration)
	require.Equal(t, 24*time.Hour, cfg.RetentionPeriod)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authcore.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
env = "staging"
store_driver = "sqlite"
database_file = "/var/lib/authcore/auth.db"
lock_duration = "45m"
send_limit = 3
`), 0o600))

	t.Setenv("AUTH_CONFIG_FILE", path)
	t.Setenv("AUTH_LOCK_DURATION", "10")
	t.Setenv("AUTH_ISSUER", "arvi-shop")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.Env)
	require.Equal(t, DriverSQLite, cfg.StoreDriver)
	require.Equal(t, "/var/lib/authcore/auth.db", cfg.DatabaseFile)
	require.Equal(t, 3, cfg.SendLimit)
	// Integer durations from the environment are minutes.
	require.Equal(t, 10*time.Minute, cfg.LockDuration)
	require.Equal(t, "arvi-shop", cfg.Issuer)
	// Untouched keys keep their defaults.
	require.Equal(t, 8080, cfg.Port)
}

func TestLoadConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = [unterminated"), 0o600))
	t.Setenv("AUTH_CONFIG_FILE", path)

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.StoreDriver = "mongo" },
			wantErr: "unknown store driver",
		},
		{
			name:    "redis without address",
			mutate:  func(c *Config) { c.StoreDriver = DriverRedis },
			wantErr: "AUTH_REDIS_ADDR",
		},
		{
			name:    "smtp without sender",
			mutate:  func(c *Config) { c.SMTPHost = "smtp.example.com" },
			wantErr: "SMTP_FROM",
		},
		{
			name:    "production without master key",
			mutate:  func(c *Config) { c.Env = "prod" },
			wantErr: "AUTH_MASTER_KEY",
		},
		{
			name: "production with secrets",
			mutate: func(c *Config) {
				c.Env = "prod"
				c.MasterKey = "k"
				c.PasswordPepper = "p"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
