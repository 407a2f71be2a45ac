package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store drivers accepted by AUTH_STORE_DRIVER.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

type Config struct {
	Env                  string        `toml:"env"`                   // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        `toml:"log_level"`             // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        `toml:"log_format"`            // Log format (json, text) (default: json)
	Port                 int           `toml:"port"`                  // Ops HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration `toml:"shutdown_grace_period"` // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration `toml:"housekeeping_interval"` // Housekeeping interval (default: 1h)
	RetentionPeriod      time.Duration `toml:"retention_period"`      // How long expired records are kept (default: 24h)

	Issuer  string `toml:"issuer"`   // Session issuer and authenticator app label (default: authcore)
	AppName string `toml:"app_name"` // Shop name in notification copy (default: Arvi's Collection)

	StoreDriver  string `toml:"store_driver"`  // file, sqlite or redis (default: file)
	DataDir      string `toml:"data_dir"`      // Directory for the file driver (default: ./data)
	DatabaseFile string `toml:"database_file"` // SQLite database path (default: ./authcore.db)
	RedisAddr    string `toml:"redis_addr"`    // Redis address for the redis driver
	RedisPrefix  string `toml:"redis_prefix"`  // Key prefix for the redis driver (default: authcore)

	MasterKey      string `toml:"-"`               // Field encryption key material, env only
	MasterKeyPath  string `toml:"master_key_path"` // File holding the field encryption key
	PasswordPepper string `toml:"-"`               // Password pepper, env only
	PepperFile     string `toml:"pepper_file"`     // File holding the pepper (default: ./pepper)

	SessionKeyFile string        `toml:"session_key_file"` // Encrypted Ed25519 session key (default: ./session.key)
	SessionTTL     time.Duration `toml:"session_ttl"`      // Session lifetime (default: 24h)

	MaxLoginAttempts int           `toml:"max_login_attempts"` // Failures before lockout (default: 5)
	LockDuration     time.Duration `toml:"lock_duration"`      // Lockout length (default: 30m)

	SMTPHost     string `toml:"smtp_host"` // Without a host codes are logged instead of sent
	SMTPPort     int    `toml:"smtp_port"` // (default: 587)
	SMTPUsername string `toml:"smtp_username"`
	SMTPPassword string `toml:"-"` // env only
	SMTPFrom     string `toml:"smtp_from"`

	SendLimit  int           `toml:"send_limit"`  // Messages per destination per window (default: 5)
	SendWindow time.Duration `toml:"send_window"` // (default: 15m)
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8080,
		ShutdownGracePeriod:  10 * time.Second,
		HousekeepingInterval: 1 * time.Hour,
		RetentionPeriod:      24 * time.Hour,
		Issuer:               "authcore",
		AppName:              "Arvi's Collection",
		StoreDriver:          DriverFile,
		DataDir:              "data",
		DatabaseFile:         "authcore.db",
		RedisPrefix:          "authcore",
		PepperFile:           "pepper",
		SessionKeyFile:       "session.key",
		SessionTTL:           24 * time.Hour,
		MaxLoginAttempts:     5,
		LockDuration:         30 * time.Minute,
		SMTPPort:             587,
		SendLimit:            5,
		SendWindow:           15 * time.Minute,
	}
}

// LoadConfig builds the configuration from defaults, then the TOML file named
// by AUTH_CONFIG_FILE if any, then environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("AUTH_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(filepath.Clean(path), &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
	cfg.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", cfg.HousekeepingInterval)
	cfg.RetentionPeriod = getEnvDurationOrDefault("AUTH_RETENTION_PERIOD", cfg.RetentionPeriod)

	cfg.Issuer = getEnvOrDefault("AUTH_ISSUER", cfg.Issuer)
	cfg.AppName = getEnvOrDefault("AUTH_APP_NAME", cfg.AppName)

	cfg.StoreDriver = strings.ToLower(getEnvOrDefault("AUTH_STORE_DRIVER", cfg.StoreDriver))
	cfg.DataDir = getEnvOrDefault("AUTH_DATA_DIR", cfg.DataDir)
	cfg.DatabaseFile = getEnvOrDefault("AUTH_DATABASE_FILE", cfg.DatabaseFile)
	cfg.RedisAddr = getEnvOrDefault("AUTH_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPrefix = getEnvOrDefault("AUTH_REDIS_PREFIX", cfg.RedisPrefix)

	cfg.MasterKey = os.Getenv("AUTH_MASTER_KEY")
	cfg.MasterKeyPath = getEnvOrDefault("AUTH_MASTER_KEY_PATH", cfg.MasterKeyPath)
	cfg.PasswordPepper = os.Getenv("AUTH_PASSWORD_PEPPER")
	cfg.PepperFile = getEnvOrDefault("AUTH_PEPPER_FILE", cfg.PepperFile)

	cfg.SessionKeyFile = getEnvOrDefault("AUTH_SESSION_KEY_FILE", cfg.SessionKeyFile)
	cfg.SessionTTL = getEnvDurationOrDefault("AUTH_SESSION_TTL", cfg.SessionTTL)

	cfg.MaxLoginAttempts = getEnvIntOrDefault("AUTH_MAX_LOGIN_ATTEMPTS", cfg.MaxLoginAttempts)
	cfg.LockDuration = getEnvDurationOrDefault("AUTH_LOCK_DURATION", cfg.LockDuration)

	cfg.SMTPHost = getEnvOrDefault("SMTP_HOST", cfg.SMTPHost)
	cfg.SMTPPort = getEnvIntOrDefault("SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPUsername = getEnvOrDefault("SMTP_USERNAME", cfg.SMTPUsername)
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = getEnvOrDefault("SMTP_FROM", cfg.SMTPFrom)

	cfg.SendLimit = getEnvIntOrDefault("AUTH_SEND_LIMIT", cfg.SendLimit)
	cfg.SendWindow = getEnvDurationOrDefault("AUTH_SEND_WINDOW", cfg.SendWindow)

	return cfg, nil
}

// Production reports whether the process runs with production safeguards.
func (c Config) Production() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Validate rejects configurations the application cannot start with.
func (c Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverFile, DriverSQLite:
	case DriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("AUTH_REDIS_ADDR is required for the redis store driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.MaxLoginAttempts <= 0 {
		errs = append(errs, errors.New("AUTH_MAX_LOGIN_ATTEMPTS must be positive"))
	}
	if c.SendLimit <= 0 || c.SendWindow <= 0 {
		errs = append(errs, errors.New("AUTH_SEND_LIMIT and AUTH_SEND_WINDOW must be positive"))
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
	}

	if c.Production() {
		if c.MasterKey == "" && c.MasterKeyPath == "" {
			errs = append(errs, errors.New("AUTH_MASTER_KEY or AUTH_MASTER_KEY_PATH is required in production"))
		}
		if c.PasswordPepper == "" && c.PepperFile == "" {
			errs = append(errs, errors.New("AUTH_PASSWORD_PEPPER or AUTH_PEPPER_FILE is required in production"))
		}
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
