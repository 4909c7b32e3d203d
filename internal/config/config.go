package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	SMTP         SMTPConfig
	Notification NotificationConfig
	Deployment   DeploymentConfig
	Migrate      bool
	HTTPAddr     string
	ExternalURL  string
	AdminUser    string
	AdminPass    string
}

// DatabaseConfig selects the storage backend. Driver is "mysql" or
// "sqlite"; DSN is the MySQL DSN or the SQLite file path.
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	ExpireMinutes int
	Issuer        string
}

// SMTPConfig holds outgoing mail configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Catchall string
}

// NotificationConfig holds notification dispatcher configuration
type NotificationConfig struct {
	Enabled     bool
	IntervalSec int
}

// DeploymentConfig holds deployment runner configuration
type DeploymentConfig struct {
	IntervalSec int
	TimeoutSec  int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Driver: getEnv("DATABASE_DRIVER", "sqlite"),
			DSN:    getEnv("DATABASE_DSN", "udb.db"),
		},
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "0") == "1",
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:        os.Getenv("JWT_SECRET"),
			ExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 1440),
			Issuer:        getEnv("JWT_ISSUER", "udb"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 25),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
			Catchall: getEnv("NOTIFICATION_CATCHALL", ""),
		},
		Notification: NotificationConfig{
			Enabled:     getEnv("NOTIFICATION_ENABLED", "1") == "1",
			IntervalSec: getEnvInt("NOTIFICATION_INTERVAL_SEC", 60),
		},
		Deployment: DeploymentConfig{
			IntervalSec: getEnvInt("DEPLOYMENT_INTERVAL_SEC", 5),
			TimeoutSec:  getEnvInt("DEPLOYMENT_TIMEOUT_SEC", 3600),
		},
		Migrate:     getEnv("MIGRATE", "1") == "1",
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		ExternalURL: getEnv("EXTERNAL_URL", "http://localhost:8080"),
		AdminUser:   getEnv("ADMIN_USER", "admin"),
		AdminPass:   getEnv("ADMIN_PASSWORD", "admin123"),
	}

	return cfg, validate(cfg)
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	// Helper function: get value with priority: ENV > INI > default
	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		if value := os.Getenv(envKey); value != "" {
			return value == "1" || value == "true"
		}
		if value, err := cfgFile.Section(iniSection).Key(iniKey).Bool(); err == nil {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver: getValue("DATABASE_DRIVER", "database", "driver", "sqlite"),
			DSN:    getValue("DATABASE_DSN", "database", "dsn", "udb.db"),
		},
		Redis: RedisConfig{
			Enabled:  getValueBool("REDIS_ENABLED", "redis", "enabled", false),
			Addr:     getValue("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: getValue("REDIS_PASS", "redis", "pass", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
		},
		JWT: JWTConfig{
			Secret:        getValue("JWT_SECRET", "jwt", "secret", ""),
			ExpireMinutes: getValueInt("JWT_EXPIRE_MINUTES", "jwt", "expire_minutes", 1440),
			Issuer:        getValue("JWT_ISSUER", "jwt", "issuer", "udb"),
		},
		SMTP: SMTPConfig{
			Host:     getValue("SMTP_HOST", "smtp", "host", ""),
			Port:     getValueInt("SMTP_PORT", "smtp", "port", 25),
			Username: getValue("SMTP_USERNAME", "smtp", "username", ""),
			Password: getValue("SMTP_PASSWORD", "smtp", "password", ""),
			From:     getValue("SMTP_FROM", "smtp", "from", ""),
			Catchall: getValue("NOTIFICATION_CATCHALL", "smtp", "catchall", ""),
		},
		Notification: NotificationConfig{
			Enabled:     getValueBool("NOTIFICATION_ENABLED", "notification", "enabled", true),
			IntervalSec: getValueInt("NOTIFICATION_INTERVAL_SEC", "notification", "interval_sec", 60),
		},
		Deployment: DeploymentConfig{
			IntervalSec: getValueInt("DEPLOYMENT_INTERVAL_SEC", "deployment", "interval_sec", 5),
			TimeoutSec:  getValueInt("DEPLOYMENT_TIMEOUT_SEC", "deployment", "timeout_sec", 3600),
		},
		Migrate:     getValueBool("MIGRATE", "app", "migrate", true),
		HTTPAddr:    getValue("HTTP_ADDR", "http", "addr", ":8080"),
		ExternalURL: getValue("EXTERNAL_URL", "http", "external_url", "http://localhost:8080"),
		AdminUser:   getValue("ADMIN_USER", "app", "admin_user", "admin"),
		AdminPass:   getValue("ADMIN_PASSWORD", "app", "admin_password", "admin123"),
	}

	return cfg, validate(cfg)
}

func validate(cfg *Config) error {
	if cfg.Database.Driver != "mysql" && cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("DATABASE_DRIVER must be mysql or sqlite, got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
