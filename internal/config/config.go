// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`
	Domain      string   `mapstructure:"domain"`

	SessionTimeoutSeconds      int `mapstructure:"sessiontimeoutseconds"`
	LoginSessionTimeoutSeconds int `mapstructure:"loginsessiontimeoutseconds"`

	// Ingestion boundary
	APINamespace string `mapstructure:"apinamespace"`
	FallbackPath string `mapstructure:"fallbackpath"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	ContentMapPath        string `mapstructure:"contentmappath"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Event broker settings. Publishing is disabled when no brokers are set.
	KafkaBrokers []string `mapstructure:"kafkabrokers"`
	KafkaTopic   string   `mapstructure:"kafkatopic"`

	// Background jobs. A zero retention keeps events forever and leaves
	// the sweep unscheduled.
	RetentionDays     int    `mapstructure:"retentiondays"`
	GeoLiteLicenseKey string `mapstructure:"geolitelicensekey"`
	GeoLiteEdition    string `mapstructure:"geoliteedition"`

	// Client-side settings used by citectl
	ProbeTimeoutMillis int `mapstructure:"probetimeoutmillis"`
	SendTimeoutMillis  int `mapstructure:"sendtimeoutmillis"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		// A missing .env is fine; production sets real environment variables.
		_ = godotenv.Load()

		v := viper.New()

		v.SetDefault("appname", "citewatch")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", "88888888888888888888888888888888")
		v.SetDefault("sessiontimeoutseconds", 1800)
		v.SetDefault("loginsessiontimeoutseconds", 604800)
		v.SetDefault("apinamespace", "citewatch")
		v.SetDefault("fallbackpath", "/ajax")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-Country.mmdb")
		v.SetDefault("contentmappath", "")
		v.SetDefault("publicdir", "web")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("kafkabrokers", []string{})
		v.SetDefault("kafkatopic", "visit-events")
		v.SetDefault("retentiondays", 0)
		v.SetDefault("geolitelicensekey", "")
		v.SetDefault("geoliteedition", "GeoLite2-Country")
		v.SetDefault("probetimeoutmillis", 3000)
		v.SetDefault("sendtimeoutmillis", 10000)

		v.BindEnv("appname", "CITEWATCH_APP_NAME")
		v.BindEnv("appport", "CITEWATCH_APP_PORT")
		v.BindEnv("environment", "CITEWATCH_ENV")
		v.BindEnv("loglevel", "CITEWATCH_LOG_LEVEL")
		v.BindEnv("privatekey", "CITEWATCH_PRIVATE_KEY")
		v.BindEnv("domain", "CITEWATCH_DOMAIN")
		v.BindEnv("apinamespace", "CITEWATCH_API_NAMESPACE")
		v.BindEnv("fallbackpath", "CITEWATCH_FALLBACK_PATH")
		v.BindEnv("storagepath", "CITEWATCH_STORAGE_PATH")
		v.BindEnv("geodbpath", "CITEWATCH_GEO_DB_PATH")
		v.BindEnv("contentmappath", "CITEWATCH_CONTENT_MAP_PATH")
		v.BindEnv("publicdir", "CITEWATCH_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "CITEWATCH_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "CITEWATCH_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "CITEWATCH_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "CITEWATCH_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "CITEWATCH_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "CITEWATCH_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "CITEWATCH_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "CITEWATCH_DB_MAX_IDLE_CONNS")
		v.BindEnv("kafkabrokers", "CITEWATCH_KAFKA_BROKERS")
		v.BindEnv("kafkatopic", "CITEWATCH_KAFKA_TOPIC")
		v.BindEnv("retentiondays", "CITEWATCH_RETENTION_DAYS")
		v.BindEnv("geolitelicensekey", "CITEWATCH_GEOLITE_LICENSE_KEY")
		v.BindEnv("geoliteedition", "CITEWATCH_GEOLITE_EDITION")
		v.BindEnv("probetimeoutmillis", "CITEWATCH_PROBE_TIMEOUT_MS")
		v.BindEnv("sendtimeoutmillis", "CITEWATCH_SEND_TIMEOUT_MS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		// Env values arrive as one comma separated string
		cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if strings.Trim(c.APINamespace, "/") == "" {
		return fmt.Errorf("api namespace must not be empty")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative: %d", c.RetentionDays)
	}
	if !strings.HasPrefix(c.FallbackPath, "/") {
		return fmt.Errorf("fallback path must start with '/': %s", c.FallbackPath)
	}

	return nil
}

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// Namespace returns the API namespace without surrounding slashes.
func (c *Config) Namespace() string {
	return strings.Trim(c.APINamespace, "/")
}

// APIPrefix returns the versioned route prefix, e.g. "/citewatch/v1".
func (c *Config) APIPrefix() string {
	return "/" + c.Namespace() + "/v1"
}

// BrokerEnabled reports whether recorded events are published to Kafka.
func (c *Config) BrokerEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

// ProbeTimeout returns the client health probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMillis) * time.Millisecond
}

// SendTimeout returns the client per-transport send timeout.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMillis) * time.Millisecond
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetSessionTimeout returns the session timeout in seconds.
func (c *Config) GetSessionTimeout() int {
	return c.SessionTimeoutSeconds
}

// GetLoginSessionTimeout returns the login session timeout in seconds.
func (c *Config) GetLoginSessionTimeout() int {
	return c.LoginSessionTimeoutSeconds
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// Test uses a single connection; other environments allow concurrent dashboard reads.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
