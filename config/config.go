package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/pagehaven"
	"github.com/sagarc03/pagehaven/cache"
	"github.com/sagarc03/pagehaven/database"
	pagehavenhttp "github.com/sagarc03/pagehaven/http"
	"github.com/sagarc03/pagehaven/s3store"
	"github.com/sagarc03/pagehaven/session"
	"github.com/sagarc03/pagehaven/stowryremote"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for pagehaven.
type Config struct {
	Server   ServerConfig             `mapstructure:"server"`
	Gate     GateConfig               `mapstructure:"gate"`
	Session  session.Config           `mapstructure:"session"`
	Service  ServiceConfig            `mapstructure:"service"`
	Database database.Config          `mapstructure:"database"`
	Storage  StorageConfig            `mapstructure:"storage"`
	Cache    cache.Config             `mapstructure:"cache"`
	CORS     pagehavenhttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig                `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseDomain  string `mapstructure:"base_domain" validate:"required,hostname_rfc1123"`
	WebBaseURL  string `mapstructure:"web_base_url" validate:"required,url"`
	MetricsPort int    `mapstructure:"metrics_port" validate:"min=0,max=65535"`
}

// GateConfig holds the access gate settings shared with the web app.
type GateConfig struct {
	PasswordCookiePrefix string `mapstructure:"password_cookie_prefix" validate:"required"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	CleanupTimeout int `mapstructure:"cleanup_timeout" validate:"min=1"`
}

// CleanupTimeoutDuration returns CleanupTimeout in seconds as a duration.
func (s ServiceConfig) CleanupTimeoutDuration() time.Duration {
	return time.Duration(s.CleanupTimeout) * time.Second
}

// Storage backends.
const (
	StorageFilesystem = "filesystem"
	StorageS3         = "s3"
	StorageStowry     = "stowry"
)

// StorageConfig selects and configures the blob backend.
type StorageConfig struct {
	Backend string              `mapstructure:"backend" validate:"required,oneof=filesystem s3 stowry"`
	Path    string              `mapstructure:"path" validate:"required_if=Backend filesystem"`
	S3      s3store.Config      `mapstructure:"s3"`
	Stowry  stowryremote.Config `mapstructure:"stowry"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Env   string `mapstructure:"env" validate:"required,oneof=dev prod"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":      "database.type",
	"db-dsn":       "database.dsn",
	"storage-path": "storage.path",
	"port":         "server.port",
	"base-domain":  "server.base_domain",
	"metrics-port": "server.metrics_port",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// that should be settable from the environment needs a default, because
// viper only unmarshals environment values for keys it already knows.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_domain", "pagehaven.localhost")
	v.SetDefault("server.web_base_url", "http://localhost:3000")
	v.SetDefault("server.metrics_port", 0) // 0 disables the metrics listener

	v.SetDefault("gate.password_cookie_prefix", pagehaven.DefaultPasswordCookiePrefix)

	v.SetDefault("session.cookie_name", session.DefaultCookieName)
	v.SetDefault("session.secret", "")
	v.SetDefault("session.issuer", "")

	v.SetDefault("service.cleanup_timeout", 30) // seconds

	tables := pagehaven.DefaultTables()
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "pagehaven.db")
	v.SetDefault("database.tables.sites", tables.Sites)
	v.SetDefault("database.tables.members", tables.Members)
	v.SetDefault("database.tables.invites", tables.Invites)
	v.SetDefault("database.tables.meta_data", tables.MetaData)

	v.SetDefault("storage.backend", StorageFilesystem)
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.stowry.endpoint", "")
	v.SetDefault("storage.stowry.access_key", "")
	v.SetDefault("storage.stowry.secret_key", "")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", cache.DefaultTTL)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.env", "dev")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("PAGEHAVEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.validateBackends(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// validateBackends checks the settings of the selected storage backend and
// the cache, which struct tags cannot express across packages.
func (c *Config) validateBackends() error {
	switch c.Storage.Backend {
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
	case StorageStowry:
		s := c.Storage.Stowry
		if s.Endpoint == "" || s.AccessKey == "" || s.SecretKey == "" {
			return errors.New("storage.stowry endpoint, access_key and secret_key are required for the stowry backend")
		}
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("cache.addr is required when the cache is enabled")
	}

	return c.Database.Tables.Validate()
}
