package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration assembled from the environment and an
// optional YAML overlay.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	Treasury  TreasuryConfig
	Announcer AnnouncerConfig
	Campaign  CampaignConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string `env:"SERVER_HOST,default=0.0.0.0"`
	Port            int    `env:"SERVER_PORT,default=8080"`
	ReadTimeout     int    `env:"SERVER_READ_TIMEOUT,default=30"`
	WriteTimeout    int    `env:"SERVER_WRITE_TIMEOUT,default=30"`
	ShutdownTimeout int    `env:"SERVER_SHUTDOWN_TIMEOUT,default=10"`
	AuditLogPath    string `env:"SERVER_AUDIT_LOG_PATH"`
}

// DatabaseConfig controls PostgreSQL connectivity. An empty DSN selects the
// in-memory stores.
type DatabaseConfig struct {
	Driver          string `env:"DATABASE_DRIVER,default=postgres"`
	DSN             string `env:"DATABASE_DSN"`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS,default=25"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME,default=300"`
	Migrate         bool   `env:"DATABASE_MIGRATE,default=false"`
}

// RedisConfig controls the live event publisher. An empty address disables
// Redis publishing.
type RedisConfig struct {
	Addr          string `env:"REDIS_ADDR"`
	Password      string `env:"REDIS_PASSWORD"`
	DB            int    `env:"REDIS_DB,default=0"`
	ChannelPrefix string `env:"REDIS_CHANNEL_PREFIX,default=presale.events"`
}

// AuthConfig controls token verification and issuance.
type AuthConfig struct {
	JWTSecret    string  `env:"AUTH_JWT_SECRET"`
	TokenTTL     int     `env:"AUTH_TOKEN_TTL,default=3600"`
	AdminKeyHash string  `env:"AUTH_ADMIN_KEY_HASH"`
	RateLimit    float64 `env:"AUTH_RATE_LIMIT,default=10"`
	RateBurst    int     `env:"AUTH_RATE_BURST,default=20"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=text"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=presaled"`
}

// TreasuryConfig controls the external payout step and the settlement
// poller that recovers withdrawals orphaned mid-transfer. An empty payout
// URL selects the local transferor.
type TreasuryConfig struct {
	PayoutURL      string `env:"TREASURY_PAYOUT_URL"`
	PayoutKey      string `env:"TREASURY_PAYOUT_KEY"`
	RequestTimeout int    `env:"TREASURY_REQUEST_TIMEOUT,default=10"`
	PollInterval   int    `env:"TREASURY_POLL_INTERVAL,default=30"`
	PendingAge     int    `env:"TREASURY_PENDING_AGE,default=300"`
}

// AnnouncerConfig controls the scheduled phase sweep.
type AnnouncerConfig struct {
	Enabled  bool   `env:"ANNOUNCER_ENABLED,default=true"`
	Schedule string `env:"ANNOUNCER_SCHEDULE,default=@every 1m"`
}

// CampaignConfig controls campaign-level policy knobs.
type CampaignConfig struct {
	// PrincipalFormat selects the principal validator: "any" accepts any
	// non-empty string, "neo-n3" requires a valid Neo N3 address.
	PrincipalFormat string `env:"PRINCIPAL_FORMAT,default=any"`
}

// Load reads configuration from the environment, merging a .env file when
// present and a YAML file when CONFIG_FILE points at one.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fileConfig mirrors Config with YAML tags; only set fields override the
// environment values.
type fileConfig struct {
	Server struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		ReadTimeout     int    `yaml:"read_timeout"`
		WriteTimeout    int    `yaml:"write_timeout"`
		ShutdownTimeout int    `yaml:"shutdown_timeout"`
		AuditLogPath    string `yaml:"audit_log_path"`
	} `yaml:"server"`
	Database struct {
		Driver          string `yaml:"driver"`
		DSN             string `yaml:"dsn"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
		Migrate         *bool  `yaml:"migrate"`
	} `yaml:"database"`
	Redis struct {
		Addr          string `yaml:"addr"`
		Password      string `yaml:"password"`
		DB            *int   `yaml:"db"`
		ChannelPrefix string `yaml:"channel_prefix"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret    string  `yaml:"jwt_secret"`
		TokenTTL     int     `yaml:"token_ttl"`
		AdminKeyHash string  `yaml:"admin_key_hash"`
		RateLimit    float64 `yaml:"rate_limit"`
		RateBurst    int     `yaml:"rate_burst"`
	} `yaml:"auth"`
	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		FilePrefix string `yaml:"file_prefix"`
	} `yaml:"logging"`
	Treasury struct {
		PayoutURL      string `yaml:"payout_url"`
		PayoutKey      string `yaml:"payout_key"`
		RequestTimeout int    `yaml:"request_timeout"`
		PollInterval   int    `yaml:"poll_interval"`
		PendingAge     int    `yaml:"pending_age"`
	} `yaml:"treasury"`
	Announcer struct {
		Enabled  *bool  `yaml:"enabled"`
		Schedule string `yaml:"schedule"`
	} `yaml:"announcer"`
	Campaign struct {
		PrincipalFormat string `yaml:"principal_format"`
	} `yaml:"campaign"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if file.Server.Host != "" {
		cfg.Server.Host = file.Server.Host
	}
	if file.Server.Port != 0 {
		cfg.Server.Port = file.Server.Port
	}
	if file.Server.ReadTimeout != 0 {
		cfg.Server.ReadTimeout = file.Server.ReadTimeout
	}
	if file.Server.WriteTimeout != 0 {
		cfg.Server.WriteTimeout = file.Server.WriteTimeout
	}
	if file.Server.ShutdownTimeout != 0 {
		cfg.Server.ShutdownTimeout = file.Server.ShutdownTimeout
	}
	if file.Server.AuditLogPath != "" {
		cfg.Server.AuditLogPath = file.Server.AuditLogPath
	}
	if file.Database.Driver != "" {
		cfg.Database.Driver = file.Database.Driver
	}
	if file.Database.DSN != "" {
		cfg.Database.DSN = file.Database.DSN
	}
	if file.Database.MaxOpenConns != 0 {
		cfg.Database.MaxOpenConns = file.Database.MaxOpenConns
	}
	if file.Database.MaxIdleConns != 0 {
		cfg.Database.MaxIdleConns = file.Database.MaxIdleConns
	}
	if file.Database.ConnMaxLifetime != 0 {
		cfg.Database.ConnMaxLifetime = file.Database.ConnMaxLifetime
	}
	if file.Database.Migrate != nil {
		cfg.Database.Migrate = *file.Database.Migrate
	}
	if file.Redis.Addr != "" {
		cfg.Redis.Addr = file.Redis.Addr
	}
	if file.Redis.Password != "" {
		cfg.Redis.Password = file.Redis.Password
	}
	if file.Redis.DB != nil {
		cfg.Redis.DB = *file.Redis.DB
	}
	if file.Redis.ChannelPrefix != "" {
		cfg.Redis.ChannelPrefix = file.Redis.ChannelPrefix
	}
	if file.Auth.JWTSecret != "" {
		cfg.Auth.JWTSecret = file.Auth.JWTSecret
	}
	if file.Auth.TokenTTL != 0 {
		cfg.Auth.TokenTTL = file.Auth.TokenTTL
	}
	if file.Auth.AdminKeyHash != "" {
		cfg.Auth.AdminKeyHash = file.Auth.AdminKeyHash
	}
	if file.Auth.RateLimit != 0 {
		cfg.Auth.RateLimit = file.Auth.RateLimit
	}
	if file.Auth.RateBurst != 0 {
		cfg.Auth.RateBurst = file.Auth.RateBurst
	}
	if file.Logging.Level != "" {
		cfg.Logging.Level = file.Logging.Level
	}
	if file.Logging.Format != "" {
		cfg.Logging.Format = file.Logging.Format
	}
	if file.Logging.Output != "" {
		cfg.Logging.Output = file.Logging.Output
	}
	if file.Logging.FilePrefix != "" {
		cfg.Logging.FilePrefix = file.Logging.FilePrefix
	}
	if file.Treasury.PayoutURL != "" {
		cfg.Treasury.PayoutURL = file.Treasury.PayoutURL
	}
	if file.Treasury.PayoutKey != "" {
		cfg.Treasury.PayoutKey = file.Treasury.PayoutKey
	}
	if file.Treasury.RequestTimeout != 0 {
		cfg.Treasury.RequestTimeout = file.Treasury.RequestTimeout
	}
	if file.Treasury.PollInterval != 0 {
		cfg.Treasury.PollInterval = file.Treasury.PollInterval
	}
	if file.Treasury.PendingAge != 0 {
		cfg.Treasury.PendingAge = file.Treasury.PendingAge
	}
	if file.Announcer.Enabled != nil {
		cfg.Announcer.Enabled = *file.Announcer.Enabled
	}
	if file.Announcer.Schedule != "" {
		cfg.Announcer.Schedule = file.Announcer.Schedule
	}
	if file.Campaign.PrincipalFormat != "" {
		cfg.Campaign.PrincipalFormat = file.Campaign.PrincipalFormat
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if c.Database.DSN != "" && c.Database.Driver == "" {
		return fmt.Errorf("database driver is required when a dsn is set")
	}
	if c.Auth.RateLimit <= 0 {
		return fmt.Errorf("auth rate limit must be positive")
	}
	if c.Treasury.RequestTimeout <= 0 {
		return fmt.Errorf("treasury request timeout must be positive")
	}
	if c.Treasury.PollInterval <= 0 {
		return fmt.Errorf("treasury poll interval must be positive")
	}
	switch c.Campaign.PrincipalFormat {
	case "any", "neo-n3":
	default:
		return fmt.Errorf("unknown principal format %q", c.Campaign.PrincipalFormat)
	}
	return nil
}
