package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the API server reads at startup.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Auth          AuthConfig         `mapstructure:"auth"`
	CORS          CORSConfig         `mapstructure:"cors"`
	RateLimit     RateLimitConfig    `mapstructure:"rate_limit"`
	Views         ViewsConfig        `mapstructure:"views"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

type AppConfig struct {
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`

	// PostgresDriver selects the database/sql driver behind GORM:
	// empty for native pgx, "pgx" for pgx/v5/stdlib, "postgres" for lib/pq.
	PostgresDriver string `mapstructure:"postgres_driver"`
	URL            string `mapstructure:"url"`
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	SSLMode        string `mapstructure:"sslmode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	LogLevel        string        `mapstructure:"log_level"`
}

// PostgresDSN returns URL when set, otherwise a keyword/value DSN built
// from the individual fields.
func (c DatabaseConfig) PostgresDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type ViewsConfig struct {
	// Backend is "memory" or "redis".
	Backend    string        `mapstructure:"backend"`
	Window     time.Duration `mapstructure:"window"`
	MaxEntries int           `mapstructure:"max_entries"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type NotificationConfig struct {
	// LinkBaseURL prefixes in-app links in messages sent outside the app.
	LinkBaseURL string       `mapstructure:"link_base_url"`
	Kafka       KafkaConfig  `mapstructure:"kafka"`
	Twilio      TwilioConfig `mapstructure:"twilio"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
}

func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

const devJWTSecret = "your-secret-key-change-in-production"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 3001)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "stackit.db")
	v.SetDefault("database.postgres_driver", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "stackit")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "stackit")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.slow_threshold", time.Second)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("auth.jwt_secret", devJWTSecret)
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("rate_limit.requests", 1000)
	v.SetDefault("rate_limit.window", 15*time.Minute)

	v.SetDefault("views.backend", "memory")
	v.SetDefault("views.window", 5*time.Minute)
	v.SetDefault("views.max_entries", 1000)
	v.SetDefault("views.redis.address", "localhost:6379")
	v.SetDefault("views.redis.password", "")
	v.SetDefault("views.redis.db", 0)
	v.SetDefault("views.redis.prefix", "stackit:views:")

	v.SetDefault("notifications.link_base_url", "http://localhost:5173")
	v.SetDefault("notifications.kafka.brokers", []string{})
	v.SetDefault("notifications.kafka.topic", "")
	v.SetDefault("notifications.twilio.account_sid", "")
	v.SetDefault("notifications.twilio.auth_token", "")
	v.SetDefault("notifications.twilio.from", "")
}

// legacyEnv keeps the plain variable names used by existing deployments.
var legacyEnv = map[string]string{
	"app.port":          "PORT",
	"app.env":           "APP_ENV",
	"auth.jwt_secret":   "JWT_SECRET",
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.user":     "DB_USER",
	"database.password": "DB_PASSWORD",
	"database.name":     "DB_NAME",
	"database.sslmode":  "DB_SSLMODE",
}

// Load reads .env (if present), then config.yaml from the given
// directories (default ./config and .), then environment overrides such
// as DATABASE_DRIVER or AUTH_JWT_SECRET.
func Load(paths ...string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		// The canonical name wins when both are set.
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	switch c.Views.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unsupported views.backend %q", c.Views.Backend)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required")
	}
	if !c.App.IsDevelopment() && c.Auth.JWTSecret == devJWTSecret {
		return errors.New("config: auth.jwt_secret must be changed outside development")
	}
	if c.RateLimit.Requests < 0 {
		return errors.New("config: rate_limit.requests must not be negative")
	}
	return nil
}
