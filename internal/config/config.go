package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig          `yaml:"app" json:"app"`
	Store        StoreConfig        `yaml:"store" json:"store"`
	Postgres     PostgresConfig     `yaml:"postgres" json:"postgres"`
	Redis        RedisConfig        `yaml:"redis" json:"redis"`
	Logger       LoggerConfig       `yaml:"logger" json:"logger"`
	Auth         AuthConfig         `yaml:"auth" json:"auth"`
	Notification NotificationConfig `yaml:"notification" json:"notification"`
	Realtime     RealtimeConfig     `yaml:"realtime" json:"realtime"`
	Storage      StorageConfig      `yaml:"storage" json:"storage"`
	Tickets      TicketsConfig      `yaml:"tickets" json:"tickets"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `yaml:"name" json:"name"`
	Env                   string `yaml:"env" json:"env"`
	Host                  string `yaml:"host" json:"host"`
	Port                  string `yaml:"port" json:"port"`
	Version               string `yaml:"version" json:"version"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
}

// StoreConfig selects the ticket store backend.
type StoreConfig struct {
	Driver   string `yaml:"driver" json:"driver"`
	SeedFile string `yaml:"seed_file" json:"seed_file"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `yaml:"dsn" json:"dsn"`
	MaxConns       int32  `yaml:"max_conns" json:"max_conns"`
	MinConns       int32  `yaml:"min_conns" json:"min_conns"`
	RunMigrations  bool   `yaml:"run_migrations" json:"run_migrations"`
	ConnMaxIdleSec int32  `yaml:"conn_max_idle_seconds" json:"conn_max_idle_seconds"`
	ConnMaxLifeSec int32  `yaml:"conn_max_life_seconds" json:"conn_max_life_seconds"`
	// ApplicationName tags server-side sessions (pg_stat_activity).
	ApplicationName string `yaml:"application_name" json:"application_name"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	// ClientName is sent with CLIENT SETNAME so relay connections show up in CLIENT LIST.
	ClientName string `yaml:"client_name" json:"client_name"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `yaml:"level" json:"level"`
}

// AuthConfig defines token parameters.
type AuthConfig struct {
	JWTSecret             string `yaml:"jwt_secret" json:"jwt_secret"`
	Issuer                string `yaml:"issuer" json:"issuer"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes" json:"access_token_ttl_minutes"`
	// DevTokens exposes unauthenticated POST /auth/token. Local use only.
	DevTokens bool `yaml:"dev_tokens" json:"dev_tokens"`
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string `yaml:"email_from" json:"email_from"`
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
}

// RealtimeConfig tunes the ticket room fan-out.
type RealtimeConfig struct {
	AuthorizeRooms      bool   `yaml:"authorize_rooms" json:"authorize_rooms"`
	RedisRelay          bool   `yaml:"redis_relay" json:"redis_relay"`
	RedisChannel        string `yaml:"redis_channel" json:"redis_channel"`
	SubscriberBuffer    int    `yaml:"subscriber_buffer" json:"subscriber_buffer"`
	PingIntervalSeconds int    `yaml:"ping_interval_seconds" json:"ping_interval_seconds"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds" json:"read_timeout_seconds"`
}

// StorageConfig locates the attachment blob store.
type StorageConfig struct {
	BlobDir        string `yaml:"blob_dir" json:"blob_dir"`
	IndexPath      string `yaml:"index_path" json:"index_path"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" json:"max_upload_bytes"`
}

// TicketsConfig holds ticket workflow switches.
type TicketsConfig struct {
	StrictAssignment bool `yaml:"strict_assignment" json:"strict_assignment"`
	GuardTransitions bool `yaml:"guard_transitions" json:"guard_transitions"`
	RecentLimit      int  `yaml:"recent_limit" json:"recent_limit"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:                  "isp-support",
			Env:                   "development",
			Host:                  "0.0.0.0",
			Port:                  "8080",
			Version:               "dev",
			RequestTimeoutSeconds: 30,
		},
		Store: StoreConfig{Driver: DriverPostgres},
		Postgres: PostgresConfig{
			MaxConns:        10,
			MinConns:        2,
			RunMigrations:   true,
			ConnMaxIdleSec:  30,
			ConnMaxLifeSec:  300,
			ApplicationName: "isp-support",
		},
		Redis:  RedisConfig{Addr: "127.0.0.1:6379", ClientName: "isp-support"},
		Logger: LoggerConfig{Level: "info"},
		Auth: AuthConfig{
			JWTSecret:             "dev-secret",
			Issuer:                "isp-support",
			AccessTokenTTLMinutes: 60,
		},
		Notification: NotificationConfig{EmailFrom: "noreply@example.com"},
		Realtime: RealtimeConfig{
			AuthorizeRooms:      true,
			RedisChannel:        "isp-support:ticket-events",
			SubscriberBuffer:    256,
			PingIntervalSeconds: 30,
			ReadTimeoutSeconds:  60,
		},
		Storage: StorageConfig{
			BlobDir:        "data/blobs",
			IndexPath:      "data/blobs/index.db",
			MaxUploadBytes: 10 << 20,
		},
		Tickets: TicketsConfig{
			StrictAssignment: true,
			RecentLimit:      5,
		},
	}
}

// Load reads configuration from environment variables, applying the overlay
// file named by CONFIG_FILE when set.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadWithFile(os.Getenv("CONFIG_FILE"))
}

// LoadWithFile layers defaults, the optional file at path, then the environment.
func LoadWithFile(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", strconv.Itoa(cfg.Redis.DB)))
	if err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnv("APP_PORT", cfg.App.Port)
	cfg.App.Version = getEnv("APP_VERSION", cfg.App.Version)
	cfg.App.RequestTimeoutSeconds = getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", cfg.App.RequestTimeoutSeconds)

	cfg.Store.Driver = strings.ToLower(getEnv("STORE_DRIVER", cfg.Store.Driver))
	cfg.Store.SeedFile = getEnv("SEED_FILE", cfg.Store.SeedFile)

	cfg.Postgres.DSN = getEnv("POSTGRES_DSN", cfg.Postgres.DSN)
	cfg.Postgres.MaxConns = int32(getEnvAsInt("POSTGRES_MAX_CONNS", int(cfg.Postgres.MaxConns)))
	cfg.Postgres.MinConns = int32(getEnvAsInt("POSTGRES_MIN_CONNS", int(cfg.Postgres.MinConns)))
	cfg.Postgres.RunMigrations = getEnvAsBool("POSTGRES_RUN_MIGRATIONS", cfg.Postgres.RunMigrations)
	cfg.Postgres.ConnMaxIdleSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", int(cfg.Postgres.ConnMaxIdleSec)))
	cfg.Postgres.ConnMaxLifeSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", int(cfg.Postgres.ConnMaxLifeSec)))
	cfg.Postgres.ApplicationName = getEnv("POSTGRES_APPLICATION_NAME", cfg.Postgres.ApplicationName)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = redisDB
	cfg.Redis.ClientName = getEnv("REDIS_CLIENT_NAME", cfg.Redis.ClientName)

	cfg.Logger.Level = getEnv("LOG_LEVEL", cfg.Logger.Level)

	cfg.Auth.JWTSecret = getEnv("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = getEnv("AUTH_ISSUER", cfg.Auth.Issuer)
	cfg.Auth.AccessTokenTTLMinutes = getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", cfg.Auth.AccessTokenTTLMinutes)
	cfg.Auth.DevTokens = getEnvAsBool("AUTH_DEV_TOKENS", cfg.Auth.DevTokens)

	cfg.Notification.EmailFrom = getEnv("NOTIFY_EMAIL_FROM", cfg.Notification.EmailFrom)
	cfg.Notification.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", cfg.Notification.WebhookURL)

	cfg.Realtime.AuthorizeRooms = getEnvAsBool("REALTIME_AUTHORIZE_ROOMS", cfg.Realtime.AuthorizeRooms)
	cfg.Realtime.RedisRelay = getEnvAsBool("REALTIME_REDIS_RELAY", cfg.Realtime.RedisRelay)
	cfg.Realtime.RedisChannel = getEnv("REALTIME_REDIS_CHANNEL", cfg.Realtime.RedisChannel)
	cfg.Realtime.SubscriberBuffer = getEnvAsInt("REALTIME_SUBSCRIBER_BUFFER", cfg.Realtime.SubscriberBuffer)
	cfg.Realtime.PingIntervalSeconds = getEnvAsInt("REALTIME_PING_INTERVAL_SECONDS", cfg.Realtime.PingIntervalSeconds)
	cfg.Realtime.ReadTimeoutSeconds = getEnvAsInt("REALTIME_READ_TIMEOUT_SECONDS", cfg.Realtime.ReadTimeoutSeconds)

	cfg.Storage.BlobDir = getEnv("STORAGE_BLOB_DIR", cfg.Storage.BlobDir)
	cfg.Storage.IndexPath = getEnv("STORAGE_INDEX_PATH", cfg.Storage.IndexPath)
	cfg.Storage.MaxUploadBytes = int64(getEnvAsInt("STORAGE_MAX_UPLOAD_BYTES", int(cfg.Storage.MaxUploadBytes)))

	cfg.Tickets.StrictAssignment = getEnvAsBool("TICKETS_STRICT_ASSIGNMENT", cfg.Tickets.StrictAssignment)
	cfg.Tickets.GuardTransitions = getEnvAsBool("TICKETS_GUARD_TRANSITIONS", cfg.Tickets.GuardTransitions)
	cfg.Tickets.RecentLimit = getEnvAsInt("TICKETS_RECENT_LIMIT", cfg.Tickets.RecentLimit)
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORE_DRIVER=%s", DriverPostgres)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("AUTH_JWT_SECRET must not be empty")
	}
	if c.Realtime.SubscriberBuffer <= 0 {
		return fmt.Errorf("REALTIME_SUBSCRIBER_BUFFER must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// IsProduction reports whether diagnostic detail must be hidden.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// PingInterval returns the websocket keepalive interval.
func (r RealtimeConfig) PingInterval() time.Duration {
	return time.Duration(r.PingIntervalSeconds) * time.Second
}

// ReadTimeout returns how long a websocket may stay silent before it is dropped.
func (r RealtimeConfig) ReadTimeout() time.Duration {
	return time.Duration(r.ReadTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
