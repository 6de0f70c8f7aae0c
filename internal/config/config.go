package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the sync service.
type Config struct {
	App         AppConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Auth        AuthConfig
	Source      SourceConfig
	Destination DestinationConfig
	Sync        SyncConfig
	Profile     Profile
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values for the run ledger.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values for the run lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig protects the operator HTTP surface.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	OperatorUsername      string
	OperatorPasswordHash  string
}

// SourceConfig points at the helpdesk.
type SourceConfig struct {
	Domain             string
	SSL                bool
	Username           string
	Password           string
	HTTPTimeoutSeconds int
}

// DestinationConfig points at the record store.
type DestinationConfig struct {
	APIURL             string
	UploadURL          string
	ContactURL         string
	ClientID           string
	ClientSecret       string
	Username           string
	Password           string
	HTTPTimeoutSeconds int
	MaxFileMegabytes   int
}

// SyncConfig tunes the run loop.
type SyncConfig struct {
	ViewAll        int64
	ViewRecent     int64
	PageSize       int
	Schedule       string
	LockKey        string
	LockTTLMinutes int
	Silent         bool
	ProfileName    string
	ProfileFile    string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-sync"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     lookupEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			OperatorUsername:      getEnv("AUTH_OPERATOR_USERNAME", "operator"),
			OperatorPasswordHash:  os.Getenv("AUTH_OPERATOR_PASSWORD_HASH"),
		},
		Source: SourceConfig{
			Domain:             os.Getenv("HELPDESK_DOMAIN"),
			SSL:                getEnvAsBool("HELPDESK_SSL", true),
			Username:           os.Getenv("HELPDESK_USERNAME"),
			Password:           os.Getenv("HELPDESK_PASSWORD"),
			HTTPTimeoutSeconds: getEnvAsInt("HELPDESK_HTTP_TIMEOUT_SECONDS", 30),
		},
		Destination: DestinationConfig{
			APIURL:             getEnv("RECORDS_API_URL", "https://api.podio.com"),
			UploadURL:          getEnv("RECORDS_UPLOAD_URL", "https://upload.podio.com"),
			ContactURL:         getEnv("RECORDS_CONTACT_URL", "https://podio.com/contacts/"),
			ClientID:           os.Getenv("RECORDS_CLIENT_ID"),
			ClientSecret:       os.Getenv("RECORDS_CLIENT_SECRET"),
			Username:           os.Getenv("RECORDS_USERNAME"),
			Password:           os.Getenv("RECORDS_PASSWORD"),
			HTTPTimeoutSeconds: getEnvAsInt("RECORDS_HTTP_TIMEOUT_SECONDS", 60),
			MaxFileMegabytes:   getEnvAsInt("RECORDS_MAX_FILE_MB", DefaultMaxFileMegabytes),
		},
		Sync: SyncConfig{
			ViewAll:        getEnvAsInt64("SYNC_VIEW_ALL", 47845),
			ViewRecent:     getEnvAsInt64("SYNC_VIEW_RECENT", 1992333),
			PageSize:       getEnvAsInt("SYNC_PAGE_SIZE", 30),
			Schedule:       getEnv("SYNC_SCHEDULE", "0 * * * *"),
			LockKey:        getEnv("SYNC_LOCK_KEY", "ticket-sync:run"),
			LockTTLMinutes: getEnvAsInt("SYNC_LOCK_TTL_MINUTES", 55),
			Silent:         getEnvAsBool("SYNC_SILENT", false),
			ProfileName:    getEnv("SYNC_PROFILE", ProfilePrimary),
			ProfileFile:    os.Getenv("SYNC_PROFILE_FILE"),
		},
	}

	profile, err := ResolveProfile(cfg.Sync.ProfileName, cfg.Sync.ProfileFile)
	if err != nil {
		return nil, err
	}
	cfg.Profile = profile

	return cfg, nil
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

// BaseURL returns the helpdesk origin, e.g. "https://acme.zendesk.com".
func (s SourceConfig) BaseURL() string {
	domain := strings.TrimRight(s.Domain, "/")
	if strings.Contains(domain, "://") {
		return domain
	}
	if s.SSL {
		return "https://" + domain
	}
	return "http://" + domain
}

// LockTTL returns how long a run lock is held before it expires on its own.
func (s SyncConfig) LockTTL() time.Duration {
	if s.LockTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.LockTTLMinutes) * time.Minute
}

// ViewFor maps a run mode to the helpdesk view it walks.
func (s SyncConfig) ViewFor(mode string) (int64, error) {
	switch mode {
	case "all":
		return s.ViewAll, nil
	case "recent":
		return s.ViewRecent, nil
	}
	return 0, fmt.Errorf("unknown sync mode %q", mode)
}

func timeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// HTTPTimeout returns the helpdesk client timeout.
func (s SourceConfig) HTTPTimeout() time.Duration { return timeout(s.HTTPTimeoutSeconds) }

// DefaultMaxFileMegabytes caps one copied attachment or photo.
const DefaultMaxFileMegabytes = 100

// MaxFileBytes returns the largest file the record store client copies.
func (d DestinationConfig) MaxFileBytes() int64 {
	if d.MaxFileMegabytes <= 0 {
		return DefaultMaxFileMegabytes << 20
	}
	return int64(d.MaxFileMegabytes) << 20
}

// HTTPTimeout returns the record store client timeout.
func (d DestinationConfig) HTTPTimeout() time.Duration { return timeout(d.HTTPTimeoutSeconds) }

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// lookupEnv honours a variable explicitly set to the empty string.
func lookupEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
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

func getEnvAsInt64(key string, fallback int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
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
