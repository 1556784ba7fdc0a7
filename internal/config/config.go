package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Workflow WorkflowConfig
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

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines caller authentication parameters.
type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	Issuer    string
}

// WorkflowConfig tunes the ticket workflow core.
type WorkflowConfig struct {
	NodeID                int64
	CreationLockTTLMillis int
	AuditDefaultLimit     int
	AuditMaxLimit         int
	TicketDefaultLimit    int
	TicketMaxLimit        int
}

// Load reads configuration from environment variables, applying defaults where possible.
// envFiles are passed to godotenv; with none given it looks for .env in the working directory.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	nodeID, err := strconv.ParseInt(getEnv("IDGEN_NODE_ID", "1"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid IDGEN_NODE_ID: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "escalation-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			Enabled:   getEnvAsBool("AUTH_ENABLED", false),
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
			Issuer:    getEnv("AUTH_ISSUER", "escalation-service"),
		},
		Workflow: WorkflowConfig{
			NodeID:                nodeID,
			CreationLockTTLMillis: getEnvAsInt("WORKFLOW_CREATION_LOCK_TTL_MS", 5000),
			AuditDefaultLimit:     getEnvAsInt("WORKFLOW_AUDIT_DEFAULT_LIMIT", 100),
			AuditMaxLimit:         getEnvAsInt("WORKFLOW_AUDIT_MAX_LIMIT", 1000),
			TicketDefaultLimit:    getEnvAsInt("WORKFLOW_TICKET_DEFAULT_LIMIT", 100),
			TicketMaxLimit:        getEnvAsInt("WORKFLOW_TICKET_MAX_LIMIT", 1000),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET required when AUTH_ENABLED=true")
	}
	if c.Workflow.NodeID < 0 || c.Workflow.NodeID > 1023 {
		return fmt.Errorf("IDGEN_NODE_ID must be within 0..1023, got %d", c.Workflow.NodeID)
	}
	if c.Workflow.AuditDefaultLimit > c.Workflow.AuditMaxLimit {
		return fmt.Errorf("WORKFLOW_AUDIT_DEFAULT_LIMIT exceeds WORKFLOW_AUDIT_MAX_LIMIT")
	}
	if c.Workflow.TicketDefaultLimit > c.Workflow.TicketMaxLimit {
		return fmt.Errorf("WORKFLOW_TICKET_DEFAULT_LIMIT exceeds WORKFLOW_TICKET_MAX_LIMIT")
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

// CreationLockTTL returns how long a creation lock is held at most.
func (w WorkflowConfig) CreationLockTTL() time.Duration {
	if w.CreationLockTTLMillis <= 0 {
		return 0
	}
	return time.Duration(w.CreationLockTTLMillis) * time.Millisecond
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
