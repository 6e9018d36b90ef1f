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
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	SLA          SLAConfig
	Notification NotificationConfig
	NATS         NATSConfig
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

// PostgresConfig holds DB connection values.
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
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SLAConfig drives the breach monitor.
type SLAConfig struct {
	HighPriorityDuration time.Duration
	ScanInterval         time.Duration
	// WarningBefore enables one-time warnings this long before the deadline. Zero disables them.
	WarningBefore   time.Duration
	DistributedLock bool
	LockTTL         time.Duration
	LockName        string
}

// NotificationConfig holds delivery channel settings.
type NotificationConfig struct {
	EmailFrom       string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	WebhookURL      string
	QueueSize       int
	Workers         int
	DeliveryTimeout time.Duration
}

// NATSConfig configures the optional event forwarder.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	slaDuration, err := getEnvAsDuration("SLA_HIGH_PRIORITY_DURATION", time.Minute)
	if err != nil {
		return nil, err
	}
	scanInterval, err := getEnvAsDuration("SLA_SCAN_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	if scanInterval <= 0 {
		return nil, fmt.Errorf("invalid SLA_SCAN_INTERVAL: must be positive")
	}
	warningBefore, err := getEnvAsDuration("SLA_WARNING_BEFORE", 0)
	if err != nil {
		return nil, err
	}
	lockTTL, err := getEnvAsDuration("SLA_LOCK_TTL", 25*time.Second)
	if err != nil {
		return nil, err
	}
	deliveryTimeout, err := getEnvAsDuration("NOTIFY_DELIVERY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-sla"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		SLA: SLAConfig{
			HighPriorityDuration: slaDuration,
			ScanInterval:         scanInterval,
			WarningBefore:        warningBefore,
			DistributedLock:      getEnvAsBool("SLA_DISTRIBUTED_LOCK", false),
			LockTTL:              lockTTL,
			LockName:             getEnv("SLA_LOCK_NAME", "helpdesk:sla:scan-lock"),
		},
		Notification: NotificationConfig{
			EmailFrom:       getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:        os.Getenv("NOTIFY_SMTP_HOST"),
			SMTPPort:        getEnvAsInt("NOTIFY_SMTP_PORT", 587),
			SMTPUsername:    os.Getenv("NOTIFY_SMTP_USERNAME"),
			SMTPPassword:    os.Getenv("NOTIFY_SMTP_PASSWORD"),
			WebhookURL:      getEnv("NOTIFY_WEBHOOK_URL", ""),
			QueueSize:       getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			Workers:         getEnvAsInt("NOTIFY_WORKERS", 2),
			DeliveryTimeout: deliveryTimeout,
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "helpdesk.sla"),
		},
	}

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

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
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

// getEnvAsDuration rejects malformed values instead of falling back.
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
