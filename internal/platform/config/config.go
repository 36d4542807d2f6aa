package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	EventsNone     = "none"
	EventsMemory   = "memory"
	EventsRabbitMQ = "rabbitmq"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port string

	StorageBackend string
	DatabaseURL    string
	DB             DBConfig

	EventsBackend  string
	AMQPURL        string
	EventsExchange string

	LogLevel string
	LogDev   bool

	BcryptCost     int
	IdempotencyTTL time.Duration

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// DBConfig tunes the Postgres pool. Zero values keep driver defaults.
type DBConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

func LoadFromEnv() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:              "8080",
		StorageBackend:    StorageMemory,
		EventsBackend:     EventsNone,
		EventsExchange:    "carpool.events",
		LogLevel:          "info",
		BcryptCost:        12,
		IdempotencyTTL:    24 * time.Hour,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		DB: DBConfig{
			ConnectTimeout: 5 * time.Second,
		},
	}
	p := parser{getenv: getenv}

	p.str("PORT", &cfg.Port)
	p.str("STORAGE_BACKEND", &cfg.StorageBackend)
	p.str("DATABASE_URL", &cfg.DatabaseURL)
	p.int32("DB_MAX_CONNS", &cfg.DB.MaxConns)
	p.int32("DB_MIN_CONNS", &cfg.DB.MinConns)
	p.duration("DB_MAX_CONN_IDLE", &cfg.DB.MaxConnIdleTime)
	p.duration("DB_MAX_CONN_LIFETIME", &cfg.DB.MaxConnLifetime)
	p.duration("DB_CONN_TIMEOUT", &cfg.DB.ConnectTimeout)
	p.str("EVENTS_BACKEND", &cfg.EventsBackend)
	p.str("AMQP_URL", &cfg.AMQPURL)
	p.str("EVENTS_EXCHANGE", &cfg.EventsExchange)
	p.str("LOG_LEVEL", &cfg.LogLevel)
	p.bool("LOG_DEV", &cfg.LogDev)
	p.int("BCRYPT_COST", &cfg.BcryptCost)
	p.duration("IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)
	p.duration("READ_HEADER_TIMEOUT", &cfg.ReadHeaderTimeout)
	p.duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	if p.err != nil {
		return Config{}, p.err
	}

	cfg.StorageBackend = strings.ToLower(cfg.StorageBackend)
	cfg.EventsBackend = strings.ToLower(cfg.EventsBackend)

	switch cfg.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", cfg.StorageBackend)
	}

	switch cfg.EventsBackend {
	case EventsNone, EventsMemory:
	case EventsRabbitMQ:
		if cfg.AMQPURL == "" {
			return Config{}, fmt.Errorf("AMQP_URL is required when EVENTS_BACKEND=rabbitmq")
		}
	default:
		return Config{}, fmt.Errorf("EVENTS_BACKEND must be none, memory or rabbitmq, got %q", cfg.EventsBackend)
	}

	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.BcryptCost)
	}
	if cfg.DB.MinConns > 0 && cfg.DB.MaxConns > 0 && cfg.DB.MinConns > cfg.DB.MaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", cfg.DB.MinConns, cfg.DB.MaxConns)
	}
	return cfg, nil
}

// parser records the first malformed variable and ignores the rest.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) lookup(k string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v := strings.TrimSpace(p.getenv(k))
	return v, v != ""
}

func (p *parser) str(k string, dst *string) {
	if v, ok := p.lookup(k); ok {
		*dst = v
	}
}

func (p *parser) int(k string, dst *int) {
	if v, ok := p.lookup(k); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.err = fmt.Errorf("%s must be an integer: %w", k, err)
			return
		}
		*dst = n
	}
}

func (p *parser) int32(k string, dst *int32) {
	if v, ok := p.lookup(k); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			p.err = fmt.Errorf("%s must be a non-negative integer", k)
			return
		}
		*dst = int32(n)
	}
}

func (p *parser) duration(k string, dst *time.Duration) {
	if v, ok := p.lookup(k); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.err = fmt.Errorf("%s must be a duration (e.g. 30s): %w", k, err)
			return
		}
		*dst = d
	}
}

func (p *parser) bool(k string, dst *bool) {
	if v, ok := p.lookup(k); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.err = fmt.Errorf("%s must be a boolean: %w", k, err)
			return
		}
		*dst = b
	}
}
