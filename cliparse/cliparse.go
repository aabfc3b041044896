package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string

	PlatformKey   string
	SellerKeySalt string
	PolicyFile    string

	GateBackend    string // memory or redis
	ResultsBackend string // memory, redis or sql
	RedisURL       string
	IdempotencyTTL time.Duration
	InFlightTTL    time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

// ParseFlags validates flags and sets port number
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var brokers string

	fs := flag.NewFlagSet("commission-negotiation", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite, postgres or mysql)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.PlatformKey, "platform-key", "", "Platform operator key (prefer env)")
	fs.StringVar(&cfg.SellerKeySalt, "seller-salt", "", "Seller key salt (prefer env)")

	// Negotiation and gate
	fs.StringVar(&cfg.PolicyFile, "policy", "", "YAML file overriding the negotiation policy")
	fs.StringVar(&cfg.GateBackend, "gate", "", "In-flight flag backend (memory or redis)")
	fs.StringVar(&cfg.ResultsBackend, "results", "", "Completed request backend (memory, redis or sql)")
	fs.StringVar(&cfg.RedisURL, "redis", "", "Redis URL")
	fs.DurationVar(&cfg.IdempotencyTTL, "idempotency-ttl", 0, "How long completed requests are replayed")
	fs.DurationVar(&cfg.InFlightTTL, "inflight-ttl", 0, "How long a crashed holder can block a case (redis)")

	// Events
	fs.StringVar(&brokers, "kafka-brokers", "", "Comma-separated Kafka brokers")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", "", "Kafka topic for negotiation events")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}

	// Secrets - MUST be provided
	if cfg.PlatformKey == "" {
		cfg.PlatformKey = os.Getenv("PLATFORM_KEY")
	}
	if cfg.PlatformKey == "" {
		return Config{}, errors.New("PLATFORM_KEY required")
	}

	if cfg.SellerKeySalt == "" {
		cfg.SellerKeySalt = os.Getenv("SELLER_KEY_SALT")
	}
	if cfg.SellerKeySalt == "" {
		return Config{}, errors.New("SELLER_KEY_SALT required")
	}

	if cfg.PolicyFile == "" {
		cfg.PolicyFile = os.Getenv("POLICY_FILE")
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}

	cfg.GateBackend = firstNonEmpty(cfg.GateBackend, os.Getenv("GATE_BACKEND"), "memory")
	cfg.ResultsBackend = firstNonEmpty(cfg.ResultsBackend, os.Getenv("RESULTS_BACKEND"), "memory")
	switch cfg.GateBackend {
	case "memory", "redis":
	default:
		return Config{}, fmt.Errorf("invalid gate backend %q", cfg.GateBackend)
	}
	switch cfg.ResultsBackend {
	case "memory", "redis", "sql":
	default:
		return Config{}, fmt.Errorf("invalid results backend %q", cfg.ResultsBackend)
	}
	if (cfg.GateBackend == "redis" || cfg.ResultsBackend == "redis") && cfg.RedisURL == "" {
		return Config{}, errors.New("REDIS_URL required for the redis backend")
	}

	var err error
	if cfg.IdempotencyTTL, err = durationFallback(cfg.IdempotencyTTL, "IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.InFlightTTL, err = durationFallback(cfg.InFlightTTL, "INFLIGHT_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}

	if brokers == "" {
		brokers = os.Getenv("KAFKA_BROKERS")
	}
	cfg.KafkaBrokers = splitNonEmpty(brokers)
	cfg.KafkaTopic = firstNonEmpty(cfg.KafkaTopic, os.Getenv("KAFKA_TOPIC"), "negotiation.events")

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func durationFallback(v time.Duration, env string, def time.Duration) (time.Duration, error) {
	if v > 0 {
		return v, nil
	}
	if s := os.Getenv(env); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid %s env variable: %w", env, err)
		}
		return d, nil
	}
	return def, nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
