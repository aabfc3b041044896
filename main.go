package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/commission-negotiation/cache"
	"github.com/danielhkuo/commission-negotiation/cliparse"
	"github.com/danielhkuo/commission-negotiation/db"
	"github.com/danielhkuo/commission-negotiation/events"
	"github.com/danielhkuo/commission-negotiation/gate"
	"github.com/danielhkuo/commission-negotiation/middleware"
	"github.com/danielhkuo/commission-negotiation/negotiation"
	"github.com/danielhkuo/commission-negotiation/router"
	"github.com/danielhkuo/commission-negotiation/service"
	"github.com/danielhkuo/commission-negotiation/store"
)

func main() {
	var err error

	// Load .env if present; real env variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	policy, err := cliparse.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		slog.Error("policy load failed", "error", err)
		os.Exit(1)
	}

	// Connect to the database
	dialect, err := db.ParseDialect(cfg.DatabaseType)
	if err != nil {
		slog.Error("unsupported database", "error", err)
		os.Exit(1)
	}
	dbConn, err := db.Open(dialect, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Verify connection
	if err := dbConn.Ping(); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	// Create schema (tables)
	if err := db.CreateSchema(dbConn, dialect); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "dialect", dialect)

	st := store.New(dbConn, dialect)

	// Request gate
	var redisClient *redis.Client
	if cfg.GateBackend == "redis" || cfg.ResultsBackend == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = cache.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	var flags gate.Flags = gate.NewMemoryFlags()
	if cfg.GateBackend == "redis" {
		flags = cache.NewRedisFlags(redisClient, cfg.InFlightTTL)
	}

	var results gate.Results
	var sqlResults *store.Results
	switch cfg.ResultsBackend {
	case "redis":
		results = cache.NewRedisResults(redisClient, cfg.IdempotencyTTL)
	case "sql":
		sqlResults = st.NewResults(cfg.IdempotencyTTL)
		results = sqlResults
	default:
		results = gate.NewMemoryResults(cfg.IdempotencyTTL)
	}
	slog.Info("Request gate ready", "flags", cfg.GateBackend, "results", cfg.ResultsBackend)

	// Event publisher
	var publisher events.Publisher = events.LogPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			slog.Error("kafka publisher failed", "error", err)
			os.Exit(1)
		}
		publisher = kp
		slog.Info("Publishing events to Kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer publisher.Close()

	svc := service.New(service.Dependencies{
		Repository: st,
		Gate:       gate.New(flags, results),
		Machine:    negotiation.NewMachine(policy),
		Publisher:  publisher,
	})

	// Create router
	mux := router.NewRouter(svc, cfg)

	// Create server
	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	stopPurge := make(chan struct{})
	if sqlResults != nil {
		go purgeReceipts(sqlResults, stopPurge)
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		close(stopPurge)
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}

// purgeReceipts drops expired request receipts until stop is closed
func purgeReceipts(results *store.Results, stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := results.PurgeExpired(context.Background())
			if err != nil {
				slog.Warn("failed to purge request receipts", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged request receipts", "count", n)
			}
		}
	}
}
