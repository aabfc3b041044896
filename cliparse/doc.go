// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

main loads a .env file first (github.com/joho/godotenv), so anything below
can also live there.

# CLI Flags and Environment Variables

Flags fall back to environment variables:

	-p                 PORT              (default 3318)
	-d                 DATABASE_URL      (required)
	-t                 DATABASE_TYPE     sqlite | postgres | mysql (default sqlite)
	-platform-key      PLATFORM_KEY      (required)
	-seller-salt       SELLER_KEY_SALT   (required)
	-policy            POLICY_FILE
	-gate              GATE_BACKEND      memory | redis (default memory)
	-results           RESULTS_BACKEND   memory | redis | sql (default memory)
	-redis             REDIS_URL         (required for redis backends)
	-idempotency-ttl   IDEMPOTENCY_TTL   (default 24h)
	-inflight-ttl      INFLIGHT_TTL      (default 30s)
	-kafka-brokers     KAFKA_BROKERS     comma-separated; empty logs events instead
	-kafka-topic       KAFKA_TOPIC       (default negotiation.events)

CLI flags take precedence over environment variables.

# Negotiation Policy

LoadPolicy reads an optional YAML file; unset keys keep their defaults:

	negotiation:
	  min_rate: 1
	  max_rate: 50
	  max_rounds: 3
	  min_reason_length: 10
	  min_reject_reason_length: 5
	  rate_scale: 4
*/
package cliparse
