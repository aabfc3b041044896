// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the commission negotiation API server.

A platform offers a seller a commission rate. The seller may accept it, reject
it, or counter with a lower rate and a reason; the platform answers a counter
by accepting, rejecting, or re-offering. Sellers get a bounded number of
counters per case.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=negotiation.db PLATFORM_KEY=... SELLER_KEY_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -platform-key ... -seller-salt ...

A .env file in the working directory is loaded first.

# Configuration

Required settings:

  - DATABASE_URL (-d): sqlite path, postgres URL or mysql DSN
  - PLATFORM_KEY (-platform-key): Secret the platform operator presents
  - SELLER_KEY_SALT (-seller-salt): Secret for seller key HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite, postgres or mysql (default: sqlite)
  - POLICY_FILE (-policy): YAML overrides for rate bounds and round limit
  - GATE_BACKEND, RESULTS_BACKEND, REDIS_URL: where in-flight flags and
    completed requests live
  - KAFKA_BROKERS, KAFKA_TOPIC: publish case events to Kafka

# Architecture

  - negotiation: State machine, validation and role policy
  - gate: Per-case in-flight flag and idempotent replay
  - service: Load, authorize, transition, save, publish
  - store: database/sql persistence with versioned saves
  - cache: Redis-backed gate
  - events: Case event publishing (log or Kafka)
  - handlers, router, middleware: HTTP surface
  - models: Domain, request and response types
  - auth: Seller keys, platform key and request tokens
  - db: Dialects and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
