// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package cache provides Redis backends for the mutation gate, for running
// more than one replica against the same database.
//
// RedisFlags takes the in-flight flag with SET NX and a TTL and releases it
// with a compare-and-delete script keyed on a per-acquire owner ID. While held,
// a heartbeat extends the TTL, so INFLIGHT_TTL only bounds a crashed holder.
// RedisResults stores receipts as JSON under negotiation:receipt:{case}:{token}.
package cache
