// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package events publishes one event per committed case transition.
//
// Publishing happens after the transition is saved and never fails the
// caller's request. LogPublisher is the default; KafkaPublisher is used when
// KAFKA_BROKERS is set.
package events
