// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/commission-negotiation/models"
)

// Event types
const (
	CaseOpened    = "negotiation.case_opened"
	CaseCountered = "negotiation.case_countered"
	CaseReoffered = "negotiation.case_reoffered"
	CaseAccepted  = "negotiation.case_accepted"
	CaseRejected  = "negotiation.case_rejected"
)

// Event announces one committed transition.
type Event struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	CaseID     string          `json:"case_id"`
	SellerID   string          `json:"seller_id"`
	Actor      models.Role     `json:"actor"`
	ActorID    string          `json:"actor_id,omitempty"`
	Status     models.Status   `json:"status"`
	Rate       decimal.Decimal `json:"rate"`
	Round      int             `json:"round"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// TypeFor maps a history action to its event type.
func TypeFor(action models.Action) string {
	switch action {
	case models.ActionOffer:
		return CaseOpened
	case models.ActionCounter:
		return CaseCountered
	case models.ActionReoffer:
		return CaseReoffered
	case models.ActionAccept:
		return CaseAccepted
	case models.ActionReject:
		return CaseRejected
	}
	return "negotiation." + string(action)
}

// FromEntry builds the event for the latest transition of c.
func FromEntry(c *models.NegotiationCase, e models.HistoryEntry) Event {
	return Event{
		EventID:    e.ID,
		Type:       TypeFor(e.Action),
		CaseID:     c.ID,
		SellerID:   c.SellerID,
		Actor:      e.Actor,
		ActorID:    e.ActorID,
		Status:     c.Status,
		Rate:       e.Rate,
		Round:      c.Round,
		OccurredAt: e.At,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the structured log. Used when no broker is
// configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, e Event) error {
	slog.Info("negotiation event",
		"type", e.Type,
		"case_id", e.CaseID,
		"seller_id", e.SellerID,
		"actor", e.Actor,
		"status", e.Status,
		"rate", e.Rate.String(),
		"round", e.Round,
	)
	return nil
}

func (LogPublisher) Close() error { return nil }

// KafkaPublisher writes events to one topic keyed by case ID, so a case's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.CaseID),
		Value: payload,
		Time:  e.OccurredAt.UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
