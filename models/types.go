// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the closed set of negotiation states.
type Status string

const (
	StatusPending        Status = "pending"
	StatusCounterOffered Status = "counter_offered"
	StatusAccepted       Status = "accepted"
	StatusRejected       Status = "rejected"
)

// ParseStatus rejects anything outside the four known states.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusCounterOffered, StatusAccepted, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether no further transitions are legal.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Action is what a history entry records.
type Action string

const (
	ActionOffer   Action = "offer"   // platform opens the case
	ActionCounter Action = "counter" // seller counter, consumes a round
	ActionReoffer Action = "reoffer" // platform answers a counter with a new offer
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
)

// Role distinguishes the two parties of a negotiation.
type Role string

const (
	RoleSeller   Role = "seller"
	RolePlatform Role = "platform"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	Role Role
	ID   string
}

// Domain types

type HistoryEntry struct {
	ID      string          `json:"id"`
	Seq     int             `json:"seq"`
	Action  Action          `json:"action"`
	Actor   Role            `json:"actor"`
	ActorID string          `json:"actor_id,omitempty"`
	Rate    decimal.Decimal `json:"rate"`
	Reason  string          `json:"reason,omitempty"`
	At      time.Time       `json:"at"`
}

// NegotiationCase is one seller-platform commission agreement.
// CounterRate is valid iff Status is StatusCounterOffered.
type NegotiationCase struct {
	ID             string
	SellerID       string
	CurrentRate    decimal.Decimal
	Status         Status
	CounterRate    decimal.NullDecimal
	CounterReason  string
	Round          int
	MaxRounds      int
	CreatedAt      time.Time
	LastActivityAt time.Time
	History        []HistoryEntry

	// Version is the number of history entries already persisted.
	Version int
}

// Clone returns a deep copy so a failed transition never touches the original.
func (c *NegotiationCase) Clone() *NegotiationCase {
	out := *c
	out.History = make([]HistoryEntry, len(c.History))
	copy(out.History, c.History)
	return &out
}

// RoundFromHistory counts seller counters. History is the source of truth
// for Round.
func RoundFromHistory(history []HistoryEntry) int {
	n := 0
	for _, e := range history {
		if e.Action == ActionCounter {
			n++
		}
	}
	return n
}

// View projects the case without its audit history.
func (c *NegotiationCase) View() CaseView {
	remaining := c.MaxRounds - c.Round
	if remaining < 0 {
		remaining = 0
	}
	return CaseView{
		CaseID:          c.ID,
		SellerID:        c.SellerID,
		Status:          c.Status,
		CurrentRate:     c.CurrentRate,
		CounterRate:     c.CounterRate,
		CounterReason:   c.CounterReason,
		Round:           c.Round,
		MaxRounds:       c.MaxRounds,
		RoundsRemaining: remaining,
		LastActivityAt:  c.LastActivityAt,
	}
}

// CaseView is the read model handed to callers.
type CaseView struct {
	CaseID          string              `json:"case_id"`
	SellerID        string              `json:"seller_id"`
	Status          Status              `json:"status"`
	CurrentRate     decimal.Decimal     `json:"current_rate"`
	CounterRate     decimal.NullDecimal `json:"counter_rate"`
	CounterReason   string              `json:"counter_reason,omitempty"`
	Round           int                 `json:"round"`
	MaxRounds       int                 `json:"max_rounds"`
	RoundsRemaining int                 `json:"rounds_remaining"`
	LastActivityAt  time.Time           `json:"last_activity_at"`
	AllowedActions  []string            `json:"allowed_actions"`
}

// RateInput keeps the raw text of a rate so that non-numeric input reaches
// the validator instead of failing JSON decoding. Accepts 15, 15.5 or "15".
type RateInput string

func (r *RateInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RateInput(s)
		return nil
	}
	*r = RateInput(data)
	return nil
}

// Request types

type OpenCaseRequest struct {
	SellerID    string    `json:"seller_id"`
	InitialRate RateInput `json:"initial_rate"`
}

type AcceptRequest struct {
	RequestToken string `json:"request_token"`
}

type CounterRequest struct {
	RequestToken  string    `json:"request_token"`
	CandidateRate RateInput `json:"candidate_rate"`
	Reason        string    `json:"reason"`
}

type RejectRequest struct {
	RequestToken string `json:"request_token"`
	Reason       string `json:"reason"`
}

// Response types

type OpenCaseResponse struct {
	Case      CaseView `json:"case"`
	SellerKey string   `json:"seller_key"`
}

type ListCasesResponse struct {
	Cases []CaseView `json:"cases"`
}

type HistoryResponse struct {
	CaseID  string         `json:"case_id"`
	Entries []HistoryEntry `json:"entries"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}
