// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package negotiation

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/commission-negotiation/models"
)

// Op is one of the three mutation primitives. Both parties use the same
// primitives; the table below decides what each one means per state.
type Op string

const (
	OpAccept  Op = "accept"
	OpCounter Op = "counter"
	OpReject  Op = "reject"
)

type edge struct {
	action models.Action
	next   models.Status
}

var transitions = map[models.Status]map[Op]edge{
	models.StatusPending: {
		OpAccept:  {models.ActionAccept, models.StatusAccepted},
		OpCounter: {models.ActionCounter, models.StatusCounterOffered},
		OpReject:  {models.ActionReject, models.StatusRejected},
	},
	models.StatusCounterOffered: {
		OpAccept:  {models.ActionAccept, models.StatusAccepted},
		OpCounter: {models.ActionReoffer, models.StatusPending},
		OpReject:  {models.ActionReject, models.StatusRejected},
	},
	models.StatusAccepted: {},
	models.StatusRejected: {},
}

func lookup(status models.Status, op Op) (edge, error) {
	if status.Terminal() {
		return edge{}, ErrCaseClosed
	}
	e, ok := transitions[status][op]
	if !ok {
		return edge{}, ErrIllegalTransition
	}
	return e, nil
}

// Machine applies transitions under a fixed policy. It performs no I/O and
// never mutates the case it is given.
type Machine struct {
	policy Policy
}

func NewMachine(policy Policy) *Machine {
	return &Machine{policy: policy}
}

func (m *Machine) Policy() Policy {
	return m.policy
}

// Open creates a pending case carrying the platform's initial offer.
func (m *Machine) Open(caseID, sellerID, rate string, actor models.Actor, at time.Time) (*models.NegotiationCase, error) {
	offer, err := m.policy.ValidateOfferRate(rate)
	if err != nil {
		return nil, err
	}
	c := &models.NegotiationCase{
		ID:          caseID,
		SellerID:    sellerID,
		CurrentRate: offer,
		Status:      models.StatusPending,
		MaxRounds:   m.policy.MaxRounds,
		CreatedAt:   at,
	}
	appendEntry(c, models.ActionOffer, actor, offer, "", at)
	return c, nil
}

// Accept finalizes the rate on the table: the current offer when pending,
// the seller's counter when a counter is open.
func (m *Machine) Accept(c *models.NegotiationCase, actor models.Actor, at time.Time) (*models.NegotiationCase, error) {
	e, err := lookup(c.Status, OpAccept)
	if err != nil {
		return nil, err
	}
	next := c.Clone()
	if c.Status == models.StatusCounterOffered {
		next.CurrentRate = c.CounterRate.Decimal
	}
	next.Status = e.next
	clearCounter(next)
	appendEntry(next, e.action, actor, next.CurrentRate, "", at)
	return next, nil
}

// Counter is a seller counter-offer on a pending case, or the platform's
// fresh offer in answer to an open counter. Only the former consumes a round.
func (m *Machine) Counter(c *models.NegotiationCase, actor models.Actor, candidate, reason string, at time.Time) (*models.NegotiationCase, error) {
	e, err := lookup(c.Status, OpCounter)
	if err != nil {
		return nil, err
	}
	if e.action == models.ActionCounter && c.Round >= c.MaxRounds {
		return nil, ErrMaxRoundsReached
	}
	rate, err := m.policy.ValidateRate(candidate, c.CurrentRate)
	if err != nil {
		return nil, err
	}
	why, err := m.policy.ValidateReason(reason)
	if err != nil {
		return nil, err
	}

	next := c.Clone()
	next.Status = e.next
	switch e.action {
	case models.ActionCounter:
		next.CounterRate = decimal.NewNullDecimal(rate)
		next.CounterReason = why
		next.Round++
	case models.ActionReoffer:
		next.CurrentRate = rate
		clearCounter(next)
	}
	appendEntry(next, e.action, actor, rate, why, at)
	return next, nil
}

func (m *Machine) Reject(c *models.NegotiationCase, actor models.Actor, reason string, at time.Time) (*models.NegotiationCase, error) {
	e, err := lookup(c.Status, OpReject)
	if err != nil {
		return nil, err
	}
	why, err := m.policy.ValidateRejectReason(reason)
	if err != nil {
		return nil, err
	}
	next := c.Clone()
	next.Status = e.next
	clearCounter(next)
	appendEntry(next, e.action, actor, next.CurrentRate, why, at)
	return next, nil
}

func clearCounter(c *models.NegotiationCase) {
	c.CounterRate = decimal.NullDecimal{}
	c.CounterReason = ""
}

func appendEntry(c *models.NegotiationCase, action models.Action, actor models.Actor, rate decimal.Decimal, reason string, at time.Time) {
	c.History = append(c.History, models.HistoryEntry{
		ID:      newEntryID(at),
		Seq:     len(c.History) + 1,
		Action:  action,
		Actor:   actor.Role,
		ActorID: actor.ID,
		Rate:    rate,
		Reason:  reason,
		At:      at,
	})
	c.LastActivityAt = at
}

// ulid.MonotonicEntropy is not safe for concurrent use.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newEntryID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}
