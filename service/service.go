// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/commission-negotiation/events"
	"github.com/danielhkuo/commission-negotiation/gate"
	"github.com/danielhkuo/commission-negotiation/models"
	"github.com/danielhkuo/commission-negotiation/negotiation"
	"github.com/danielhkuo/commission-negotiation/store"
)

var (
	ErrNotFound       = errors.New("case not found")
	ErrForbidden      = errors.New("actor may not access this case")
	ErrPersistence    = errors.New("persistence failure, try again")
	ErrOpenCaseExists = errors.New("seller already has an open case")
	ErrSellerRequired = errors.New("seller_id is required")
)

// Repository is the persistence boundary. Save must be atomic per case and
// fail rather than overwrite a concurrent save.
type Repository interface {
	Create(ctx context.Context, c *models.NegotiationCase) error
	Load(ctx context.Context, id string) (*models.NegotiationCase, error)
	Save(ctx context.Context, c *models.NegotiationCase) error
	List(ctx context.Context, f store.Filter) ([]*models.NegotiationCase, error)
}

type Dependencies struct {
	Repository Repository
	Gate       *gate.Gate
	Machine    *negotiation.Machine
	Publisher  events.Publisher
}

// Service owns every read and write of a negotiation case.
type Service struct {
	repo      Repository
	gate      *gate.Gate
	machine   *negotiation.Machine
	publisher events.Publisher
	now       func() time.Time
	newID     func() string
}

func New(deps Dependencies) *Service {
	s := &Service{
		repo:      deps.Repository,
		gate:      deps.Gate,
		machine:   deps.Machine,
		publisher: deps.Publisher,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	if s.gate == nil {
		s.gate = gate.New(gate.NewMemoryFlags(), gate.NewMemoryResults(24*time.Hour))
	}
	if s.machine == nil {
		s.machine = negotiation.NewMachine(negotiation.DefaultPolicy())
	}
	if s.publisher == nil {
		s.publisher = events.LogPublisher{}
	}
	return s
}

// Policy reports the bounds new cases are opened under.
func (s *Service) Policy() negotiation.Policy {
	return s.machine.Policy()
}

// GetView returns the read projection of a case for actor.
func (s *Service) GetView(ctx context.Context, actor models.Actor, caseID string) (models.CaseView, error) {
	c, err := s.load(ctx, caseID)
	if err != nil {
		return models.CaseView{}, err
	}
	if err := authorize(actor, c); err != nil {
		return models.CaseView{}, err
	}
	return view(c, actor.Role), nil
}

// AcceptOffer finalizes the rate currently on the table.
func (s *Service) AcceptOffer(ctx context.Context, actor models.Actor, caseID, token string) (models.CaseView, error) {
	return s.mutate(ctx, actor, caseID, token, negotiation.OpAccept, nil,
		func(c *models.NegotiationCase, at time.Time) (*models.NegotiationCase, error) {
			return s.machine.Accept(c, actor, at)
		})
}

// CounterOffer proposes candidateRate. From the seller this consumes a round;
// from the platform it answers an open counter with a new offer.
func (s *Service) CounterOffer(ctx context.Context, actor models.Actor, caseID, token, candidateRate, reason string) (models.CaseView, error) {
	return s.mutate(ctx, actor, caseID, token, negotiation.OpCounter, []string{candidateRate, reason},
		func(c *models.NegotiationCase, at time.Time) (*models.NegotiationCase, error) {
			return s.machine.Counter(c, actor, candidateRate, reason, at)
		})
}

func (s *Service) RejectOffer(ctx context.Context, actor models.Actor, caseID, token, reason string) (models.CaseView, error) {
	return s.mutate(ctx, actor, caseID, token, negotiation.OpReject, []string{reason},
		func(c *models.NegotiationCase, at time.Time) (*models.NegotiationCase, error) {
			return s.machine.Reject(c, actor, reason, at)
		})
}

type transition func(c *models.NegotiationCase, at time.Time) (*models.NegotiationCase, error)

// mutate runs one transition under the gate: load, authorize, apply, save,
// publish. Nothing is written unless every step before save succeeds.
func (s *Service) mutate(ctx context.Context, actor models.Actor, caseID, token string, op negotiation.Op, payload []string, apply transition) (models.CaseView, error) {
	parts := append([]string{string(op), string(actor.Role), actor.ID}, payload...)
	req := gate.Request{CaseID: caseID, Token: token, Fingerprint: gate.Fingerprint(parts...)}

	return s.gate.Submit(ctx, req, func(ctx context.Context) (models.CaseView, error) {
		c, err := s.load(ctx, caseID)
		if err != nil {
			return models.CaseView{}, err
		}
		if err := authorize(actor, c); err != nil {
			return models.CaseView{}, err
		}
		if !c.Status.Terminal() && !negotiation.Permitted(actor.Role, c.Status, op) {
			return models.CaseView{}, fmt.Errorf("%w: %s may not %s a %s case",
				negotiation.ErrIllegalTransition, actor.Role, op, c.Status)
		}

		next, err := apply(c, s.now())
		if err != nil {
			return models.CaseView{}, err
		}
		if err := s.repo.Save(ctx, next); err != nil {
			return models.CaseView{}, persistErr(err)
		}

		last := next.History[len(next.History)-1]
		slog.Info("case transition",
			"case_id", next.ID,
			"action", last.Action,
			"actor", actor.Role,
			"status", next.Status,
			"round", next.Round,
		)
		s.publish(ctx, next, last)

		return view(next, actor.Role), nil
	})
}

// OpenCase extends the platform's initial offer to a seller. A seller may
// have only one open case at a time.
func (s *Service) OpenCase(ctx context.Context, actor models.Actor, sellerID, initialRate string) (models.CaseView, error) {
	if actor.Role != models.RolePlatform {
		return models.CaseView{}, ErrForbidden
	}
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return models.CaseView{}, ErrSellerRequired
	}

	c, err := s.machine.Open(s.newID(), sellerID, initialRate, actor, s.now())
	if err != nil {
		return models.CaseView{}, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, store.ErrOpenCaseExists) {
			return models.CaseView{}, ErrOpenCaseExists
		}
		return models.CaseView{}, persistErr(err)
	}

	slog.Info("case opened", "case_id", c.ID, "seller_id", c.SellerID, "rate", c.CurrentRate.String())
	s.publish(ctx, c, c.History[0])

	return view(c, actor.Role), nil
}

// ListCases is the platform's review queue.
func (s *Service) ListCases(ctx context.Context, actor models.Actor, f store.Filter) ([]models.CaseView, error) {
	if actor.Role != models.RolePlatform {
		return nil, ErrForbidden
	}
	cases, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, persistErr(err)
	}
	views := make([]models.CaseView, 0, len(cases))
	for _, c := range cases {
		views = append(views, view(c, actor.Role))
	}
	return views, nil
}

// History returns the audit trail. Sellers never see it.
func (s *Service) History(ctx context.Context, actor models.Actor, caseID string) ([]models.HistoryEntry, error) {
	if actor.Role != models.RolePlatform {
		return nil, ErrForbidden
	}
	c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return c.History, nil
}

func (s *Service) load(ctx context.Context, caseID string) (*models.NegotiationCase, error) {
	c, err := s.repo.Load(ctx, caseID)
	if errors.Is(err, store.ErrCaseNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr(err)
	}
	return c, nil
}

func (s *Service) publish(ctx context.Context, c *models.NegotiationCase, e models.HistoryEntry) {
	if err := s.publisher.Publish(ctx, events.FromEntry(c, e)); err != nil {
		slog.Warn("failed to publish event", "case_id", c.ID, "action", e.Action, "error", err)
	}
}

func authorize(actor models.Actor, c *models.NegotiationCase) error {
	switch actor.Role {
	case models.RolePlatform:
		return nil
	case models.RoleSeller:
		if actor.ID != "" && actor.ID == c.SellerID {
			return nil
		}
	}
	return ErrForbidden
}

func persistErr(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func view(c *models.NegotiationCase, role models.Role) models.CaseView {
	v := c.View()
	v.AllowedActions = negotiation.AllowedActions(c, role)
	return v
}
