// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package gate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/commission-negotiation/models"
)

var (
	ErrAlreadyInFlight = errors.New("a mutation is already in flight for this case")
	ErrTokenRequired   = errors.New("request token is required")
	ErrTokenReused     = errors.New("request token was already used for a different request")

	// ErrResultsUnavailable wraps a failure to read the completed-request store.
	ErrResultsUnavailable = errors.New("completed request store unavailable")
)

// Flags holds the per-case in-flight marker. Acquire must be an atomic
// test-and-set: it either takes the flag or fails with ErrAlreadyInFlight.
type Flags interface {
	Acquire(ctx context.Context, caseID string) (release func(), err error)
}

// Results remembers completed mutations by (case, token). Lookup returns
// nil, nil when nothing is recorded.
type Results interface {
	Lookup(ctx context.Context, caseID, token string) (*Completion, error)
	Remember(ctx context.Context, caseID, token string, c Completion) error
}

// Completion is the outcome of a successful mutation.
type Completion struct {
	Fingerprint string          `json:"fingerprint"`
	View        models.CaseView `json:"view"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Request identifies one mutation attempt.
type Request struct {
	CaseID      string
	Token       string
	Fingerprint string
}

// Gate admits at most one mutation per case at a time and replays
// completed requests instead of executing them again.
type Gate struct {
	flags   Flags
	results Results
	now     func() time.Time
}

func New(flags Flags, results Results) *Gate {
	return &Gate{flags: flags, results: results, now: time.Now}
}

// Submit runs fn under the case's in-flight flag. Concurrent callers for the
// same case fail fast rather than queue. A token seen before returns the
// remembered view without running fn.
func (g *Gate) Submit(ctx context.Context, req Request, fn func(ctx context.Context) (models.CaseView, error)) (models.CaseView, error) {
	if req.Token == "" {
		return models.CaseView{}, ErrTokenRequired
	}

	release, err := g.flags.Acquire(ctx, req.CaseID)
	if err != nil {
		return models.CaseView{}, err
	}
	defer release()

	prior, err := g.results.Lookup(ctx, req.CaseID, req.Token)
	if err != nil {
		return models.CaseView{}, fmt.Errorf("%w: %w", ErrResultsUnavailable, err)
	}
	if prior != nil {
		if prior.Fingerprint != req.Fingerprint {
			return models.CaseView{}, ErrTokenReused
		}
		slog.Debug("replaying completed request", "case_id", req.CaseID)
		return prior.View, nil
	}

	view, err := fn(ctx)
	if err != nil {
		return models.CaseView{}, err
	}

	// The transition is already committed; a lost receipt only costs replay.
	if err := g.results.Remember(ctx, req.CaseID, req.Token, Completion{
		Fingerprint: req.Fingerprint,
		View:        view,
		CompletedAt: g.now(),
	}); err != nil {
		slog.Warn("failed to remember completed request", "case_id", req.CaseID, "error", err)
	}

	return view, nil
}

// Fingerprint hashes the parts of a request that must match on replay.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
