// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/commission-negotiation/auth"
	"github.com/danielhkuo/commission-negotiation/gate"
	"github.com/danielhkuo/commission-negotiation/middleware"
	"github.com/danielhkuo/commission-negotiation/negotiation"
	"github.com/danielhkuo/commission-negotiation/service"
)

// writeError maps a domain error to a status code and a machine-readable code.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "code", code, "error", err)
	}
	middleware.CodedErrorResponse(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	var rateErr *negotiation.RateError
	var reasonErr *negotiation.ReasonError

	switch {
	// Validation
	case errors.As(err, &rateErr):
		return http.StatusUnprocessableEntity, string(rateErr.Kind)
	case errors.As(err, &reasonErr):
		return http.StatusUnprocessableEntity, string(reasonErr.Kind)

	// Protocol
	case errors.Is(err, negotiation.ErrCaseClosed):
		return http.StatusConflict, "case_closed"
	case errors.Is(err, negotiation.ErrMaxRoundsReached):
		return http.StatusConflict, "max_rounds_reached"
	case errors.Is(err, negotiation.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"

	// Concurrency and idempotency
	case errors.Is(err, gate.ErrAlreadyInFlight):
		return http.StatusTooManyRequests, "already_in_flight"
	case errors.Is(err, gate.ErrTokenRequired):
		return http.StatusBadRequest, "token_required"
	case errors.Is(err, gate.ErrTokenReused):
		return http.StatusConflict, "token_reused"

	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrOpenCaseExists):
		return http.StatusConflict, "open_case_exists"
	case errors.Is(err, service.ErrSellerRequired):
		return http.StatusBadRequest, "seller_required"

	// Identity
	case errors.Is(err, errCredentialsRequired),
		errors.Is(err, auth.ErrInvalidPlatformKey),
		errors.Is(err, auth.ErrInvalidSellerKey):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"

	case errors.Is(err, service.ErrPersistence),
		errors.Is(err, gate.ErrResultsUnavailable):
		return http.StatusServiceUnavailable, "persistence"
	}
	return http.StatusInternalServerError, "internal"
}
