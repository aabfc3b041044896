// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielhkuo/commission-negotiation/auth"
	"github.com/danielhkuo/commission-negotiation/cliparse"
	"github.com/danielhkuo/commission-negotiation/middleware"
	"github.com/danielhkuo/commission-negotiation/models"
	"github.com/danielhkuo/commission-negotiation/service"
	"github.com/danielhkuo/commission-negotiation/store"
)

var errCredentialsRequired = errors.New("X-Platform-Key or X-Seller-Key header required")

type NegotiationHandler struct {
	svc *service.Service
	cfg cliparse.Config
}

func NewNegotiationHandler(svc *service.Service, cfg cliparse.Config) *NegotiationHandler {
	return &NegotiationHandler{svc: svc, cfg: cfg}
}

// actor resolves the caller from identity headers. Seller keys are bound to
// one case, so caseID must be the case the request targets ("" for routes
// without one, which only the platform may call).
func (h *NegotiationHandler) actor(r *http.Request, caseID string) (models.Actor, error) {
	if key := r.Header.Get("X-Platform-Key"); key != "" {
		if err := auth.ValidatePlatformKey(key, h.cfg.PlatformKey); err != nil {
			return models.Actor{}, err
		}
		id := strings.TrimSpace(r.Header.Get("X-Actor-ID"))
		if id == "" {
			id = "platform"
		}
		return models.Actor{Role: models.RolePlatform, ID: id}, nil
	}

	key := r.Header.Get("X-Seller-Key")
	if key == "" {
		return models.Actor{}, errCredentialsRequired
	}
	if caseID == "" {
		return models.Actor{}, service.ErrForbidden
	}
	sellerID := strings.TrimSpace(r.Header.Get("X-Seller-ID"))
	if err := auth.ValidateSellerKey(caseID, sellerID, key, h.cfg.SellerKeySalt); err != nil {
		return models.Actor{}, err
	}
	return models.Actor{Role: models.RoleSeller, ID: sellerID}, nil
}

// requestToken prefers the body field and falls back to Idempotency-Key
func requestToken(r *http.Request, fromBody string) string {
	if t := strings.TrimSpace(fromBody); t != "" {
		return t
	}
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

// GetCase handles GET /cases/{id}
func (h *NegotiationHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")
	if caseID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "case id is required")
		return
	}

	actor, err := h.actor(r, caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.svc.GetView(r.Context(), actor, caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	// Hand out a fresh token for the caller's next mutation
	if token, err := auth.GenerateRequestToken(); err != nil {
		slog.Warn("failed to generate request token", "error", err)
	} else {
		w.Header().Set("X-Request-Token", token)
	}

	middleware.JSONResponse(w, http.StatusOK, view)
}

// Accept handles POST /cases/{id}/accept
func (h *NegotiationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")
	actor, err := h.actor(r, caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	var req models.AcceptRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	view, err := h.svc.AcceptOffer(r.Context(), actor, caseID, requestToken(r, req.RequestToken))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, view)
}

// Counter handles POST /cases/{id}/counter
func (h *NegotiationHandler) Counter(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")
	actor, err := h.actor(r, caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	var req models.CounterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	view, err := h.svc.CounterOffer(r.Context(), actor, caseID,
		requestToken(r, req.RequestToken), string(req.CandidateRate), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, view)
}

// Reject handles POST /cases/{id}/reject
func (h *NegotiationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")
	actor, err := h.actor(r, caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	var req models.RejectRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	view, err := h.svc.RejectOffer(r.Context(), actor, caseID, requestToken(r, req.RequestToken), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, view)
}

// OpenCase handles POST /cases
func (h *NegotiationHandler) OpenCase(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r, "")
	if err != nil {
		writeError(w, err)
		return
	}

	var req models.OpenCaseRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	view, err := h.svc.OpenCase(r.Context(), actor, req.SellerID, string(req.InitialRate))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.OpenCaseResponse{
		Case:      view,
		SellerKey: auth.GenerateSellerKey(view.CaseID, view.SellerID, h.cfg.SellerKeySalt),
	})
}

// ListCases handles GET /cases
func (h *NegotiationHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r, "")
	if err != nil {
		writeError(w, err)
		return
	}

	query := r.URL.Query()
	filter := store.Filter{SellerID: strings.TrimSpace(query.Get("seller_id"))}
	if s := query.Get("status"); s != "" {
		status, err := models.ParseStatus(s)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}
	if l := query.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	views, err := h.svc.ListCases(r.Context(), actor, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ListCasesResponse{Cases: views})
}

// History handles GET /cases/{id}/history
func (h *NegotiationHandler) History(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")
	actor, err := h.actor(r, caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.svc.History(r.Context(), actor, caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.HistoryResponse{CaseID: caseID, Entries: entries})
}
