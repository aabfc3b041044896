// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/commission-negotiation/cliparse"
	"github.com/danielhkuo/commission-negotiation/handlers"
	"github.com/danielhkuo/commission-negotiation/middleware"
	"github.com/danielhkuo/commission-negotiation/service"
)

func NewRouter(svc *service.Service, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	negotiationHandler := handlers.NewNegotiationHandler(svc, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Case management (platform)
	mux.HandleFunc("POST /cases", middleware.WithLogging(negotiationHandler.OpenCase))
	mux.HandleFunc("GET /cases", middleware.WithLogging(negotiationHandler.ListCases))
	mux.HandleFunc("GET /cases/{id}/history", middleware.WithLogging(negotiationHandler.History))

	// Negotiation (seller or platform)
	mux.HandleFunc("GET /cases/{id}", middleware.WithLogging(negotiationHandler.GetCase))
	mux.HandleFunc("POST /cases/{id}/accept", middleware.WithLogging(negotiationHandler.Accept))
	mux.HandleFunc("POST /cases/{id}/counter", middleware.WithLogging(negotiationHandler.Counter))
	mux.HandleFunc("POST /cases/{id}/reject", middleware.WithLogging(negotiationHandler.Reject))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("commission-negotiation API v1"))
	})

	return mux
}
