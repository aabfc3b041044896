// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the commission negotiation API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(svc, cfg)

# Endpoints

Health:

	GET /health

Case management (platform, requires X-Platform-Key):

	POST /cases              - Open a case, returns the seller key
	GET  /cases              - Review queue (?status=&seller_id=&limit=)
	GET  /cases/{id}/history - Audit trail

Negotiation (X-Platform-Key, or X-Seller-ID with X-Seller-Key):

	GET  /cases/{id}         - Current view, plus a fresh X-Request-Token
	POST /cases/{id}/accept  - Accept the rate on the table
	POST /cases/{id}/counter - Counter (seller) or re-offer (platform)
	POST /cases/{id}/reject  - Reject or withdraw

Every mutation carries a request token in the body or the Idempotency-Key
header.

# Handler Initialization

The router creates one NegotiationHandler over the service:

	negotiationHandler := handlers.NewNegotiationHandler(svc, cfg)
*/
package router
