// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the commission negotiation API.

# Handler Types

NegotiationHandler serves every case route. It is created over the service
and config:

	h := handlers.NewNegotiationHandler(svc, cfg)

# Identity

The platform sends X-Platform-Key (and optionally X-Actor-ID, recorded in
history). A seller sends X-Seller-ID and the X-Seller-Key returned when the
case was opened; the key only validates for that seller and case.

# Request Tokens

Every mutation needs a request token, either request_token in the body or
the Idempotency-Key header. GET /cases/{id} returns a fresh one in
X-Request-Token. Retrying with the same token and payload returns the
original result; the same token with a different payload is refused.

# Errors

Errors are written as {"error", "message", "code"}:

	422  not_numeric, out_of_range, not_lower_than_current, reason_too_short
	409  case_closed, max_rounds_reached, illegal_transition, token_reused, open_case_exists
	429  already_in_flight (with Retry-After)
	400  token_required, seller_required
	401  unauthorized
	403  forbidden
	404  not_found
	503  persistence
*/
package handlers
