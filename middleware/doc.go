// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and response helpers.

# Logging

WithLogging logs the start and end of each request with method, path, client
IP, status and duration:

	mux.HandleFunc("GET /cases/{id}", middleware.WithLogging(h.GetCase))

# Responses

	middleware.JSONResponse(w, http.StatusOK, view)
	middleware.ErrorResponse(w, http.StatusBadRequest, "invalid JSON")
	middleware.CodedErrorResponse(w, http.StatusConflict, "case_closed", err.Error())

Error bodies have the shape {"error", "message", "code"}; code is omitted when
empty.

# CORS

CORS reflects the request origin and allows the identity headers
(X-Seller-ID, X-Seller-Key, X-Platform-Key) and Idempotency-Key. Retry-After
and X-Request-Token are exposed to browsers.

# Client IP

GetClientIP checks X-Forwarded-For, then X-Real-IP, then RemoteAddr.
*/
package middleware
