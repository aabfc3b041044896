// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Domain Types

  - NegotiationCase: one seller-platform commission agreement
  - HistoryEntry: one recorded action (offer, counter, reoffer, accept, reject)
  - Actor: the authenticated caller and its Role

Rates are github.com/shopspring/decimal values, so 12.5 stays 12.5.

# Status

	pending ──counter──► counter_offered ──reoffer──► pending
	   │                       │
	   └─accept/reject─► accepted | rejected ◄─accept/reject─┘

Accepted and rejected are terminal.

# Request Types

  - OpenCaseRequest: seller_id, initial_rate
  - AcceptRequest: request_token
  - CounterRequest: request_token, candidate_rate, reason
  - RejectRequest: request_token, reason

Rates decode through RateInput, which accepts numbers or strings and leaves
validation to the negotiation package.

# Response Types

  - CaseView: the read projection, including allowed_actions for the caller
  - OpenCaseResponse: case and seller_key
  - ListCasesResponse, HistoryResponse
  - ErrorResponse: error, message, code
*/
package models
