// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package service orchestrates commission negotiations.

Every mutation follows the same path:

	gate (single-flight + replay) → load → authorize → machine → save → publish

The gate runs first so that a retried request token is answered from the
receipt without touching the database. If the process stops after save but
before the receipt is written, a retry re-executes against the saved case: a
repeated counter then fails with ErrIllegalTransition and a repeated accept
or reject with ErrCaseClosed, so no transition is ever applied twice.

# Roles

The seller may accept, counter or reject a pending case and may withdraw
(reject) while its counter is under review. The platform answers counters
with accept, counter (a new offer) or reject, and may withdraw a pending
offer. Sellers only see their own cases; history and listing are
platform-only.

# Errors

  - ErrNotFound, ErrForbidden
  - ErrPersistence wraps any storage failure, including store.ErrStaleCase
  - negotiation errors (*RateError, *ReasonError, ErrCaseClosed,
    ErrMaxRoundsReached, ErrIllegalTransition) pass through unchanged
  - gate errors (ErrAlreadyInFlight, ErrTokenRequired, ErrTokenReused)
*/
package service
