// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package negotiation holds the commission negotiation protocol: rate and reason
validation and the state machine for a single case.

# States

A case is always in exactly one of four states:

	pending ──counter──▶ counter_offered
	   ▲                      │
	   └──────counter─────────┘   (platform re-offer, no round consumed)

	pending | counter_offered ──accept──▶ accepted   (terminal)
	pending | counter_offered ──reject──▶ rejected   (terminal)

Counter from pending is the seller's move and increments the round; once
Round reaches MaxRounds it fails with ErrMaxRoundsReached. Any action on a
terminal case fails with ErrCaseClosed.

# Validation

	rate, err := policy.ValidateRate("15", current)   // [1, 50] and < current
	why, err := policy.ValidateReason(text)           // >= 10 characters
	why, err := policy.ValidateRejectReason(text)     // >= 5 characters

Failures are *RateError or *ReasonError values and can be matched by kind:

	errors.Is(err, &negotiation.RateError{Kind: negotiation.NotLowerThanCurrent})

# Roles

Permitted and AllowedActions decide which party may drive an edge. The
machine itself only records the actor in history.
*/
package negotiation
