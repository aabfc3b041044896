// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package gate serializes mutations per case and makes them idempotent.

A Gate combines two backends:

  - Flags: an in-flight marker per case, taken with a single atomic
    test-and-set. A second caller for the same case gets ErrAlreadyInFlight
    immediately; there is no queueing.
  - Results: completed mutations keyed by (case ID, request token). A retried
    request with the same token returns the remembered view without running
    again. The same token with a different payload is ErrTokenReused.

Only successful outcomes are remembered, so a request rejected by validation
can be corrected and resubmitted under the same token.

The in-memory backends here serve a single process. The cache package
provides Redis backends and the store package a SQL results table for
deployments with more than one replica.

Usage:

	g := gate.New(gate.NewMemoryFlags(), gate.NewMemoryResults(24*time.Hour))
	view, err := g.Submit(ctx, gate.Request{
		CaseID:      id,
		Token:       token,
		Fingerprint: gate.Fingerprint("counter", "15", reason),
	}, func(ctx context.Context) (models.CaseView, error) {
		// load, transition, save
	})
*/
package gate
