// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth distinguishes the seller from the platform.

# Seller Keys

Seller keys use HMAC-SHA256 over the case ID and seller ID:

	key := auth.GenerateSellerKey(caseID, sellerID, salt)
	err := auth.ValidateSellerKey(caseID, sellerID, key, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
it is never stored; the platform hands it to the seller when the case is
opened and the seller presents it as X-Seller-Key together with X-Seller-ID.

# Platform Key

The platform operator presents the configured secret as X-Platform-Key:

	err := auth.ValidatePlatformKey(r.Header.Get("X-Platform-Key"), cfg.PlatformKey)

# Request Tokens

Random 18-byte tokens, URL-safe base64 encoded:

	token, err := auth.GenerateRequestToken()

GET /cases/{id} returns a fresh one in the X-Request-Token header so a form
can submit it with the next mutation and retry safely.
*/
package auth
