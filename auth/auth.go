// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSellerKey   = errors.New("invalid seller key")
	ErrInvalidPlatformKey = errors.New("invalid platform key")
)

// GenerateSellerKey creates an HMAC-based access key binding a seller to one case
// This is deterministic and verifiable
func GenerateSellerKey(caseID, sellerID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(caseID))
	h.Write([]byte{0})
	h.Write([]byte(sellerID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateSellerKey checks if the provided key was issued for this seller and case
func ValidateSellerKey(caseID, sellerID, key, salt string) error {
	if key == "" || sellerID == "" {
		return ErrInvalidSellerKey
	}
	expected := GenerateSellerKey(caseID, sellerID, salt)
	if !hmac.Equal([]byte(key), []byte(expected)) {
		return ErrInvalidSellerKey
	}
	return nil
}

// ValidatePlatformKey compares against the configured platform secret
// An unset secret never validates
func ValidatePlatformKey(provided, expected string) error {
	if expected == "" || !hmac.Equal([]byte(provided), []byte(expected)) {
		return ErrInvalidPlatformKey
	}
	return nil
}

// GenerateRequestToken creates a random token a client can attach to its next mutation
func GenerateRequestToken() (string, error) {
	b := make([]byte, 18) // 144 bits
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate request token: %w", err)
	}
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}
