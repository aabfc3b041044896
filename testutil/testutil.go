// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/commission-negotiation/auth"
	"github.com/danielhkuo/commission-negotiation/cliparse"
	"github.com/danielhkuo/commission-negotiation/db"
)

// TestPlatformKey is the platform secret used by GetTestConfig
const TestPlatformKey = "test-platform-key"

// SetupTestDB creates a fresh SQLite database with the full schema in a
// per-test temp directory. It is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.SQLite, filepath.Join(t.TempDir(), "negotiation.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn, db.SQLite); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3318,
		DatabaseURL:    ":memory:",
		DatabaseType:   string(db.SQLite),
		PlatformKey:    TestPlatformKey,
		SellerKeySalt:  "test-seller-salt",
		GateBackend:    "memory",
		ResultsBackend: "memory",
		IdempotencyTTL: time.Hour,
		InFlightTTL:    30 * time.Second,
	}
}

// SellerHeaders returns the headers a seller sends for caseID
func SellerHeaders(cfg cliparse.Config, caseID, sellerID string) map[string]string {
	return map[string]string{
		"X-Seller-ID":  sellerID,
		"X-Seller-Key": auth.GenerateSellerKey(caseID, sellerID, cfg.SellerKeySalt),
	}
}

// PlatformHeaders returns the headers the platform operator sends
func PlatformHeaders(cfg cliparse.Config) map[string]string {
	return map[string]string{
		"X-Platform-Key": cfg.PlatformKey,
		"X-Actor-ID":     "ops-test",
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
