// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielhkuo/commission-negotiation/gate"
)

// Results keeps completed request receipts in the request_receipt table so
// replays survive restarts and are shared between replicas.
type Results struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

// NewResults stores receipts for ttl; zero keeps them until purged by hand.
func (s *Store) NewResults(ttl time.Duration) *Results {
	return &Results{store: s, ttl: ttl, now: time.Now}
}

func (r *Results) Lookup(ctx context.Context, caseID, token string) (*gate.Completion, error) {
	var (
		c         gate.Completion
		viewJSON  []byte
		expiresAt time.Time
	)
	err := r.store.conn.QueryRowContext(ctx, r.store.q(`
		SELECT fingerprint, view_json, completed_at, expires_at
		FROM request_receipt WHERE case_id = ? AND request_token = ?
	`), caseID, token).Scan(&c.Fingerprint, &viewJSON, timeScanner{&c.CompletedAt}, timeScanner{&expiresAt})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup receipt: %w", err)
	}
	if !expiresAt.IsZero() && r.now().After(expiresAt) {
		return nil, nil
	}
	if err := json.Unmarshal(viewJSON, &c.View); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &c, nil
}

// Remember records a receipt. A receipt already present for the same key is
// left alone; the first completion wins.
func (r *Results) Remember(ctx context.Context, caseID, token string, c gate.Completion) error {
	viewJSON, err := json.Marshal(c.View)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	var expires any
	if r.ttl > 0 {
		expires = r.now().Add(r.ttl).UTC()
	}

	_, err = r.store.conn.ExecContext(ctx, r.store.q(`
		INSERT INTO request_receipt
			(case_id, request_token, fingerprint, view_json, completed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), caseID, token, c.Fingerprint, string(viewJSON), c.CompletedAt.UTC(), expires)
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// PurgeExpired deletes receipts past their expiry and reports how many.
func (r *Results) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.store.conn.ExecContext(ctx, r.store.q(`
		DELETE FROM request_receipt WHERE expires_at IS NOT NULL AND expires_at < ?
	`), r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge receipts: %w", err)
	}
	return res.RowsAffected()
}
