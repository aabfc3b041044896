// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/danielhkuo/commission-negotiation/db"
	"github.com/danielhkuo/commission-negotiation/models"
)

var (
	ErrCaseNotFound   = errors.New("case not found")
	ErrStaleCase      = errors.New("case was modified concurrently")
	ErrOpenCaseExists = errors.New("seller already has an open case")
)

// Store persists negotiation cases and their history.
type Store struct {
	conn    *sql.DB
	dialect db.Dialect
}

func New(conn *sql.DB, dialect db.Dialect) *Store {
	return &Store{conn: conn, dialect: dialect}
}

func (s *Store) q(query string) string {
	return db.Rebind(s.dialect, query)
}

// Create inserts a new case with its opening history. A seller may hold at
// most one open case.
func (s *Store) Create(ctx context.Context, c *models.NegotiationCase) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Early exit only; the open-seller unique index decides under a race
	var open int
	err = tx.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*) FROM negotiation_case
		WHERE seller_id = ? AND status IN ('pending', 'counter_offered')
	`), c.SellerID).Scan(&open)
	if err != nil {
		return fmt.Errorf("check open cases: %w", err)
	}
	if open > 0 {
		return ErrOpenCaseExists
	}

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO negotiation_case
			(id, seller_id, status, current_rate, counter_rate, counter_reason,
			 rounds_used, max_rounds, version, created_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), c.ID, c.SellerID, string(c.Status), c.CurrentRate, c.CounterRate, c.CounterReason,
		c.Round, c.MaxRounds, len(c.History), c.CreatedAt.UTC(), c.LastActivityAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOpenCaseExists
		}
		return fmt.Errorf("insert case: %w", err)
	}

	if err := s.insertHistory(ctx, tx, c.ID, c.History); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	c.Version = len(c.History)
	return nil
}

// Load reads a case with its full history. Round is rebuilt from history.
func (s *Store) Load(ctx context.Context, id string) (*models.NegotiationCase, error) {
	c, err := scanCase(s.conn.QueryRowContext(ctx, s.q(`
		SELECT id, seller_id, status, current_rate, counter_rate, counter_reason,
		       rounds_used, max_rounds, version, created_at, last_activity_at
		FROM negotiation_case WHERE id = ?
	`), id))
	if err == sql.ErrNoRows {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load case: %w", err)
	}

	history, err := s.loadHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	c.History = history
	c.Round = models.RoundFromHistory(history)
	c.Version = len(history)
	return c, nil
}

// Save writes the case and appends any history entries beyond Version in one
// transaction. It fails with ErrStaleCase if another writer saved first.
func (s *Store) Save(ctx context.Context, c *models.NegotiationCase) error {
	if c.Version > len(c.History) {
		return fmt.Errorf("case %s: version %d ahead of history", c.ID, c.Version)
	}
	fresh := c.History[c.Version:]

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE negotiation_case
		SET status = ?, current_rate = ?, counter_rate = ?, counter_reason = ?,
		    rounds_used = ?, version = ?, last_activity_at = ?
		WHERE id = ? AND version = ?
	`), string(c.Status), c.CurrentRate, c.CounterRate, c.CounterReason,
		c.Round, len(c.History), c.LastActivityAt.UTC(), c.ID, c.Version)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if n == 0 {
		return ErrStaleCase
	}

	if err := s.insertHistory(ctx, tx, c.ID, fresh); err != nil {
		if isUniqueViolation(err) {
			return ErrStaleCase
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	c.Version = len(c.History)
	return nil
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status   models.Status
	SellerID string
	Limit    int
}

// List returns cases without history, most recently active first.
func (s *Store) List(ctx context.Context, f Filter) ([]*models.NegotiationCase, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.SellerID != "" {
		where = append(where, "seller_id = ?")
		args = append(args, f.SellerID)
	}

	query := `
		SELECT id, seller_id, status, current_rate, counter_rate, counter_reason,
		       rounds_used, max_rounds, version, created_at, last_activity_at
		FROM negotiation_case`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY last_activity_at DESC, id"
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.conn.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	cases := []*models.NegotiationCase{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (s *Store) insertHistory(ctx context.Context, tx *sql.Tx, caseID string, entries []models.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO negotiation_history
			(id, case_id, seq, action, actor_role, actor_id, rate, reason, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx, e.ID, caseID, e.Seq, string(e.Action), string(e.Actor),
			e.ActorID, e.Rate, e.Reason, e.At.UTC())
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return nil
}

func (s *Store) loadHistory(ctx context.Context, caseID string) ([]models.HistoryEntry, error) {
	rows, err := s.conn.QueryContext(ctx, s.q(`
		SELECT id, seq, action, actor_role, actor_id, rate, reason, occurred_at
		FROM negotiation_history WHERE case_id = ? ORDER BY seq
	`), caseID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	history := []models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		var action, role string
		if err := rows.Scan(&e.ID, &e.Seq, &action, &role, &e.ActorID, &e.Rate, &e.Reason, timeScanner{&e.At}); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Action = models.Action(action)
		e.Actor = models.Role(role)
		history = append(history, e)
	}
	return history, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*models.NegotiationCase, error) {
	var c models.NegotiationCase
	var status string
	err := row.Scan(&c.ID, &c.SellerID, &status, &c.CurrentRate, &c.CounterRate, &c.CounterReason,
		&c.Round, &c.MaxRounds, &c.Version, timeScanner{&c.CreatedAt}, timeScanner{&c.LastActivityAt})
	if err != nil {
		return nil, err
	}
	st, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	c.Status = st
	return &c, nil
}
