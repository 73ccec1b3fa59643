// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound means no subscription matched.
var ErrNotFound = errors.New("subscription not found")

// timeLayout is fixed-width so stored times compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store persists subscriptions and the works already sent to them.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path and its schema.
// The path ":memory:" opens a private in-memory database.
func OpenStore(path string) (*Store, error) {
	dsn := "file::memory:?_foreign_keys=on"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			name TEXT NOT NULL,
			abstracts TEXT NOT NULL,
			keywords TEXT NOT NULL,
			verified INTEGER NOT NULL DEFAULT 0,
			verification_token TEXT NOT NULL UNIQUE,
			active INTEGER NOT NULL DEFAULT 1,
			frequency TEXT NOT NULL,
			last_sent_at TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_due ON subscriptions(verified, active, frequency, last_sent_at)`,
		`CREATE TABLE IF NOT EXISTS sent_works (
			subscription_id TEXT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
			work_id TEXT NOT NULL,
			sent_at TEXT NOT NULL,
			PRIMARY KEY (subscription_id, work_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sent_works_sent_at ON sent_works(subscription_id, sent_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Add inserts a new subscription.
func (s *Store) Add(ctx context.Context, sub Subscription) error {
	abstractsJSON, _ := json.Marshal(nonNil(sub.Abstracts))
	keywordsJSON, _ := json.Marshal(nonNil(sub.Keywords))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions
			(id, email, name, abstracts, keywords, verified, verification_token, active, frequency, last_sent_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Email, sub.Name, string(abstractsJSON), string(keywordsJSON),
		sub.Verified, sub.VerificationToken, sub.Active, string(sub.Frequency),
		formatTime(sub.LastSentAt), sub.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting subscription %s: %w", sub.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, email, name, abstracts, keywords, verified, verification_token,
	active, frequency, last_sent_at, created_at FROM subscriptions`

// Get returns the subscription with id.
func (s *Store) Get(ctx context.Context, id string) (Subscription, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sub, err
}

// List returns every subscription, oldest first.
func (s *Store) List(ctx context.Context) ([]Subscription, error) {
	return s.query(ctx, selectColumns+` ORDER BY created_at, id`)
}

// ListDue returns verified, active, weekly subscriptions never sent or last
// sent before now minus interval, oldest first.
func (s *Store) ListDue(ctx context.Context, now time.Time, interval time.Duration) ([]Subscription, error) {
	cutoff := now.Add(-interval).UTC().Format(timeLayout)
	return s.query(ctx, selectColumns+`
		WHERE verified = 1 AND active = 1 AND frequency = ?
		  AND (last_sent_at IS NULL OR last_sent_at < ?)
		ORDER BY created_at, id`,
		string(FrequencyWeekly), cutoff,
	)
}

// Verify marks the subscription holding token as verified.
func (s *Store) Verify(ctx context.Context, token string) (Subscription, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET verified = 1 WHERE verification_token = ?`, token)
	if err != nil {
		return Subscription{}, fmt.Errorf("verifying subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Subscription{}, fmt.Errorf("%w: unknown verification token", ErrNotFound)
	}

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE verification_token = ?`, token)
	return scanSubscription(row)
}

// Deactivate stops digests for id.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE subscriptions SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivating subscription %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SentWorkIDs returns the works already sent to subscription id.
func (s *Store) SentWorkIDs(ctx context.Context, id string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT work_id FROM sent_works WHERE subscription_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying sent works: %w", err)
	}
	defer rows.Close()

	sent := make(map[string]bool)
	for rows.Next() {
		var wid string
		if err := rows.Scan(&wid); err != nil {
			return nil, fmt.Errorf("scanning sent work: %w", err)
		}
		sent[wid] = true
	}
	return sent, rows.Err()
}

// RecordSent records works as sent to subscription id. Works already
// recorded keep their original time.
func (s *Store) RecordSent(ctx context.Context, id string, workIDs []string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := recordSent(ctx, tx, id, workIDs, at); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkSent records the delivered works and sets last_sent_at in one
// transaction.
func (s *Store) MarkSent(ctx context.Context, id string, workIDs []string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := recordSent(ctx, tx, id, workIDs, at); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET last_sent_at = ? WHERE id = ?`, at.UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("updating last_sent_at: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

func recordSent(ctx context.Context, tx *sql.Tx, id string, workIDs []string, at time.Time) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO sent_works (subscription_id, work_id, sent_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	ts := at.UTC().Format(timeLayout)
	for _, wid := range workIDs {
		if _, err := stmt.ExecContext(ctx, id, wid, ts); err != nil {
			return fmt.Errorf("recording sent work %s: %w", wid, err)
		}
	}
	return nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(sc scanner) (Subscription, error) {
	var (
		sub                  Subscription
		abstracts, keywords  string
		frequency, createdAt string
		lastSent             sql.NullString
	)
	err := sc.Scan(&sub.ID, &sub.Email, &sub.Name, &abstracts, &keywords, &sub.Verified,
		&sub.VerificationToken, &sub.Active, &frequency, &lastSent, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subscription{}, err
		}
		return Subscription{}, fmt.Errorf("scanning subscription: %w", err)
	}

	if err := json.Unmarshal([]byte(abstracts), &sub.Abstracts); err != nil {
		return Subscription{}, fmt.Errorf("decoding abstracts of %s: %w", sub.ID, err)
	}
	if err := json.Unmarshal([]byte(keywords), &sub.Keywords); err != nil {
		return Subscription{}, fmt.Errorf("decoding keywords of %s: %w", sub.ID, err)
	}
	sub.Frequency = Frequency(frequency)
	if sub.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Subscription{}, fmt.Errorf("parsing created_at of %s: %w", sub.ID, err)
	}
	if lastSent.Valid && lastSent.String != "" {
		if sub.LastSentAt, err = time.Parse(timeLayout, lastSent.String); err != nil {
			return Subscription{}, fmt.Errorf("parsing last_sent_at of %s: %w", sub.ID, err)
		}
	}
	return sub, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
