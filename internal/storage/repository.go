package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Sentinel errors returned by repository operations. Callers match them
// with errors.Is.
var (
	// ErrNotFound means no request exists with the given id.
	ErrNotFound = errors.New("request not found")
	// ErrKeyUsed means the redeem key is already recorded in the used-key ledger.
	ErrKeyUsed = errors.New("redeem key already used")
	// ErrAlreadyDecided means the request is in a terminal status.
	ErrAlreadyDecided = errors.New("request already decided")
	// ErrInvalidStatus means the requested transition target is not a decision.
	ErrInvalidStatus = errors.New("invalid status")
)

// Repository handles all database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS redeem_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(100) NOT NULL,
			redeem_key VARCHAR(100) UNIQUE NOT NULL,
			invite_link VARCHAR(255) NOT NULL,
			contact_email VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(10) NOT NULL DEFAULT 'PENDING',
			submitted_at TIMESTAMP NOT NULL,
			submitter_address VARCHAR(64) NOT NULL DEFAULT '',
			submitter_agent VARCHAR(255) NOT NULL DEFAULT '',
			order_id VARCHAR(100) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS used_keys (
			redeem_key VARCHAR(100) PRIMARY KEY,
			used_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cooldowns (
			identity VARCHAR(100) PRIMARY KEY,
			last_request_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_status ON redeem_requests(status)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_origin ON redeem_requests(submitter_address, submitted_at)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// isUniqueViolation reports whether err is a sqlite UNIQUE/PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

// Request operations

// CreateRequest inserts a new PENDING request and burns its redeem key in a
// single transaction, so a duplicate key can never produce both a request
// row and a free key. A duplicate anywhere in the transaction returns
// ErrKeyUsed.
func (r *Repository) CreateRequest(req *RedeemRequest) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	req.Status = StatusPending
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}

	result, err := tx.Exec(
		`INSERT INTO redeem_requests (name, redeem_key, invite_link, contact_email, status, submitted_at, submitter_address, submitter_agent, order_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Name, req.RedeemKey, req.InviteLink, req.ContactEmail, req.Status,
		req.SubmittedAt, req.SubmitterAddress, req.SubmitterAgent, req.OrderID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrKeyUsed
		}
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO used_keys (redeem_key, used_at) VALUES (?, ?)`,
		req.RedeemKey, req.SubmittedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrKeyUsed
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	req.ID = id
	return nil
}

const requestColumns = `id, name, redeem_key, invite_link, contact_email, status, submitted_at, submitter_address, submitter_agent, order_id`

func scanRequest(row interface{ Scan(...any) error }) (*RedeemRequest, error) {
	req := &RedeemRequest{}
	err := row.Scan(
		&req.ID, &req.Name, &req.RedeemKey, &req.InviteLink, &req.ContactEmail,
		&req.Status, &req.SubmittedAt, &req.SubmitterAddress, &req.SubmitterAgent, &req.OrderID,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// GetRequest finds a request by id
func (r *Repository) GetRequest(id int64) (*RedeemRequest, error) {
	req, err := scanRequest(r.db.QueryRow(
		`SELECT `+requestColumns+` FROM redeem_requests WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequests returns requests newest first, optionally filtered by status.
// Pass an empty status to list everything.
func (r *Repository) ListRequests(status Status) ([]*RedeemRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM redeem_requests`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY submitted_at DESC, id DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*RedeemRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// RecentByOrigin returns requests submitted from the given origin at or after
// the cutoff, newest first.
func (r *Repository) RecentByOrigin(origin string, since time.Time) ([]*RedeemRequest, error) {
	rows, err := r.db.Query(
		`SELECT `+requestColumns+` FROM redeem_requests
		 WHERE submitter_address = ? AND submitted_at >= ?
		 ORDER BY submitted_at DESC, id DESC`,
		origin, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*RedeemRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// SetRequestStatus moves a PENDING request to APPROVED or REJECTED. It is the
// sole mutation entrypoint for requests. Returns ErrInvalidStatus for any
// other target, ErrNotFound for an unknown id, and ErrAlreadyDecided when the
// request is already terminal.
func (r *Repository) SetRequestStatus(id int64, status Status) error {
	if status != StatusApproved && status != StatusRejected {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	result, err := r.db.Exec(
		`UPDATE redeem_requests SET status = ? WHERE id = ? AND status = ?`,
		status, id, StatusPending,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Nothing updated: distinguish a missing row from a decided one.
	if _, err := r.GetRequest(id); err != nil {
		return err
	}
	return ErrAlreadyDecided
}

// Used-key ledger operations. The ledger is append-only: there is no delete.

// IsKeyUsed reports whether the redeem key has already been consumed.
func (r *Repository) IsKeyUsed(key string) (bool, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM used_keys WHERE redeem_key = ?`, key).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkKeyUsed records a redeem key as consumed. Returns ErrKeyUsed if the
// key is already in the ledger.
func (r *Repository) MarkKeyUsed(key string, at time.Time) error {
	_, err := r.db.Exec(`INSERT INTO used_keys (redeem_key, used_at) VALUES (?, ?)`, key, at)
	if isUniqueViolation(err) {
		return ErrKeyUsed
	}
	return err
}

// Cooldown operations

// LastAttempt returns the last accepted submission time for an identity.
// The second return value is false when no attempt is recorded.
func (r *Repository) LastAttempt(identity string) (time.Time, bool, error) {
	var at time.Time
	err := r.db.QueryRow(
		`SELECT last_request_at FROM cooldowns WHERE identity = ?`, identity,
	).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// RecordAttempt sets the last accepted submission time for an identity,
// overwriting any prior value.
func (r *Repository) RecordAttempt(identity string, at time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO cooldowns (identity, last_request_at) VALUES (?, ?)
		 ON CONFLICT(identity) DO UPDATE SET last_request_at = excluded.last_request_at`,
		identity, at,
	)
	return err
}

// PurgeCooldowns removes cooldown entries older than the cutoff. Storage
// hygiene only, never required for correctness.
func (r *Repository) PurgeCooldowns(before time.Time) error {
	_, err := r.db.Exec(`DELETE FROM cooldowns WHERE last_request_at < ?`, before)
	return err
}
