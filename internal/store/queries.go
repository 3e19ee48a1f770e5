// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/olegiv/socmon/internal/model"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs the application's SQL against a DBTX.
type Queries struct {
	db DBTX
}

// New returns Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const createUser = `INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error) {
	res, err := q.db.ExecContext(ctx, createUser, arg.Username, arg.PasswordHash, arg.Role, arg.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ErrDuplicate
		}
		return model.User{}, fmt.Errorf("inserting user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("reading user id: %w", err)
	}
	return model.User{
		ID:           id,
		Username:     arg.Username,
		PasswordHash: arg.PasswordHash,
		Role:         arg.Role,
		CreatedAt:    arg.CreatedAt.UTC(),
	}, nil
}

const userColumns = `id, username, password_hash, role, created_at`

const getUserByUsername = `SELECT ` + userColumns + ` FROM users WHERE username = ?`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByUsername, username))
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const updateUserPassword = `UPDATE users SET password_hash = ? WHERE id = ?`

func (q *Queries) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := q.db.ExecContext(ctx, updateUserPassword, passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("scanning user: %w", err)
	}
	return u, nil
}

const createLogEntry = `INSERT INTO log_entries (username, action, ip, user_agent, created_at, severity, status)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateLogEntry(ctx context.Context, arg CreateLogEntryParams) (model.LogEntry, error) {
	res, err := q.db.ExecContext(ctx, createLogEntry,
		arg.Username, arg.Action, arg.IP, arg.UserAgent, arg.CreatedAt.UTC(),
		string(arg.Severity), string(arg.Status))
	if err != nil {
		return model.LogEntry{}, fmt.Errorf("inserting log entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.LogEntry{}, fmt.Errorf("reading log entry id: %w", err)
	}
	return model.LogEntry{
		ID:        id,
		Username:  arg.Username,
		Action:    arg.Action,
		IP:        arg.IP,
		UserAgent: arg.UserAgent,
		Time:      arg.CreatedAt.UTC(),
		Severity:  arg.Severity,
		Status:    arg.Status,
	}, nil
}

const logEntryColumns = `id, username, action, ip, user_agent, created_at, severity, status`

const getLogEntry = `SELECT ` + logEntryColumns + ` FROM log_entries WHERE id = ?`

func (q *Queries) GetLogEntry(ctx context.Context, id int64) (model.LogEntry, error) {
	rows, err := q.db.QueryContext(ctx, getLogEntry, id)
	if err != nil {
		return model.LogEntry{}, fmt.Errorf("querying log entry: %w", err)
	}
	entries, err := scanLogEntries(rows)
	if err != nil {
		return model.LogEntry{}, err
	}
	if len(entries) == 0 {
		return model.LogEntry{}, ErrNotFound
	}
	return entries[0], nil
}

const listRecentByAction = `SELECT ` + logEntryColumns + ` FROM log_entries
WHERE username = ? AND action = ? AND id > ?
ORDER BY id DESC
LIMIT ?`

func (q *Queries) ListRecentByAction(ctx context.Context, arg ListRecentByActionParams) ([]model.LogEntry, error) {
	rows, err := q.db.QueryContext(ctx, listRecentByAction, arg.Username, arg.Action, arg.AfterID, arg.Limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent entries: %w", err)
	}
	return scanLogEntries(rows)
}

const latestEntryID = `SELECT COALESCE(MAX(id), 0) FROM log_entries WHERE username = ? AND action = ?`

func (q *Queries) LatestEntryID(ctx context.Context, username, action string) (int64, error) {
	var id int64
	if err := q.db.QueryRowContext(ctx, latestEntryID, username, action).Scan(&id); err != nil {
		return 0, fmt.Errorf("querying latest entry: %w", err)
	}
	return id, nil
}

func (q *Queries) ListLogEntries(ctx context.Context, filter LogFilter) ([]model.LogEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Username != "" {
		where = append(where, "username = ?")
		args = append(args, filter.Username)
	}
	if filter.MinSeverity != "" {
		var placeholders []string
		for _, s := range model.Severities {
			if s.AtLeast(filter.MinSeverity) {
				placeholders = append(placeholders, "?")
				args = append(args, string(s))
			}
		}
		where = append(where, "severity IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + logEntryColumns + ` FROM log_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing log entries: %w", err)
	}
	return scanLogEntries(rows)
}

const closeLogEntry = `UPDATE log_entries SET status = 'Closed' WHERE id = ? AND status != 'Closed'`

// CloseLogEntry marks an entry Closed. Closing a missing or already closed
// entry is not an error.
func (q *Queries) CloseLogEntry(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, closeLogEntry, id); err != nil {
		return fmt.Errorf("closing log entry: %w", err)
	}
	return nil
}

const countUnclosedBySeverity = `SELECT severity, COUNT(*) FROM log_entries WHERE status != 'Closed' GROUP BY severity`

func (q *Queries) CountUnclosedBySeverity(ctx context.Context) (map[model.Severity]int64, error) {
	rows, err := q.db.QueryContext(ctx, countUnclosedBySeverity)
	if err != nil {
		return nil, fmt.Errorf("counting entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.Severity]int64)
	for rows.Next() {
		var (
			sev string
			n   int64
		)
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[model.Severity(sev)] = n
	}
	return counts, rows.Err()
}

func scanLogEntries(rows *sql.Rows) ([]model.LogEntry, error) {
	defer func() { _ = rows.Close() }()

	var entries []model.LogEntry
	for rows.Next() {
		var (
			e           model.LogEntry
			sev, status string
		)
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &e.IP, &e.UserAgent, &e.Time, &sev, &status); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		e.Severity = model.Severity(sev)
		e.Status = model.Status(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating log entries: %w", err)
	}
	return entries, nil
}
