// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/socmon/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate")
)

// UserRepository persists registered accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
}

// LogRepository persists the append-only security log. Entries are never
// deleted and only their status may change.
type LogRepository interface {
	CreateLogEntry(ctx context.Context, arg CreateLogEntryParams) (model.LogEntry, error)
	GetLogEntry(ctx context.Context, id int64) (model.LogEntry, error)
	// ListRecentByAction returns at most limit entries for username with the
	// given action and an id greater than afterID, newest first.
	ListRecentByAction(ctx context.Context, arg ListRecentByActionParams) ([]model.LogEntry, error)
	// LatestEntryID returns the id of the newest entry for username with the
	// given action, or 0 when there is none.
	LatestEntryID(ctx context.Context, username, action string) (int64, error)
	ListLogEntries(ctx context.Context, filter LogFilter) ([]model.LogEntry, error)
	CloseLogEntry(ctx context.Context, id int64) error
	CountUnclosedBySeverity(ctx context.Context) (map[model.Severity]int64, error)
}

// Store bundles both repositories and runs log operations atomically.
type Store interface {
	UserRepository
	LogRepository
	// WithinTx runs fn against a transaction-scoped LogRepository. The
	// transaction is committed when fn returns nil and rolled back otherwise.
	WithinTx(ctx context.Context, fn func(LogRepository) error) error
}

// CreateUserParams holds the columns of a new users row.
type CreateUserParams struct {
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// CreateLogEntryParams holds the columns of a new log_entries row.
type CreateLogEntryParams struct {
	Username  string
	Action    string
	IP        string
	UserAgent string
	CreatedAt time.Time
	Severity  model.Severity
	Status    model.Status
}

// ListRecentByActionParams selects the newest entries of one kind for a user.
type ListRecentByActionParams struct {
	Username string
	Action   string
	AfterID  int64
	Limit    int
}

// LogFilter narrows ListLogEntries. Zero values disable a criterion.
type LogFilter struct {
	Username    string
	MinSeverity model.Severity
	Status      model.Status
	Limit       int
	Offset      int
}

// SQLStore is the SQLite-backed Store.
type SQLStore struct {
	*Queries
	db *sql.DB
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{Queries: New(db), db: db}
}

// WithinTx implements Store.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(LogRepository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(s.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite uniqueness failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
