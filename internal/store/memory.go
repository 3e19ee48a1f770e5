// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/olegiv/socmon/internal/model"
)

// MemoryStore is an in-process Store used by tests and throwaway runs.
// Entries live only as long as the process.
type MemoryStore struct {
	txMu sync.Mutex // serializes WithinTx callers

	mu        sync.RWMutex
	users     []model.User
	entries   []model.LogEntry
	appendErr error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FailAppends makes every following CreateLogEntry return err. A nil err
// restores normal behavior.
func (m *MemoryStore) FailAppends(err error) {
	m.mu.Lock()
	m.appendErr = err
	m.mu.Unlock()
}

// WithinTx implements Store. Transactions are serialized; there is no rollback.
func (m *MemoryStore) WithinTx(_ context.Context, fn func(LogRepository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

func (m *MemoryStore) CreateUser(_ context.Context, arg CreateUserParams) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == arg.Username {
			return model.User{}, ErrDuplicate
		}
	}
	u := model.User{
		ID:           int64(len(m.users) + 1),
		Username:     arg.Username,
		PasswordHash: arg.PasswordHash,
		Role:         arg.Role,
		CreatedAt:    arg.CreatedAt.UTC(),
	}
	m.users = append(m.users, u)
	return u, nil
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *MemoryStore) GetUserByID(_ context.Context, id int64) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id < 1 || id > int64(len(m.users)) {
		return model.User{}, ErrNotFound
	}
	return m.users[id-1], nil
}

func (m *MemoryStore) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 1 || id > int64(len(m.users)) {
		return ErrNotFound
	}
	m.users[id-1].PasswordHash = passwordHash
	return nil
}

func (m *MemoryStore) CreateLogEntry(_ context.Context, arg CreateLogEntryParams) (model.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return model.LogEntry{}, m.appendErr
	}
	e := model.LogEntry{
		ID:        int64(len(m.entries) + 1),
		Username:  arg.Username,
		Action:    arg.Action,
		IP:        arg.IP,
		UserAgent: arg.UserAgent,
		Time:      arg.CreatedAt.UTC(),
		Severity:  arg.Severity,
		Status:    arg.Status,
	}
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *MemoryStore) GetLogEntry(_ context.Context, id int64) (model.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id < 1 || id > int64(len(m.entries)) {
		return model.LogEntry{}, ErrNotFound
	}
	return m.entries[id-1], nil
}

func (m *MemoryStore) ListRecentByAction(_ context.Context, arg ListRecentByActionParams) ([]model.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.LogEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < arg.Limit; i-- {
		e := m.entries[i]
		if e.ID <= arg.AfterID {
			break
		}
		if e.Username == arg.Username && e.Action == arg.Action {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) LatestEntryID(_ context.Context, username, action string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.entries) - 1; i >= 0; i-- {
		if e := m.entries[i]; e.Username == username && e.Action == action {
			return e.ID, nil
		}
	}
	return 0, nil
}

func (m *MemoryStore) ListLogEntries(_ context.Context, filter LogFilter) ([]model.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.LogEntry
	for _, e := range m.entries {
		if filter.Username != "" && e.Username != filter.Username {
			continue
		}
		if filter.MinSeverity != "" && !e.Severity.AtLeast(filter.MinSeverity) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if filter.Limit > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
		if len(out) > filter.Limit {
			out = out[:filter.Limit]
		}
	}
	return out, nil
}

func (m *MemoryStore) CloseLogEntry(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id >= 1 && id <= int64(len(m.entries)) {
		m.entries[id-1].Status = model.StatusClosed
	}
	return nil
}

func (m *MemoryStore) CountUnclosedBySeverity(_ context.Context) (map[model.Severity]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[model.Severity]int64)
	for _, e := range m.entries {
		if !e.IsClosed() {
			counts[e.Severity]++
		}
	}
	return counts, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)
