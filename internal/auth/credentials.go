// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/olegiv/socmon/internal/model"
	"github.com/olegiv/socmon/internal/store"
)

// MaxUsernameLength is the longest accepted username in bytes.
const MaxUsernameLength = 64

var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrInvalidPassword   = errors.New("invalid password")
)

// UserRepository is the storage Credentials needs.
type UserRepository interface {
	CreateUser(ctx context.Context, arg store.CreateUserParams) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
}

// Hasher hashes and verifies passwords. Verify must compare in constant time.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}

// Outcome is the result of a credential check.
type Outcome int

const (
	OutcomeMismatch Outcome = iota
	OutcomeMatched
	OutcomeUnknownUser
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeUnknownUser:
		return "unknown_user"
	default:
		return "mismatch"
	}
}

// Verification is returned by Credentials.Verify. User is set for
// OutcomeMatched and OutcomeMismatch.
type Verification struct {
	Outcome Outcome
	User    model.User
}

// Credentials registers accounts and checks passwords.
type Credentials struct {
	users  UserRepository
	hasher Hasher
	logger *slog.Logger

	// spent on unknown usernames so both failure paths cost one hash
	decoyHash string
}

// NewCredentials creates a Credentials service.
func NewCredentials(users UserRepository, hasher Hasher, logger *slog.Logger) *Credentials {
	c := &Credentials{users: users, hasher: hasher, logger: logger}
	if h, err := hasher.Hash("socmon-decoy-password"); err == nil {
		c.decoyHash = h
	}
	return c
}

// ValidateUsername checks length and rejects anything bluemonday would alter.
func ValidateUsername(username string) error {
	if username == "" || len(username) > MaxUsernameLength {
		return ErrInvalidUsername
	}
	if strings.TrimSpace(username) != username {
		return ErrInvalidUsername
	}
	if bluemonday.StrictPolicy().Sanitize(username) != username {
		return ErrInvalidUsername
	}
	return nil
}

// Register creates a user with the default role and returns its id.
func (c *Credentials) Register(ctx context.Context, username, password string) (int64, error) {
	return c.create(ctx, username, password, model.RoleUser)
}

func (c *Credentials) create(ctx context.Context, username, password, role string) (int64, error) {
	if err := ValidateUsername(username); err != nil {
		return 0, err
	}
	if password == "" {
		return 0, ErrInvalidPassword
	}

	hash, err := c.hasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("hashing password: %w", err)
	}

	user, err := c.users.CreateUser(ctx, store.CreateUserParams{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return 0, ErrDuplicateUsername
	}
	if err != nil {
		return 0, fmt.Errorf("creating user: %w", err)
	}

	c.logger.Info("user registered", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return user.ID, nil
}

// Verify checks password for username. A malformed stored hash counts as a
// mismatch. Matched verifications of outdated hashes upgrade the stored hash.
func (c *Credentials) Verify(ctx context.Context, username, password string) (Verification, error) {
	user, err := c.users.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		if c.decoyHash != "" {
			_, _ = c.hasher.Verify(password, c.decoyHash)
		}
		return Verification{Outcome: OutcomeUnknownUser}, nil
	}
	if err != nil {
		return Verification{}, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := c.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		c.logger.Warn("unreadable password hash", "user_id", user.ID, "error", err)
		ok = false
	}
	if !ok {
		return Verification{Outcome: OutcomeMismatch, User: user}, nil
	}

	if c.hasher.NeedsRehash(user.PasswordHash) {
		c.rehash(ctx, &user, password)
	}
	return Verification{Outcome: OutcomeMatched, User: user}, nil
}

// rehash is best effort; the login proceeds with the old hash on failure.
func (c *Credentials) rehash(ctx context.Context, user *model.User, password string) {
	hash, err := c.hasher.Hash(password)
	if err != nil {
		c.logger.Error("failed to rehash password", "user_id", user.ID, "error", err)
		return
	}
	if err := c.users.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		c.logger.Error("failed to store rehashed password", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	c.logger.Info("password hash upgraded", "user_id", user.ID)
}

// EnsureAdmin creates an admin account unless username already exists.
// An empty username or password disables it.
func (c *Credentials) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}

	_, err := c.users.GetUserByUsername(ctx, username)
	if err == nil {
		c.logger.Info("admin user already exists, skipping seed", "username", username)
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("checking for admin user: %w", err)
	}

	if _, err := c.create(ctx, username, password, model.RoleAdmin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}
	return nil
}
