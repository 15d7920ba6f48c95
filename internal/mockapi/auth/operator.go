// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package auth implements the login and verify endpoints of the development
// backend.
//
// # Architecture
//
// Operators are seeded at startup with bcrypt-hashed passwords. Tokens are
// HS256 JWTs carrying the operator identity, so the REST middleware and the
// realtime handshake can authorize without a lookup.
package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/platform/apperr"
	"github.com/taibuivan/leadcrm/internal/platform/sec"
	"github.com/taibuivan/leadcrm/pkg/uuidv7"
)

// Operator is a CRM staff account.
//
// PasswordHash is generated via bcrypt exclusively by [NewMemoryRepository].
type Operator struct {
	crm.User
	PasswordHash string `json:"-"`
}

// Seed describes an operator created at startup.
type Seed struct {
	Name     string
	Email    string
	Password string
	Role     crm.Role
}

// DefaultSeeds are the operators of a fresh development backend.
func DefaultSeeds() []Seed {
	return []Seed{
		{Name: "Super Admin", Email: "super@leadcrm.dev", Password: "super-secret", Role: crm.RoleSuperAdmin},
		{Name: "Lan Nguyen", Email: "lan@leadcrm.dev", Password: "admin-secret", Role: crm.RoleAdmin},
	}
}

// Repository defines the data access contract for operator accounts.
type Repository interface {
	// FindByID returns the operator with the given ID.
	//
	// Returns [apperr.NotFound] if the account does not exist.
	FindByID(ctx context.Context, id string) (*Operator, error)

	// FindByEmail returns the operator with the given email, compared case-insensitively.
	//
	// Returns [apperr.NotFound] if no operator is registered with this email.
	FindByEmail(ctx context.Context, email string) (*Operator, error)
}

// MemoryRepository keeps operators in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*Operator
	byEmail map[string]*Operator
}

// NewMemoryRepository hashes and stores seeds.
func NewMemoryRepository(seeds []Seed) (*MemoryRepository, error) {
	repository := &MemoryRepository{
		byID:    make(map[string]*Operator, len(seeds)),
		byEmail: make(map[string]*Operator, len(seeds)),
	}

	for _, seed := range seeds {
		hash, err := sec.HashPassword(seed.Password)
		if err != nil {
			return nil, fmt.Errorf("auth_seed_hash_failed: %w", err)
		}
		operator := &Operator{
			User: crm.User{
				ID:    uuidv7.New(),
				Name:  seed.Name,
				Email: strings.ToLower(seed.Email),
				Role:  seed.Role,
			},
			PasswordHash: hash,
		}
		repository.byID[operator.ID] = operator
		repository.byEmail[operator.Email] = operator
	}

	return repository, nil
}

// FindByID implements [Repository].
func (repository *MemoryRepository) FindByID(_ context.Context, id string) (*Operator, error) {
	repository.mu.RLock()
	defer repository.mu.RUnlock()

	operator, ok := repository.byID[id]
	if !ok {
		return nil, apperr.NotFound("Operator")
	}
	copied := *operator
	return &copied, nil
}

// FindByEmail implements [Repository].
func (repository *MemoryRepository) FindByEmail(_ context.Context, email string) (*Operator, error) {
	repository.mu.RLock()
	defer repository.mu.RUnlock()

	operator, ok := repository.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, apperr.NotFound("Operator")
	}
	copied := *operator
	return &copied, nil
}
