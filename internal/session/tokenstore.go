// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"sync"
)

// TokenStore persists the bearer token between process runs.
//
// # Contract
//
// An absent token is not an error: Get returns "" and a nil error.
// Clear on an empty store is a no-op. Implementations must be usable before
// any other component is constructed.
type TokenStore interface {
	// Get returns the persisted token, or "" when none is stored.
	Get(ctx context.Context) (string, error)

	// Set persists token, overwriting any prior value.
	Set(ctx context.Context, token string) error

	// Clear removes the persisted token.
	Clear(ctx context.Context) error
}

// MemoryStore keeps the token in process memory. It suits tests and
// one-shot sessions that must not touch the disk.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore returns a store pre-loaded with token ("" for empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

// Get implements [TokenStore].
func (store *MemoryStore) Get(_ context.Context) (string, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.token, nil
}

// Set implements [TokenStore].
func (store *MemoryStore) Set(_ context.Context, token string) error {
	store.mu.Lock()
	store.token = token
	store.mu.Unlock()
	return nil
}

// Clear implements [TokenStore].
func (store *MemoryStore) Clear(_ context.Context) error {
	store.mu.Lock()
	store.token = ""
	store.mu.Unlock()
	return nil
}
