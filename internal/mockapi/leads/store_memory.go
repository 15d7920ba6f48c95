// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package leads

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/platform/apperr"
	"github.com/taibuivan/leadcrm/pkg/slice"
)

// MemoryRepository implements [Repository] in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	leads []crm.Lead
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// List implements [Repository].
func (repository *MemoryRepository) List(_ context.Context, filter crm.LeadFilter, limit, offset int) ([]crm.Lead, int, error) {
	repository.mu.RLock()
	matches := slice.Filter(repository.newestFirst(), filter.Matches)
	repository.mu.RUnlock()

	total := len(matches)
	if offset >= total {
		return []crm.Lead{}, total, nil
	}
	end := min(offset+limit, total)
	return matches[offset:end], total, nil
}

// All implements [Repository].
func (repository *MemoryRepository) All(_ context.Context) ([]crm.Lead, error) {
	repository.mu.RLock()
	defer repository.mu.RUnlock()
	return slices.Clone(repository.leads), nil
}

// Recent implements [Repository].
func (repository *MemoryRepository) Recent(_ context.Context, limit int) ([]crm.Lead, error) {
	repository.mu.RLock()
	defer repository.mu.RUnlock()

	ordered := repository.newestFirst()
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, nil
}

// FindByID implements [Repository].
func (repository *MemoryRepository) FindByID(_ context.Context, id string) (*crm.Lead, error) {
	repository.mu.RLock()
	defer repository.mu.RUnlock()

	index := repository.indexOf(id)
	if index < 0 {
		return nil, apperr.NotFound("Lead")
	}
	lead := repository.leads[index]
	return &lead, nil
}

// Create implements [Repository].
func (repository *MemoryRepository) Create(_ context.Context, lead *crm.Lead) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	for _, existing := range repository.leads {
		if strings.EqualFold(existing.Email, lead.Email) {
			return apperr.Conflict("Lead already exists")
		}
	}
	repository.leads = append(repository.leads, *lead)
	return nil
}

// Update implements [Repository].
func (repository *MemoryRepository) Update(_ context.Context, lead *crm.Lead) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	index := repository.indexOf(lead.ID)
	if index < 0 {
		return apperr.NotFound("Lead")
	}
	for i, existing := range repository.leads {
		if i != index && strings.EqualFold(existing.Email, lead.Email) {
			return apperr.Conflict("Lead already exists")
		}
	}
	repository.leads[index] = *lead
	return nil
}

// Delete implements [Repository].
func (repository *MemoryRepository) Delete(_ context.Context, id string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	index := repository.indexOf(id)
	if index < 0 {
		return apperr.NotFound("Lead")
	}
	repository.leads = slices.Delete(repository.leads, index, index+1)
	return nil
}

// newestFirst returns a sorted copy. Callers hold at least the read lock.
func (repository *MemoryRepository) newestFirst() []crm.Lead {
	ordered := slices.Clone(repository.leads)
	slices.SortStableFunc(ordered, func(a, b crm.Lead) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return ordered
}

func (repository *MemoryRepository) indexOf(id string) int {
	return slices.IndexFunc(repository.leads, func(lead crm.Lead) bool { return lead.ID == id })
}
