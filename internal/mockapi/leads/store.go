// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package leads

import (
	"context"
	"embed"

	"github.com/taibuivan/leadcrm/internal/crm"
)

// Migrations holds the PostgreSQL schema of [PostgresRepository].
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside [Migrations].
const MigrationsDir = "migrations"

// Repository defines the data access contract for leads.
//
// # Implementations
//
// [MemoryRepository] by default; [PostgresRepository] when a database URL is configured.
type Repository interface {
	// List returns one page of leads matching filter, newest first, and the
	// total number of matches.
	List(ctx context.Context, filter crm.LeadFilter, limit, offset int) ([]crm.Lead, int, error)

	// All returns every lead. Used for dashboard aggregation.
	All(ctx context.Context) ([]crm.Lead, error)

	// Recent returns the newest limit leads.
	Recent(ctx context.Context, limit int) ([]crm.Lead, error)

	// FindByID returns [apperr.NotFound] if the lead does not exist.
	FindByID(ctx context.Context, id string) (*crm.Lead, error)

	// Create returns [apperr.Conflict] if the email is already registered.
	Create(ctx context.Context, lead *crm.Lead) error

	// Update replaces every mutable field of the stored lead.
	Update(ctx context.Context, lead *crm.Lead) error

	// Delete returns [apperr.NotFound] if the lead does not exist.
	Delete(ctx context.Context, id string) error
}
