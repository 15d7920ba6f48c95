// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package leads

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/platform/apperr"
	"github.com/taibuivan/leadcrm/internal/platform/constants"
	"github.com/taibuivan/leadcrm/internal/platform/sec"
	"github.com/taibuivan/leadcrm/pkg/uuidv7"
)

// # Actors

// Actor is the operator performing a lead operation.
type Actor struct {
	ID   string
	Role crm.Role
}

// ActorFromClaims builds an [Actor] from verified token claims.
func ActorFromClaims(claims *sec.AuthClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{ID: claims.UserID, Role: crm.Role(claims.Role)}
}

// seesEverything reports whether the actor is exempt from assignment scoping.
func (actor Actor) seesEverything() bool {
	return actor.Role.AtLeast(crm.RoleSuperAdmin)
}

// canSee reports whether lead is visible to the actor.
func (actor Actor) canSee(lead crm.Lead) bool {
	return actor.seesEverything() || lead.AssignedTo == actor.ID
}

// # Change Notifications

// ChangeFunc observes a committed lead mutation. event is one of
// [constants.EventLeadCreated], [constants.EventLeadUpdated] or
// [constants.EventLeadDeleted].
type ChangeFunc func(ctx context.Context, event string, lead crm.Lead)

// # Service Layer

// Service orchestrates business rules for leads.
//
// # Visibility
//
// A super admin sees every lead. An admin sees only the leads assigned to
// them; other leads behave as if they did not exist.
type Service struct {
	repo   Repository
	clock  clockwork.Clock
	logger *slog.Logger

	observersMu sync.RWMutex
	observers   []ChangeFunc
}

// NewService constructs a new lead [Service]. A nil clock means the real clock.
func NewService(repo Repository, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		clock:  clock,
		logger: logger,
	}
}

// OnChange registers fn for every committed mutation.
func (service *Service) OnChange(fn ChangeFunc) {
	service.observersMu.Lock()
	service.observers = append(service.observers, fn)
	service.observersMu.Unlock()
}

// # Queries

/*
List retrieves a page of leads visible to actor.

Parameters:
  - ctx: context.Context
  - actor: Actor (Admins are pinned to their own assignments)
  - filter: crm.LeadFilter
  - limit, offset: int

Returns:
  - []crm.Lead: Page of leads, newest first
  - int: Total matching count
  - error: Retrieval errors
*/
func (service *Service) List(ctx context.Context, actor Actor, filter crm.LeadFilter, limit, offset int) ([]crm.Lead, int, error) {
	if !actor.seesEverything() {
		filter.AssignedTo = actor.ID
	}
	return service.repo.List(ctx, filter, limit, offset)
}

// Get returns a single lead visible to actor.
func (service *Service) Get(ctx context.Context, actor Actor, id string) (*crm.Lead, error) {
	lead, err := service.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canSee(*lead) {
		return nil, apperr.NotFound("Lead")
	}
	return lead, nil
}

// DashboardStats aggregates every lead into dashboard figures.
func (service *Service) DashboardStats(ctx context.Context) (crm.DashboardStats, error) {
	all, err := service.repo.All(ctx)
	if err != nil {
		return crm.DashboardStats{}, err
	}
	return crm.ComputeStats(all, service.clock.Now().UTC()), nil
}

// RecentLeads returns the newest [crm.RecentLeadsLimit] leads. Never nil.
func (service *Service) RecentLeads(ctx context.Context) ([]crm.Lead, error) {
	recent, err := service.repo.Recent(ctx, crm.RecentLeadsLimit)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []crm.Lead{}
	}
	return recent, nil
}

// # Mutations

/*
Create registers a new lead.

Description: The lead starts in the "new" status. An admin can only create
leads for themselves; a super admin may assign anyone and defaults to
themselves.

Returns:
  - *crm.Lead: The stored lead
  - error: VALIDATION_ERROR, CONFLICT on duplicate email, or persistence failures
*/
func (service *Service) Create(ctx context.Context, actor Actor, input crm.LeadInput) (*crm.Lead, error) {
	// ── 1. Validation ─────────────────────────────────────────────────────

	if err := input.Validate(); err != nil {
		return nil, err
	}

	// ── 2. Assignment ─────────────────────────────────────────────────────

	assignee := strings.TrimSpace(input.AssignedTo)
	if assignee == "" || !actor.seesEverything() {
		assignee = actor.ID
	}

	// ── 3. Persistence ────────────────────────────────────────────────────

	now := service.clock.Now().UTC()
	lead := &crm.Lead{
		ID:         uuidv7.New(),
		FullName:   strings.TrimSpace(input.FullName),
		Email:      strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:      strings.TrimSpace(input.Phone),
		CardType:   input.CardType,
		Status:     crm.LeadStatusNew,
		AssignedTo: assignee,
		Notes:      input.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := service.repo.Create(ctx, lead); err != nil {
		return nil, err
	}

	service.logger.Info("lead_created",
		slog.String("lead_id", lead.ID),
		slog.String("actor_id", actor.ID),
		slog.String("assigned_to", lead.AssignedTo),
	)
	service.notify(ctx, constants.EventLeadCreated, *lead)

	return lead, nil
}

/*
Update applies a partial change to a lead visible to actor.

Description: Only a super admin may reassign a lead.

Returns:
  - *crm.Lead: The updated lead
  - error: VALIDATION_ERROR, NOT_FOUND, FORBIDDEN or persistence failures
*/
func (service *Service) Update(ctx context.Context, actor Actor, id string, patch crm.LeadPatch) (*crm.Lead, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	current, err := service.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if patch.AssignedTo != nil && *patch.AssignedTo != current.AssignedTo && !actor.seesEverything() {
		return nil, apperr.Forbidden("Only a super admin can reassign leads")
	}

	updated := patch.Apply(*current, service.clock.Now().UTC())
	if err := service.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	service.logger.Info("lead_updated",
		slog.String("lead_id", updated.ID),
		slog.String("actor_id", actor.ID),
		slog.String("status", string(updated.Status)),
	)
	service.notify(ctx, constants.EventLeadUpdated, updated)

	return &updated, nil
}

// Delete removes a lead. Only a super admin may delete.
func (service *Service) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.seesEverything() {
		return apperr.Forbidden("Only a super admin can delete leads")
	}

	lead, err := service.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := service.repo.Delete(ctx, id); err != nil {
		return err
	}

	service.logger.Info("lead_deleted",
		slog.String("lead_id", id),
		slog.String("actor_id", actor.ID),
	)
	service.notify(ctx, constants.EventLeadDeleted, *lead)

	return nil
}

func (service *Service) notify(ctx context.Context, event string, lead crm.Lead) {
	service.observersMu.RLock()
	observers := append([]ChangeFunc(nil), service.observers...)
	service.observersMu.RUnlock()

	for _, fn := range observers {
		fn(ctx, event, lead)
	}
}
