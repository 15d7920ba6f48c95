// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package leads provides the lead store, business rules and HTTP interface of
the development backend.

# Routing Strategy

  - Authenticated: Listing, detail, creation and updates (GET/POST/PATCH /leads).
  - Restricted: Deletion requires a super admin (DELETE /leads/{id}).
  - Dashboard: Aggregates served under /dashboard.

Mutations are announced to [Service.OnChange] observers, which the realtime
hub turns into pushes.
*/
package leads

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/platform/middleware"
	requestutil "github.com/taibuivan/leadcrm/internal/platform/request"
	"github.com/taibuivan/leadcrm/internal/platform/respond"
	"github.com/taibuivan/leadcrm/pkg/pagination"
)

// # Handler Implementation

// Handler implements the HTTP layer for lead operations.
type Handler struct {
	service *Service
}

// NewHandler constructs a new lead [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns a [chi.Router] configured with lead endpoints.
//
// Must be mounted behind [middleware.Authenticate].
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/", handler.listLeads)
	router.Post("/", handler.createLead)
	router.Get("/{id}", handler.getLead)
	router.Patch("/{id}", handler.updateLead)

	// ## Administrative
	router.With(middleware.RequireRole(crm.RoleSuperAdmin)).Delete("/{id}", handler.deleteLead)

	return router
}

// DashboardRoutes returns the aggregate endpoints mounted at /dashboard.
func (handler *Handler) DashboardRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/stats", handler.dashboardStats)
	router.Get("/recent", handler.recentLeads)

	return router
}

// # Lead Endpoints

/*
GET /api/leads.

Description: Retrieves a paginated list of leads, newest first.
Admins only ever see the leads assigned to them.

Request:
  - status: string (Pipeline status)
  - assigned_to: string (Operator ID, super admin only)
  - limit: int
  - page: int

Response:
  - 200: []Lead: Paginated list
  - 400: VALIDATION_ERROR: Unknown status
*/
func (handler *Handler) listLeads(writer http.ResponseWriter, request *http.Request) {
	paginationParams := pagination.FromRequest(request)
	queryParams := request.URL.Query()

	filter := crm.LeadFilter{
		Status:     crm.LeadStatus(queryParams.Get("status")),
		AssignedTo: queryParams.Get("assigned_to"),
	}
	if err := filter.Validate(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	actor := ActorFromClaims(requestutil.Claims(request))
	leads, total, err := handler.service.List(request.Context(), actor, filter, paginationParams.Limit, paginationParams.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, leads, pagination.NewMeta(paginationParams.Page, paginationParams.Limit, total))
}

/*
GET /api/leads/{id}.

Response:
  - 200: Lead: Success
  - 404: NOT_FOUND: Missing or not visible to the operator
*/
func (handler *Handler) getLead(writer http.ResponseWriter, request *http.Request) {
	actor := ActorFromClaims(requestutil.Claims(request))

	lead, err := handler.service.Get(request.Context(), actor, requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, lead)
}

/*
POST /api/leads.

Request (Body):
  - LeadInput JSON object

Response:
  - 201: Lead: Created object
  - 400: VALIDATION_ERROR: Invalid fields
  - 409: CONFLICT: Email already registered
*/
func (handler *Handler) createLead(writer http.ResponseWriter, request *http.Request) {
	var input crm.LeadInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	actor := ActorFromClaims(requestutil.Claims(request))
	lead, err := handler.service.Create(request.Context(), actor, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, lead)
}

/*
PATCH /api/leads/{id}.

Request (Body):
  - LeadPatch JSON object (absent fields are untouched)

Response:
  - 200: Lead: Updated object
  - 400: VALIDATION_ERROR: Invalid fields
  - 403: FORBIDDEN: Reassignment by an admin
  - 404: NOT_FOUND: Missing or not visible to the operator
*/
func (handler *Handler) updateLead(writer http.ResponseWriter, request *http.Request) {
	var patch crm.LeadPatch
	if err := requestutil.DecodeJSON(request, &patch); err != nil {
		respond.Error(writer, request, err)
		return
	}

	actor := ActorFromClaims(requestutil.Claims(request))
	lead, err := handler.service.Update(request.Context(), actor, requestutil.Param(request, "id"), patch)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, lead)
}

/*
DELETE /api/leads/{id}.

Response:
  - 204: No Content
  - 403: FORBIDDEN: Not a super admin
  - 404: NOT_FOUND: Lead missing
*/
func (handler *Handler) deleteLead(writer http.ResponseWriter, request *http.Request) {
	actor := ActorFromClaims(requestutil.Claims(request))

	if err := handler.service.Delete(request.Context(), actor, requestutil.Param(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Dashboard Endpoints

/*
GET /api/dashboard/stats.

Response:
  - 200: DashboardStats: Aggregates over every lead
*/
func (handler *Handler) dashboardStats(writer http.ResponseWriter, request *http.Request) {
	stats, err := handler.service.DashboardStats(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, stats)
}

/*
GET /api/dashboard/recent.

Response:
  - 200: []Lead: The newest leads
*/
func (handler *Handler) recentLeads(writer http.ResponseWriter, request *http.Request) {
	recent, err := handler.service.RecentLeads(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, recent)
}
