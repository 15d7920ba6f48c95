// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/leadcrm/internal/platform/middleware"
	requestutil "github.com/taibuivan/leadcrm/internal/platform/request"
	"github.com/taibuivan/leadcrm/internal/platform/respond"
	"github.com/taibuivan/leadcrm/internal/platform/validate"
)

// Handler implements authentication-related HTTP endpoints.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /login  : Authenticates and returns a JWT.
//   - GET  /verify : Returns the identity behind the bearer token.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/login", handler.login)
	router.With(middleware.RequireAuth).Get("/verify", handler.verify)

	return router
}

// loginRequest represents the JSON payload expected for authentication.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

/*
POST /api/auth/login.

Response:
  - 200: {token, user} (not wrapped in the data envelope)
  - 400: VALIDATION_ERROR: Missing fields
  - 401: UNAUTHORIZED: Bad credentials
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	if err := validate.New().
		Required("email", input.Email).
		Required("password", input.Password).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	result, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.JSON(writer, http.StatusOK, result)
}

/*
GET /api/auth/verify.

Response:
  - 200: {user, expires_at} (not wrapped in the data envelope)
  - 401: UNAUTHORIZED: Missing, invalid or orphaned token
*/
func (handler *Handler) verify(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.authService.Verify(request.Context(), requestutil.Claims(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.JSON(writer, http.StatusOK, result)
}
