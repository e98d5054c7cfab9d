package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/learn2pay/backend/middleware"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/services"
	"github.com/learn2pay/backend/services/auth"
	"github.com/learn2pay/backend/utils"
	"go.uber.org/zap"
)

// StaffLoginRequest represents a staff login. The role is part of the
// identity: the same email can hold separate accounts per role.
type StaffLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

// StaffHandler handles staff session HTTP requests and the support-side
// audit trail lookup
type StaffHandler struct {
	auth    *auth.Service
	cookies *CookieWriter
	audit   Auditor
	trail   AuditReader
	logger  *zap.Logger
}

// NewStaffHandler creates a new StaffHandler
func NewStaffHandler(authService *auth.Service, cookies *CookieWriter, auditor Auditor, trail AuditReader, logger *zap.Logger) *StaffHandler {
	return &StaffHandler{
		auth:    authService,
		cookies: cookies,
		audit:   auditor,
		trail:   trail,
		logger:  logger,
	}
}

// HandleLogin handles POST /api/user/login
func (h *StaffHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req StaffLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if !models.ValidStaffRole(req.Role) {
		HandleServiceError(w, services.ErrInvalidRole.WithDetail("role", req.Role), h.logger)
		return
	}

	user, pair, err := h.auth.LoginStaff(r.Context(), req.Email, req.Password, models.StaffRole(req.Role))
	if err != nil {
		record(h.audit, auditEvent(r, models.AuditActionLoginFailed).
			WithDetails(map[string]string{"role": string(models.RoleStaff), "staff_role": req.Role}))
		HandleServiceError(w, err, h.logger)
		return
	}
	record(h.audit, auditEvent(r, models.AuditActionLoginSuccess).
		WithPrincipal(user.ID, models.RoleStaff))

	h.cookies.SetTokenPair(w, pair)
	if err := utils.WriteOK(w, user.Profile()); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleRefresh handles POST /api/user/refresh
func (h *StaffHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		h.cookies.Clear(w)
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	principal, pair, err := h.auth.Refresh(r.Context(), cookie.Value, models.RoleStaff)
	if err != nil {
		if errors.Is(err, services.ErrTokenReuse) {
			record(h.audit, auditEvent(r, models.AuditActionTokenReuseDetected).
				WithDetails(map[string]string{"role": string(models.RoleStaff)}))
		}
		h.cookies.Clear(w)
		HandleServiceError(w, err, h.logger)
		return
	}
	record(h.audit, auditEvent(r, models.AuditActionTokenRefreshed).
		WithPrincipal(principal.ID(), models.RoleStaff))

	h.cookies.SetTokenPair(w, pair)
	if err := utils.WriteOK(w, principal.Staff.Profile()); err != nil {
		h.logger.Error("failed to write refresh response", zap.Error(err))
	}
}

// HandleSession handles GET /api/user/session
func (h *StaffHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	staff := middleware.StaffFromContext(r.Context())
	if staff == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := utils.WriteOK(w, staff.Profile()); err != nil {
		h.logger.Error("failed to write session response", zap.Error(err))
	}
}

// HandleLogout handles POST /api/user/logout
func (h *StaffHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	staff := middleware.StaffFromContext(r.Context())
	if staff == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.auth.Logout(r.Context(), staff.ID, models.RoleStaff); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	record(h.audit, auditEvent(r, models.AuditActionLogout).
		WithPrincipal(staff.ID, models.RoleStaff))

	h.cookies.Clear(w)
	if err := utils.WriteOK(w, map[string]string{"message": "Logged out"}); err != nil {
		h.logger.Error("failed to write logout response", zap.Error(err))
	}
}

// HandleAuditTrail handles GET /api/user/audit/{id}. Support staff look up
// the recent security events recorded for a principal.
func (h *StaffHandler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	staff := middleware.StaffFromContext(r.Context())
	if staff == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	principalID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid principal ID", nil)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events, err := h.trail.History(r.Context(), principalID, limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, events); err != nil {
		h.logger.Error("failed to write audit trail response", zap.Error(err))
	}
}
