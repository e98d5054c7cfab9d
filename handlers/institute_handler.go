package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/learn2pay/backend/middleware"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/services"
	"github.com/learn2pay/backend/services/auth"
	"github.com/learn2pay/backend/services/institute"
	"github.com/learn2pay/backend/services/student"
	"github.com/learn2pay/backend/utils"
	"go.uber.org/zap"
)

// RegisterInstituteRequest represents an institute registration request
type RegisterInstituteRequest struct {
	Name          string `json:"institute_name" validate:"required,min=2,max=200"`
	Type          string `json:"institute_type" validate:"required"`
	ContactEmail  string `json:"contact_email" validate:"required,email"`
	ContactPerson string `json:"contact_person" validate:"required,min=2,max=100"`
	Phone         string `json:"phone" validate:"required,min=7,max=20"`
	Address       string `json:"address" validate:"required,max=500"`
	Password      string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest represents an email/password login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateStudentRequest represents a tenant-scoped student update. Empty
// fields are left unchanged.
type UpdateStudentRequest struct {
	StudentName string `json:"student_name" validate:"omitempty,min=2,max=100"`
	ParentName  string `json:"parent_name" validate:"omitempty,min=2,max=100"`
	ParentPhone string `json:"parent_phone" validate:"omitempty,min=7,max=20"`
	Grade       string `json:"grade" validate:"omitempty,max=20"`
	RollNumber  string `json:"roll_number" validate:"omitempty,max=50"`
	Address     string `json:"address" validate:"omitempty,max=500"`
}

// InstituteHandler handles institute-facing HTTP requests
type InstituteHandler struct {
	auth       *auth.Service
	institutes *institute.Service
	students   *student.Service
	cookies    *CookieWriter
	audit      Auditor
	logger     *zap.Logger
}

// NewInstituteHandler creates a new InstituteHandler
func NewInstituteHandler(
	authService *auth.Service,
	institutes *institute.Service,
	students *student.Service,
	cookies *CookieWriter,
	auditor Auditor,
	logger *zap.Logger,
) *InstituteHandler {
	return &InstituteHandler{
		auth:       authService,
		institutes: institutes,
		students:   students,
		cookies:    cookies,
		audit:      auditor,
		logger:     logger,
	}
}

// HandleRegister handles POST /api/institute/register
func (h *InstituteHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterInstituteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	created, err := h.institutes.Register(r.Context(), institute.RegisterInput{
		Name:          req.Name,
		Type:          req.Type,
		ContactEmail:  req.ContactEmail,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Address:       req.Address,
		Password:      req.Password,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	record(h.audit, auditEvent(r, models.AuditActionInstituteCreated).
		WithPrincipal(created.ID, models.RoleInstitute))

	if err := utils.WriteCreated(w, created.Profile(false, false)); err != nil {
		h.logger.Error("failed to write register response", zap.Error(err))
	}
}

// HandleLogin handles POST /api/institute/login
func (h *InstituteHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	logged, pair, err := h.auth.LoginInstitute(r.Context(), req.Email, req.Password)
	if err != nil {
		record(h.audit, auditEvent(r, models.AuditActionLoginFailed).
			WithDetails(map[string]string{"role": string(models.RoleInstitute)}))
		HandleServiceError(w, err, h.logger)
		return
	}
	record(h.audit, auditEvent(r, models.AuditActionLoginSuccess).
		WithPrincipal(logged.ID, models.RoleInstitute))

	profile, err := h.institutes.Profile(r.Context(), logged)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.cookies.SetTokenPair(w, pair)
	if err := utils.WriteOK(w, profile); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleRefresh handles POST /api/institute/refresh. Any refresh failure
// clears both cookies so the client falls back to a fresh login.
func (h *InstituteHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		h.cookies.Clear(w)
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	principal, pair, err := h.auth.Refresh(r.Context(), cookie.Value, models.RoleInstitute)
	if err != nil {
		if errors.Is(err, services.ErrTokenReuse) {
			record(h.audit, auditEvent(r, models.AuditActionTokenReuseDetected).
				WithDetails(map[string]string{"role": string(models.RoleInstitute)}))
		}
		h.cookies.Clear(w)
		HandleServiceError(w, err, h.logger)
		return
	}
	record(h.audit, auditEvent(r, models.AuditActionTokenRefreshed).
		WithPrincipal(principal.ID(), models.RoleInstitute))

	profile, err := h.institutes.Profile(r.Context(), principal.Institute)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.cookies.SetTokenPair(w, pair)
	if err := utils.WriteOK(w, profile); err != nil {
		h.logger.Error("failed to write refresh response", zap.Error(err))
	}
}

// HandleSession handles GET /api/institute/session
func (h *InstituteHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	inst := middleware.InstituteFromContext(r.Context())
	if inst == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	profile, err := h.institutes.Profile(r.Context(), inst)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, profile); err != nil {
		h.logger.Error("failed to write session response", zap.Error(err))
	}
}

// HandleLogout handles POST /api/institute/logout. Idempotent: logging out
// without a live session still clears cookies and succeeds.
func (h *InstituteHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	inst := middleware.InstituteFromContext(r.Context())
	if inst == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.auth.Logout(r.Context(), inst.ID, models.RoleInstitute); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	record(h.audit, auditEvent(r, models.AuditActionLogout).
		WithPrincipal(inst.ID, models.RoleInstitute))

	h.cookies.Clear(w)
	if err := utils.WriteOK(w, map[string]string{"message": "Logged out"}); err != nil {
		h.logger.Error("failed to write logout response", zap.Error(err))
	}
}

// HandleListStudents handles GET /api/institute/students
func (h *InstituteHandler) HandleListStudents(w http.ResponseWriter, r *http.Request) {
	inst := middleware.InstituteFromContext(r.Context())
	if inst == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	students, err := h.students.ListForInstitute(r.Context(), inst.ID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, models.StudentProfiles(students)); err != nil {
		h.logger.Error("failed to write student list response", zap.Error(err))
	}
}

// HandleGetStudent handles GET /api/institute/students/{id}
func (h *InstituteHandler) HandleGetStudent(w http.ResponseWriter, r *http.Request) {
	inst := middleware.InstituteFromContext(r.Context())
	if inst == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid student id", nil)
		return
	}

	found, err := h.students.GetForInstitute(r.Context(), id, inst.ID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, found.Profile()); err != nil {
		h.logger.Error("failed to write student response", zap.Error(err))
	}
}

// HandleUpdateStudent handles PUT /api/institute/students/{id}
func (h *InstituteHandler) HandleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	inst := middleware.InstituteFromContext(r.Context())
	if inst == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid student id", nil)
		return
	}

	var req UpdateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	updated, err := h.students.UpdateForInstitute(r.Context(), id, inst.ID, student.UpdateInput{
		StudentName: req.StudentName,
		ParentName:  req.ParentName,
		ParentPhone: req.ParentPhone,
		Grade:       req.Grade,
		RollNumber:  req.RollNumber,
		Address:     req.Address,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, updated.Profile()); err != nil {
		h.logger.Error("failed to write student update response", zap.Error(err))
	}
}
