package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/learn2pay/backend/middleware"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/services"
	"github.com/learn2pay/backend/services/auth"
	"github.com/learn2pay/backend/services/student"
	"github.com/learn2pay/backend/utils"
	"go.uber.org/zap"
)

// maxBulkUploadBytes caps the CSV upload size for bulk registration
const maxBulkUploadBytes = 10 << 20

// RegisterStudentRequest represents a student registration submitted by the
// authenticated institute
type RegisterStudentRequest struct {
	StudentName string `json:"student_name" validate:"required,min=2,max=100"`
	ParentName  string `json:"parent_name" validate:"required,min=2,max=100"`
	ParentEmail string `json:"parent_email" validate:"required,email"`
	ParentPhone string `json:"parent_phone" validate:"required,min=7,max=20"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DateOfBirth string `json:"date_of_birth" validate:"required"`
	Grade       string `json:"grade" validate:"required,max=20"`
	RollNumber  string `json:"roll_number" validate:"required,max=50"`
	Address     string `json:"address" validate:"omitempty,max=500"`
}

// ParentHandler handles parent-facing HTTP requests plus the institute-side
// student registration endpoints that share its route group
type ParentHandler struct {
	auth     *auth.Service
	students *student.Service
	cookies  *CookieWriter
	audit    Auditor
	logger   *zap.Logger
}

// NewParentHandler creates a new ParentHandler
func NewParentHandler(
	authService *auth.Service,
	students *student.Service,
	cookies *CookieWriter,
	auditor Auditor,
	logger *zap.Logger,
) *ParentHandler {
	return &ParentHandler{
		auth:     authService,
		students: students,
		cookies:  cookies,
		audit:    auditor,
		logger:   logger,
	}
}

// HandleLogin handles POST /api/parent/login
func (h *ParentHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	logged, pair, err := h.auth.LoginParent(r.Context(), req.Email, req.Password)
	if err != nil {
		record(h.audit, auditEvent(r, models.AuditActionLoginFailed).
			WithDetails(map[string]string{"role": string(models.RoleParent)}))
		HandleServiceError(w, err, h.logger)
		return
	}
	record(h.audit, auditEvent(r, models.AuditActionLoginSuccess).
		WithPrincipal(logged.ID, models.RoleParent))

	h.cookies.SetTokenPair(w, pair)
	if err := utils.WriteOK(w, logged.Profile()); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleRefresh handles POST /api/parent/refresh
func (h *ParentHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		h.cookies.Clear(w)
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	principal, pair, err := h.auth.Refresh(r.Context(), cookie.Value, models.RoleParent)
	if err != nil {
		if errors.Is(err, services.ErrTokenReuse) {
			record(h.audit, auditEvent(r, models.AuditActionTokenReuseDetected).
				WithDetails(map[string]string{"role": string(models.RoleParent)}))
		}
		h.cookies.Clear(w)
		HandleServiceError(w, err, h.logger)
		return
	}
	record(h.audit, auditEvent(r, models.AuditActionTokenRefreshed).
		WithPrincipal(principal.ID(), models.RoleParent))

	h.cookies.SetTokenPair(w, pair)
	if err := utils.WriteOK(w, principal.Student.Profile()); err != nil {
		h.logger.Error("failed to write refresh response", zap.Error(err))
	}
}

// HandleSession handles GET /api/parent/session
func (h *ParentHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	stu := middleware.StudentFromContext(r.Context())
	if stu == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := utils.WriteOK(w, stu.Profile()); err != nil {
		h.logger.Error("failed to write session response", zap.Error(err))
	}
}

// HandleLogout handles POST /api/parent/logout
func (h *ParentHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	stu := middleware.StudentFromContext(r.Context())
	if stu == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.auth.Logout(r.Context(), stu.ID, models.RoleParent); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	record(h.audit, auditEvent(r, models.AuditActionLogout).
		WithPrincipal(stu.ID, models.RoleParent))

	h.cookies.Clear(w)
	if err := utils.WriteOK(w, map[string]string{"message": "Logged out"}); err != nil {
		h.logger.Error("failed to write logout response", zap.Error(err))
	}
}

// HandleListStudents handles GET /api/parent/students. Returns every student
// registered under the authenticated parent's email, across institutes.
func (h *ParentHandler) HandleListStudents(w http.ResponseWriter, r *http.Request) {
	stu := middleware.StudentFromContext(r.Context())
	if stu == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	siblings, err := h.students.ListForParent(r.Context(), stu.ParentEmail)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, models.StudentProfiles(siblings)); err != nil {
		h.logger.Error("failed to write student list response", zap.Error(err))
	}
}

// HandleRegister handles POST /api/parent/register. Requires institute auth;
// the new student is created under the caller's tenant.
func (h *ParentHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	inst := middleware.InstituteFromContext(r.Context())
	if inst == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req RegisterStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	created, err := h.students.Register(r.Context(), inst, student.RegisterInput{
		StudentName: req.StudentName,
		ParentName:  req.ParentName,
		ParentEmail: req.ParentEmail,
		ParentPhone: req.ParentPhone,
		Password:    req.Password,
		DateOfBirth: req.DateOfBirth,
		Grade:       req.Grade,
		RollNumber:  req.RollNumber,
		Address:     req.Address,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	record(h.audit, auditEvent(r, models.AuditActionStudentCreated).
		WithPrincipal(inst.ID, models.RoleInstitute).
		WithDetails(map[string]string{"student_id": created.ID.String()}))

	if err := utils.WriteCreated(w, created.Profile()); err != nil {
		h.logger.Error("failed to write register response", zap.Error(err))
	}
}

// HandleBulkRegister handles POST /api/parent/bulk-register. Requires
// institute auth and a multipart upload with the CSV in the "file" field.
func (h *ParentHandler) HandleBulkRegister(w http.ResponseWriter, r *http.Request) {
	inst := middleware.InstituteFromContext(r.Context())
	if inst == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBulkUploadBytes)
	if err := r.ParseMultipartForm(maxBulkUploadBytes); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid multipart upload", nil)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		_ = utils.WriteBadRequest(w, "Missing file field", nil)
		return
	}
	defer file.Close()

	result, err := h.students.BulkRegister(r.Context(), inst, file)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write bulk register response", zap.Error(err))
	}
}
