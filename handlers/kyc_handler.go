package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learn2pay/backend/middleware"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/services/kyc"
	"github.com/learn2pay/backend/utils"
	"go.uber.org/zap"
)

// Multipart field names for the two KYC document slots
const (
	registrationField = "registration_certificate"
	panCardField      = "pan_card"
)

// maxKYCUploadBytes caps the whole multipart submission
const maxKYCUploadBytes = 12 << 20

// KYCHandler handles KYC submission, status, and document download
type KYCHandler struct {
	kyc    *kyc.Service
	audit  Auditor
	logger *zap.Logger
}

// NewKYCHandler creates a new KYCHandler
func NewKYCHandler(kycService *kyc.Service, auditor Auditor, logger *zap.Logger) *KYCHandler {
	return &KYCHandler{
		kyc:    kycService,
		audit:  auditor,
		logger: logger,
	}
}

func readDocument(file multipart.File, header *multipart.FileHeader) (*models.KYCDocument, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &models.KYCDocument{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func formDocument(r *http.Request, field string) (*models.KYCDocument, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return &models.KYCDocument{}, nil
		}
		return nil, err
	}
	defer file.Close()
	return readDocument(file, header)
}

// HandleSubmit handles POST /api/institute/kyc. Expects a multipart form
// carrying both document slots; a re-submission replaces the previous one and
// restarts verification.
func (h *KYCHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	inst := middleware.InstituteFromContext(r.Context())
	if inst == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxKYCUploadBytes)
	if err := r.ParseMultipartForm(maxKYCUploadBytes); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid multipart upload", nil)
		return
	}

	registration, err := formDocument(r, registrationField)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Unreadable registration certificate upload", nil)
		return
	}
	pan, err := formDocument(r, panCardField)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Unreadable PAN card upload", nil)
		return
	}

	request, err := h.kyc.Submit(r.Context(), inst.ID, registration, pan)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	record(h.audit, auditEvent(r, models.AuditActionKYCSubmitted).
		WithPrincipal(inst.ID, models.RoleInstitute).
		WithDetails(map[string]interface{}{"attempt": request.Attempt}))

	if err := utils.WriteOK(w, request.StatusResponse()); err != nil {
		h.logger.Error("failed to write KYC submit response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/institute/kyc
func (h *KYCHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	inst := middleware.InstituteFromContext(r.Context())
	if inst == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	status, err := h.kyc.Status(r.Context(), inst.ID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, status); err != nil {
		h.logger.Error("failed to write KYC status response", zap.Error(err))
	}
}

// HandleDocument handles GET /api/institute/kyc/documents/{type}. Streams the
// stored bytes back with the original content type; only the owning institute
// can reach its documents.
func (h *KYCHandler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	inst := middleware.InstituteFromContext(r.Context())
	if inst == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	typ := models.KYCDocumentType(chi.URLParam(r, "type"))
	doc, err := h.kyc.Document(r.Context(), inst.ID, typ)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Data); err != nil {
		h.logger.Error("failed to write document response", zap.Error(err))
	}
}
