// Package kyc implements document submission and the mock verifier that flips
// a request to a terminal status after a fixed delay.
package kyc

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/learn2pay/backend/config"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/repositories"
	"github.com/learn2pay/backend/services"
	"go.uber.org/zap"
)

// verifyJob identifies one pending verification. Attempt is the idempotency
// key: a flip whose attempt no longer matches the stored request is dropped.
type verifyJob struct {
	requestID   uuid.UUID
	instituteID uuid.UUID
	attempt     int
}

// Auditor records security events without blocking
type Auditor interface {
	Record(log *models.AuditLog)
}

// Service implements KYC submission, status reads, document fetch, and owns
// the background verifier worker.
type Service struct {
	requests   repositories.KYCRepository
	institutes repositories.InstituteRepository
	auditor    Auditor
	cfg        config.KYCConfig
	logger     *zap.Logger

	jobs   chan verifyJob
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewService creates a new KYC service
func NewService(
	requests repositories.KYCRepository,
	institutes repositories.InstituteRepository,
	auditor Auditor,
	cfg config.KYCConfig,
	logger *zap.Logger,
) *Service {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Service{
		requests:   requests,
		institutes: institutes,
		auditor:    auditor,
		cfg:        cfg,
		logger:     logger,
		jobs:       make(chan verifyJob, queueSize),
	}
}

// Start launches the verifier worker. The worker drains the job queue until
// ctx is canceled; jobs still waiting out their delay at shutdown are lost,
// there is no durability across restarts.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-s.jobs:
				s.wg.Add(1)
				go func(job verifyJob) {
					defer s.wg.Done()
					s.runJob(ctx, job)
				}(job)
			}
		}
	}()
	s.logger.Info("KYC verifier started",
		zap.Duration("delay", s.cfg.VerifyDelay),
		zap.Float64("approve_probability", s.cfg.ApproveProbability))
}

// Wait blocks until all in-flight verification jobs have finished
func (s *Service) Wait() {
	s.wg.Wait()
}

// Stop cancels the verifier and waits for in-flight jobs to exit. It does not
// depend on the context passed to Start being canceled first, so shutdown
// paths that never fire the signal context still terminate. Safe to call
// before Start.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// runJob waits out the configured delay and flips the request to a terminal
// status, unless a newer submission superseded it. Failures are logged only;
// nothing ever propagates back to a client.
func (s *Service) runJob(ctx context.Context, job verifyJob) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.cfg.VerifyDelay):
	}

	status := models.KYCStatusRejected
	if rand.Float64() < s.cfg.ApproveProbability {
		status = models.KYCStatusVerified
	}

	applied, err := s.requests.UpdateStatus(ctx, job.requestID, job.attempt, status)
	if err != nil {
		s.logger.Error("KYC verification flip failed",
			zap.String("request_id", job.requestID.String()),
			zap.Error(err))
		return
	}
	if !applied {
		// A re-submission bumped the attempt while this job was waiting.
		return
	}

	if err := s.institutes.UpdateKYCStatus(ctx, job.instituteID, status); err != nil {
		s.logger.Error("failed to mirror KYC status onto institute",
			zap.String("institute_id", job.instituteID.String()),
			zap.Error(err))
		return
	}

	if s.auditor != nil {
		s.auditor.Record(models.NewAuditLog(models.AuditActionKYCResolved).
			WithPrincipal(job.instituteID, models.RoleInstitute).
			WithDetails(map[string]interface{}{"status": status, "attempt": job.attempt}))
	}

	s.logger.Info("KYC request resolved",
		zap.String("request_id", job.requestID.String()),
		zap.String("status", string(status)),
		zap.Int("attempt", job.attempt))
}

// Submit stores (or replaces) the two documents, moves the request and the
// institute to under_review immediately, and enqueues the deferred flip.
func (s *Service) Submit(ctx context.Context, instituteID uuid.UUID, registration, pan *models.KYCDocument) (*models.KYCRequest, error) {
	if !registration.Present() || !pan.Present() {
		return nil, services.ErrInvalidInput.WithDetail("documents",
			"both registration certificate and PAN card are required")
	}
	if s.cfg.MaxDocumentBytes > 0 {
		if int64(len(registration.Data)) > s.cfg.MaxDocumentBytes || int64(len(pan.Data)) > s.cfg.MaxDocumentBytes {
			return nil, services.ErrDocumentTooLarge
		}
	}

	request := models.NewKYCRequest(instituteID, registration, pan)
	if err := s.requests.Upsert(ctx, request); err != nil {
		return nil, services.WrapInternal("failed to store KYC request", err)
	}

	if err := s.institutes.UpdateKYCStatus(ctx, instituteID, models.KYCStatusUnderReview); err != nil {
		return nil, services.WrapInternal("failed to update institute KYC status", err)
	}

	job := verifyJob{requestID: request.ID, instituteID: instituteID, attempt: request.Attempt}
	select {
	case s.jobs <- job:
	default:
		// Queue full. The request stays under review until re-submission.
		s.logger.Warn("KYC verify queue full, dropping job",
			zap.String("request_id", request.ID.String()))
	}

	s.logger.Info("KYC documents submitted",
		zap.String("institute_id", instituteID.String()),
		zap.Int("attempt", request.Attempt))
	return request, nil
}

// Status returns the verification state for an institute. An institute that
// has never submitted gets not_started, matching its session projection.
func (s *Service) Status(ctx context.Context, instituteID uuid.UUID) (*models.KYCStatusResponse, error) {
	request, err := s.requests.GetByInstituteID(ctx, instituteID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return &models.KYCStatusResponse{Status: models.KYCStatusNotStarted}, nil
		}
		return nil, services.WrapInternal("failed to load KYC request", err)
	}
	return request.StatusResponse(), nil
}

// Document returns the uploaded document in the named slot. Callers gate on
// the requesting institute owning the request.
func (s *Service) Document(ctx context.Context, instituteID uuid.UUID, typ models.KYCDocumentType) (*models.KYCDocument, error) {
	if !models.ValidKYCDocumentType(string(typ)) {
		return nil, services.ErrInvalidDocumentType.WithDetail("type", string(typ))
	}

	request, err := s.requests.GetByInstituteID(ctx, instituteID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrKYCRequestNotFound
		}
		return nil, services.WrapInternal("failed to load KYC request", err)
	}

	doc := request.Document(typ)
	if !doc.Present() {
		return nil, services.ErrDocumentNotFound
	}
	return doc, nil
}
