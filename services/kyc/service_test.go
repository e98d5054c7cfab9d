package kyc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/learn2pay/backend/config"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/repositories"
	"github.com/learn2pay/backend/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockKYCRepository is a mock implementation of KYCRepository
type MockKYCRepository struct {
	mock.Mock
}

func (m *MockKYCRepository) Upsert(ctx context.Context, request *models.KYCRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockKYCRepository) GetByInstituteID(ctx context.Context, instituteID uuid.UUID) (*models.KYCRequest, error) {
	args := m.Called(ctx, instituteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.KYCRequest), args.Error(1)
}

func (m *MockKYCRepository) UpdateStatus(ctx context.Context, id uuid.UUID, attempt int, status models.KYCStatus) (bool, error) {
	args := m.Called(ctx, id, attempt, status)
	return args.Bool(0), args.Error(1)
}

// MockInstituteRepository is a mock implementation of InstituteRepository
type MockInstituteRepository struct {
	mock.Mock
}

func (m *MockInstituteRepository) Create(ctx context.Context, institute *models.Institute) error {
	args := m.Called(ctx, institute)
	return args.Error(0)
}

func (m *MockInstituteRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Institute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Institute), args.Error(1)
}

func (m *MockInstituteRepository) GetByEmail(ctx context.Context, email string) (*models.Institute, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Institute), args.Error(1)
}

func (m *MockInstituteRepository) Update(ctx context.Context, institute *models.Institute) error {
	args := m.Called(ctx, institute)
	return args.Error(0)
}

func (m *MockInstituteRepository) UpdateKYCStatus(ctx context.Context, id uuid.UUID, status models.KYCStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// recordingAuditor captures recorded events for assertions
type recordingAuditor struct {
	mu     sync.Mutex
	events []*models.AuditLog
}

func (a *recordingAuditor) Record(log *models.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, log)
}

func (a *recordingAuditor) actions() []models.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	actions := make([]models.AuditAction, 0, len(a.events))
	for _, e := range a.events {
		actions = append(actions, e.Action)
	}
	return actions
}

func testDoc(name string) *models.KYCDocument {
	return &models.KYCDocument{
		Filename:    name,
		ContentType: "application/pdf",
		Data:        []byte("document bytes"),
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	instituteID := uuid.New()

	t.Run("stores documents and moves to under review", func(t *testing.T) {
		requestsRepo := new(MockKYCRepository)
		institutes := new(MockInstituteRepository)
		svc := NewService(requestsRepo, institutes, nil, config.KYCConfig{VerifyDelay: time.Hour}, zap.NewNop())

		requestsRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(r *models.KYCRequest) bool {
			return r.InstituteID == instituteID && r.Status == models.KYCStatusUnderReview
		})).Return(nil)
		institutes.On("UpdateKYCStatus", mock.Anything, instituteID, models.KYCStatusUnderReview).Return(nil)

		request, err := svc.Submit(ctx, instituteID, testDoc("cert.pdf"), testDoc("pan.pdf"))
		require.NoError(t, err)
		assert.Equal(t, models.KYCStatusUnderReview, request.Status)
		assert.Equal(t, 1, request.Attempt)

		requestsRepo.AssertExpectations(t)
		institutes.AssertExpectations(t)
	})

	t.Run("both documents are required", func(t *testing.T) {
		svc := NewService(new(MockKYCRepository), new(MockInstituteRepository), nil, config.KYCConfig{}, zap.NewNop())

		_, err := svc.Submit(ctx, instituteID, testDoc("cert.pdf"), &models.KYCDocument{})
		assert.True(t, services.IsValidationError(err))

		_, err = svc.Submit(ctx, instituteID, nil, testDoc("pan.pdf"))
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("oversized document is rejected", func(t *testing.T) {
		svc := NewService(new(MockKYCRepository), new(MockInstituteRepository), nil,
			config.KYCConfig{MaxDocumentBytes: 4}, zap.NewNop())

		_, err := svc.Submit(ctx, instituteID, testDoc("cert.pdf"), testDoc("pan.pdf"))
		assert.ErrorIs(t, err, services.ErrDocumentTooLarge)
	})
}

func TestVerifier(t *testing.T) {
	instituteID := uuid.New()

	t.Run("flips to verified after the delay", func(t *testing.T) {
		requestsRepo := new(MockKYCRepository)
		institutes := new(MockInstituteRepository)
		auditor := &recordingAuditor{}
		svc := NewService(requestsRepo, institutes, auditor, config.KYCConfig{
			VerifyDelay:        time.Millisecond,
			ApproveProbability: 1.0,
		}, zap.NewNop())

		requestsRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
		institutes.On("UpdateKYCStatus", mock.Anything, instituteID, models.KYCStatusUnderReview).Return(nil)
		requestsRepo.On("UpdateStatus", mock.Anything, mock.Anything, 1, models.KYCStatusVerified).Return(true, nil)

		mirrored := make(chan struct{})
		institutes.On("UpdateKYCStatus", mock.Anything, instituteID, models.KYCStatusVerified).
			Run(func(mock.Arguments) { close(mirrored) }).Return(nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		svc.Start(ctx)

		_, err := svc.Submit(ctx, instituteID, testDoc("cert.pdf"), testDoc("pan.pdf"))
		require.NoError(t, err)

		select {
		case <-mirrored:
		case <-time.After(2 * time.Second):
			t.Fatal("verifier did not resolve the request")
		}

		require.Eventually(t, func() bool {
			for _, action := range auditor.actions() {
				if action == models.AuditActionKYCResolved {
					return true
				}
			}
			return false
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("zero approve probability rejects", func(t *testing.T) {
		requestsRepo := new(MockKYCRepository)
		institutes := new(MockInstituteRepository)
		svc := NewService(requestsRepo, institutes, nil, config.KYCConfig{
			VerifyDelay:        time.Millisecond,
			ApproveProbability: 0,
		}, zap.NewNop())

		requestsRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
		institutes.On("UpdateKYCStatus", mock.Anything, instituteID, models.KYCStatusUnderReview).Return(nil)
		requestsRepo.On("UpdateStatus", mock.Anything, mock.Anything, 1, models.KYCStatusRejected).Return(true, nil)

		mirrored := make(chan struct{})
		institutes.On("UpdateKYCStatus", mock.Anything, instituteID, models.KYCStatusRejected).
			Run(func(mock.Arguments) { close(mirrored) }).Return(nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		svc.Start(ctx)

		_, err := svc.Submit(ctx, instituteID, testDoc("cert.pdf"), testDoc("pan.pdf"))
		require.NoError(t, err)

		select {
		case <-mirrored:
		case <-time.After(2 * time.Second):
			t.Fatal("verifier did not resolve the request")
		}
	})

	t.Run("stale attempt leaves the institute untouched", func(t *testing.T) {
		requestsRepo := new(MockKYCRepository)
		institutes := new(MockInstituteRepository)
		svc := NewService(requestsRepo, institutes, nil, config.KYCConfig{
			VerifyDelay:        time.Millisecond,
			ApproveProbability: 1.0,
		}, zap.NewNop())

		requestsRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
		institutes.On("UpdateKYCStatus", mock.Anything, instituteID, models.KYCStatusUnderReview).Return(nil)

		flipped := make(chan struct{})
		requestsRepo.On("UpdateStatus", mock.Anything, mock.Anything, 1, models.KYCStatusVerified).
			Run(func(mock.Arguments) { close(flipped) }).Return(false, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		svc.Start(ctx)

		_, err := svc.Submit(ctx, instituteID, testDoc("cert.pdf"), testDoc("pan.pdf"))
		require.NoError(t, err)

		select {
		case <-flipped:
		case <-time.After(2 * time.Second):
			t.Fatal("verifier never attempted the flip")
		}
		cancel()
		svc.Wait()

		institutes.AssertNotCalled(t, "UpdateKYCStatus", mock.Anything, instituteID, models.KYCStatusVerified)
	})

	t.Run("stop halts the verifier without external cancel", func(t *testing.T) {
		svc := NewService(new(MockKYCRepository), new(MockInstituteRepository), nil, config.KYCConfig{
			VerifyDelay: time.Hour,
		}, zap.NewNop())

		// The caller's context stays live; Stop must not depend on it.
		svc.Start(context.Background())

		stopped := make(chan struct{})
		go func() {
			svc.Stop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatal("verifier did not stop")
		}
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	instituteID := uuid.New()

	t.Run("returns the projection", func(t *testing.T) {
		requestsRepo := new(MockKYCRepository)
		svc := NewService(requestsRepo, new(MockInstituteRepository), nil, config.KYCConfig{}, zap.NewNop())

		request := models.NewKYCRequest(instituteID, testDoc("cert.pdf"), testDoc("pan.pdf"))
		requestsRepo.On("GetByInstituteID", mock.Anything, instituteID).Return(request, nil)

		status, err := svc.Status(ctx, instituteID)
		require.NoError(t, err)
		assert.Equal(t, models.KYCStatusUnderReview, status.Status)
		assert.True(t, status.HasRegistration)
		assert.True(t, status.HasPANCard)
	})

	t.Run("no submission yet reads as not started", func(t *testing.T) {
		requestsRepo := new(MockKYCRepository)
		svc := NewService(requestsRepo, new(MockInstituteRepository), nil, config.KYCConfig{}, zap.NewNop())

		requestsRepo.On("GetByInstituteID", mock.Anything, instituteID).Return(nil, repositories.ErrNotFound)

		status, err := svc.Status(ctx, instituteID)
		require.NoError(t, err)
		assert.Equal(t, models.KYCStatusNotStarted, status.Status)
		assert.False(t, status.HasRegistration)
		assert.False(t, status.HasPANCard)
	})
}

func TestDocument(t *testing.T) {
	ctx := context.Background()
	instituteID := uuid.New()

	t.Run("returns the stored document", func(t *testing.T) {
		requestsRepo := new(MockKYCRepository)
		svc := NewService(requestsRepo, new(MockInstituteRepository), nil, config.KYCConfig{}, zap.NewNop())

		request := models.NewKYCRequest(instituteID, testDoc("cert.pdf"), testDoc("pan.pdf"))
		requestsRepo.On("GetByInstituteID", mock.Anything, instituteID).Return(request, nil)

		doc, err := svc.Document(ctx, instituteID, models.KYCDocumentRegistration)
		require.NoError(t, err)
		assert.Equal(t, "cert.pdf", doc.Filename)
	})

	t.Run("unknown slot name", func(t *testing.T) {
		svc := NewService(new(MockKYCRepository), new(MockInstituteRepository), nil, config.KYCConfig{}, zap.NewNop())

		_, err := svc.Document(ctx, instituteID, "passport")
		assert.ErrorIs(t, err, services.ErrInvalidDocumentType)
	})

	t.Run("empty slot is not found", func(t *testing.T) {
		requestsRepo := new(MockKYCRepository)
		svc := NewService(requestsRepo, new(MockInstituteRepository), nil, config.KYCConfig{}, zap.NewNop())

		request := models.NewKYCRequest(instituteID, testDoc("cert.pdf"), &models.KYCDocument{})
		requestsRepo.On("GetByInstituteID", mock.Anything, instituteID).Return(request, nil)

		_, err := svc.Document(ctx, instituteID, models.KYCDocumentPANCard)
		assert.ErrorIs(t, err, services.ErrDocumentNotFound)
	})
}
