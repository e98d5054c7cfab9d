package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/learn2pay/backend/config"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/repositories"
	"github.com/learn2pay/backend/services/auth"
	"github.com/learn2pay/backend/services/institute"
	"github.com/learn2pay/backend/services/kyc"
	"github.com/learn2pay/backend/services/student"
	"github.com/learn2pay/backend/services/token"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

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

// MockStudentRepository is a mock implementation of StudentRepository
type MockStudentRepository struct {
	mock.Mock
}

func (m *MockStudentRepository) Create(ctx context.Context, student *models.Student) error {
	args := m.Called(ctx, student)
	return args.Error(0)
}

func (m *MockStudentRepository) CreateBatch(ctx context.Context, students []*models.Student) error {
	args := m.Called(ctx, students)
	return args.Error(0)
}

func (m *MockStudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Student), args.Error(1)
}

func (m *MockStudentRepository) GetByParentEmail(ctx context.Context, email string) (*models.Student, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Student), args.Error(1)
}

func (m *MockStudentRepository) ListByParentEmail(ctx context.Context, email string) ([]*models.Student, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Student), args.Error(1)
}

func (m *MockStudentRepository) ListByInstitute(ctx context.Context, instituteID uuid.UUID) ([]*models.Student, error) {
	args := m.Called(ctx, instituteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Student), args.Error(1)
}

func (m *MockStudentRepository) GetByIDForInstitute(ctx context.Context, id, instituteID uuid.UUID) (*models.Student, error) {
	args := m.Called(ctx, id, instituteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Student), args.Error(1)
}

func (m *MockStudentRepository) Update(ctx context.Context, student *models.Student) error {
	args := m.Called(ctx, student)
	return args.Error(0)
}

// MockStaffRepository is a mock implementation of StaffRepository
type MockStaffRepository struct {
	mock.Mock
}

func (m *MockStaffRepository) Create(ctx context.Context, user *models.StaffUser) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStaffRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StaffUser, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StaffUser), args.Error(1)
}

func (m *MockStaffRepository) GetByEmailAndRole(ctx context.Context, email string, role models.StaffRole) (*models.StaffUser, error) {
	args := m.Called(ctx, email, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StaffUser), args.Error(1)
}

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

// MockRefreshSessionRepository is a mock implementation of RefreshSessionRepository
type MockRefreshSessionRepository struct {
	mock.Mock
}

func (m *MockRefreshSessionRepository) Put(ctx context.Context, session *models.RefreshSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockRefreshSessionRepository) Get(ctx context.Context, principalID uuid.UUID, role models.PrincipalRole) (*models.RefreshSession, error) {
	args := m.Called(ctx, principalID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefreshSession), args.Error(1)
}

func (m *MockRefreshSessionRepository) Delete(ctx context.Context, principalID uuid.UUID, role models.PrincipalRole) error {
	args := m.Called(ctx, principalID, role)
	return args.Error(0)
}

// fakeTxManager runs the function directly without a real transaction
type fakeTxManager struct{}

func (fakeTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return nil, nil
}

func (fakeTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	return fn(ctx, nil)
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

func (a *recordingAuditor) has(action models.AuditAction) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e.Action == action {
			return true
		}
	}
	return false
}

// testEnv wires real services onto mocked repositories
type testEnv struct {
	institutes *MockInstituteRepository
	students   *MockStudentRepository
	staff      *MockStaffRepository
	kycRepo    *MockKYCRepository
	sessions   *MockRefreshSessionRepository

	tokens  *token.Service
	authSvc *auth.Service
	instSvc *institute.Service
	stuSvc  *student.Service
	kycSvc  *kyc.Service
	cookies *CookieWriter
	auditor *recordingAuditor
	logger  *zap.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	authCfg := config.AuthConfig{
		JWTSecret:  "test-secret",
		Issuer:     "learn2pay-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}

	env := &testEnv{
		institutes: new(MockInstituteRepository),
		students:   new(MockStudentRepository),
		staff:      new(MockStaffRepository),
		kycRepo:    new(MockKYCRepository),
		sessions:   new(MockRefreshSessionRepository),
		auditor:    &recordingAuditor{},
		logger:     zap.NewNop(),
	}

	hasher := auth.NewHasher(bcrypt.MinCost)
	env.tokens = token.NewService(authCfg, env.logger)
	env.authSvc = auth.NewService(env.institutes, env.students, env.staff, env.sessions, env.tokens, hasher, env.logger)
	env.instSvc = institute.NewService(env.institutes, env.kycRepo, hasher, env.logger)
	env.stuSvc = student.NewService(env.students, fakeTxManager{}, hasher, env.logger)
	env.kycSvc = kyc.NewService(env.kycRepo, env.institutes, env.auditor, config.KYCConfig{VerifyDelay: time.Hour}, env.logger)
	env.cookies = NewCookieWriter(authCfg)
	return env
}

func (e *testEnv) hash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}
