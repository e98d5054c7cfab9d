package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/learn2pay/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// captureRepository collects inserted audit logs
type captureRepository struct {
	mu        sync.Mutex
	logs      []*models.AuditLog
	listCalls []int
}

func (r *captureRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *captureRepository) ListByPrincipal(ctx context.Context, principalID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls = append(r.listCalls, limit)

	matched := make([]*models.AuditLog, 0, len(r.logs))
	for _, log := range r.logs {
		if log.PrincipalID != nil && *log.PrincipalID == principalID {
			matched = append(matched, log)
		}
	}
	return matched, nil
}

func (r *captureRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}

func TestRecorder(t *testing.T) {
	t.Run("records events through the workers", func(t *testing.T) {
		repo := &captureRepository{}
		recorder := NewRecorder(repo, zap.NewNop(), Config{BufferSize: 16, WorkerCount: 2})
		require.NoError(t, recorder.Start())

		recorder.Record(models.NewAuditLog(models.AuditActionLoginSuccess))
		recorder.Record(models.NewAuditLog(models.AuditActionLogout))

		require.Eventually(t, func() bool {
			return repo.count() == 2
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, recorder.Stop(time.Second))
	})

	t.Run("stop drains the buffer", func(t *testing.T) {
		repo := &captureRepository{}
		recorder := NewRecorder(repo, zap.NewNop(), Config{BufferSize: 64, WorkerCount: 1})
		require.NoError(t, recorder.Start())

		for i := 0; i < 10; i++ {
			recorder.Record(models.NewAuditLog(models.AuditActionLoginFailed))
		}

		require.NoError(t, recorder.Stop(2*time.Second))
		assert.Equal(t, 10, repo.count())
	})

	t.Run("record before start is a no-op", func(t *testing.T) {
		repo := &captureRepository{}
		recorder := NewRecorder(repo, zap.NewNop(), DefaultConfig())

		recorder.Record(models.NewAuditLog(models.AuditActionLoginSuccess))
		assert.Equal(t, 0, recorder.Pending())
	})

	t.Run("double start fails", func(t *testing.T) {
		recorder := NewRecorder(&captureRepository{}, zap.NewNop(), DefaultConfig())
		require.NoError(t, recorder.Start())
		assert.Error(t, recorder.Start())
		require.NoError(t, recorder.Stop(time.Second))
	})

	t.Run("stop without start fails", func(t *testing.T) {
		recorder := NewRecorder(&captureRepository{}, zap.NewNop(), DefaultConfig())
		assert.Error(t, recorder.Stop(time.Second))
	})

	t.Run("zero config falls back to defaults", func(t *testing.T) {
		recorder := NewRecorder(&captureRepository{}, zap.NewNop(), Config{})
		assert.Equal(t, DefaultConfig().WorkerCount, recorder.workerCount)
		assert.Equal(t, DefaultConfig().BufferSize, recorder.bufferSize)
	})
}

func TestHistory(t *testing.T) {
	t.Run("reads back a principal's events", func(t *testing.T) {
		repo := &captureRepository{}
		recorder := NewRecorder(repo, zap.NewNop(), Config{BufferSize: 16, WorkerCount: 1})
		require.NoError(t, recorder.Start())

		principalID := uuid.New()
		recorder.Record(models.NewAuditLog(models.AuditActionLoginSuccess).
			WithPrincipal(principalID, models.RoleInstitute))
		recorder.Record(models.NewAuditLog(models.AuditActionLoginFailed))
		require.NoError(t, recorder.Stop(2*time.Second))

		events, err := recorder.History(context.Background(), principalID, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, models.AuditActionLoginSuccess, events[0].Action)
	})

	t.Run("non-positive limit falls back to the default", func(t *testing.T) {
		repo := &captureRepository{}
		recorder := NewRecorder(repo, zap.NewNop(), DefaultConfig())

		_, err := recorder.History(context.Background(), uuid.New(), 0)
		require.NoError(t, err)
		assert.Equal(t, []int{50}, repo.listCalls)
	})
}
