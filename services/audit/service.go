// Package audit records the security event trail asynchronously. Recording
// never blocks a request; when the buffer is full the event is dropped with a
// warning.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/learn2pay/backend/models"
	"github.com/learn2pay/backend/repositories"
	"go.uber.org/zap"
)

// Config holds configuration for the Recorder
type Config struct {
	BufferSize  int
	WorkerCount int
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1024,
		WorkerCount: 2,
	}
}

// Recorder handles asynchronous audit logging
type Recorder struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *models.AuditLog
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// NewRecorder creates a new Recorder instance
func NewRecorder(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *Recorder {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}

	return &Recorder{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *models.AuditLog, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers
func (s *Recorder) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit recorder already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit recorder",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))
	return nil
}

// Stop drains the buffer and stops the workers. Events still queued past the
// timeout are lost.
func (s *Recorder) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit recorder not started")
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info("stopping audit recorder", zap.Int("pending_events", len(s.eventChan)))
	close(s.eventChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit recorder stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit recorder stop timeout after %v", timeout)
	}
}

// Record queues an event without blocking. A full buffer drops the event.
func (s *Recorder) Record(log *models.AuditLog) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}

	select {
	case s.eventChan <- log:
	default:
		s.logger.Warn("audit event buffer full, dropping event",
			zap.String("action", string(log.Action)))
	}
}

// Pending returns the number of queued events
func (s *Recorder) Pending() int {
	return len(s.eventChan)
}

// History returns the most recent events recorded for a principal, newest
// first. Reads bypass the write buffer, so an event queued moments ago may
// not appear yet.
func (s *Recorder) History(ctx context.Context, principalID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.auditRepo.ListByPrincipal(ctx, principalID, limit)
}

// worker processes events from the channel
func (s *Recorder) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for log := range s.eventChan {
		if err := s.processEvent(log); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(log.Action)))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent inserts a single audit event
func (s *Recorder) processEvent(log *models.AuditLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}
