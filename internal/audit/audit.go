// Package audit records every mutating API call into an append-only,
// per-tenant trail. Writes are dispatched to a background recorder and
// never block or fail the primary response.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corebooks/corebooks/internal/ledger/domain"
)

// Record is what the interceptor captures from one mutating call.
// OldData is not captured; the trail only holds the response snapshot.
type Record struct {
	OrgID      string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	NewData    []byte
}

// Recorder drains a bounded queue of records into the audit repository.
// A full queue drops the record with a warning; a failed write is logged
// and swallowed. Neither ever reaches the caller.
type Recorder struct {
	repo   domain.AuditRepository
	logger *zap.Logger
	queue  chan Record
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRecorder creates a Recorder with the given queue capacity and
// starts its background worker.
func NewRecorder(repo domain.AuditRepository, logger *zap.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan Record, queueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for rec := range r.queue {
		entry := &domain.AuditLogEntry{
			ID:         uuid.NewString(),
			OrgID:      rec.OrgID,
			ActorID:    rec.ActorID,
			Action:     rec.Action,
			EntityType: rec.EntityType,
			EntityID:   rec.EntityID,
			NewData:    rec.NewData,
			CreatedAt:  time.Now().UTC(),
		}
		if err := r.repo.AppendAudit(context.Background(), entry); err != nil {
			r.logger.Error("audit write failed",
				zap.String("org_id", rec.OrgID),
				zap.String("action", rec.Action),
				zap.Error(err))
		}
	}
}

// Record enqueues one record. Never blocks: when the queue is full the
// record is dropped and counted against the dead-letter log.
func (r *Recorder) Record(rec Record) {
	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("audit queue full, dropping record",
			zap.String("org_id", rec.OrgID),
			zap.String("action", rec.Action))
	}
}

// Close stops accepting records and waits for the queue to drain.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.queue) })
	r.wg.Wait()
}
