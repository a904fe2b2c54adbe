package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chirpd/pkg/logger"
	"chirpd/pkg/store"
)

const defaultRedriveCron = "*/5 * * * *"

// maxRedriveAttempts bounds automatic replays of a failed job. Records
// past the cap stay in the dead-letter log for an operator.
const maxRedriveAttempts = 5

const redriveBatch = 256

// FailureStore is the dead-letter log the sweep reads from. Implemented
// by the durable store.
type FailureStore interface {
	ListDeadLetters(limit int) ([]store.DeadLetter, error)
	DeleteDeadLetter(id string) error
}

// Redriver periodically re-enqueues dead-lettered jobs on a cron
// schedule. Delivery is at-least-once: the record is deleted after the
// job is re-accepted, and a second failure writes a fresh record with the
// attempt count carried forward.
type Redriver struct {
	q        *Queue
	failures FailureStore
	cron     string
}

// NewRedriver builds a Redriver. An empty cron selects the default
// five-minute schedule.
func NewRedriver(q *Queue, failures FailureStore, cron string) (*Redriver, error) {
	if cron == "" {
		cron = defaultRedriveCron
	}
	if !gronx.IsValid(cron) {
		logger.Error("redrive_invalid_cron", "cron", cron)
		return nil, fmt.Errorf("invalid redrive cron expression: %s", cron)
	}
	return &Redriver{q: q, failures: failures, cron: cron}, nil
}

// Start launches the sweep scheduler and returns a cancel func.
func (r *Redriver) Start(ctx context.Context) context.CancelFunc {
	ctx2, cancel := context.WithCancel(ctx)
	go r.runScheduler(ctx2)
	logger.Info("redrive_scheduler_started", "cron", r.cron)
	return cancel
}

func (r *Redriver) runScheduler(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("redrive_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(r.cron, now, false)
		if err != nil {
			logger.Error("redrive_nexttick_failed", "cron", r.cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			logger.Info("redrive_scheduler_stopping")
			return
		}

		if err := r.RunOnce(); err != nil {
			logger.Error("redrive_run_error", "error", err)
		}
	}
}

// RunOnce sweeps one batch of dead letters and re-enqueues the ones under
// the attempt cap.
func (r *Redriver) RunOnce() error {
	letters, err := r.failures.ListDeadLetters(redriveBatch)
	if err != nil {
		return err
	}
	for _, dl := range letters {
		if dl.Attempts >= maxRedriveAttempts {
			continue
		}
		job := &Job{
			Type:     JobType(dl.JobType),
			Key:      dl.Key,
			Payload:  dl.Payload,
			TS:       dl.FailedAt,
			Attempts: dl.Attempts,
		}
		if err := r.q.TryEnqueue(job); err != nil {
			logger.Warn("redrive_enqueue_failed", "type", dl.JobType, "key", dl.Key, "error", err)
			continue
		}
		redrivenTotal.Inc()
		if err := r.failures.DeleteDeadLetter(dl.ID); err != nil {
			logger.Error("redrive_delete_failed", "id", dl.ID, "error", err)
		}
	}
	return nil
}
