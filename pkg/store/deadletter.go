package store

import (
	"time"

	"chirpd/pkg/ids"
)

// DeadLetter is a durable record of a failed persistence job, queryable
// for reconciliation. Failed jobs are never replayed automatically within
// a process run; the re-drive sweep or an operator decides.
type DeadLetter struct {
	ID       string `json:"id"`
	JobType  string `json:"jobType"`
	Key      string `json:"key"`
	Payload  []byte `json:"payload"`
	Error    string `json:"error"`
	FailedAt int64  `json:"failedAt"`
	Attempts int    `json:"attempts"`
}

func deadLetterKey(id string) string { return "deadletter:" + id }

// AppendDeadLetter records a job failure.
func (s *Store) AppendDeadLetter(jobType, key string, payload []byte, jobErr error, attempts int) (DeadLetter, error) {
	dl := DeadLetter{
		ID:       ids.NewID(),
		JobType:  jobType,
		Key:      key,
		Payload:  append([]byte(nil), payload...),
		Error:    jobErr.Error(),
		FailedAt: time.Now().UTC().UnixNano(),
		Attempts: attempts,
	}
	return dl, s.putJSON(deadLetterKey(dl.ID), dl)
}

// ListDeadLetters returns up to limit failure records oldest first.
func (s *Store) ListDeadLetters(limit int) ([]DeadLetter, error) {
	raw, err := s.scanPrefix("deadletter:")
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(raw) {
		raw = raw[:limit]
	}
	return decodeAll[DeadLetter](raw)
}

// DeleteDeadLetter removes a failure record after successful re-drive.
func (s *Store) DeleteDeadLetter(id string) error {
	return s.delete(deadLetterKey(id))
}
