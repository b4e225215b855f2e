package queue

import (
	"encoding/json"
	"time"
)

// JobType is the closed set of work the sync engine knows how to execute.
// The worker builds its handler table from these constants at startup, so a
// new job type is a compile-time addition, not a runtime string.
type JobType string

const (
	JobTypeSyncContact  JobType = "sync-contact"
	JobTypeSyncDeal     JobType = "sync-deal"
	JobTypeSyncTask     JobType = "sync-task"
	JobTypeSyncNote     JobType = "sync-note"
	JobTypePushQuote    JobType = "push-quote"
	JobTypeApplyInbound JobType = "apply-inbound"
)

// Types lists every known job type.
func Types() []JobType {
	return []JobType{
		JobTypeSyncContact,
		JobTypeSyncDeal,
		JobTypeSyncTask,
		JobTypeSyncNote,
		JobTypePushQuote,
		JobTypeApplyInbound,
	}
}

func (t JobType) Valid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// Job is one unit of sync work. A claimed job is removed from the queue; on
// failure the worker re-inserts it with an incremented attempt count and a
// delayed NotBefore.
type Job struct {
	ID          int64
	TenantID    string
	Provider    string
	Type        JobType
	Priority    int
	NotBefore   time.Time
	Attempts    int
	MaxAttempts int
	LastError   string
	Payload     json.RawMessage
	DedupeKey   string
	CreatedAt   time.Time
}

// EnqueueParams is the enqueue contract shared by the change detector and the
// webhook intake. An empty DedupeKey means no collapsing.
type EnqueueParams struct {
	TenantID    string
	Provider    string
	Type        JobType
	Priority    int
	NotBefore   time.Time
	Payload     json.RawMessage
	DedupeKey   string
	MaxAttempts int
}

// DeadLetterReason classifies why a job left the queue without succeeding.
type DeadLetterReason string

const (
	ReasonExhausted    DeadLetterReason = "attempts_exhausted"
	ReasonAuthRevoked  DeadLetterReason = "auth_revoked"
	ReasonValidation   DeadLetterReason = "validation_rejected"
	ReasonDisconnected DeadLetterReason = "connection_disconnected"
)

// DeadLetter is the terminal record of a failed job. Kept for operator
// diagnosis and manual retry; a job never disappears without one.
type DeadLetter struct {
	ID        int64
	JobID     int64
	TenantID  string
	Provider  string
	Type      JobType
	Payload   json.RawMessage
	Attempts  int
	Reason    DeadLetterReason
	LastError string
	CreatedAt time.Time
}
