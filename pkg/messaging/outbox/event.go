package outbox

import (
	"context"
	"errors"
	"strconv"
	"time"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusPublished  Status = "PUBLISHED"
	StatusFailed     Status = "FAILED"
)

// Kafka headers added to every published record.
const (
	HeaderEventType = "event-type"
	HeaderEventID   = "event-id"
)

// ErrNotRequeueable is returned by Requeue for rows that are missing or not FAILED.
var ErrNotRequeueable = errors.New("outbox event is not in FAILED state")

// Event is one row of the outbox.
type Event struct {
	ID           int64
	EventType    string
	Topic        string
	Payload      []byte
	PartitionKey *string
	Headers      map[string]string
	Status       Status
	CreatedAt    time.Time
	ProcessedAt  *time.Time
	RetryCount   int
	ErrorMessage *string
}

// Key is the Kafka record key: the partition key, or the id when absent.
func (e *Event) Key() string {
	if e.PartitionKey != nil && *e.PartitionKey != "" {
		return *e.PartitionKey
	}
	return strconv.FormatInt(e.ID, 10)
}

// Outcome is the state of a row after a failed attempt was recorded.
type Outcome struct {
	ID         int64
	Status     Status
	RetryCount int
}

type ListFilter struct {
	Status Status
	Limit  int
}

// Store persists outbox rows. Every mutation after insert is conditional on
// the current status, so a row that already moved on is left untouched.
type Store interface {
	// Insert writes a PENDING row using the transaction bound to ctx and fills ID and CreatedAt.
	Insert(ctx context.Context, e *Event) error

	// ClaimPending atomically moves up to limit PENDING rows to PROCESSING in
	// creation order. A row is skipped while an earlier row with the same key
	// is PENDING or PROCESSING.
	ClaimPending(ctx context.Context, limit int, now time.Time) ([]*Event, error)

	// MarkPublished moves PROCESSING rows to PUBLISHED and returns how many changed.
	MarkPublished(ctx context.Context, ids []int64, at time.Time) (int64, error)

	// RecordFailure counts a failed attempt on a PROCESSING row and returns it
	// to PENDING, or FAILED once retry_count reaches maxRetries. A nil
	// outcome means the row was no longer PROCESSING.
	RecordFailure(ctx context.Context, id int64, errMsg string, maxRetries int) (*Outcome, error)

	// ReleaseStale applies RecordFailure to PROCESSING rows claimed before olderThan.
	ReleaseStale(ctx context.Context, olderThan time.Time, errMsg string, maxRetries int) ([]Outcome, error)

	// DeletePublishedBefore removes PUBLISHED rows processed before cutoff.
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	List(ctx context.Context, filter ListFilter) ([]*Event, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)

	// Requeue resets a FAILED row to PENDING with retry_count 0.
	Requeue(ctx context.Context, id int64) error
}
