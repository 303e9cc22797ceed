package job

import (
	"context"
	"errors"
	"time"
)

// KindTextract tags ledger rows written by the OCR cron.
const KindTextract = "textract"

var (
	// ErrInFlight is returned by Open when another record of the same kind
	// is still running.
	ErrInFlight = errors.New("a job of this kind is already in flight")
	// ErrNotOpen is returned when closing a record that does not exist or
	// has already reached a terminal state.
	ErrNotOpen = errors.New("job record not found or already closed")
)

// Record is one execution of a scheduled job. The crons table is shared with
// other scheduled jobs, told apart by Kind. At most one record per kind may
// have Completed == false, enforced by a partial unique index.
type Record struct {
	ID        string     `gorm:"primaryKey;column:cron_id" json:"id"`
	Subject   string     `gorm:"not null;column:cron_feed" json:"subject"`
	Kind      string     `gorm:"not null;column:cron_type;index:idx_crons_type;uniqueIndex:idx_crons_in_flight,where:cron_status = false" json:"kind"`
	StartedAt time.Time  `gorm:"not null;column:cron_started_at" json:"started_at"`
	StoppedAt *time.Time `gorm:"column:cron_stopped_at" json:"stopped_at,omitempty"`
	Completed bool       `gorm:"not null;column:cron_status" json:"completed"`
	Flagged   bool       `gorm:"not null;column:cron_flagged" json:"flagged"`
	Error     *string    `gorm:"column:cron_error;type:text" json:"error,omitempty"`
}

func (Record) TableName() string {
	return "crons"
}

// Running reports whether the record is still in flight.
func (r *Record) Running() bool {
	return !r.Completed
}

// JobRepository defines the interface for job ledger persistence
type JobRepository interface {
	HasInFlight(ctx context.Context, kind string) (bool, error)
	ListInFlight(ctx context.Context, kind string) ([]Record, error)
	Open(ctx context.Context, record *Record) error
	CloseSucceeded(ctx context.Context, id string, stoppedAt time.Time) error
	CloseFailed(ctx context.Context, id string, stoppedAt time.Time, detail string) error
	List(ctx context.Context, kind string, limit, offset int) ([]Record, error)
}
