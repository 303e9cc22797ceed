package ocrjob

import (
	"context"
	"time"

	"ocrsweep/src/infrastructure/job"
	"ocrsweep/src/storage/postgres/documentctrl"
)

// Ledger is the job ledger as seen by the scheduler.
type Ledger interface {
	HasInFlight(ctx context.Context, kind string) (bool, error)
	ListInFlight(ctx context.Context, kind string) ([]job.Record, error)
	Open(ctx context.Context, record *job.Record) error
	CloseSucceeded(ctx context.Context, id string, stoppedAt time.Time) error
	CloseFailed(ctx context.Context, id string, stoppedAt time.Time, detail string) error
}

// Backlog is the document backlog as seen by the scheduler.
type Backlog interface {
	NextPending(ctx context.Context) (*documentctrl.Document, error)
	Routing(ctx context.Context, number int64) (folder, site string, err error)
	MarkProcessed(ctx context.Context, number int64, pages int, content string) error
}

// Aggregates holds the per-folder rollups.
type Aggregates interface {
	Accumulate(ctx context.Context, folder, site string, pages int) error
}

// Store binds the three tables and a transaction boundary. InTx runs fn with
// a Store whose writes commit together or not at all.
type Store interface {
	Ledger() Ledger
	Backlog() Backlog
	Aggregates() Aggregates
	InTx(ctx context.Context, fn func(tx Store) error) error
}
