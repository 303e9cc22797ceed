package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type PostgresJobRepository struct {
	db *gorm.DB
}

func NewPostgresJobRepository(db *gorm.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

func (r *PostgresJobRepository) HasInFlight(ctx context.Context, kind string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&Record{}).
		Where("cron_type = ? AND cron_status = ?", kind, false).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check in-flight jobs: %w", result.Error)
	}

	return count > 0, nil
}

func (r *PostgresJobRepository) ListInFlight(ctx context.Context, kind string) ([]Record, error) {
	var records []Record
	result := r.db.WithContext(ctx).
		Where("cron_type = ? AND cron_status = ?", kind, false).
		Order("cron_started_at ASC").
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list in-flight jobs: %w", result.Error)
	}

	return records, nil
}

// Open inserts a running record. The insert is the claim: a concurrent open
// record of the same kind makes it fail with ErrInFlight.
func (r *PostgresJobRepository) Open(ctx context.Context, record *Record) error {
	record.Completed = false
	record.Flagged = false
	record.StoppedAt = nil
	record.Error = nil

	result := r.db.WithContext(ctx).Create(record)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return ErrInFlight
		}
		return fmt.Errorf("failed to open job record: %w", result.Error)
	}

	return nil
}

func (r *PostgresJobRepository) CloseSucceeded(ctx context.Context, id string, stoppedAt time.Time) error {
	return r.close(ctx, id, map[string]interface{}{
		"cron_stopped_at": stoppedAt,
		"cron_status":     true,
		"cron_flagged":    false,
	})
}

func (r *PostgresJobRepository) CloseFailed(ctx context.Context, id string, stoppedAt time.Time, detail string) error {
	return r.close(ctx, id, map[string]interface{}{
		"cron_stopped_at": stoppedAt,
		"cron_status":     true,
		"cron_flagged":    true,
		"cron_error":      detail,
	})
}

// close only touches open records, so a completed record is never mutated.
func (r *PostgresJobRepository) close(ctx context.Context, id string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&Record{}).
		Where("cron_id = ? AND cron_status = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to close job record: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrNotOpen
	}

	return nil
}

// List returns records of the given kind, newest first
func (r *PostgresJobRepository) List(ctx context.Context, kind string, limit, offset int) ([]Record, error) {
	var records []Record
	result := r.db.WithContext(ctx).
		Where("cron_type = ?", kind).
		Order("cron_started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list job records: %w", result.Error)
	}

	return records, nil
}

func (r *PostgresJobRepository) Get(ctx context.Context, id string) (*Record, error) {
	var record Record
	result := r.db.WithContext(ctx).First(&record, "cron_id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return &record, nil
}

// isDuplicateKey matches translated gorm errors first and falls back to the
// raw driver messages of postgres and sqlite.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
