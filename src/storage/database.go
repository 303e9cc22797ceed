package storage

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ocrsweep/src/core/ocrjob"
	"ocrsweep/src/infrastructure/job"
	"ocrsweep/src/storage/postgres/docstatsctrl"
	"ocrsweep/src/storage/postgres/documentctrl"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver string

	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// SQLitePath is a file path or ":memory:".
	SQLitePath string
}

func (c Config) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, sslmode)
}

// Open connects to the configured database.
func Open(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres, "":
		dialector = postgres.Open(cfg.DSN())
	case DriverSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "ocrsweep.db"
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	return db, nil
}

// Migrate creates or updates the crons, documents and doc_stats tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&job.Record{}, &documentctrl.Document{}, &docstatsctrl.DocStat{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Ping checks the underlying connection.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Store binds the job ledger, document backlog and folder rollups to one
// database handle.
type Store struct {
	db        *gorm.DB
	jobs      *job.PostgresJobRepository
	documents *documentctrl.DocumentService
	stats     *docstatsctrl.DocStatService
}

func NewStore(db *gorm.DB) (*Store, error) {
	documents, err := documentctrl.NewDocumentService(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document service: %v", err)
	}

	return &Store{
		db:        db,
		jobs:      job.NewPostgresJobRepository(db),
		documents: documents,
		stats:     docstatsctrl.NewDocStatService(db),
	}, nil
}

func (s *Store) Ledger() ocrjob.Ledger         { return s.jobs }
func (s *Store) Backlog() ocrjob.Backlog       { return s.documents }
func (s *Store) Aggregates() ocrjob.Aggregates { return s.stats }

func (s *Store) Jobs() *job.PostgresJobRepository         { return s.jobs }
func (s *Store) Documents() *documentctrl.DocumentService { return s.documents }
func (s *Store) Stats() *docstatsctrl.DocStatService      { return s.stats }
func (s *Store) DB() *gorm.DB                             { return s.db }

// InTx runs fn against a Store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx ocrjob.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{
			db:        tx,
			jobs:      job.NewPostgresJobRepository(tx),
			documents: s.documents.WithDB(tx),
			stats:     s.stats.WithDB(tx),
		})
	})
}
