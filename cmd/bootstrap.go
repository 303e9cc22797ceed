package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"ocrsweep/src/core/ocrjob"
	"ocrsweep/src/infrastructure/integrations/unstructured"
	"ocrsweep/src/storage"
	"ocrsweep/src/storage/minioctrl"
)

// openStore connects to the database. The returned func closes it.
func openStore() (*storage.Store, func(), error) {
	db, err := storage.Open(databaseConfig())
	if err != nil {
		return nil, nil, err
	}

	// Get underlying *sql.DB for cleanup
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying *sql.DB: %v", err)
	}

	store, err := storage.NewStore(db)
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	return store, func() { sqlDB.Close() }, nil
}

func newMinioService() (*minioctrl.MinioService, error) {
	minioService, err := minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio service: %v", err)
	}
	return minioService, nil
}

func newScheduler(ctx context.Context, store *storage.Store, minioService *minioctrl.MinioService) (*ocrjob.Scheduler, error) {
	cfg := schedulerConfig()
	if cfg.StaleAfter > 0 && cfg.StaleAfter <= cfg.OCRTimeout {
		return nil, fmt.Errorf("cron.stale_after (%s) must exceed ocr.timeout (%s)", cfg.StaleAfter, cfg.OCRTimeout)
	}

	ocrCfg := ocrConfig()
	if ocrCfg.CacheBucket != "" {
		if err := minioService.EnsureBucketExists(ctx, ocrCfg.CacheBucket); err != nil {
			return nil, err
		}
	}

	client, err := unstructured.NewUnstructuredService(ocrCfg, minioService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ocr client: %v", err)
	}

	return ocrjob.NewScheduler(store, client, cfg), nil
}
