package cmd

import (
	"strings"

	"github.com/spf13/viper"

	"ocrsweep/src/core/ocrjob"
	"ocrsweep/src/infrastructure/integrations/unstructured"
	"ocrsweep/src/infrastructure/job"
	"ocrsweep/src/storage"
)

func settingDefaultConfig() {
	// Enable automatic environment variable binding
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.db", "POSTGRES_DB")
	viper.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	viper.BindEnv("sqlite.path", "SQLITE_PATH")

	// MinIO
	viper.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("minio.access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("minio.secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("minio.use_ssl", "MINIO_USE_SSL")

	// OCR
	viper.BindEnv("ocr.url", "UNSTRUCTURED_API_URL")
	viper.BindEnv("ocr.bucket", "BUCKET_NAME")
	viper.BindEnv("ocr.strategy", "OCR_STRATEGY")
	viper.BindEnv("ocr.languages", "OCR_LANGUAGES")
	viper.BindEnv("ocr.cache_bucket", "OCR_CACHE_BUCKET")
	viper.BindEnv("ocr.force", "OCR_FORCE")
	viper.BindEnv("ocr.timeout", "OCR_TIMEOUT")

	// Cron
	viper.BindEnv("cron.kind", "CRON_KIND")
	viper.BindEnv("cron.interval", "CRON_INTERVAL")
	viper.BindEnv("cron.stale_after", "CRON_STALE_AFTER")

	// Server and logging
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT")
	viper.BindEnv("log.format", "LOG_FORMAT")
	viper.BindEnv("log.verbosity", "LOG_VERBOSITY")

	viper.SetDefault("database.driver", storage.DriverPostgres)
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", "5432")
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.db", "ocrsweep")
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("sqlite.path", "ocrsweep.db")

	viper.SetDefault("minio.endpoint", "localhost:9000")
	viper.SetDefault("minio.access_key", "minioadmin")
	viper.SetDefault("minio.secret_key", "minioadmin")
	viper.SetDefault("minio.use_ssl", false)

	viper.SetDefault("ocr.url", "http://unstructured_api:8000")
	viper.SetDefault("ocr.bucket", "pdfs")
	viper.SetDefault("ocr.strategy", "ocr_only")
	viper.SetDefault("ocr.languages", "")
	viper.SetDefault("ocr.cache_bucket", "")
	viper.SetDefault("ocr.force", false)
	viper.SetDefault("ocr.timeout", "5m")

	viper.SetDefault("cron.kind", job.KindTextract)
	viper.SetDefault("cron.interval", "30s")
	viper.SetDefault("cron.stale_after", "0s")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.shutdown_timeout", "5s")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.verbosity", 0)
}

func databaseConfig() storage.Config {
	return storage.Config{
		Driver:     viper.GetString("database.driver"),
		Host:       viper.GetString("postgres.host"),
		Port:       viper.GetString("postgres.port"),
		User:       viper.GetString("postgres.user"),
		Password:   viper.GetString("postgres.password"),
		DBName:     viper.GetString("postgres.db"),
		SSLMode:    viper.GetString("postgres.sslmode"),
		SQLitePath: viper.GetString("sqlite.path"),
	}
}

func schedulerConfig() ocrjob.Config {
	return ocrjob.Config{
		Kind:       viper.GetString("cron.kind"),
		Bucket:     viper.GetString("ocr.bucket"),
		Force:      viper.GetBool("ocr.force"),
		OCRTimeout: viper.GetDuration("ocr.timeout"),
		StaleAfter: viper.GetDuration("cron.stale_after"),
	}
}

func ocrConfig() unstructured.Config {
	return unstructured.Config{
		BaseURL:     viper.GetString("ocr.url"),
		Strategy:    viper.GetString("ocr.strategy"),
		Languages:   splitList(viper.GetStringSlice("ocr.languages")),
		CacheBucket: viper.GetString("ocr.cache_bucket"),
	}
}

// splitList accepts both repeated values and comma separated env strings.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
