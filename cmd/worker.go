package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpHdlr "ocrsweep/handler/http"
	"ocrsweep/src/core/ocrjob"
	"ocrsweep/src/log"
	"ocrsweep/src/storage"
	"ocrsweep/src/storage/minioctrl"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the OCR cron until interrupted",
	Long: `The worker command fires one OCR invocation every cron.interval and serves
read-only ops endpoints on server.port. An empty server.port disables them.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	minioService, err := newMinioService()
	if err != nil {
		return err
	}

	scheduler, err := newScheduler(ctx, store, minioService)
	if err != nil {
		return err
	}

	interval := viper.GetDuration("cron.interval")
	cron := ocrjob.NewCron(interval, scheduler.Tick)
	if err := cron.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cron: %w", err)
	}
	log.Info("ocr cron started", "kind", scheduler.Kind(), "interval", interval)

	var srv *http.Server
	if port := viper.GetString("server.port"); port != "" {
		srv = newOpsServer(port, store, minioService, scheduler.Kind())
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "ops server stopped")
			}
		}()
		log.Info("ops server listening", "port", port)
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	if srv != nil {
		timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
		if err != nil {
			log.Error(err, "invalid shutdown timeout, using default 5s")
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(err, "ops server forced to shutdown")
		}
	}

	cron.Stop()
	log.Info("ocr cron stopped")
	return nil
}

func newOpsServer(port string, store *storage.Store, minioService *minioctrl.MinioService, kind string) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	bucket := viper.GetString("ocr.bucket")
	ops := httpHdlr.NewOpsHandler(store.Jobs(), store.Stats(), store.Documents(),
		func(ctx context.Context) error {
			return storage.Ping(ctx, store.DB())
		},
		func(ctx context.Context) error {
			return minioService.CheckBucket(ctx, bucket)
		},
		kind)
	ops.RegisterRoutes(r)

	return &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
}
