package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ocrsweep/src/infrastructure/job"
	"ocrsweep/src/storage/postgres/docstatsctrl"
)

const maxPageSize = 100

type JobLister interface {
	List(ctx context.Context, kind string, limit, offset int) ([]job.Record, error)
}

type StatsLister interface {
	List(ctx context.Context) ([]docstatsctrl.DocStat, error)
}

type BacklogCounter interface {
	CountPending(ctx context.Context) (int64, error)
}

// HealthCheck returns nil when a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// OpsHandler serves read-only views of the ledger, folder rollups and
// backlog for the worker process.
type OpsHandler struct {
	jobs     JobLister
	stats    StatsLister
	backlog  BacklogCounter
	database HealthCheck
	storage  HealthCheck
	kind     string
}

// NewOpsHandler builds the handler. A nil storage check leaves the
// "storage" field out of health responses.
func NewOpsHandler(jobs JobLister, stats StatsLister, backlog BacklogCounter, database, storage HealthCheck, kind string) *OpsHandler {
	return &OpsHandler{
		jobs:     jobs,
		stats:    stats,
		backlog:  backlog,
		database: database,
		storage:  storage,
		kind:     kind,
	}
}

func (h *OpsHandler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	v1.GET("/health", h.Health)
	v1.GET("/jobs", h.ListJobs)
	v1.GET("/stats", h.ListStats)
	v1.GET("/backlog", h.Backlog)
}

// Health handles GET /api/v1/health
func (h *OpsHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	body := gin.H{"status": "healthy"}
	status := http.StatusOK

	check := func(name string, fn HealthCheck) {
		if err := fn(ctx); err != nil {
			body[name] = "down"
			body[name+"_error"] = err.Error()
			body["status"] = "unhealthy"
			status = http.StatusServiceUnavailable
			return
		}
		body[name] = "up"
	}

	check("database", h.database)
	if h.storage != nil {
		check("storage", h.storage)
	}

	c.JSON(status, body)
}

// ListJobs handles GET /api/v1/jobs
func (h *OpsHandler) ListJobs(c *gin.Context) {
	offset, limit, ok := getPaginationParams(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination parameters"})
		return
	}

	records, err := h.jobs.List(c.Request.Context(), h.kind, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  records,
		"offset": offset,
		"limit":  limit,
	})
}

// ListStats handles GET /api/v1/stats
func (h *OpsHandler) ListStats(c *gin.Context) {
	stats, err := h.stats.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": stats})
}

// Backlog handles GET /api/v1/backlog
func (h *OpsHandler) Backlog(c *gin.Context) {
	pending, err := h.backlog.CountPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": pending})
}

func getPaginationParams(c *gin.Context) (offset, limit int, ok bool) {
	var err error
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, false
		}
	}
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, false
		}
	}

	if limit == 0 {
		limit = 10 // default limit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	return offset, limit, true
}
