package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"ocrsweep/src/infrastructure/job"
	"ocrsweep/src/storage/postgres/docstatsctrl"
)

type fakeJobs struct {
	records       []job.Record
	kind          string
	limit, offset int
}

func (f *fakeJobs) List(ctx context.Context, kind string, limit, offset int) ([]job.Record, error) {
	f.kind, f.limit, f.offset = kind, limit, offset
	return f.records, nil
}

type fakeStats struct {
	stats []docstatsctrl.DocStat
	err   error
}

func (f fakeStats) List(ctx context.Context) ([]docstatsctrl.DocStat, error) {
	return f.stats, f.err
}

type fakeBacklog int64

func (f fakeBacklog) CountPending(ctx context.Context) (int64, error) {
	return int64(f), nil
}

func newTestRouter(h *OpsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func serve(r *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestOpsHandler_Health(t *testing.T) {
	up := func(ctx context.Context) error { return nil }
	down := func(msg string) HealthCheck {
		return func(ctx context.Context) error { return errors.New(msg) }
	}

	tests := []struct {
		name       string
		database   HealthCheck
		storage    HealthCheck
		wantStatus int
		want       map[string]string
	}{
		{
			name:       "database only",
			database:   up,
			wantStatus: http.StatusOK,
			want:       map[string]string{"status": "healthy", "database": "up"},
		},
		{
			name:       "all up",
			database:   up,
			storage:    up,
			wantStatus: http.StatusOK,
			want:       map[string]string{"status": "healthy", "database": "up", "storage": "up"},
		},
		{
			name:       "database down",
			database:   down("connection refused"),
			storage:    up,
			wantStatus: http.StatusServiceUnavailable,
			want: map[string]string{
				"status": "unhealthy", "database": "down", "database_error": "connection refused", "storage": "up",
			},
		},
		{
			name:       "storage down",
			database:   up,
			storage:    down("bucket ocr-cache does not exist"),
			wantStatus: http.StatusServiceUnavailable,
			want: map[string]string{
				"status": "unhealthy", "database": "up", "storage": "down", "storage_error": "bucket ocr-cache does not exist",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOpsHandler(&fakeJobs{}, fakeStats{}, fakeBacklog(0), tt.database, tt.storage, job.KindTextract)
			w := serve(newTestRouter(h), "/api/v1/health")

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if len(body) != len(tt.want) {
				t.Errorf("body = %v, want %v", body, tt.want)
			}
			for k, v := range tt.want {
				if body[k] != v {
					t.Errorf("%s = %q, want %q", k, body[k], v)
				}
			}
		})
	}
}

func TestOpsHandler_ListJobs(t *testing.T) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	jobs := &fakeJobs{records: []job.Record{{ID: "j1", Subject: "1", Kind: job.KindTextract, StartedAt: started}}}
	h := NewOpsHandler(jobs, fakeStats{}, fakeBacklog(0), func(ctx context.Context) error { return nil }, nil, job.KindTextract)
	r := newTestRouter(h)

	tests := []struct {
		target     string
		wantStatus int
		wantLimit  int
		wantOffset int
	}{
		{target: "/api/v1/jobs", wantStatus: http.StatusOK, wantLimit: 10},
		{target: "/api/v1/jobs?limit=5&offset=20", wantStatus: http.StatusOK, wantLimit: 5, wantOffset: 20},
		{target: "/api/v1/jobs?limit=1000", wantStatus: http.StatusOK, wantLimit: maxPageSize},
		{target: "/api/v1/jobs?limit=abc", wantStatus: http.StatusBadRequest},
		{target: "/api/v1/jobs?offset=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			*jobs = fakeJobs{records: jobs.records}
			w := serve(r, tt.target)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if jobs.kind != job.KindTextract || jobs.limit != tt.wantLimit || jobs.offset != tt.wantOffset {
				t.Errorf("List(kind=%q, limit=%d, offset=%d)", jobs.kind, jobs.limit, jobs.offset)
			}

			var body struct {
				Items []job.Record `json:"items"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if len(body.Items) != 1 || body.Items[0].ID != "j1" || !body.Items[0].Running() {
				t.Errorf("items = %+v", body.Items)
			}
		})
	}
}

func TestOpsHandler_StatsAndBacklog(t *testing.T) {
	stats := fakeStats{stats: []docstatsctrl.DocStat{{Folder: "folderA", Site: "site1", TotalPages: 12, TotalDocs: 1}}}
	h := NewOpsHandler(&fakeJobs{}, stats, fakeBacklog(7), func(ctx context.Context) error { return nil }, nil, job.KindTextract)
	r := newTestRouter(h)

	w := serve(r, "/api/v1/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var statsBody struct {
		Items []docstatsctrl.DocStat `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &statsBody); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(statsBody.Items) != 1 || statsBody.Items[0] != stats.stats[0] {
		t.Errorf("stats = %+v", statsBody.Items)
	}

	w = serve(r, "/api/v1/backlog")
	var backlogBody struct {
		Pending int64 `json:"pending"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &backlogBody); err != nil {
		t.Fatalf("decode backlog: %v", err)
	}
	if w.Code != http.StatusOK || backlogBody.Pending != 7 {
		t.Errorf("backlog = %d %+v, want 7 pending", w.Code, backlogBody)
	}
}

func TestOpsHandler_StatsError(t *testing.T) {
	h := NewOpsHandler(&fakeJobs{}, fakeStats{err: errors.New("boom")}, fakeBacklog(0), func(ctx context.Context) error { return nil }, nil, job.KindTextract)
	w := serve(newTestRouter(h), "/api/v1/stats")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
