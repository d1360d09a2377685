package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/sacco-portal/pkg/response"
)

type HealthHandler struct {
	db      *sqlx.DB
	redis   *redis.Client
	timeout time.Duration
}

func NewHealthHandler(db *sqlx.DB, redis *redis.Client, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{
		db:      db,
		redis:   redis,
		timeout: timeout,
	}
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health performs a basic health check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	response.Success(w, status)
}

type readinessCheck struct {
	name string
	run  func(ctx context.Context) error
}

// checks lists the dependencies an instance needs before it takes traffic.
// "schema" fails until repository.Migrate has run.
func (h *HealthHandler) checks() []readinessCheck {
	return []readinessCheck{
		{name: "database", run: h.db.PingContext},
		{name: "schema", run: func(ctx context.Context) error {
			var n int
			return h.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM loans WHERE 1 = 0`)
		}},
		{name: "redis", run: func(ctx context.Context) error {
			return h.redis.Ping(ctx).Err()
		}},
	}
}

// Ready runs every readiness check, each under its own timeout
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	for _, check := range h.checks() {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := check.run(ctx)
		cancel()

		if err != nil {
			status.Status = "error"
			status.Checks[check.name] = "failed: " + err.Error()
			continue
		}
		status.Checks[check.name] = "ok"
	}

	if status.Status == "error" {
		response.JSON(w, http.StatusServiceUnavailable, status)
		return
	}

	response.Success(w, status)
}
