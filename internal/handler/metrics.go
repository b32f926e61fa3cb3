package handler

import (
	"fmt"
	"net/http"

	"github.com/tasktracker/tasktracker/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
//
// GET /api/v1/metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "tasktracker_users_registered_total %d\n", snap.UsersRegistered)
	writeMetric(w, "tasktracker_logins_total{status=\"success\"} %d\n", snap.LoginsSucceeded)
	writeMetric(w, "tasktracker_logins_total{status=\"failure\"} %d\n", snap.LoginsFailed)
	writeMetric(w, "tasktracker_tokens_rejected_total %d\n", snap.TokensRejected)
	writeMetric(w, "tasktracker_identity_cache_hits_total %d\n", snap.IdentityCacheHits)
	writeMetric(w, "tasktracker_identity_cache_misses_total %d\n", snap.IdentityCacheMisses)

	writeMetric(w, "tasktracker_tasks_created_total %d\n", snap.TasksCreated)
	writeMetric(w, "tasktracker_tasks_updated_total %d\n", snap.TasksUpdated)
	writeMetric(w, "tasktracker_tasks_deleted_total %d\n", snap.TasksDeleted)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
