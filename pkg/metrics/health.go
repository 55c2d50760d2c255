package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// WatchStatus is the JSON body served at /healthz while watch mode
// runs
type WatchStatus struct {
	Status       string    `json:"status"` // "starting", "converged", "reconciling"
	Timestamp    time.Time `json:"timestamp"`
	LastRunID    string    `json:"last_run_id,omitempty"`
	LastRunAt    time.Time `json:"last_run_at,omitempty"`
	ClusterFound bool      `json:"cluster_found"`
	Converged    bool      `json:"converged"`
	Uptime       string    `json:"uptime"`
	Version      string    `json:"version,omitempty"`
}

var watchState = &watchTracker{startTime: time.Now()}

type watchTracker struct {
	mu           sync.RWMutex
	startTime    time.Time
	version      string
	lastRunID    string
	lastRunAt    time.Time
	clusterFound bool
	converged    bool
	ran          bool
}

// SetVersion sets the version string reported by /healthz
func SetVersion(version string) {
	watchState.mu.Lock()
	defer watchState.mu.Unlock()
	watchState.version = version
}

// RecordWatchRun updates the state served by /healthz after each
// watch iteration
func RecordWatchRun(runID string, clusterFound, converged bool) {
	watchState.mu.Lock()
	defer watchState.mu.Unlock()
	watchState.lastRunID = runID
	watchState.lastRunAt = time.Now()
	watchState.clusterFound = clusterFound
	watchState.converged = converged
	watchState.ran = true
}

// GetWatchStatus returns the current watch health view
func GetWatchStatus() WatchStatus {
	watchState.mu.RLock()
	defer watchState.mu.RUnlock()

	status := "starting"
	if watchState.ran {
		if watchState.converged {
			status = "converged"
		} else {
			status = "reconciling"
		}
	}

	return WatchStatus{
		Status:       status,
		Timestamp:    time.Now(),
		LastRunID:    watchState.lastRunID,
		LastRunAt:    watchState.lastRunAt,
		ClusterFound: watchState.clusterFound,
		Converged:    watchState.converged,
		Uptime:       time.Since(watchState.startTime).String(),
		Version:      watchState.version,
	}
}

// HealthHandler returns an HTTP handler for the /healthz endpoint.
// It answers 200 once a run has converged and 503 while work remains,
// so it can feed the same alerting that scrapes /metrics.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := GetWatchStatus()

		w.Header().Set("Content-Type", "application/json")

		statusCode := http.StatusOK
		if status.Status != "converged" {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)

		_ = json.NewEncoder(w).Encode(status)
	}
}

// LivenessHandler answers 200 whenever the process is up
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(watchState.startTime).String(),
		})
	}
}
