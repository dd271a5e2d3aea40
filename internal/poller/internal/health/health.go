// Package health tracks poll outcomes and serves them over HTTP.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of the poller.
type Status string

const (
	// StatusOK indicates the poller is healthy.
	StatusOK Status = "ok"

	// StatusDegraded indicates fetches keep failing but polling continues.
	StatusDegraded Status = "degraded"

	// StatusIdle indicates polling is stopped (unauthorized or nothing to track).
	StatusIdle Status = "idle"
)

// degradedAfter is the number of consecutive failures before reporting degraded.
const degradedAfter = 5

// Report is the full health report.
type Report struct {
	Status              Status     `json:"status"`
	Uptime              string     `json:"uptime"`
	StartedAt           time.Time  `json:"startedAt"`
	State               string     `json:"state"`
	Watermark           *time.Time `json:"watermark,omitempty"`
	LastSuccess         *time.Time `json:"lastSuccess,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	Cycles              int64      `json:"cycles"`
	ChangeSets          int64      `json:"changeSets"`
	EmptyCycles         int64      `json:"emptyCycles"`
	Failures            int64      `json:"failures"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	StaleResults        int64      `json:"staleResults"`
	SpuriousWakeups     int64      `json:"spuriousWakeups"`
	Subscribers         int        `json:"subscribers"`
}

// Checker provides health check functionality.
type Checker struct {
	startedAt time.Time
	logger    *slog.Logger

	// mu protects everything below
	mu sync.RWMutex

	state               string
	watermark           time.Time
	lastSuccess         time.Time
	lastError           string
	cycles              int64
	changeSets          int64
	emptyCycles         int64
	failures            int64
	consecutiveFailures int
	staleResults        int64
	spuriousWakeups     int64
	subscribers         int
}

// NewChecker creates a new health checker.
func NewChecker(logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		startedAt: time.Now(),
		logger:    logger.With("component", "health"),
		state:     "stopped",
	}
}

// SetState records the current polling state.
func (h *Checker) SetState(state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = state
}

// SetWatermark records the current watermark.
func (h *Checker) SetWatermark(w time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watermark = w
}

// SetSubscriberCount sets the active subscriber count.
func (h *Checker) SetSubscriberCount(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = n
}

// RecordChangeSet records a successful fetch that returned a change set.
func (h *Checker) RecordChangeSet() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cycles++
	h.changeSets++
	h.markSuccessLocked()
}

// RecordEmpty records a successful fetch that returned no changes.
func (h *Checker) RecordEmpty() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cycles++
	h.emptyCycles++
	h.markSuccessLocked()
}

// RecordError records a failed fetch.
func (h *Checker) RecordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cycles++
	h.failures++
	h.consecutiveFailures++
	if err != nil {
		h.lastError = err.Error()
	}
}

// RecordStale records a result discarded because the session changed.
func (h *Checker) RecordStale() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.staleResults++
}

// RecordSpuriousWakeup records a timer wake-up that arrived while not armed.
func (h *Checker) RecordSpuriousWakeup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.spuriousWakeups++
}

func (h *Checker) markSuccessLocked() {
	h.lastSuccess = time.Now()
	h.consecutiveFailures = 0
	h.lastError = ""
}

// GetReport returns the current health report.
func (h *Checker) GetReport() Report {
	h.mu.RLock()
	defer h.mu.RUnlock()

	report := Report{
		Status:              StatusOK,
		Uptime:              time.Since(h.startedAt).Round(time.Second).String(),
		StartedAt:           h.startedAt,
		State:               h.state,
		LastError:           h.lastError,
		Cycles:              h.cycles,
		ChangeSets:          h.changeSets,
		EmptyCycles:         h.emptyCycles,
		Failures:            h.failures,
		ConsecutiveFailures: h.consecutiveFailures,
		StaleResults:        h.staleResults,
		SpuriousWakeups:     h.spuriousWakeups,
		Subscribers:         h.subscribers,
	}
	if !h.watermark.IsZero() {
		w := h.watermark
		report.Watermark = &w
	}
	if !h.lastSuccess.IsZero() {
		ls := h.lastSuccess
		report.LastSuccess = &ls
	}

	switch {
	case h.consecutiveFailures > degradedAfter:
		report.Status = StatusDegraded
	case h.state == "stopped":
		report.Status = StatusIdle
	}

	return report
}

// Check returns the overall health status.
func (h *Checker) Check() Status {
	return h.GetReport().Status
}

// ServeHTTP implements http.Handler for health endpoint.
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.GetReport()

	w.Header().Set("Content-Type", "application/json")
	// Degraded and idle are still 200: the host process is fine.
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(report); err != nil {
		h.logger.Warn("failed to encode health report", "error", err)
	}
}

// StartServer starts an HTTP health server. It blocks until ctx is done.
func StartServer(ctx context.Context, addr, path string, checker *Checker) error {
	if path == "" {
		path = "/health"
	}
	mux := http.NewServeMux()
	mux.Handle(path, checker)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	checker.logger.Info("health server starting", "address", addr, "path", path)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
