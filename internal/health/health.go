// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/jensholdgaard/cricket-auction/internal/clock"
)

const checkTimeout = 5 * time.Second

// Roles reported by the readiness probe.
const (
	RoleLeader  = "leader"
	RoleStandby = "standby"
)

// Status represents a health check result.
type Status struct {
	Status    string            `json:"status"`
	Role      string            `json:"role,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Checker is a named dependency probe.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler provides HTTP health check endpoints. A replica is ready only
// while it owns the auction.
type Handler struct {
	mu       sync.RWMutex
	ready    bool
	checkers []Checker
	clock    clock.Clock
}

// NewHandler creates a new health handler with the given checkers.
func NewHandler(clk clock.Clock, checkers ...Checker) *Handler {
	return &Handler{checkers: checkers, clock: clk}
}

// SetReady marks the service as owning the auction and ready for traffic.
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// Mount registers /healthz and /readyz on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/healthz", h.LivenessHandler())
	r.Get("/readyz", h.ReadinessHandler())
}

// LivenessHandler returns HTTP 200 if the process is alive.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Status{Status: "ok", Timestamp: h.now()})
	}
}

// ReadinessHandler returns HTTP 200 if this replica is serving and every
// checker passes. Checkers run concurrently.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		ready := h.ready
		h.mu.RUnlock()

		if !ready {
			writeJSON(w, http.StatusServiceUnavailable, Status{
				Status:    "not_ready",
				Role:      RoleStandby,
				Timestamp: h.now(),
			})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		results := make([]error, len(h.checkers))
		var g errgroup.Group
		for i, c := range h.checkers {
			g.Go(func() error {
				results[i] = c.Check(ctx)
				return nil
			})
		}
		_ = g.Wait()

		checks := make(map[string]string, len(h.checkers))
		status, code := "ready", http.StatusOK
		for i, c := range h.checkers {
			if err := results[i]; err != nil {
				checks[c.Name] = err.Error()
				status, code = "not_ready", http.StatusServiceUnavailable
				continue
			}
			checks[c.Name] = "ok"
		}

		writeJSON(w, code, Status{
			Status:    status,
			Role:      RoleLeader,
			Checks:    checks,
			Timestamp: h.now(),
		})
	}
}

func (h *Handler) now() string {
	return h.clock.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
