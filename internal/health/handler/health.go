// Package handler reports liveness and readiness over HTTP and the standard gRPC health service.
package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"pawplanner/backend/internal/platform/httpx"
)

const checkTimeout = 2 * time.Second

// Pinger checks the database connection (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the policy engine can evaluate (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler runs the readiness checks. A nil Pinger or PolicyChecker is skipped.
type Handler struct {
	pinger Pinger
	policy PolicyChecker
}

// NewHandler returns a Handler. Either dependency may be nil.
func NewHandler(pinger Pinger, policy PolicyChecker) *Handler {
	return &Handler{pinger: pinger, policy: policy}
}

// StatusResponse is the body of /healthz and /readyz.
type StatusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Ready runs every configured check and returns the first failure.
func (h *Handler) Ready(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	results := make(map[string]string)
	var firstErr error
	if h.pinger != nil {
		if err := h.pinger.PingContext(ctx); err != nil {
			results["database"] = "unavailable"
			firstErr = fmt.Errorf("database: %w", err)
		} else {
			results["database"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			results["policy"] = "unavailable"
			if firstErr == nil {
				firstErr = fmt.Errorf("policy: %w", err)
			}
		} else {
			results["policy"] = "ok"
		}
	}
	return results, firstErr
}

// Liveness serves GET /healthz. It never touches dependencies.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// Readiness serves GET /readyz: 200 when every check passes, otherwise 503.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	checks, err := h.Ready(r.Context())
	if err != nil {
		log.Printf("health: not ready: %v", err)
		httpx.WriteJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "unavailable", Checks: checks})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok", Checks: checks})
}

// SyncGRPC sets the serving status of services (and the overall "" entry) on hs from one readiness run.
func (h *Handler) SyncGRPC(ctx context.Context, hs *health.Server, services ...string) {
	st := healthpb.HealthCheckResponse_SERVING
	if _, err := h.Ready(ctx); err != nil {
		log.Printf("health: grpc not serving: %v", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", st)
	for _, svc := range services {
		hs.SetServingStatus(svc, st)
	}
}

// WatchGRPC calls SyncGRPC every interval until ctx is done.
func (h *Handler) WatchGRPC(ctx context.Context, hs *health.Server, interval time.Duration, services ...string) {
	h.SyncGRPC(ctx, hs, services...)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.SyncGRPC(ctx, hs, services...)
		}
	}
}
