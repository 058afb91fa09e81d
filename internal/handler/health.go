package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/alpine-chat/pkg/logger"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store         Pinger
	nats          Pinger
	llmConfigured bool
	llmProvider   string
	logger        *logger.Logger
}

// NewHealthHandler creates a new health handler. nats may be nil when
// event publishing is disabled.
func NewHealthHandler(store Pinger, nats Pinger, llmProvider string, llmConfigured bool, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		store:         store,
		nats:          nats,
		llmConfigured: llmConfigured,
		llmProvider:   llmProvider,
		logger:        log,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. The LLM flag is informational only.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"store": h.check(ctx, "store", h.store)}
	if h.nats != nil {
		checks["nats"] = h.check(ctx, "nats", h.nats)
	}

	ready := true
	for _, state := range checks {
		if state != "ok" {
			ready = false
		}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
		"llm": map[string]interface{}{
			"provider":   h.llmProvider,
			"configured": h.llmConfigured,
		},
	})
}

// check pings a dependency. Failure details go to the log only.
func (h *HealthHandler) check(ctx context.Context, name string, p Pinger) string {
	if err := p.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
		return "unavailable"
	}
	return "ok"
}
