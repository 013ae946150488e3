package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/upb/emergency-console/services/audit"
	"github.com/upb/emergency-console/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// AuditStats reports the state of the audit writer
type AuditStats interface {
	GetStats() audit.Stats
}

// HealthHandler handles liveness and readiness checks
type HealthHandler struct {
	db     *sql.DB
	audit  AuditStats
	store  string
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db is nil for the in-memory
// store.
func NewHealthHandler(db *sql.DB, auditStats AuditStats, store string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		audit:  auditStats,
		store:  store,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz. Always 200 while the process serves.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	switch {
	case h.db == nil:
		checks["store"] = h.store
	default:
		if err := h.checkDatabase(ctx); err != nil {
			h.logger.Warn("database readiness check failed", zap.Error(err))
			checks["database"] = "unhealthy"
			ready = false
		} else {
			checks["database"] = "healthy"
		}
	}

	if h.audit != nil {
		stats := h.audit.GetStats()
		if stats.Started {
			checks["audit"] = "running"
		} else {
			checks["audit"] = "stopped"
			ready = false
		}
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
