package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-journal-service/internal/lifecycle"
	"github.com/kjstillabower/weather-journal-service/internal/models"
	"github.com/kjstillabower/weather-journal-service/internal/observability"
	"github.com/kjstillabower/weather-journal-service/internal/traffic"
	"github.com/kjstillabower/weather-journal-service/internal/validation"
)

// Response messages returned by the entry routes.
const (
	msgEntryAdded      = "Weather entry added successfully"
	msgEntrySaveFailed = "Failed to save weather entry"
	msgEntriesCleared  = "All weather entries cleared"
	msgClearFailed     = "Failed to clear weather entries"
	msgInvalidPayload  = "Invalid weather entry payload"
	msgPayloadTooLarge = "Weather entry payload too large"
)

// EntryStore is the record store as seen by the handlers.
type EntryStore interface {
	LoadAll(ctx context.Context) models.Collection
	Append(ctx context.Context, entry models.Entry) (models.Entry, error)
	Clear(ctx context.Context) error
	Ping() error
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store            EntryStore
	healthConfig     *HealthConfig
	logger           *zap.Logger
	maxBodyBytes     int64
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. maxBodyBytes <= 0 uses validation.DefaultMaxBodyBytes.
func NewHandler(store EntryStore, healthConfig *HealthConfig, logger *zap.Logger, maxBodyBytes int64) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:        store,
		healthConfig: healthConfig,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// mutationResponse is the body of POST /addWeather and DELETE /weather.
type mutationResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    models.Entry `json:"data,omitempty"`
}

// GetWeather handles GET /weather. Always 200; an unreadable store yields [].
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	entries := h.store.LoadAll(r.Context())
	writeJSON(w, http.StatusOK, entries)
	h.requestLogger(r).Info("weather data retrieved", zap.Int("entries", len(entries)))
}

// AddWeather handles POST /addWeather.
func (h *Handler) AddWeather(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	entry, err := validation.DecodeEntry(r, h.maxBodyBytes)
	if err != nil {
		status, msg := http.StatusBadRequest, msgInvalidPayload
		if errors.Is(err, validation.ErrPayloadTooLarge) {
			status, msg = http.StatusRequestEntityTooLarge, msgPayloadTooLarge
		}
		logger.Debug("rejected weather entry", zap.Error(err))
		writeJSON(w, status, mutationResponse{Success: false, Message: msg})
		return
	}

	stored, err := h.store.Append(r.Context(), entry)
	if err != nil {
		traffic.RecordWriteError()
		logger.Error("add weather entry", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, mutationResponse{Success: false, Message: msgEntrySaveFailed})
		return
	}
	traffic.RecordWriteSuccess()
	observability.EntriesAddedTotal.Inc()
	writeJSON(w, http.StatusOK, mutationResponse{Success: true, Message: msgEntryAdded, Data: stored})
	logger.Info("new weather entry added", zap.String("city", stored.City()))
}

// ClearWeather handles DELETE /weather.
func (h *Handler) ClearWeather(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	if err := h.store.Clear(r.Context()); err != nil {
		traffic.RecordWriteError()
		logger.Error("clear weather entries", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, mutationResponse{Success: false, Message: msgClearFailed})
		return
	}
	traffic.RecordWriteSuccess()
	writeJSON(w, http.StatusOK, mutationResponse{Success: true, Message: msgEntriesCleared})
	logger.Info("all weather entries cleared")
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	storeErr := h.store.Ping()
	result := h.computeHealthStatus(storeErr)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"store": "healthy"}
	if storeErr != nil {
		checks["store"] = "unhealthy"
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > store unreachable > write error rate > healthy.
func (h *Handler) computeHealthStatus(storeErr error) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if cfg := h.healthConfig; cfg != nil && cfg.RateLimitRPS > 0 && cfg.OverloadWindow > 0 {
		threshold := float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(cfg.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if storeErr != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable"}
	}
	if cfg := h.healthConfig; cfg != nil && cfg.DegradedWindow > 0 && cfg.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(cfg.DegradedWindow)
		if total > 0 && float64(errs)*100/float64(total) >= float64(cfg.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "write_error_rate"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// requestLogger returns the correlation-scoped logger placed on the context by
// CorrelationIDMiddleware, falling back to the handler's logger.
func (h *Handler) requestLogger(r *http.Request) *zap.Logger {
	if l, ok := r.Context().Value("logger").(*zap.Logger); ok && l != nil {
		return l
	}
	return h.logger
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		corrID = v
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
