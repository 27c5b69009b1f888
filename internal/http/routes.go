package http

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-journal-service/internal/observability"
)

// RouterConfig holds the transport settings for NewRouter.
type RouterConfig struct {
	Logger             *zap.Logger
	Limiter            *rate.Limiter // nil disables rate limiting
	RequestTimeout     time.Duration
	StaticDir          string // "" or a missing directory disables static serving
	CORSAllowedOrigins []string
}

// NewRouter wires the entry routes, health, metrics and the static site.
// Writes (POST /addWeather, DELETE /weather) are rate limited and time-bounded.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	write := func(fn http.HandlerFunc) http.Handler {
		return RateLimitMiddleware(cfg.Limiter)(TimeoutMiddleware(cfg.RequestTimeout)(fn))
	}
	router.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)
	router.Handle("/weather", write(h.ClearWeather)).Methods(http.MethodDelete)
	router.Handle("/addWeather", write(h.AddWeather)).Methods(http.MethodPost)

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			router.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir))).Methods(http.MethodGet, http.MethodHead)
			logger.Info("serving static files", zap.String("dir", cfg.StaticDir))
		} else {
			logger.Warn("static directory not found; static serving disabled", zap.String("dir", cfg.StaticDir))
		}
	}

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return CORSMiddleware(origins)(router)
}
