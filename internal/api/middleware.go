package api

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"detailing/internal/config"
	"detailing/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// HTTPAuth provides API-key auth and per-client rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		keys:    newKeyring(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *HTTPAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	client, err := a.keys.authenticate(
		strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)),
		strings.TrimSpace(r.Header.Get(a.keys.extraHeader)),
	)
	if err != nil {
		return err
	}
	if !hasPermission(client, requiredPermissionHTTP(r)) {
		return errPermissionDenied
	}
	return nil
}

func requiredPermissionHTTP(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch {
	case path == "/slots":
		return permReadAvailability
	case strings.HasPrefix(path, "/bookings"):
		if r.Method == http.MethodPost {
			return permWriteBookings
		}
		return permReadBookings
	case path == "/catalog", strings.HasPrefix(path, "/prices"), path == "/travel-fee", path == "/quote":
		return permReadCatalog
	default:
		return ""
	}
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)); apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

// corsMiddleware answers preflight requests with 204.
func corsMiddleware(cfg config.APIConfig) func(http.Handler) http.Handler {
	origins := cfg.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	keys := newKeyring(cfg.Auth)
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDKey, keys.apiKeyHeader, keys.extraHeader}),
		handlers.ExposedHeaders([]string{requestIDKey}),
		handlers.OptionStatusCode(http.StatusNoContent),
	)
}

func loggingMiddleware(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := strings.TrimSpace(r.Header.Get(requestIDKey))
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDKey, requestID)

			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			logger.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", recorder.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

// metricsMiddleware counts requests per route template.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		metrics.IncHTTP(endpoint)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
