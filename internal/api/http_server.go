package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"detailing/internal/availability"
	"detailing/internal/config"
	"detailing/internal/database"
	"detailing/internal/pricing"
	"detailing/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Pinger is satisfied by *database.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Dependencies are the services the HTTP handlers call into.
type Dependencies struct {
	Pricing      *pricing.Engine
	Availability *availability.Engine
	Bookings     *service.BookingService
	DB           Pinger
	ExportsPath  string
}

// HTTPServer exposes the JSON API alongside the gRPC service.
type HTTPServer struct {
	cfg    config.APIConfig
	deps   Dependencies
	server *http.Server
	auth   *HTTPAuth
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Dependencies, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{cfg: cfg, deps: deps, auth: NewHTTPAuth(cfg), logger: logger}

	r := mux.NewRouter()
	r.Use(metricsMiddleware)
	r.HandleFunc("/healthz", srv.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", srv.handleReadyz).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(srv.auth.Middleware)

	api.HandleFunc("/catalog", srv.handleCatalog).Methods(http.MethodGet)
	api.HandleFunc("/prices/base", srv.handleBasePrice).Methods(http.MethodGet)
	api.HandleFunc("/prices/add-ons", srv.handleAddOnsPrice).Methods(http.MethodPost)
	api.HandleFunc("/travel-fee", srv.handleTravelFee).Methods(http.MethodGet)
	api.HandleFunc("/quote", srv.handleQuote).Methods(http.MethodPost)
	api.HandleFunc("/slots", srv.handleSlots).Methods(http.MethodGet)

	api.HandleFunc("/bookings", srv.handleCreateBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings", srv.handleListBookings).Methods(http.MethodGet)
	api.HandleFunc("/bookings/export", srv.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id:[0-9]+}", srv.handleGetBooking).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id:[0-9]+}/status", srv.handleUpdateStatus).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	handler := loggingMiddleware(logger)(corsMiddleware(cfg)(r))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

// Handler returns the full middleware stack.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// statusForError maps service and store errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, database.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSlotUnavailable),
		errors.Is(err, database.ErrSlotTaken),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnknownService),
		errors.Is(err, service.ErrUnknownVehicleSize),
		errors.Is(err, service.ErrUnknownAddOn),
		errors.Is(err, service.ErrMissingCustomer),
		errors.Is(err, service.ErrClosedDay),
		errors.Is(err, service.ErrUnknownSlot),
		errors.Is(err, service.ErrPastDate),
		errors.Is(err, service.ErrDateTooFar):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusForError(err)
	if code == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}
