package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"detailing/internal/export"
	"detailing/internal/metrics"
	"detailing/internal/models"
	"detailing/internal/pricing"
	"detailing/internal/service"

	"github.com/gorilla/mux"
)

const maxExportDays = 62

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	cat := s.deps.Pricing.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"services":     cat.Services(),
		"add_ons":      cat.AddOns(),
		"travel_zones": cat.Zones(),
	})
}

// Unknown service or size prices at zero.
func (s *HTTPServer) handleBasePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount := s.deps.Pricing.BasePrice(
		models.ServiceType(strings.TrimSpace(q.Get("service"))),
		models.VehicleSize(strings.TrimSpace(q.Get("size"))),
	)
	writeJSON(w, http.StatusOK, map[string]float64{"amount": amount})
}

func (s *HTTPServer) handleAddOnsPrice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VehicleSize models.VehicleSize `json:"vehicle_size"`
		AddOns      []string           `json:"add_ons"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"amount": s.deps.Pricing.AddOnsPrice(body.AddOns, body.VehicleSize),
	})
}

func (s *HTTPServer) handleTravelFee(w http.ResponseWriter, r *http.Request) {
	postcode := r.URL.Query().Get("postcode")
	if strings.TrimSpace(postcode) == "" {
		writeError(w, http.StatusBadRequest, "postcode is required")
		return
	}
	writeJSON(w, http.StatusOK, travelFeeResponse(s.deps.Pricing.TravelQuote(postcode)))
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req pricing.QuoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	quote := s.deps.Pricing.Quote(req)
	metrics.IncQuote(quote.NeedsReview)
	writeJSON(w, http.StatusOK, quoteResponse(quote))
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r, "date")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, slotsResponse(s.deps.Availability.GetAvailableSlots(r.Context(), date)))
}

type createBookingRequest struct {
	service.BookingRequest
	Date string `json:"booking_date"`
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	if !decodeBody(w, r, &body) {
		return
	}

	date, err := s.deps.Availability.Schedule().ParseDate(strings.TrimSpace(body.Date))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking_date; expected YYYY-MM-DD")
		return
	}

	req := body.BookingRequest
	req.Date = date
	booking, err := s.deps.Bookings.CreateBooking(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}
	booking, err := s.deps.Bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	var body struct {
		Status  string `json:"status"`
		Version int64  `json:"version"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Status == "" || body.Version <= 0 {
		writeError(w, http.StatusBadRequest, "status and version are required")
		return
	}

	booking, err := s.deps.Bookings.UpdateStatus(r.Context(), id, body.Version, body.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	from, to, ok := s.rangeParams(w, r)
	if !ok {
		return
	}
	bookings, err := s.deps.Bookings.ListBookings(r.Context(), from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := s.rangeParams(w, r)
	if !ok {
		return
	}
	if to.Sub(from) > maxExportDays*24*time.Hour {
		writeError(w, http.StatusBadRequest, "export range is limited to 62 days")
		return
	}

	bookings, err := s.deps.Bookings.ListBookings(r.Context(), from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	f, err := export.ScheduleWorkbook(from, to, s.deps.Availability.Schedule().Slots(), bookings)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	if s.deps.ExportsPath != "" {
		if path, err := export.Save(f, s.deps.ExportsPath, from, to); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to archive export")
		} else {
			s.logger.Info().Str("file_path", path).Msg("Excel file created")
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(from, to)+`"`)
	if err := f.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("Failed to stream export")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func bookingID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return 0, false
	}
	return id, true
}

func (s *HTTPServer) dateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		writeError(w, http.StatusBadRequest, name+" is required")
		return time.Time{}, false
	}
	date, err := s.deps.Availability.Schedule().ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+" format; expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func (s *HTTPServer) rangeParams(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	if from, ok = s.dateParam(w, r, "from"); !ok {
		return
	}
	if to, ok = s.dateParam(w, r, "to"); !ok {
		return
	}
	if to.Before(from) {
		from, to = to, from
	}
	return from, to, true
}
