package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "detailing"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	availabilityResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_results_total",
			Help:      "Availability lookups by outcome (closed, live, degraded).",
		},
		[]string{"outcome"},
	)

	slotCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_cache_lookups_total",
			Help:      "Booked-slot cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	quotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Price quotes by whether the postcode needs manual review.",
		},
		[]string{"needs_review"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings accepted.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, availabilityResults, slotCacheLookups, quotes, bookingsCreated)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncAvailability(outcome string) {
	availabilityResults.WithLabelValues(outcome).Inc()
}

func IncSlotCache(result string) {
	slotCacheLookups.WithLabelValues(result).Inc()
}

func IncQuote(needsReview bool) {
	label := "false"
	if needsReview {
		label = "true"
	}
	quotes.WithLabelValues(label).Inc()
}

func IncBookingCreated() {
	bookingsCreated.Inc()
}
