package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, name, label, value string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
		IncSlotCache("hit")
		IncBookingCreated()
	})
}

func TestAvailabilityCounter(t *testing.T) {
	Register()
	before := counterValue(t, "detailing_availability_results_total", "outcome", "degraded")
	IncAvailability("degraded")
	assert.Equal(t, before+1, counterValue(t, "detailing_availability_results_total", "outcome", "degraded"))
}

func TestQuoteCounterLabels(t *testing.T) {
	Register()
	beforeTrue := counterValue(t, "detailing_quotes_total", "needs_review", "true")
	beforeFalse := counterValue(t, "detailing_quotes_total", "needs_review", "false")

	IncQuote(true)
	IncQuote(false)
	IncQuote(false)

	assert.Equal(t, beforeTrue+1, counterValue(t, "detailing_quotes_total", "needs_review", "true"))
	assert.Equal(t, beforeFalse+2, counterValue(t, "detailing_quotes_total", "needs_review", "false"))
}
