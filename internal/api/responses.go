package api

import (
	"detailing/internal/availability"
	"detailing/internal/models"
	"detailing/internal/pricing"
)

// Response bodies shared by HTTP and gRPC. Values stay within the types
// structpb.NewValue accepts.

func slotsResponse(res availability.Result) map[string]any {
	slots := make([]any, 0, len(res.Slots))
	for _, s := range res.Slots {
		slots = append(slots, map[string]any{
			"time":         s.Time,
			"label":        s.Label,
			"is_available": s.IsAvailable,
		})
	}
	return map[string]any{
		"date":            res.Date.Format(models.DateLayout),
		"outcome":         string(res.Outcome),
		"degraded":        res.Degraded(),
		"available_count": res.AvailableCount(),
		"slots":           slots,
	}
}

func quoteResponse(q pricing.Quote) map[string]any {
	return map[string]any{
		"service_type":  string(q.ServiceType),
		"vehicle_size":  string(q.VehicleSize),
		"add_ons":       stringsToAny(q.AddOns),
		"postcode":      q.Postcode,
		"base_price":    q.BasePrice,
		"add_ons_price": q.AddOnsPrice,
		"travel_fee":    q.TravelFee,
		"travel_zone":   q.TravelZone,
		"total":         q.Total,
		"needs_review":  q.NeedsReview,
	}
}

func travelFeeResponse(q pricing.TravelQuote) map[string]any {
	return map[string]any{
		"amount":       q.Fee,
		"zone":         q.Zone,
		"needs_review": q.NeedsReview(),
		"postcode":     q.Postcode,
		"outward_code": q.Outward,
	}
}

func stringsToAny(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
