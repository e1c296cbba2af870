package pricing

import (
	"math"

	"detailing/internal/models"
)

type QuoteRequest struct {
	ServiceType models.ServiceType `json:"service_type"`
	VehicleSize models.VehicleSize `json:"vehicle_size"`
	AddOns      []string           `json:"add_ons"`
	Postcode    string             `json:"postcode"`
}

type Quote struct {
	ServiceType models.ServiceType `json:"service_type"`
	VehicleSize models.VehicleSize `json:"vehicle_size"`
	AddOns      []string           `json:"add_ons"`
	Postcode    string             `json:"postcode"`
	BasePrice   float64            `json:"base_price"`
	AddOnsPrice float64            `json:"add_ons_price"`
	TravelFee   float64            `json:"travel_fee"`
	TravelZone  string             `json:"travel_zone,omitempty"`
	Total       float64            `json:"total"`
	NeedsReview bool               `json:"needs_review"`
}

// Priced is false when the service/size pair could not be priced.
func (q Quote) Priced() bool {
	return q.BasePrice > 0
}

// Quote combines the three price components into one total.
func (e *Engine) Quote(req QuoteRequest) Quote {
	base := e.BasePrice(req.ServiceType, req.VehicleSize)
	addOns := e.AddOnsPrice(req.AddOns, req.VehicleSize)
	travel := e.TravelQuote(req.Postcode)

	return Quote{
		ServiceType: req.ServiceType,
		VehicleSize: req.VehicleSize,
		AddOns:      append([]string(nil), req.AddOns...),
		Postcode:    travel.Postcode,
		BasePrice:   base,
		AddOnsPrice: roundPennies(addOns),
		TravelFee:   travel.Fee,
		TravelZone:  travel.Zone,
		Total:       roundPennies(base + addOns + travel.Fee),
		NeedsReview: travel.NeedsReview(),
	}
}

func roundPennies(v float64) float64 {
	return math.Round(v*100) / 100
}
