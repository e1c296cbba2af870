package pricing

import (
	"detailing/internal/catalog"
	"detailing/internal/models"
)

// Engine prices selections against a catalog. All methods are pure:
// missing catalog keys contribute zero instead of failing.
type Engine struct {
	catalog *catalog.Catalog
	zones   []models.TravelZone
	maxFee  float64
}

func NewEngine(c *catalog.Catalog) *Engine {
	return &Engine{
		catalog: c,
		zones:   c.Zones(),
		maxFee:  c.MaxZoneFee(),
	}
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// BasePrice returns the service price for the vehicle size, or 0 when
// either key is unknown.
func (e *Engine) BasePrice(serviceType models.ServiceType, size models.VehicleSize) float64 {
	price, _ := e.catalog.BasePrice(serviceType, size)
	return price
}

// AddOnsPrice sums the add-on prices for the vehicle size. Unknown ids are
// skipped and repeated ids are charged each time they appear.
func (e *Engine) AddOnsPrice(ids []string, size models.VehicleSize) float64 {
	var total float64
	for _, id := range ids {
		price, ok := e.catalog.AddOnPrice(id, size)
		if !ok {
			continue
		}
		total += price
	}
	return total
}

// TravelFee returns the fee of the first zone matching the postcode, or the
// highest zone fee when nothing matches. A zone prefix matches whole areas or
// districts only, see matchesOutward.
func (e *Engine) TravelFee(postcode string) float64 {
	return e.TravelQuote(postcode).Fee
}

type TravelQuote struct {
	Postcode string  `json:"postcode"`
	Outward  string  `json:"outward_code"`
	Zone     string  `json:"zone,omitempty"`
	Fee      float64 `json:"fee"`
	Matched  bool    `json:"matched"`
}

// NeedsReview reports that the fallback fee was applied.
func (q TravelQuote) NeedsReview() bool {
	return !q.Matched
}

func (e *Engine) TravelQuote(postcode string) TravelQuote {
	normalized := NormalizePostcode(postcode)
	outward := OutwardCode(normalized)
	q := TravelQuote{Postcode: normalized, Outward: outward, Fee: e.maxFee}
	if outward == "" {
		return q
	}

	for _, zone := range e.zones {
		for _, prefix := range zone.Prefixes {
			if matchesOutward(outward, prefix) {
				q.Zone = zone.Name
				q.Fee = zone.Fee
				q.Matched = true
				return q
			}
		}
	}
	return q
}
