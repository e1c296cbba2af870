package catalog

import (
	"errors"
	"fmt"
	"strings"

	"detailing/internal/models"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is the immutable price list: services, add-ons and travel zones.
// It is built once at start-up and shared read-only afterwards.
type Catalog struct {
	services   []models.Service
	serviceIdx map[models.ServiceType]int
	addOns     []models.AddOn
	addOnIdx   map[string]int
	zones      []models.TravelZone
	maxZoneFee float64
}

// New validates the tables and returns a catalog holding private copies of them.
func New(services []models.Service, addOns []models.AddOn, zones []models.TravelZone) (*Catalog, error) {
	c := &Catalog{
		serviceIdx: make(map[models.ServiceType]int, len(services)),
		addOnIdx:   make(map[string]int, len(addOns)),
	}

	for _, s := range services {
		if strings.TrimSpace(string(s.ID)) == "" {
			return nil, fmt.Errorf("%w: service %q has empty id", ErrInvalidCatalog, s.Name)
		}
		if _, dup := c.serviceIdx[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate service id %q", ErrInvalidCatalog, s.ID)
		}
		if err := validatePrices(string(s.ID), s.BasePrice); err != nil {
			return nil, err
		}
		c.serviceIdx[s.ID] = len(c.services)
		c.services = append(c.services, copyService(s))
	}

	for _, a := range addOns {
		if strings.TrimSpace(a.ID) == "" {
			return nil, fmt.Errorf("%w: add-on %q has empty id", ErrInvalidCatalog, a.Name)
		}
		if _, dup := c.addOnIdx[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate add-on id %q", ErrInvalidCatalog, a.ID)
		}
		if err := validatePrices(a.ID, a.Price); err != nil {
			return nil, err
		}
		c.addOnIdx[a.ID] = len(c.addOns)
		c.addOns = append(c.addOns, copyAddOn(a))
	}

	names := make(map[string]bool, len(zones))
	for _, z := range zones {
		if z.Name == "" {
			return nil, fmt.Errorf("%w: travel zone without name", ErrInvalidCatalog)
		}
		if names[z.Name] {
			return nil, fmt.Errorf("%w: duplicate travel zone %q", ErrInvalidCatalog, z.Name)
		}
		names[z.Name] = true
		if z.Fee < 0 {
			return nil, fmt.Errorf("%w: travel zone %q has negative fee", ErrInvalidCatalog, z.Name)
		}
		if len(z.Prefixes) == 0 {
			return nil, fmt.Errorf("%w: travel zone %q has no prefixes", ErrInvalidCatalog, z.Name)
		}

		zone := models.TravelZone{Name: z.Name, Fee: z.Fee, Prefixes: make([]string, 0, len(z.Prefixes))}
		for _, p := range z.Prefixes {
			p = strings.ToUpper(strings.Join(strings.Fields(p), ""))
			if p == "" {
				return nil, fmt.Errorf("%w: travel zone %q has an empty prefix", ErrInvalidCatalog, z.Name)
			}
			zone.Prefixes = append(zone.Prefixes, p)
		}
		if zone.Fee > c.maxZoneFee {
			c.maxZoneFee = zone.Fee
		}
		c.zones = append(c.zones, zone)
	}

	return c, nil
}

func validatePrices(id string, prices map[models.VehicleSize]float64) error {
	for _, size := range models.VehicleSizes {
		price, ok := prices[size]
		if !ok {
			return fmt.Errorf("%w: %q has no price for vehicle size %q", ErrInvalidCatalog, id, size)
		}
		if price < 0 {
			return fmt.Errorf("%w: %q has negative price for vehicle size %q", ErrInvalidCatalog, id, size)
		}
	}
	for size := range prices {
		if !size.Valid() {
			return fmt.Errorf("%w: %q is priced for unknown vehicle size %q", ErrInvalidCatalog, id, size)
		}
	}
	return nil
}

// Service returns a copy of the service with the given id.
func (c *Catalog) Service(id models.ServiceType) (models.Service, bool) {
	i, ok := c.serviceIdx[id]
	if !ok {
		return models.Service{}, false
	}
	return copyService(c.services[i]), true
}

// AddOn returns a copy of the add-on with the given id.
func (c *Catalog) AddOn(id string) (models.AddOn, bool) {
	i, ok := c.addOnIdx[id]
	if !ok {
		return models.AddOn{}, false
	}
	return copyAddOn(c.addOns[i]), true
}

// BasePrice looks up a service price without copying. The second value
// reports whether both the service and the size were found.
func (c *Catalog) BasePrice(id models.ServiceType, size models.VehicleSize) (float64, bool) {
	i, ok := c.serviceIdx[id]
	if !ok {
		return 0, false
	}
	price, ok := c.services[i].BasePrice[size]
	return price, ok
}

func (c *Catalog) AddOnPrice(id string, size models.VehicleSize) (float64, bool) {
	i, ok := c.addOnIdx[id]
	if !ok {
		return 0, false
	}
	price, ok := c.addOns[i].Price[size]
	return price, ok
}

func (c *Catalog) Services() []models.Service {
	out := make([]models.Service, len(c.services))
	for i, s := range c.services {
		out[i] = copyService(s)
	}
	return out
}

func (c *Catalog) AddOns() []models.AddOn {
	out := make([]models.AddOn, len(c.addOns))
	for i, a := range c.addOns {
		out[i] = copyAddOn(a)
	}
	return out
}

// Zones returns the travel zones in declaration order.
func (c *Catalog) Zones() []models.TravelZone {
	out := make([]models.TravelZone, len(c.zones))
	for i, z := range c.zones {
		out[i] = models.TravelZone{Name: z.Name, Fee: z.Fee, Prefixes: append([]string(nil), z.Prefixes...)}
	}
	return out
}

// MaxZoneFee is the fee charged for postcodes outside every zone.
func (c *Catalog) MaxZoneFee() float64 {
	return c.maxZoneFee
}

func copyService(s models.Service) models.Service {
	s.Features = append([]string(nil), s.Features...)
	s.BasePrice = copyPrices(s.BasePrice)
	return s
}

func copyAddOn(a models.AddOn) models.AddOn {
	a.Price = copyPrices(a.Price)
	return a
}

func copyPrices(in map[models.VehicleSize]float64) map[models.VehicleSize]float64 {
	out := make(map[models.VehicleSize]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
