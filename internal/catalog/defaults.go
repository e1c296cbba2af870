package catalog

import "detailing/internal/models"

func prices(small, medium, large, van float64) map[models.VehicleSize]float64 {
	return map[models.VehicleSize]float64{
		models.VehicleSmall:  small,
		models.VehicleMedium: medium,
		models.VehicleLarge:  large,
		models.VehicleVan:    van,
	}
}

// Default returns the standard price list used when no catalog file is configured.
func Default() *Catalog {
	services := []models.Service{
		{
			ID:          models.ServiceBasicWash,
			Name:        "Basic Wash",
			Description: "Exterior hand wash and dry with wheels and tyres cleaned.",
			Features:    []string{"Snow foam pre-wash", "Two-bucket hand wash", "Wheels and tyres", "Hand dry"},
			BasePrice:   prices(49.99, 59.99, 69.99, 79.99),
		},
		{
			ID:          models.ServiceFullValet,
			Name:        "Full Valet",
			Description: "Complete inside and out clean for a showroom finish.",
			Features:    []string{"Everything in Basic Wash", "Interior vacuum", "Dashboard and trim", "Windows inside and out"},
			BasePrice:   prices(99.99, 119.99, 139.99, 159.99),
		},
		{
			ID:          models.ServicePremiumDetail,
			Name:        "Premium Detail",
			Description: "Paint decontamination, machine polish and protection.",
			Features:    []string{"Everything in Full Valet", "Clay bar decontamination", "Single-stage machine polish", "Sealant protection"},
			BasePrice:   prices(199.99, 229.99, 259.99, 299.99),
		},
	}

	addOns := []models.AddOn{
		{ID: "ceramic-boost", Name: "Ceramic Boost", Description: "Ceramic spray top-up for extra gloss and beading.", Price: prices(29.99, 34.99, 39.99, 49.99)},
		{ID: "interior-sanitize", Name: "Interior Sanitize", Description: "Steam sanitising of seats, vents and touch points.", Price: prices(19.99, 24.99, 29.99, 34.99)},
		{ID: "pet-hair-removal", Name: "Pet Hair Removal", Description: "Deep removal of embedded pet hair.", Price: prices(15, 20, 25, 30)},
		{ID: "engine-bay-clean", Name: "Engine Bay Clean", Description: "Degrease and dress the engine bay.", Price: prices(25, 25, 30, 35)},
		{ID: "headlight-restoration", Name: "Headlight Restoration", Description: "Sand, polish and seal both headlights.", Price: prices(35, 35, 35, 35)},
	}

	// BN17, BN18 and BN24-BN27 are deliberately absent and get the fallback fee.
	zones := []models.TravelZone{
		{Name: "worthing", Prefixes: []string{"BN11", "BN12", "BN13", "BN14", "BN15", "BN16"}, Fee: 15},
		{Name: "lewes", Prefixes: []string{"BN7", "BN8", "BN10"}, Fee: 15},
		{Name: "eastbourne", Prefixes: []string{"BN20", "BN21", "BN22", "BN23"}, Fee: 25},
		{Name: "local", Prefixes: []string{"BN1", "BN2", "BN3"}, Fee: 0},
		{Name: "near", Prefixes: []string{"BN41", "BN42", "BN43", "BN5", "BN6"}, Fee: 10},
	}

	c, err := New(services, addOns, zones)
	if err != nil {
		panic("catalog: built-in catalog is invalid: " + err.Error())
	}
	return c
}
