package models

// VehicleSize is the pricing dimension shared by services and add-ons.
type VehicleSize string

const (
	VehicleSmall  VehicleSize = "small"
	VehicleMedium VehicleSize = "medium"
	VehicleLarge  VehicleSize = "large"
	VehicleVan    VehicleSize = "van"
)

// VehicleSizes lists every size a catalog entry must be priced for.
var VehicleSizes = []VehicleSize{VehicleSmall, VehicleMedium, VehicleLarge, VehicleVan}

func (s VehicleSize) Valid() bool {
	for _, v := range VehicleSizes {
		if v == s {
			return true
		}
	}
	return false
}

type ServiceType string

const (
	ServiceBasicWash     ServiceType = "basic-wash"
	ServiceFullValet     ServiceType = "full-valet"
	ServicePremiumDetail ServiceType = "premium-detail"
)

type Service struct {
	ID          ServiceType             `yaml:"id" json:"id"`
	Name        string                  `yaml:"name" json:"name"`
	Description string                  `yaml:"description" json:"description"`
	Features    []string                `yaml:"features" json:"features"`
	BasePrice   map[VehicleSize]float64 `yaml:"base_price" json:"base_price"`
}

type AddOn struct {
	ID          string                  `yaml:"id" json:"id"`
	Name        string                  `yaml:"name" json:"name"`
	Description string                  `yaml:"description" json:"description"`
	Price       map[VehicleSize]float64 `yaml:"price" json:"price"`
}

// TravelZone groups postcode outward-code prefixes under one flat fee.
type TravelZone struct {
	Name     string   `yaml:"name" json:"name"`
	Prefixes []string `yaml:"prefixes" json:"prefixes"`
	Fee      float64  `yaml:"fee" json:"fee"`
}
