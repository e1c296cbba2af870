package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"detailing/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	price, ok := c.BasePrice(models.ServiceBasicWash, models.VehicleSmall)
	require.True(t, ok)
	assert.Equal(t, 49.99, price)

	price, ok = c.BasePrice(models.ServiceFullValet, models.VehicleMedium)
	require.True(t, ok)
	assert.Equal(t, 119.99, price)

	_, ok = c.AddOn("ceramic-boost")
	assert.True(t, ok)
	_, ok = c.AddOn("interior-sanitize")
	assert.True(t, ok)

	assert.Len(t, c.Services(), 3)
	assert.Equal(t, 25.0, c.MaxZoneFee())
}

func TestCatalog_Lookups(t *testing.T) {
	c := Default()

	t.Run("UnknownService", func(t *testing.T) {
		_, ok := c.Service("mobile-polish")
		assert.False(t, ok)
		_, ok = c.BasePrice("mobile-polish", models.VehicleSmall)
		assert.False(t, ok)
	})

	t.Run("UnknownSize", func(t *testing.T) {
		_, ok := c.BasePrice(models.ServiceBasicWash, "bus")
		assert.False(t, ok)
		_, ok = c.AddOnPrice("ceramic-boost", "bus")
		assert.False(t, ok)
	})

	t.Run("UnknownAddOn", func(t *testing.T) {
		_, ok := c.AddOn("wax")
		assert.False(t, ok)
	})
}

func TestCatalog_Immutable(t *testing.T) {
	c := Default()

	svc, ok := c.Service(models.ServiceBasicWash)
	require.True(t, ok)
	svc.BasePrice[models.VehicleSmall] = 1
	svc.Features[0] = "changed"

	price, _ := c.BasePrice(models.ServiceBasicWash, models.VehicleSmall)
	assert.Equal(t, 49.99, price)
	again, _ := c.Service(models.ServiceBasicWash)
	assert.NotEqual(t, "changed", again.Features[0])

	zones := c.Zones()
	zones[0].Fee = 999
	zones[0].Prefixes[0] = "XX"
	assert.NotEqual(t, 999.0, c.Zones()[0].Fee)
	assert.NotEqual(t, "XX", c.Zones()[0].Prefixes[0])

	addOns := c.AddOns()
	addOns[0].Price[models.VehicleSmall] = 0
	p, _ := c.AddOnPrice(addOns[0].ID, models.VehicleSmall)
	assert.NotZero(t, p)
}

func TestNew_Validation(t *testing.T) {
	full := map[models.VehicleSize]float64{
		models.VehicleSmall: 1, models.VehicleMedium: 2, models.VehicleLarge: 3, models.VehicleVan: 4,
	}
	missingVan := map[models.VehicleSize]float64{
		models.VehicleSmall: 1, models.VehicleMedium: 2, models.VehicleLarge: 3,
	}
	negative := map[models.VehicleSize]float64{
		models.VehicleSmall: -1, models.VehicleMedium: 2, models.VehicleLarge: 3, models.VehicleVan: 4,
	}
	zone := models.TravelZone{Name: "local", Prefixes: []string{"BN1"}, Fee: 0}

	tests := []struct {
		name     string
		services []models.Service
		addOns   []models.AddOn
		zones    []models.TravelZone
		wantErr  bool
	}{
		{
			name:     "valid",
			services: []models.Service{{ID: "a", BasePrice: full}},
			addOns:   []models.AddOn{{ID: "x", Price: full}},
			zones:    []models.TravelZone{zone},
		},
		{
			name:     "empty service id",
			services: []models.Service{{ID: "", BasePrice: full}},
			wantErr:  true,
		},
		{
			name:     "duplicate service",
			services: []models.Service{{ID: "a", BasePrice: full}, {ID: "a", BasePrice: full}},
			wantErr:  true,
		},
		{
			name:     "missing size",
			services: []models.Service{{ID: "a", BasePrice: missingVan}},
			wantErr:  true,
		},
		{
			name:    "negative add-on price",
			addOns:  []models.AddOn{{ID: "x", Price: negative}},
			wantErr: true,
		},
		{
			name:    "duplicate add-on",
			addOns:  []models.AddOn{{ID: "x", Price: full}, {ID: "x", Price: full}},
			wantErr: true,
		},
		{
			name:    "zone without prefixes",
			zones:   []models.TravelZone{{Name: "z", Fee: 1}},
			wantErr: true,
		},
		{
			name:    "zone negative fee",
			zones:   []models.TravelZone{{Name: "z", Prefixes: []string{"BN1"}, Fee: -5}},
			wantErr: true,
		},
		{
			name:    "duplicate zone",
			zones:   []models.TravelZone{zone, zone},
			wantErr: true,
		},
		{
			name:    "blank prefix",
			zones:   []models.TravelZone{{Name: "z", Prefixes: []string{"  "}, Fee: 1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.services, tt.addOns, tt.zones)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCatalog)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNew_NormalizesPrefixes(t *testing.T) {
	c, err := New(nil, nil, []models.TravelZone{{Name: "z", Prefixes: []string{" bn 1 "}, Fee: 5}})
	require.NoError(t, err)
	assert.Equal(t, []string{"BN1"}, c.Zones()[0].Prefixes)
	assert.Equal(t, 5.0, c.MaxZoneFee())
}

func TestLoad(t *testing.T) {
	t.Run("EmptyPathUsesDefault", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.Len(t, c.Services(), 3)
	})

	t.Run("FromFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		content := `
services:
  - id: basic-wash
    name: Basic Wash
    base_price: {small: 45, medium: 55, large: 65, van: 75}
add_ons:
  - id: ceramic-boost
    name: Ceramic Boost
    price: {small: 10, medium: 12, large: 14, van: 16}
travel_zones:
  - name: local
    prefixes: [BN1, BN2]
    fee: 0
  - name: far
    prefixes: [RH]
    fee: 30
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		c, err := Load(path)
		require.NoError(t, err)

		price, ok := c.BasePrice(models.ServiceBasicWash, models.VehicleVan)
		require.True(t, ok)
		assert.Equal(t, 75.0, price)

		price, ok = c.AddOnPrice("ceramic-boost", models.VehicleMedium)
		require.True(t, ok)
		assert.Equal(t, 12.0, price)

		assert.Equal(t, 30.0, c.MaxZoneFee())
		assert.Equal(t, "local", c.Zones()[0].Name)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("InvalidYAML", func(t *testing.T) {
		_, err := Parse([]byte("services: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("InvalidCatalog", func(t *testing.T) {
		_, err := Parse([]byte("services:\n  - id: x\n    base_price: {small: 1}\n"))
		assert.ErrorIs(t, err, ErrInvalidCatalog)
	})
}
