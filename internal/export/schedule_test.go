package export

import (
	"path/filepath"
	"testing"
	"time"

	"detailing/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var (
	monday  = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	tuesday = monday.AddDate(0, 0, 1)
)

func testSlots() []models.TimeSlot {
	return []models.TimeSlot{
		{Time: "08:00", Label: "8:00 AM"},
		{Time: "10:00", Label: "10:00 AM"},
	}
}

func TestScheduleWorkbook(t *testing.T) {
	bookings := []*models.Booking{
		{ID: 1, CustomerName: "Jane", Postcode: "BN1 1AA", ServiceType: models.ServiceBasicWash, VehicleSize: models.VehicleSmall, Date: monday, Time: "08:00", Status: models.StatusConfirmed},
		{ID: 2, CustomerName: "Sam", Postcode: "BN2 2BB", ServiceType: models.ServiceFullValet, VehicleSize: models.VehicleVan, Date: tuesday, Time: "10:00", Status: models.StatusPending},
		{ID: 3, CustomerName: "Gone", Postcode: "BN3 3CC", ServiceType: models.ServiceBasicWash, VehicleSize: models.VehicleSmall, Date: monday, Time: "10:00", Status: models.StatusCancelled},
		{ID: 4, CustomerName: "Later", Postcode: "BN3 3CC", ServiceType: models.ServiceBasicWash, VehicleSize: models.VehicleSmall, Date: tuesday.AddDate(0, 0, 5), Time: "10:00", Status: models.StatusPending},
	}

	f, err := ScheduleWorkbook(monday, tuesday, testSlots(), bookings)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	cell := func(ref string) string {
		v, err := f.GetCellValue(SheetName, ref)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Schedule: 10/06/2024 - 11/06/2024", cell("A1"))
	assert.Equal(t, "Mon 10/06", cell("B2"))
	assert.Equal(t, "Tue 11/06", cell("C2"))
	assert.Equal(t, "8:00 AM", cell("A3"))
	assert.Equal(t, "10:00 AM", cell("A4"))

	assert.Equal(t, "Jane (BN1 1AA)\nbasic-wash, small\nconfirmed", cell("B3"))
	assert.Equal(t, "Free", cell("B4"), "cancelled bookings do not occupy the slot")
	assert.Equal(t, "Free", cell("C3"))
	assert.Contains(t, cell("C4"), "Sam (BN2 2BB)")
	assert.NotContains(t, cell("C4"), "Later")
}

func TestScheduleWorkbook_InvalidRange(t *testing.T) {
	_, err := ScheduleWorkbook(tuesday, monday, testSlots(), nil)
	assert.Error(t, err)
}

func TestSave(t *testing.T) {
	f, err := ScheduleWorkbook(monday, monday, testSlots(), nil)
	require.NoError(t, err)
	defer f.Close()

	dir := filepath.Join(t.TempDir(), "exports")
	path, err := Save(f, dir, monday, monday)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "schedule_2024-06-10_to_2024-06-10.xlsx"), path)

	reopened, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer reopened.Close()
	v, _ := reopened.GetCellValue(SheetName, "B3")
	assert.Equal(t, "Free", v)
}
