package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"detailing/internal/models"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Schedule"

// Cell fills by slot state.
const (
	fillFree      = "#FFFFFF"
	fillPending   = "#FFEB9C"
	fillConfirmed = "#C6EFCE"
	fillWorking   = "#BDD7EE"
	fillHeader    = "#DDEBF7"
	fillSlot      = "#E2EFDA"
)

// ScheduleWorkbook lays out one row per slot and one column per day from
// from to to inclusive. Only bookings that occupy a slot are shown.
func ScheduleWorkbook(from, to time.Time, slots []models.TimeSlot, bookings []*models.Booking) (*excelize.File, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid date range: %s to %s", from.Format(models.DateLayout), to.Format(models.DateLayout))
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(SheetName, "A1", fmt.Sprintf("Schedule: %s - %s",
		from.Format("02/01/2006"), to.Format("02/01/2006")))

	columns := writeDateHeaders(f, from, to)
	rows := writeSlotHeaders(f, slots)

	byCell := make(map[string][]*models.Booking)
	for _, b := range bookings {
		if !models.IsBlockingStatus(b.Status) {
			continue
		}
		col, ok := columns[b.DateKey()]
		if !ok {
			continue
		}
		row, ok := rows[b.Time]
		if !ok {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(col, row)
		byCell[cell] = append(byCell[cell], b)
	}

	for _, col := range columns {
		for _, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			cellBookings := byCell[cell]
			_ = f.SetCellValue(SheetName, cell, cellText(cellBookings))
			if style, err := cellStyle(f, cellBookings); err == nil {
				_ = f.SetCellStyle(SheetName, cell, cell, style)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 14)
	lastCol, _ := excelize.ColumnNumberToName(len(columns) + 1)
	if len(columns) > 0 {
		_ = f.SetColWidth(SheetName, "B", lastCol, 28)
	}
	_ = f.MergeCell(SheetName, "A1", lastCol+"1")

	title, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(SheetName, "A1", "A1", title)

	return f, nil
}

func writeDateHeaders(f *excelize.File, from, to time.Time) map[string]int {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{fillHeader}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	columns := make(map[string]int)
	col := 2
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(SheetName, cell, day.Format("Mon 02/01"))
		_ = f.SetCellStyle(SheetName, cell, cell, style)
		columns[day.Format(models.DateLayout)] = col
		col++
	}
	return columns
}

func writeSlotHeaders(f *excelize.File, slots []models.TimeSlot) map[string]int {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{fillSlot}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	rows := make(map[string]int)
	for i, slot := range slots {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		label := slot.Label
		if label == "" {
			label = slot.Time
		}
		_ = f.SetCellValue(SheetName, cell, label)
		_ = f.SetCellStyle(SheetName, cell, cell, style)
		rows[slot.Time] = row
	}
	return rows
}

func cellText(bookings []*models.Booking) string {
	if len(bookings) == 0 {
		return "Free"
	}
	lines := make([]string, 0, len(bookings))
	for _, b := range bookings {
		line := fmt.Sprintf("%s (%s)\n%s, %s\n%s", b.CustomerName, b.Postcode, b.ServiceType, b.VehicleSize, b.Status)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n\n")
}

func cellStyle(f *excelize.File, bookings []*models.Booking) (int, error) {
	fill := fillFree
	for _, b := range bookings {
		switch b.Status {
		case models.StatusPending:
			fill = fillPending
		case models.StatusConfirmed:
			if fill == fillFree {
				fill = fillConfirmed
			}
		case models.StatusInProgress:
			if fill == fillFree || fill == fillConfirmed {
				fill = fillWorking
			}
		}
	}
	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
}

// FileName is the archive name of an export covering from..to.
func FileName(from, to time.Time) string {
	return fmt.Sprintf("schedule_%s_to_%s.xlsx", from.Format(models.DateLayout), to.Format(models.DateLayout))
}

// Save writes f under dir and returns the file path.
func Save(f *excelize.File, dir string, from, to time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}
	path := filepath.Join(dir, FileName(from, to))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}
