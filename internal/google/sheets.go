package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"detailing/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const stampLayout = "2006-01-02 15:04:05"

// ErrRowNotFound is returned when no sheet row carries the booking id.
var ErrRowNotFound = errors.New("booking row not found")

// Column layout of the bookings sheet, A through M.
var bookingHeaders = []interface{}{
	"ID", "Date", "Time", "Status", "Customer", "Phone", "Postcode",
	"Service", "Vehicle", "Add-ons", "Total", "Created At", "Updated At",
}

const (
	statusColumn  = "D"
	updatedColumn = "M"
	lastColumn    = "M"
)

// SheetsService mirrors bookings into a Google spreadsheet, one row per booking.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
	now           func() time.Time
	logger        *zerolog.Logger
}

// NewSheetsService authenticates with a service-account key file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *zerolog.Logger) (*SheetsService, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newSheetsService(srv, spreadsheetID, sheetName, logger), nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID, sheetName string, logger *zerolog.Logger) *SheetsService {
	if sheetName == "" {
		sheetName = "Bookings"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowCache:      make(map[int64]int),
		now:           time.Now,
		logger:        logger,
	}
}

func (s *SheetsService) rangeOf(cells string) string {
	return s.sheetName + "!" + cells
}

// TestConnection reads the header cell of the bookings sheet.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the column titles into row 1.
func (s *SheetsService) EnsureHeader(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rangeOf("A1:"+lastColumn+"1"), &sheets.ValueRange{
		Values: [][]interface{}{bookingHeaders},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A:A")).Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[int64]int, len(resp.Values))
	for i, row := range resp.Values {
		if id, ok := cellID(row); ok {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

// RefreshCache re-reads the ID column every interval until ctx is done.
func (s *SheetsService) RefreshCache(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := s.WarmUpCache(refreshCtx); err != nil {
				s.logger.Warn().Err(err).Msg("Sheet row cache refresh failed")
			}
			cancel()
		}
	}
}

// AppendBooking adds a row at the end of the sheet.
func (s *SheetsService) AppendBooking(ctx context.Context, booking *models.Booking) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.rangeOf("A:A"), &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(booking)},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}

	if resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(booking.ID, row)
		}
	}
	return nil
}

// UpsertBooking updates an existing booking row or appends a new one if not found.
func (s *SheetsService) UpsertBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil {
		return errors.New("booking is nil")
	}

	rowIdx, err := s.FindBookingRow(ctx, booking.ID)
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			return s.AppendBooking(ctx, booking)
		}
		return err
	}

	rangeData := s.rangeOf(fmt.Sprintf("A%d:%s%d", rowIdx, lastColumn, rowIdx))
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(booking)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// UpdateBookingStatus rewrites the status and Updated At cells of a booking row.
func (s *SheetsService) UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error {
	rowIdx, err := s.FindBookingRow(ctx, bookingID)
	if err != nil {
		return err
	}

	data := []*sheets.ValueRange{
		{
			Range:  s.rangeOf(fmt.Sprintf("%s%d", statusColumn, rowIdx)),
			Values: [][]interface{}{{status}},
		},
		{
			Range:  s.rangeOf(fmt.Sprintf("%s%d", updatedColumn, rowIdx)),
			Values: [][]interface{}{{s.now().Format(stampLayout)}},
		},
	}

	_, err = s.service.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	return err
}

// FindBookingRow locates the 1-based row for bookingID in column A, using the cache first.
func (s *SheetsService) FindBookingRow(ctx context.Context, bookingID int64) (int, error) {
	if bookingID == 0 {
		return 0, errors.New("booking id is required")
	}

	if row, ok := s.getCachedRow(bookingID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A:A")).Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if id, ok := cellID(row); ok && id == bookingID {
			rowIdx := i + 1
			s.setCachedRow(bookingID, rowIdx)
			return rowIdx, nil
		}
	}

	return 0, ErrRowNotFound
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

// ClearCache clears the row index cache.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

func bookingRowValues(b *models.Booking) []interface{} {
	return []interface{}{
		b.ID,
		b.DateKey(),
		b.Time,
		b.Status,
		b.CustomerName,
		b.Phone,
		b.Postcode,
		string(b.ServiceType),
		string(b.VehicleSize),
		strings.Join(b.AddOns, ", "),
		b.TotalPrice,
		b.CreatedAt.Format(stampLayout),
		b.UpdatedAt.Format(stampLayout),
	}
}

// cellID reads a booking id from the first cell of a row; header rows yield false.
func cellID(row []interface{}) (int64, bool) {
	if len(row) == 0 {
		return 0, false
	}
	var id int64
	switch v := row[0].(type) {
	case float64:
		id = int64(v)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		id = parsed
	}
	return id, id > 0
}

var updatedRowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// rowFromRange extracts the first row number of an A1 range such as "Bookings!A10:M10".
func rowFromRange(a1 string) (int, bool) {
	m := updatedRowPattern.FindStringSubmatch(a1)
	if m == nil {
		return 0, false
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return row, true
}
