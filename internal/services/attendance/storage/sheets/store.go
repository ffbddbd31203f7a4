// Package sheets provides a RowStore backed by a Google Sheets spreadsheet,
// one tab per table.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/rollcall/internal/platform/timeouts"
	"github.com/louisbranch/rollcall/internal/services/attendance/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const valueInputRaw = "RAW"

// Store reads and writes spreadsheet tabs through the Sheets values API.
type Store struct {
	service       *sheetsapi.Service
	spreadsheetID string
	callTimeout   time.Duration
}

// Open builds a store for spreadsheetID. Authentication comes from opts,
// typically option.WithCredentialsJSON for a service account.
func Open(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Store, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	clientOpts := append([]option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}, opts...)
	service, err := sheetsapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return &Store{
		service:       service,
		spreadsheetID: spreadsheetID,
		callTimeout:   timeouts.StoreCall,
	}, nil
}

// EnsureTables adds a tab for every table missing from the spreadsheet.
func (s *Store) EnsureTables(ctx context.Context, tables []storage.Table) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	existing := make(map[string]struct{}, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		if sheet != nil && sheet.Properties != nil {
			existing[sheet.Properties.Title] = struct{}{}
		}
	}

	var requests []*sheetsapi.Request
	for _, table := range tables {
		if _, ok := existing[table.Name]; ok {
			continue
		}
		requests = append(requests, &sheetsapi.Request{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{Title: table.Name},
			},
		})
	}
	if len(requests) == 0 {
		return nil
	}
	if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheets: %w", err)
	}
	return nil
}

// ListRows returns every row of the tab. Interior blank rows come back
// empty; trailing blank rows are omitted by the API.
func (s *Store) ListRows(ctx context.Context, table string) ([]storage.Row, error) {
	layout, err := storage.LookupTable(table)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, layout.Range()).Context(ctx).Do()
	if err != nil {
		return nil, s.wrap("list", table, err)
	}
	rows := make([]storage.Row, 0, len(resp.Values))
	for _, values := range resp.Values {
		row := make(storage.Row, len(values))
		for i, value := range values {
			row[i] = cellString(value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AppendRows inserts rows after the last non-empty row in one request.
func (s *Store) AppendRows(ctx context.Context, table string, rows []storage.Row) error {
	layout, err := storage.LookupTable(table)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	_, err = s.service.Spreadsheets.Values.Append(s.spreadsheetID, layout.Range(), valueRange(rows...)).
		ValueInputOption(valueInputRaw).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return s.wrap("append", table, err)
	}
	return nil
}

// UpdateRow overwrites the row at index.
func (s *Store) UpdateRow(ctx context.Context, table string, index int, row storage.Row) error {
	layout, err := storage.LookupTable(table)
	if err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("%w: %s[%d]", storage.ErrRowOutOfRange, table, index)
	}
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, layout.RowRange(index), valueRange(row)).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return s.wrap("update", table, err)
	}
	return nil
}

// ClearRow blanks the row at index without deleting it.
func (s *Store) ClearRow(ctx context.Context, table string, index int) error {
	layout, err := storage.LookupTable(table)
	if err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("%w: %s[%d]", storage.ErrRowOutOfRange, table, index)
	}
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, layout.RowRange(index), &sheetsapi.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return s.wrap("clear", table, err)
	}
	return nil
}

func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

func (s *Store) wrap(op, table string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Message), "unable to parse range") {
		return fmt.Errorf("%s %s rows: %w: %v", op, table, storage.ErrUnknownTable, err)
	}
	return fmt.Errorf("%s %s rows: %w", op, table, err)
}

func valueRange(rows ...storage.Row) *sheetsapi.ValueRange {
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		cells := make([]interface{}, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		values = append(values, cells)
	}
	return &sheetsapi.ValueRange{MajorDimension: "ROWS", Values: values}
}

func cellString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

var _ storage.RowStore = (*Store)(nil)
var _ storage.TableEnsurer = (*Store)(nil)
