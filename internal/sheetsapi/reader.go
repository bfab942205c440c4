// Package sheetsapi looks up candidate workers through the Google Sheets
// values API instead of downloading the whole workbook. It only reads; the
// attendance write-back always goes through the workbook file.
package sheetsapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/sitecrew/attendance-bot/internal/dates"
	"github.com/sitecrew/attendance-bot/internal/workbook"
)

type Reader struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	layout        workbook.Layout
}

func New(ctx context.Context, credentials []byte, spreadsheetID string, layout workbook.Layout) (*Reader, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is empty")
	}
	conf, err := google.JWTConfigFromJSON(credentials, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Reader{values: svc.Spreadsheets.Values, spreadsheetID: spreadsheetID, layout: layout}, nil
}

func (r *Reader) Candidates(ctx context.Context, sheet string, day dates.Day) ([]string, error) {
	resp, err := r.values.Get(r.spreadsheetID, sheetRange(sheet)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).
		Do()
	if err != nil {
		return nil, lookupError(sheet, err)
	}
	return CandidatesFromValues(resp.Values, day, r.layout), nil
}

// lookupError maps the 400 the values API returns for a range on a
// missing tab to workbook.ErrSheetNotFound.
func lookupError(sheet string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest &&
		strings.Contains(gerr.Message, "Unable to parse range") {
		return fmt.Errorf("%w: %s", workbook.ErrSheetNotFound, sheet)
	}
	return fmt.Errorf("get values %s: %w", sheet, err)
}

// CandidatesFromValues applies the workbook matching rules to a values
// response: header rows skipped, dates normalised, names deduplicated.
func CandidatesFromValues(values [][]interface{}, day dates.Day, layout workbook.Layout) []string {
	key := day.String()
	seen := make(map[string]bool)
	var names []string
	for i := layout.HeaderRows; i < len(values); i++ {
		row := values[i]
		if workbook.NormalizeDateCell(valueAt(row, layout.DateColumn)) != key {
			continue
		}
		name := workbook.NormalizeName(valueAt(row, layout.NameColumn))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func sheetRange(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!A:Z"
}

func valueAt(row []interface{}, col int) string {
	if col < 1 || col > len(row) {
		return ""
	}
	switch v := row[col-1].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
