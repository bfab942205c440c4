// Package workbook reads and edits the attendance workbook: one sheet per
// month with a row per (date, worker) pair, plus a registry sheet of daily
// wages.
package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sitecrew/attendance-bot/internal/dates"
)

var ErrSheetNotFound = errors.New("sheet not found")

// Layout describes where each field lives in a month sheet. Columns are
// 1-based. WageColumn is used only when no header cell reads WageHeader.
type Layout struct {
	HeaderRows     int
	DateColumn     int
	NameColumn     int
	AttendedColumn int
	WageColumn     int
	WageHeader     string
	RegistrySheet  string
}

func DefaultLayout() Layout {
	return Layout{
		HeaderRows:     1,
		DateColumn:     1,
		NameColumn:     2,
		AttendedColumn: 3,
		WageColumn:     5,
		WageHeader:     "שכר ליום (₪)",
		RegistrySheet:  "יומית פועלים",
	}
}

// Row is one data row of a month sheet.
type Row struct {
	Index    int
	Date     string
	Name     string
	Attended bool
	Wage     float64
}

// Book wraps an open workbook.
type Book struct {
	f         *excelize.File
	layout    Layout
	dateStyle int
}

// Open parses workbook bytes.
func Open(data []byte, layout Layout) (*Book, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return &Book{f: f, layout: layout}, nil
}

// Wrap adopts an already open excelize file.
func Wrap(f *excelize.File, layout Layout) *Book {
	return &Book{f: f, layout: layout}
}

func (b *Book) Close() error {
	return b.f.Close()
}

// Bytes serializes the workbook including every untouched sheet.
func (b *Book) Bytes() ([]byte, error) {
	buf, err := b.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *Book) HasSheet(name string) bool {
	idx, err := b.f.GetSheetIndex(name)
	return err == nil && idx >= 0
}

func (b *Book) Sheets() []string {
	return b.f.GetSheetList()
}

// Rows returns the data rows of sheet, skipping the header rows.
func (b *Book) Rows(sheet string) ([]Row, error) {
	if !b.HasSheet(sheet) {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	raw, err := b.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	wageCol := b.wageColumn(raw)

	var rows []Row
	for i := b.layout.HeaderRows; i < len(raw); i++ {
		cells := raw[i]
		rows = append(rows, Row{
			Index:    i + 1,
			Date:     NormalizeDateCell(cellAt(cells, b.layout.DateColumn)),
			Name:     NormalizeName(cellAt(cells, b.layout.NameColumn)),
			Attended: parseFlag(cellAt(cells, b.layout.AttendedColumn)),
			Wage:     parseWage(cellAt(cells, wageCol)),
		})
	}
	return rows, nil
}

// Candidates returns the distinct worker names with a row dated day, in
// order of first appearance.
func (b *Book) Candidates(sheet string, day dates.Day) ([]string, error) {
	rows, err := b.Rows(sheet)
	if err != nil {
		return nil, err
	}
	key := day.String()
	seen := make(map[string]bool)
	var names []string
	for _, r := range rows {
		if r.Date != key || r.Name == "" || seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		names = append(names, r.Name)
	}
	return names, nil
}

// MarkAttended sets the attended flag on every row matching day and one of
// names. Duplicate rows are all updated. It returns the number of rows set.
func (b *Book) MarkAttended(sheet string, day dates.Day, names []string) (int, error) {
	rows, err := b.Rows(sheet)
	if err != nil {
		return 0, err
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[NormalizeName(n)] = true
	}
	key := day.String()
	updated := 0
	for _, r := range rows {
		if r.Date != key || !want[r.Name] {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(b.layout.AttendedColumn, r.Index)
		if err != nil {
			return updated, err
		}
		if err := b.f.SetCellBool(sheet, cell, true); err != nil {
			return updated, fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
		updated++
	}
	return updated, nil
}

func (b *Book) wageColumn(raw [][]string) int {
	if b.layout.HeaderRows > 0 && len(raw) > 0 && b.layout.WageHeader != "" {
		for i, h := range raw[b.layout.HeaderRows-1] {
			if strings.TrimSpace(h) == b.layout.WageHeader {
				return i + 1
			}
		}
	}
	return b.layout.WageColumn
}

func cellAt(cells []string, col int) string {
	if col < 1 || col > len(cells) {
		return ""
	}
	return cells[col-1]
}

// NormalizeDateCell renders a raw date cell as DD/MM/YYYY. Excel serial
// numbers and text in any accepted input layout are converted; anything else
// is returned trimmed.
func NormalizeDateCell(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return s
		}
		return dates.FromTime(t).String()
	}
	head := s
	if i := strings.IndexAny(head, " T"); i > 0 {
		head = head[:i]
	}
	if d, err := dates.Parse(head); err == nil {
		return d.String()
	}
	return s
}

func parseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "✔", "✓", "v", "yes", "כן":
		return true
	}
	return false
}

func parseWage(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
