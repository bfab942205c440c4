package workbook

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/sitecrew/attendance-bot/internal/dates"
)

const dateNumFmt = "dd/mm/yyyy"

// Entry is a row to append to a month sheet.
type Entry struct {
	Date     dates.Day
	Name     string
	Attended bool
	Wage     float64
}

// AppendRow writes e after the last non-empty row of sheet and returns the
// row number used. The wage header is added when the sheet has none.
func (b *Book) AppendRow(sheet string, e Entry) (int, error) {
	if !b.HasSheet(sheet) {
		return 0, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	raw, err := b.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	wageCol := b.wageColumn(raw)
	if err := b.ensureWageHeader(sheet, raw, wageCol); err != nil {
		return 0, err
	}

	row := len(raw) + 1
	if row <= b.layout.HeaderRows {
		row = b.layout.HeaderRows + 1
	}
	style, err := b.dateStyleID()
	if err != nil {
		return 0, err
	}

	dateCell, _ := excelize.CoordinatesToCellName(b.layout.DateColumn, row)
	if err := b.f.SetCellValue(sheet, dateCell, e.Date.Time()); err != nil {
		return 0, fmt.Errorf("set %s!%s: %w", sheet, dateCell, err)
	}
	if err := b.f.SetCellStyle(sheet, dateCell, dateCell, style); err != nil {
		return 0, fmt.Errorf("style %s!%s: %w", sheet, dateCell, err)
	}
	nameCell, _ := excelize.CoordinatesToCellName(b.layout.NameColumn, row)
	if err := b.f.SetCellStr(sheet, nameCell, NormalizeName(e.Name)); err != nil {
		return 0, fmt.Errorf("set %s!%s: %w", sheet, nameCell, err)
	}
	flagCell, _ := excelize.CoordinatesToCellName(b.layout.AttendedColumn, row)
	if err := b.f.SetCellBool(sheet, flagCell, e.Attended); err != nil {
		return 0, fmt.Errorf("set %s!%s: %w", sheet, flagCell, err)
	}
	wageCell, _ := excelize.CoordinatesToCellName(wageCol, row)
	if err := b.f.SetCellFloat(sheet, wageCell, e.Wage, -1, 64); err != nil {
		return 0, fmt.Errorf("set %s!%s: %w", sheet, wageCell, err)
	}
	return row, nil
}

// RegisterWorker appends name and wage to the registry sheet unless the
// name is already listed. It reports whether a row was added.
func (b *Book) RegisterWorker(name string, wage float64) (bool, error) {
	sheet := b.layout.RegistrySheet
	if !b.HasSheet(sheet) {
		return false, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	raw, err := b.f.GetRows(sheet)
	if err != nil {
		return false, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	name = NormalizeName(name)
	for i := b.layout.HeaderRows; i < len(raw); i++ {
		if NormalizeName(cellAt(raw[i], 1)) == name {
			return false, nil
		}
	}
	row := len(raw) + 1
	if row <= b.layout.HeaderRows {
		row = b.layout.HeaderRows + 1
	}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	values := []interface{}{name, wage}
	if err := b.f.SetSheetRow(sheet, cell, &values); err != nil {
		return false, fmt.Errorf("append %s row %d: %w", sheet, row, err)
	}
	return true, nil
}

// Registry lists the names in the registry sheet.
func (b *Book) Registry() ([]string, error) {
	sheet := b.layout.RegistrySheet
	if !b.HasSheet(sheet) {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	raw, err := b.f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	var names []string
	for i := b.layout.HeaderRows; i < len(raw); i++ {
		if n := NormalizeName(cellAt(raw[i], 1)); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

func (b *Book) ensureWageHeader(sheet string, raw [][]string, col int) error {
	if b.layout.HeaderRows == 0 || b.layout.WageHeader == "" {
		return nil
	}
	if len(raw) >= b.layout.HeaderRows && cellAt(raw[b.layout.HeaderRows-1], col) != "" {
		return nil
	}
	cell, _ := excelize.CoordinatesToCellName(col, b.layout.HeaderRows)
	if err := b.f.SetCellStr(sheet, cell, b.layout.WageHeader); err != nil {
		return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func (b *Book) dateStyleID() (int, error) {
	if b.dateStyle != 0 {
		return b.dateStyle, nil
	}
	numFmt := dateNumFmt
	id, err := b.f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return 0, fmt.Errorf("create date style: %w", err)
	}
	b.dateStyle = id
	return id, nil
}
