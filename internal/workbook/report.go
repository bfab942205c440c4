package workbook

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/sitecrew/attendance-bot/internal/dates"
)

const reportSheet = "Report"

var reportHeaders = []string{"Date", "Worker", "Attended", "Daily wage"}

// BuildReport renders rows of one day as a standalone workbook, attended
// rows filled green and absent ones red.
func BuildReport(day dates.Day, rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, err
	}
	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(reportSheet, cell, h)
	}

	present, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Color: []string{"#D8F6CE"}, Pattern: 1}})
	if err != nil {
		return nil, err
	}
	absent, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFD6D6"}, Pattern: 1}})
	if err != nil {
		return nil, err
	}

	for idx, r := range rows {
		line := idx + 2
		values := []interface{}{day.String(), r.Name, r.Attended, r.Wage}
		cell, _ := excelize.CoordinatesToCellName(1, line)
		if err := f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write report row %d: %w", line, err)
		}
		style := absent
		if r.Attended {
			style = present
		}
		f.SetCellStyle(reportSheet, fmt.Sprintf("A%d", line), fmt.Sprintf("D%d", line), style)
	}
	f.SetColWidth(reportSheet, "A", "D", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize report: %w", err)
	}
	return buf.Bytes(), nil
}
