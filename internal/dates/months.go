package dates

import (
	"fmt"
	"time"
)

// MonthTable maps a month to the name of the sheet that holds its rows.
type MonthTable [12]string

// HebrewMonths is the sheet naming used by the site workbook.
var HebrewMonths = MonthTable{
	"ינואר", "פברואר", "מרץ", "אפריל", "מאי", "יוני",
	"יולי", "אוגוסט", "ספטמבר", "אוקטובר", "נובמבר", "דצמבר",
}

// NewMonthTable builds a table from exactly twelve non-empty names.
func NewMonthTable(names []string) (MonthTable, error) {
	var t MonthTable
	if len(names) != len(t) {
		return t, fmt.Errorf("month table needs 12 names, got %d", len(names))
	}
	for i, n := range names {
		if n == "" {
			return t, fmt.Errorf("month %d has an empty sheet name", i+1)
		}
		t[i] = n
	}
	return t, nil
}

// Sheet returns the sheet name for m.
func (t MonthTable) Sheet(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return t[m-1]
}

// SheetFor returns the sheet holding rows for d.
func (t MonthTable) SheetFor(d Day) string {
	return t.Sheet(d.Month)
}
