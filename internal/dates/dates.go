// Package dates turns free-text date input into the day key used to look up
// attendance rows and the month sheet that holds them.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DisplayLayout is the canonical rendering of a day, matching the date cells
// of the attendance workbook.
const DisplayLayout = "02/01/2006"

// ErrInvalidDate is matched by every ParseError.
var ErrInvalidDate = errors.New("invalid date")

// Layouts accepted by Parse, tried in order. Single-digit day and month are
// accepted by every layout.
var Layouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2/1/2006",
	"2.1.2006",
	"2-1-2006",
}

// ParseError reports input that matched none of the accepted layouts.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid date %q", e.Input)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidDate
}

// Day is a calendar date without time or zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// Parse accepts free text in any of Layouts.
func Parse(input string) (Day, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Day{}, &ParseError{Input: input}
	}
	for _, layout := range Layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return FromTime(t), nil
		}
	}
	return Day{}, &ParseError{Input: input}
}

// MustParse is Parse for literals in tests and defaults.
func MustParse(input string) Day {
	d, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return d
}

func FromTime(t time.Time) Day {
	return Day{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Day) IsZero() bool {
	return d == Day{}
}

// String renders the canonical DD/MM/YYYY key.
func (d Day) String() string {
	return d.Time().Format(DisplayLayout)
}

// FirstOfMonth returns day 1 of the given month in the same year.
func (d Day) FirstOfMonth(m time.Month) Day {
	return Day{Year: d.Year, Month: m, Day: 1}
}
