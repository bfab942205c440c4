package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/sitecrew/attendance-bot/internal/dates"
	"github.com/sitecrew/attendance-bot/internal/workbook"
)

// Enrollment adds a newly hired worker from Start through the end of
// Start's year.
type Enrollment struct {
	Name  string
	Wage  float64
	Start dates.Day
	// AttendedOnStart flags the start-month row as attended.
	AttendedOnStart bool
}

type EnrollResult struct {
	Sheets     []string
	Missing    []string
	Registered bool
}

// Enroll appends one row per month sheet from the start month to December
// and a registry row when the name is not yet registered. The start month
// row carries the start date, later months carry their first day. Month
// sheets absent from the workbook are skipped and listed in Missing.
func (s *Service) Enroll(ctx context.Context, e Enrollment) (EnrollResult, error) {
	e.Name = workbook.NormalizeName(e.Name)
	if e.Name == "" {
		return EnrollResult{}, fmt.Errorf("%w: empty name", ErrInvalidEnrollment)
	}
	if e.Wage <= 0 {
		return EnrollResult{}, fmt.Errorf("%w: wage must be positive", ErrInvalidEnrollment)
	}
	if e.Start.IsZero() {
		return EnrollResult{}, fmt.Errorf("%w: missing start date", ErrInvalidEnrollment)
	}

	var res EnrollResult
	err := s.mutate(ctx, func(b *workbook.Book) error {
		res = EnrollResult{}
		for m := e.Start.Month; m <= time.December; m++ {
			sheet := s.opts.Months.Sheet(m)
			if !b.HasSheet(sheet) {
				res.Missing = append(res.Missing, sheet)
				continue
			}
			entry := workbook.Entry{Date: e.Start.FirstOfMonth(m), Name: e.Name, Wage: e.Wage}
			if m == e.Start.Month {
				entry.Date = e.Start
				entry.Attended = e.AttendedOnStart
			}
			if _, err := b.AppendRow(sheet, entry); err != nil {
				return err
			}
			res.Sheets = append(res.Sheets, sheet)
		}

		registry := s.opts.Layout.RegistrySheet
		if !b.HasSheet(registry) {
			res.Missing = append(res.Missing, registry)
			return nil
		}
		added, err := b.RegisterWorker(e.Name, e.Wage)
		res.Registered = added
		return err
	})
	if err != nil {
		return EnrollResult{}, err
	}
	s.log.Info("worker enrolled",
		"name", e.Name,
		"wage", e.Wage,
		"start", e.Start.String(),
		"sheets", len(res.Sheets),
		"missing", res.Missing,
		"registered", res.Registered,
	)
	return res, nil
}
