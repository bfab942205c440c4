// Package attendance ties the workbook codec to remote storage: it reads
// candidate workers for a day and applies attendance and enrollment edits
// as whole-file read-modify-write cycles.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sitecrew/attendance-bot/internal/dates"
	"github.com/sitecrew/attendance-bot/internal/storage"
	"github.com/sitecrew/attendance-bot/internal/workbook"
)

// ErrStorage marks download, upload and codec failures. Callers report
// these as a single generic failure.
var ErrStorage = errors.New("remote storage failure")

var ErrInvalidEnrollment = errors.New("invalid enrollment")

const (
	defaultTimeout     = 60 * time.Second
	defaultMaxAttempts = 3
)

// CandidateReader looks up candidate names without a full download.
type CandidateReader interface {
	Candidates(ctx context.Context, sheet string, day dates.Day) ([]string, error)
}

type Options struct {
	Layout      workbook.Layout
	Months      dates.MonthTable
	Timeout     time.Duration
	MaxAttempts int
	// Reader replaces the workbook scan for candidate lookups when set.
	Reader CandidateReader
	Logger *slog.Logger
}

type Service struct {
	store storage.Store
	opts  Options
	log   *slog.Logger

	// mu serialises read-modify-write cycles inside this process.
	mu sync.Mutex
}

func New(store storage.Store, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Months == (dates.MonthTable{}) {
		opts.Months = dates.HebrewMonths
	}
	if opts.Layout == (workbook.Layout{}) {
		opts.Layout = workbook.DefaultLayout()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, opts: opts, log: log.With("component", "attendance")}
}

// SheetFor names the month sheet holding rows for day.
func (s *Service) SheetFor(day dates.Day) string {
	return s.opts.Months.SheetFor(day)
}

// Candidates returns the distinct workers with a row dated day. An empty
// result is not an error.
func (s *Service) Candidates(ctx context.Context, day dates.Day) ([]string, error) {
	sheet := s.SheetFor(day)
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if s.opts.Reader != nil {
		names, err := s.opts.Reader.Candidates(ctx, sheet, day)
		switch {
		case errors.Is(err, workbook.ErrSheetNotFound):
			return nil, err
		case err != nil:
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		return names, nil
	}

	book, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	defer book.Close()
	return book.Candidates(sheet, day)
}

// Rows returns every row of day's sheet dated day.
func (s *Service) Rows(ctx context.Context, day dates.Day) ([]workbook.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	book, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	defer book.Close()
	all, err := book.Rows(s.SheetFor(day))
	if err != nil {
		return nil, err
	}
	key := day.String()
	var rows []workbook.Row
	for _, r := range all {
		if r.Date == key && r.Name != "" {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// Record sets the attended flag for every row of day whose worker is in
// names and uploads the workbook. It returns the number of rows updated.
func (s *Service) Record(ctx context.Context, day dates.Day, names []string) (int, error) {
	sheet := s.SheetFor(day)
	var updated int
	err := s.mutate(ctx, func(b *workbook.Book) error {
		n, err := b.MarkAttended(sheet, day, names)
		updated = n
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("attendance recorded", "sheet", sheet, "date", day.String(), "workers", len(names), "rows", updated)
	return updated, nil
}

func (s *Service) load(ctx context.Context) (*workbook.Book, string, error) {
	obj, err := s.store.Download(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	book, err := workbook.Open(obj.Data, s.opts.Layout)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return book, obj.Revision, nil
}

// mutate downloads the workbook, applies fn and uploads the result only if
// the remote revision is unchanged. On a conflict the cycle is repeated
// from a fresh download, so fn must be safe to apply again.
func (s *Service) mutate(ctx context.Context, fn func(*workbook.Book) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		err := s.mutateOnce(ctx, fn)
		if errors.Is(err, storage.ErrConflict) && attempt < s.opts.MaxAttempts {
			s.log.Warn("workbook changed during update, retrying", "attempt", attempt)
			continue
		}
		return err
	}
}

func (s *Service) mutateOnce(ctx context.Context, fn func(*workbook.Book) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	book, rev, err := s.load(ctx)
	if err != nil {
		return err
	}
	defer book.Close()

	if err := fn(book); err != nil {
		return err
	}
	data, err := book.Bytes()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.store.Upload(ctx, data, rev); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}
