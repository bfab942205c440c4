// Package workflow is the conversation that collects which workers attended
// on a date: password, date, worker selection, confirmation and write-back,
// plus enrollment of new workers.
package workflow

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/sitecrew/attendance-bot/internal/dates"
	"github.com/sitecrew/attendance-bot/internal/workbook"
)

var (
	ErrNotCandidate = errors.New("worker is not a candidate for this date")
	ErrNotSelected  = errors.New("worker is not selected")
)

// State is the step a session is waiting on.
type State int

const (
	StateAwaitingPassword State = iota
	StateAwaitingDate
	StateAwaitingSelection
	StateAwaitingConfirmation
	StateAwaitingRemovalChoice
	StateAwaitingNewWorkerName
	StateAwaitingNewWorkerWage
	StateAwaitingStartDate
	StateTerminal
)

var stateNames = map[State]string{
	StateAwaitingPassword:      "awaiting_password",
	StateAwaitingDate:          "awaiting_date",
	StateAwaitingSelection:     "awaiting_selection",
	StateAwaitingConfirmation:  "awaiting_confirmation",
	StateAwaitingRemovalChoice: "awaiting_removal_choice",
	StateAwaitingNewWorkerName: "awaiting_new_worker_name",
	StateAwaitingNewWorkerWage: "awaiting_new_worker_wage",
	StateAwaitingStartDate:     "awaiting_start_date",
	StateTerminal:              "terminal",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Session is one user's conversation. It lives in memory only.
type Session struct {
	ID        string
	UserID    int64
	State     State
	StartedAt time.Time

	Date  dates.Day
	Sheet string

	// Candidates are the names found for Date; Selected keeps tap order.
	Candidates []string
	Selected   []string

	// Standalone marks an enrollment started with /addworker rather than
	// from the confirmation step.
	Standalone bool
	NewName    string
	NewWage    float64
}

func newSession(userID int64, now time.Time) *Session {
	return &Session{ID: uuid.NewString(), UserID: userID, StartedAt: now}
}

// SetCandidates replaces the candidate list for a new date and clears the
// selection.
func (s *Session) SetCandidates(day dates.Day, sheet string, names []string) {
	s.Date = day
	s.Sheet = sheet
	s.Candidates = nil
	for _, n := range names {
		n = workbook.NormalizeName(n)
		if n != "" && !slices.Contains(s.Candidates, n) {
			s.Candidates = append(s.Candidates, n)
		}
	}
	s.Selected = nil
}

func (s *Session) IsCandidate(name string) bool {
	return slices.Contains(s.Candidates, name)
}

func (s *Session) IsSelected(name string) bool {
	return slices.Contains(s.Selected, name)
}

// Select appends a candidate to the selection. Selecting an already
// selected name changes nothing.
func (s *Session) Select(name string) error {
	if !s.IsCandidate(name) {
		return ErrNotCandidate
	}
	if !s.IsSelected(name) {
		s.Selected = append(s.Selected, name)
	}
	return nil
}

// Deselect removes a selected name.
func (s *Session) Deselect(name string) error {
	i := slices.Index(s.Selected, name)
	if i < 0 {
		return ErrNotSelected
	}
	s.Selected = slices.Delete(s.Selected, i, i+1)
	return nil
}

// Remaining lists candidates not yet selected, in candidate order.
func (s *Session) Remaining() []string {
	var out []string
	for _, c := range s.Candidates {
		if !s.IsSelected(c) {
			out = append(out, c)
		}
	}
	return out
}

// AddCandidate makes a newly enrolled worker selectable for the session date.
func (s *Session) AddCandidate(name string) {
	name = workbook.NormalizeName(name)
	if name != "" && !s.IsCandidate(name) {
		s.Candidates = append(s.Candidates, name)
	}
}

func (s *Session) resetEnrollment() {
	s.NewName = ""
	s.NewWage = 0
	s.Standalone = false
}
