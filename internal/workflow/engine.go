package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sitecrew/attendance-bot/internal/attendance"
	"github.com/sitecrew/attendance-bot/internal/auth"
	"github.com/sitecrew/attendance-bot/internal/dates"
	"github.com/sitecrew/attendance-bot/internal/workbook"
)

var ErrInvalidWage = errors.New("invalid wage")

// Attendance is the spreadsheet side of the conversation.
type Attendance interface {
	SheetFor(day dates.Day) string
	Candidates(ctx context.Context, day dates.Day) ([]string, error)
	Record(ctx context.Context, day dates.Day, names []string) (int, error)
	Enroll(ctx context.Context, e attendance.Enrollment) (attendance.EnrollResult, error)
}

// Button is one inline button of a reply.
type Button struct {
	Label  string
	Action Action
}

// Reply is what the user sees after an event. Done is set when the reply
// ends the session.
type Reply struct {
	Text    string
	Buttons [][]Button
	Done    bool
}

type Config struct {
	// EndOnPasswordMismatch ends the conversation on a wrong password
	// instead of asking again.
	EndOnPasswordMismatch bool
}

type Engine struct {
	gate     *auth.Gate
	svc      Attendance
	sessions *Sessions
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

func NewEngine(gate *auth.Gate, svc Attendance, sessions *Sessions, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		gate:     gate,
		svc:      svc,
		sessions: sessions,
		cfg:      cfg,
		log:      log.With("component", "workflow"),
		now:      time.Now,
	}
}

func (e *Engine) Sessions() *Sessions {
	return e.sessions
}

// Start opens a fresh session, replacing any previous one.
func (e *Engine) Start(ctx context.Context, userID int64) Reply {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	sess := newSession(userID, e.now())
	e.sessions.Put(sess)
	e.log.Info("session started", "session", sess.ID, "user", userID)

	ok, err := e.gate.IsAuthorized(ctx, userID)
	if err != nil {
		e.log.Error("authorization lookup failed", "user", userID, "error", err)
	}
	if !ok {
		return e.transition(sess, StateAwaitingPassword, Reply{Text: msgAskPassword})
	}
	return e.transition(sess, StateAwaitingDate, Reply{Text: msgAskDate})
}

// StartEnrollment opens a standalone new-worker session.
func (e *Engine) StartEnrollment(ctx context.Context, userID int64) Reply {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	ok, err := e.gate.IsAuthorized(ctx, userID)
	if err != nil {
		e.log.Error("authorization lookup failed", "user", userID, "error", err)
	}
	if !ok {
		return Reply{Text: MsgNotAuthorized, Done: true}
	}
	sess := newSession(userID, e.now())
	sess.Standalone = true
	e.sessions.Put(sess)
	e.log.Info("enrollment started", "session", sess.ID, "user", userID)
	return e.transition(sess, StateAwaitingNewWorkerName, Reply{Text: msgAskNewName})
}

// Cancel drops the user's session.
func (e *Engine) Cancel(userID int64) Reply {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	if sess, ok := e.sessions.Get(userID); ok {
		e.transition(sess, StateTerminal, Reply{})
	}
	return Reply{Text: msgCancelled, Done: true}
}

// HandleText processes a free-text message.
func (e *Engine) HandleText(ctx context.Context, userID int64, text string) Reply {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	sess, ok := e.sessions.Get(userID)
	if !ok {
		return Reply{Text: msgNoSession}
	}
	switch sess.State {
	case StateAwaitingPassword:
		return e.onPassword(ctx, sess, text)
	case StateAwaitingDate:
		return e.onDate(ctx, sess, text)
	case StateAwaitingNewWorkerName:
		return e.onNewWorkerName(sess, text)
	case StateAwaitingNewWorkerWage:
		return e.onNewWorkerWage(ctx, sess, text)
	case StateAwaitingStartDate:
		return e.onStartDate(ctx, sess, text)
	}
	return Reply{Text: msgUseButtons}
}

// HandleAction processes a button tap carrying data.
func (e *Engine) HandleAction(ctx context.Context, userID int64, data string) Reply {
	action, err := DecodeAction(data)
	if err != nil {
		e.log.Warn("undecodable callback", "user", userID, "data", data)
		return Reply{Text: msgUnknownAction}
	}

	unlock := e.sessions.Lock(userID)
	defer unlock()

	sess, ok := e.sessions.Get(userID)
	if !ok {
		return Reply{Text: msgStaleButton + "\n" + msgNoSession, Done: true}
	}
	switch sess.State {
	case StateAwaitingSelection:
		return e.onSelection(sess, action)
	case StateAwaitingConfirmation:
		return e.onConfirmation(ctx, sess, action)
	case StateAwaitingRemovalChoice:
		return e.onRemoval(sess, action)
	}
	return Reply{Text: msgStaleButton}
}

func (e *Engine) onPassword(ctx context.Context, sess *Session, text string) Reply {
	err := e.gate.Authorize(ctx, sess.UserID, text)
	switch {
	case errors.Is(err, auth.ErrPasswordMismatch):
		e.log.Warn("wrong password", "session", sess.ID, "user", sess.UserID)
		if e.cfg.EndOnPasswordMismatch {
			return e.transition(sess, StateTerminal, Reply{Text: msgWrongPasswordBye})
		}
		return Reply{Text: msgWrongPassword}
	case err != nil:
		e.log.Error("authorize failed", "session", sess.ID, "error", err)
		return Reply{Text: msgAuthFailed}
	}
	return e.transition(sess, StateAwaitingDate, Reply{Text: msgAuthorized + "\n" + msgAskDate})
}

func (e *Engine) onDate(ctx context.Context, sess *Session, text string) Reply {
	day, err := dates.Parse(text)
	if err != nil {
		return Reply{Text: msgBadDate}
	}
	sheet := e.svc.SheetFor(day)
	names, err := e.svc.Candidates(ctx, day)
	switch {
	case errors.Is(err, workbook.ErrSheetNotFound):
		return e.transition(sess, StateTerminal, Reply{Text: fmt.Sprintf(msgNoSheet, sheet)})
	case err != nil:
		e.log.Error("candidate lookup failed", "session", sess.ID, "date", day.String(), "error", err)
		return e.transition(sess, StateTerminal, Reply{Text: MsgStorageFailure})
	case len(names) == 0:
		return e.transition(sess, StateTerminal, Reply{Text: fmt.Sprintf(msgNoWorkers, day.String())})
	}
	sess.SetCandidates(day, sheet, names)
	return e.transition(sess, StateAwaitingSelection, selectionView(sess))
}

func (e *Engine) onSelection(sess *Session, a Action) Reply {
	switch a.Kind {
	case ActionSelect:
		if err := sess.Select(a.Name); err != nil {
			e.log.Warn("selection rejected", "session", sess.ID, "name", a.Name, "error", err)
			return withNotice(msgStaleButton, selectionView(sess))
		}
		return selectionView(sess)
	case ActionDone:
		if len(sess.Selected) == 0 {
			return e.transition(sess, StateTerminal, Reply{Text: msgNoSelection})
		}
		return e.transition(sess, StateAwaitingConfirmation, confirmationView(sess))
	}
	return withNotice(msgStaleButton, selectionView(sess))
}

func (e *Engine) onConfirmation(ctx context.Context, sess *Session, a Action) Reply {
	switch a.Kind {
	case ActionConfirm:
		if len(sess.Selected) == 0 {
			return e.transition(sess, StateTerminal, Reply{Text: msgNoSelection})
		}
		rows, err := e.svc.Record(ctx, sess.Date, sess.Selected)
		if err != nil {
			e.log.Error("recording attendance failed", "session", sess.ID, "date", sess.Date.String(), "error", err)
			return e.transition(sess, StateTerminal, Reply{Text: msgSaveFailed})
		}
		return e.transition(sess, StateTerminal, Reply{Text: savedMessage(sess.Date.String(), sess.Selected, rows)})
	case ActionRemoveMenu:
		return e.transition(sess, StateAwaitingRemovalChoice, removalView(sess))
	case ActionAddMore:
		return e.transition(sess, StateAwaitingSelection, selectionView(sess))
	case ActionNewWorker:
		return e.transition(sess, StateAwaitingNewWorkerName, Reply{Text: msgAskNewName})
	}
	return withNotice(msgStaleButton, confirmationView(sess))
}

func (e *Engine) onRemoval(sess *Session, a Action) Reply {
	switch a.Kind {
	case ActionRemove:
		if err := sess.Deselect(a.Name); err != nil {
			e.log.Warn("removal of unselected worker", "session", sess.ID, "name", a.Name, "error", err)
			return e.transition(sess, StateAwaitingConfirmation, withNotice(msgStaleButton, confirmationView(sess)))
		}
		return e.transition(sess, StateAwaitingConfirmation, confirmationView(sess))
	case ActionBack:
		return e.transition(sess, StateAwaitingConfirmation, confirmationView(sess))
	}
	return withNotice(msgStaleButton, removalView(sess))
}

func (e *Engine) onNewWorkerName(sess *Session, text string) Reply {
	name := workbook.NormalizeName(text)
	if name == "" {
		return Reply{Text: msgBadName}
	}
	if !sess.Standalone && sess.IsCandidate(name) {
		sess.Select(name)
		sess.resetEnrollment()
		return e.transition(sess, StateAwaitingConfirmation, withNotice(fmt.Sprintf(msgAlreadyListed, name), confirmationView(sess)))
	}
	sess.NewName = name
	return e.transition(sess, StateAwaitingNewWorkerWage, Reply{Text: msgAskWage})
}

func (e *Engine) onNewWorkerWage(ctx context.Context, sess *Session, text string) Reply {
	wage, err := ParseWage(text)
	if err != nil {
		return Reply{Text: msgBadWage}
	}
	sess.NewWage = wage
	if sess.Standalone {
		return e.transition(sess, StateAwaitingStartDate, Reply{Text: msgAskStartDate})
	}
	return e.enroll(ctx, sess, sess.Date)
}

func (e *Engine) onStartDate(ctx context.Context, sess *Session, text string) Reply {
	day, err := dates.Parse(text)
	if err != nil {
		return Reply{Text: msgBadDate}
	}
	return e.enroll(ctx, sess, day)
}

// enroll adds the pending worker. From the confirmation branch the worker
// is flagged for the session date and joins the selection.
func (e *Engine) enroll(ctx context.Context, sess *Session, start dates.Day) Reply {
	res, err := e.svc.Enroll(ctx, attendance.Enrollment{
		Name:            sess.NewName,
		Wage:            sess.NewWage,
		Start:           start,
		AttendedOnStart: !sess.Standalone,
	})
	if err != nil {
		e.log.Error("enrollment failed", "session", sess.ID, "name", sess.NewName, "error", err)
		return e.transition(sess, StateTerminal, Reply{Text: msgEnrollFailed})
	}
	notice := enrolledMessage(sess.NewName, sess.NewWage, start.String(), res.Missing)
	if sess.Standalone {
		return e.transition(sess, StateTerminal, Reply{Text: notice})
	}
	name := sess.NewName
	sess.AddCandidate(name)
	sess.Select(name)
	sess.resetEnrollment()
	return e.transition(sess, StateAwaitingConfirmation, withNotice(notice, confirmationView(sess)))
}

// transition moves sess to next and tears it down when next is terminal.
func (e *Engine) transition(sess *Session, next State, r Reply) Reply {
	if sess.State != next {
		e.log.Debug("session transition", "session", sess.ID, "user", sess.UserID, "from", sess.State, "to", next)
	}
	sess.State = next
	if next == StateTerminal {
		e.sessions.Delete(sess.UserID)
		e.log.Info("session ended", "session", sess.ID, "user", sess.UserID, "duration", e.now().Sub(sess.StartedAt))
		r.Done = true
	}
	return r
}

func selectionView(sess *Session) Reply {
	text := fmt.Sprintf(msgSelectWorkers, sess.Date.String())
	if len(sess.Selected) > 0 {
		text += "\n✔️ " + strings.Join(sess.Selected, ", ")
	}
	var rows [][]Button
	for _, name := range sess.Remaining() {
		rows = append(rows, []Button{{Label: name, Action: Action{Kind: ActionSelect, Name: name}}})
	}
	rows = append(rows, []Button{{Label: labelDone, Action: Action{Kind: ActionDone}}})
	return Reply{Text: text, Buttons: rows}
}

func confirmationView(sess *Session) Reply {
	return Reply{
		Text: fmt.Sprintf(msgConfirmHeader, sess.Date.String()) + bulletList(sess.Selected),
		Buttons: [][]Button{
			{{Label: labelConfirm, Action: Action{Kind: ActionConfirm}}},
			{{Label: labelRemoveMenu, Action: Action{Kind: ActionRemoveMenu}}},
			{{Label: labelAddMore, Action: Action{Kind: ActionAddMore}}},
			{{Label: labelNewWorker, Action: Action{Kind: ActionNewWorker}}},
		},
	}
}

func removalView(sess *Session) Reply {
	var rows [][]Button
	for _, name := range sess.Selected {
		rows = append(rows, []Button{{Label: name + " ❌", Action: Action{Kind: ActionRemove, Name: name}}})
	}
	rows = append(rows, []Button{{Label: labelBack, Action: Action{Kind: ActionBack}}})
	return Reply{Text: msgRemoveHeader, Buttons: rows}
}

func withNotice(notice string, r Reply) Reply {
	r.Text = notice + "\n\n" + r.Text
	return r
}

// ParseWage accepts a positive amount, optionally with a shekel sign or a
// decimal comma.
func ParseWage(text string) (float64, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimSpace(strings.Trim(s, "₪"))
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrInvalidWage
	}
	return v, nil
}
