package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

// Replies shared with the commands handled outside the engine.
const (
	MsgNotAuthorized  = "🔐 Send /start and enter the password first."
	MsgStorageFailure = "❌ Could not read the attendance file. Please try again later."
)

const (
	msgAskPassword      = "🔐 Enter the password to continue:"
	msgWrongPassword    = "❌ Wrong password. Try again:"
	msgWrongPasswordBye = "❌ Wrong password. Send /start to try again."
	msgAuthFailed       = "⚠️ Could not check authorization right now. Try again in a moment."
	msgAskDate          = "📅 Enter the date (YYYY-MM-DD or DD/MM/YYYY):"
	msgAuthorized       = "🔓 Password accepted."
	msgBadDate          = "❌ Invalid date. Use YYYY-MM-DD, for example 2025-06-15:"
	msgSaveFailed       = "❌ Saving failed, nothing was recorded. Please try again later."
	msgNoSelection      = "❗ No workers were selected. Nothing was saved."
	msgNoSession        = "Send /start to begin."
	msgUseButtons       = "Please use the buttons above."
	msgStaleButton      = "⚠️ That button is no longer active."
	msgUnknownAction    = "⚠️ Unknown action."
	msgAskNewName       = "🆕 Enter the new worker's name:"
	msgBadName          = "❗ The name cannot be empty. Enter the new worker's name:"
	msgAskWage          = "💰 What is the daily wage (₪)?"
	msgBadWage          = "⚠️ Invalid amount. Enter a positive number:"
	msgAskStartDate     = "📅 Start date (DD/MM/YYYY):"
	msgCancelled        = "The operation was cancelled."
	msgEnrollFailed     = "❌ Adding the worker failed. Please try again later."
	msgSelectWorkers    = "👷 Select the workers for %s:"
	msgNoWorkers        = "⚠️ No workers found for %s."
	msgNoSheet          = "⚠️ No sheet named %q in the attendance file."
	msgConfirmHeader    = "📝 Selected workers for %s:"
	msgRemoveHeader     = "Choose a name to remove:"
	msgAlreadyListed    = "ℹ️ %s is already listed for this date and was selected."

	labelDone       = "✅ Done"
	labelConfirm    = "✅ Final confirm"
	labelRemoveMenu = "❌ Remove a name"
	labelAddMore    = "➕ Add more"
	labelNewWorker  = "🆕 New worker"
	labelBack       = "🔙 Back"
)

func bulletList(names []string) string {
	var b strings.Builder
	for _, n := range names {
		b.WriteString("\n• ")
		b.WriteString(n)
	}
	return b.String()
}

func savedMessage(date string, names []string, rows int) string {
	return fmt.Sprintf("✅ Attendance for %s saved (%d rows updated):%s", date, rows, bulletList(names))
}

func enrolledMessage(name string, wage float64, start string, missing []string) string {
	msg := fmt.Sprintf("✅ %s was added from %s with a daily wage of ₪%s.", name, start, formatWage(wage))
	if len(missing) > 0 {
		msg += "\n⚠️ Missing sheets skipped: " + strings.Join(missing, ", ")
	}
	return msg
}

func formatWage(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}
