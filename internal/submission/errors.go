package submission

import (
	"errors"
	"time"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/anticheat"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/idempotency"
)

// Kind classifies why a submission was not accepted.
type Kind int

const (
	KindUnauthenticated Kind = iota + 1
	KindInvalidInput
	KindReplay
	KindRateLimited
	KindTimingInvalid
	KindPlausibilityInvalid
	KindPersistenceFailed
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidInput:
		return "invalid_input"
	case KindReplay:
		return "replay"
	case KindRateLimited:
		return "rate_limited"
	case KindTimingInvalid:
		return "timing_invalid"
	case KindPlausibilityInvalid:
		return "plausibility_invalid"
	case KindPersistenceFailed:
		return "persistence_failed"
	default:
		return "unknown"
	}
}

// Messages for rejections that do not carry a validator's reason.
const (
	MsgUnauthenticated = "Authentication required"
	MsgRateLimited     = "Too many submissions, please slow down"
	MsgSaveFailed      = "Failed to save test result"
	MsgInvalid         = "Invalid test submission"
)

// reasons holds the player-facing text for each validation failure.
var reasons = []struct {
	err error
	msg string
}{
	{idempotency.ErrInvalidAttemptID, "Invalid attempt id"},
	{idempotency.ErrAlreadySubmitted, "Test result already submitted"},
	{ErrInvalidDuration, "Invalid test duration"},
	{anticheat.ErrTimelineBeforeStart, "Keystroke timeline ends before the test started"},
	{anticheat.ErrClockSkew, "Keystrokes recorded too long before the test started"},
	{anticheat.ErrTestOverrun, "Keystrokes recorded after the test ended"},
	{anticheat.ErrSessionExpired, "Test session expired or invalid"},
	{anticheat.ErrTooManyPauses, "Too many long pauses during the test"},
	{anticheat.ErrUniformTiming, "Keystroke timing is too uniform to be human"},
	{anticheat.ErrIdleTiming, "Keystroke timing indicates an idle session"},
	{anticheat.ErrKeystrokeRate, "Keystroke rate outside human range"},
	{anticheat.ErrWPMTooHigh, "WPM exceeds human capability"},
	{anticheat.ErrInvalidMetrics, "Invalid test metrics"},
	{anticheat.ErrKeystrokeRatio, "Keystroke count does not match the typed text"},
	{anticheat.ErrBackspaceSpam, "Excessive backspace usage detected"},
}

// ReasonFor returns the message shown to the player for err.
func ReasonFor(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.msg
		}
	}
	return MsgInvalid
}

// Rejection is the error returned for every submission that was not accepted.
// Reason is safe to show to the player.
type Rejection struct {
	Kind       Kind
	Reason     string
	RetryAfter time.Duration
	Err        error
}

func (r *Rejection) Error() string { return r.Reason }

func (r *Rejection) Unwrap() error { return r.Err }

// AsRejection extracts the Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	ok := errors.As(err, &r)
	return r, ok
}

func reject(kind Kind, err error) *Rejection {
	return &Rejection{Kind: kind, Reason: ReasonFor(err), Err: err}
}
