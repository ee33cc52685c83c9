package submission

import (
	"errors"
	"fmt"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/anticheat"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/idempotency"
)

func TestReasonFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{idempotency.ErrAlreadySubmitted, "Test result already submitted"},
		{idempotency.ErrInvalidAttemptID, "Invalid attempt id"},
		{ErrInvalidDuration, "Invalid test duration"},
		{anticheat.ErrSessionExpired, "Test session expired or invalid"},
		{anticheat.ErrWPMTooHigh, "WPM exceeds human capability"},
		{fmt.Errorf("timing: %w", anticheat.ErrUniformTiming), "Keystroke timing is too uniform to be human"},
		{errors.New("dial tcp: connection refused"), MsgInvalid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReasonFor(tt.err), tt.err.Error())
	}
}

func TestSentinelsAreLowercaseAndMapped(t *testing.T) {
	for _, r := range reasons {
		first, _ := utf8.DecodeRuneInString(r.err.Error())
		assert.True(t, unicode.IsLower(first), "%q should start lowercase", r.err.Error())
		assert.NotEqual(t, MsgInvalid, ReasonFor(r.err))
	}
}

func TestRejectCarriesPlayerMessage(t *testing.T) {
	rej := reject(KindReplay, idempotency.ErrAlreadySubmitted)
	assert.Equal(t, "Test result already submitted", rej.Error())
	assert.ErrorIs(t, rej, idempotency.ErrAlreadySubmitted)
	assert.Equal(t, KindReplay, rej.Kind)
}
