package submission

import (
	"time"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/anticheat"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/streak"
)

// Identity is the authenticated submitter.
type Identity struct {
	PlayerID    string
	DisplayName string
	Email       string
}

// Request is one finished test run as sent by the client. Any client-computed
// metrics in the payload are not decoded.
type Request struct {
	AttemptID     string                `json:"attemptId"`
	Keystrokes    []anticheat.Keystroke `json:"keystrokes"`
	TypedWords    []string              `json:"typedWords"`
	ExpectedWords []string              `json:"expectedWords"`
	Duration      int                   `json:"duration"`
	StartTime     int64                 `json:"startTime"`
	Theme         string                `json:"theme"`
	Language      string                `json:"language"`
}

// Response describes the saved result. Reward and streak fields are nil when
// those best-effort steps failed.
type Response struct {
	ID          string         `json:"id"`
	WPM         int            `json:"wpm"`
	Accuracy    int            `json:"accuracy"`
	CoinsEarned *int64         `json:"coinsEarned"`
	TotalCoins  *int64         `json:"totalCoins"`
	Streak      *streak.Streak `json:"streak,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}
