// Package leaderboard keeps a ranked read path per test duration in Redis,
// backed by the authoritative store.
package leaderboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/store"
)

// TopN is how many entries each partition retains.
const TopN = 1000

const (
	rankKeyFmt    = "lb:%d"
	entriesKeyFmt = "lb:%d:entries"
	warmKeyFmt    = "lb:%d:warm"
	keyPattern    = "lb:*"

	// Members carry the inverted creation time so Redis' reverse
	// lexicographic order on equal scores puts earlier results first.
	maxMicros     = 9_999_999_999_999_999
	memberTimeLen = 16
)

type Entry struct {
	ID          string    `json:"id"`
	PlayerID    string    `json:"playerId"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	WPM         int       `json:"wpm"`
	Accuracy    int       `json:"accuracy"`
	CreatedAt   time.Time `json:"createdAt"`
	Rank        int       `json:"rank,omitempty"`
}

func FromResult(r store.RankedResult) Entry {
	return Entry{
		ID:          r.ID,
		PlayerID:    r.PlayerID,
		DisplayName: r.DisplayName,
		Email:       r.Email,
		WPM:         r.WPM,
		Accuracy:    r.Accuracy,
		CreatedAt:   r.CreatedAt,
	}
}

// Less reports whether a ranks ahead of b: higher WPM, then higher accuracy,
// then the earlier submission. Identical times fall back to the larger id.
func Less(a, b Entry) bool {
	if a.WPM != b.WPM {
		return a.WPM > b.WPM
	}
	if a.Accuracy != b.Accuracy {
		return a.Accuracy > b.Accuracy
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID > b.ID
}

// score packs the two integer keys; wpm <= 300 keeps it exact in a float64.
func score(e Entry) float64 {
	return float64(e.WPM*1000 + e.Accuracy)
}

func member(e Entry) string {
	return fmt.Sprintf("%0*d:%s", memberTimeLen, maxMicros-e.CreatedAt.UnixMicro(), e.ID)
}

func idFromMember(m string) string {
	if i := strings.IndexByte(m, ':'); i >= 0 {
		return m[i+1:]
	}
	return m
}

func rankKey(duration int) string    { return fmt.Sprintf(rankKeyFmt, duration) }
func entriesKey(duration int) string { return fmt.Sprintf(entriesKeyFmt, duration) }
func warmKey(duration int) string    { return fmt.Sprintf(warmKeyFmt, duration) }
