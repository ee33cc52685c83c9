package anticheat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const start int64 = 1_700_000_000_000

// timeline builds keystrokes at start+offset, then each following gap.
func timeline(offset int64, gaps ...int64) []Keystroke {
	t := start + offset
	ks := []Keystroke{{Timestamp: t, Key: "a", IsCorrect: true}}
	for _, g := range gaps {
		t += g
		ks = append(ks, Keystroke{Timestamp: t, Key: "a", IsCorrect: true})
	}
	return ks
}

func repeat(gap int64, n int) []int64 {
	gaps := make([]int64, n)
	for i := range gaps {
		gaps[i] = gap
	}
	return gaps
}

func TestValidateTiming_Accepts(t *testing.T) {
	lim := DefaultTimingLimits()

	tests := []struct {
		name       string
		keystrokes []Keystroke
		duration   int
	}{
		{"no keystrokes", nil, 30},
		{"steady typist", timeline(150, repeat(200, 59)...), 30},
		{"short run skips gap statistics", timeline(0, 35_000, 35_000, 35_000, 35_000), 120},
		{"gap at the limit", timeline(0, append(repeat(200, 18), 30_000)...), 60},
		{"three long pauses", timeline(0, append(repeat(200, 15), 10_001, 10_001, 10_001)...), 60},
		{"pauses at threshold do not count", timeline(0, append(repeat(200, 15), repeat(10_000, 4)...)...), 60},
		{"mean gap at idle limit", timeline(0, repeat(5_000, 9)...), 60},
		{"first keystroke at skew limit", timeline(-5_000, repeat(500, 9)...), 30},
		{"last keystroke at overrun limit", timeline(45_500, repeat(500, 9)...), 30},
		{"lead at limit", timeline(-2_000), 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, ValidateTiming(tt.keystrokes, start, tt.duration, lim))
		})
	}
}

func TestValidateTiming_Rejects(t *testing.T) {
	lim := DefaultTimingLimits()

	tests := []struct {
		name       string
		keystrokes []Keystroke
		duration   int
		want       error
	}{
		{"timeline ends before start", timeline(-2_001), 30, ErrTimelineBeforeStart},
		{"first keystroke too early", timeline(-5_001, repeat(500, 9)...), 30, ErrClockSkew},
		{"overrun past tolerance", timeline(45_501, repeat(500, 9)...), 30, ErrTestOverrun},
		{"overrun scales with duration", timeline(0, 144_001), 120, ErrTestOverrun},
		{"single gap over limit", timeline(0, append(repeat(200, 18), 35_000)...), 60, ErrSessionExpired},
		{"gap just over limit", timeline(0, append(repeat(200, 18), 30_001)...), 60, ErrSessionExpired},
		{"four long pauses", timeline(0, append(repeat(200, 15), repeat(10_001, 4)...)...), 60, ErrTooManyPauses},
		{"bot-like uniform timing", timeline(0, repeat(2, 19)...), 30, ErrUniformTiming},
		{"identical timestamps", timeline(0, repeat(0, 19)...), 30, ErrUniformTiming},
		{"idle session", timeline(0, repeat(5_001, 9)...), 60, ErrIdleTiming},
		{"rate above human range", timeline(0, repeat(3, 19)...), 30, ErrKeystrokeRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTiming(tt.keystrokes, start, tt.duration, lim)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateTiming_OverrunToleranceFloor(t *testing.T) {
	lim := DefaultTimingLimits()

	// 20% of 120s is 24s, above the 20s floor.
	assert.NoError(t, ValidateTiming(timeline(0, 144_000), start, 120, lim))
	// 20% of 15s is 3s, so the floor applies.
	assert.NoError(t, ValidateTiming(timeline(0, 35_000), start, 15, lim))
	assert.ErrorIs(t, ValidateTiming(timeline(0, 35_001), start, 15, lim), ErrTestOverrun)
}

func TestValidateTiming_OrderIndependent(t *testing.T) {
	lim := DefaultTimingLimits()
	ks := timeline(100, repeat(180, 40)...)

	reversed := make([]Keystroke, len(ks))
	for i, k := range ks {
		reversed[len(ks)-1-i] = k
	}

	assert.NoError(t, ValidateTiming(reversed, start, 30, lim))
	assert.Equal(t, start+100, ks[0].Timestamp, "input must not be reordered")
	assert.Equal(t, ks[len(ks)-1].Timestamp, reversed[0].Timestamp, "input must not be reordered")
}

func TestValidateTiming_CustomLimits(t *testing.T) {
	lim := DefaultTimingLimits()
	lim.MaxGapMs = 1_000

	err := ValidateTiming(timeline(0, append(repeat(200, 18), 1_500)...), start, 60, lim)
	assert.ErrorIs(t, err, ErrSessionExpired)
}
