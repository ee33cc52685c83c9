package anticheat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPlausibility(t *testing.T) {
	lim := DefaultPlausibilityLimits()

	tests := []struct {
		name   string
		sample Sample
		want   error
	}{
		{"typical run", Sample{WPM: 85, Accuracy: 97, Keystrokes: 450, ExpectedChars: 420, Backspaces: 12}, nil},
		{"wpm at ceiling", Sample{WPM: 300, Accuracy: 100}, nil},
		{"wpm over ceiling", Sample{WPM: 301, Accuracy: 100}, ErrWPMTooHigh},
		{"negative wpm", Sample{WPM: -1, Accuracy: 100}, ErrInvalidMetrics},
		{"accuracy floor", Sample{WPM: 10, Accuracy: 0}, nil},
		{"accuracy below floor", Sample{WPM: 10, Accuracy: -1}, ErrInvalidMetrics},
		{"accuracy over ceiling", Sample{WPM: 10, Accuracy: 101}, ErrInvalidMetrics},
		{"no keystrokes skips ratios", Sample{WPM: 60, Accuracy: 100, ExpectedChars: 300}, nil},
		{"nothing expected skips ratio", Sample{WPM: 0, Accuracy: 100, Keystrokes: 5}, nil},
		{"ratio at lower bound", Sample{WPM: 60, Accuracy: 100, Keystrokes: 30, ExpectedChars: 100}, nil},
		{"ratio under lower bound", Sample{WPM: 60, Accuracy: 100, Keystrokes: 29, ExpectedChars: 100}, ErrKeystrokeRatio},
		{"ratio at upper bound", Sample{WPM: 60, Accuracy: 100, Keystrokes: 100, ExpectedChars: 10}, nil},
		{"ratio over upper bound", Sample{WPM: 60, Accuracy: 100, Keystrokes: 101, ExpectedChars: 10}, ErrKeystrokeRatio},
		{"backspaces at limit", Sample{WPM: 20, Accuracy: 90, Keystrokes: 20, ExpectedChars: 20, Backspaces: 16}, nil},
		{"backspace spam", Sample{WPM: 20, Accuracy: 90, Keystrokes: 20, ExpectedChars: 20, Backspaces: 17}, ErrBackspaceSpam},
		{"too few keystrokes to judge backspaces", Sample{WPM: 20, Accuracy: 90, Keystrokes: 19, ExpectedChars: 19, Backspaces: 19}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPlausibility(tt.sample, lim)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewSample(t *testing.T) {
	keystrokes := []Keystroke{
		{Key: "c"}, {Key: "x"}, {Key: "Backspace"}, {Key: "a"}, {Key: "t"}, {Key: " "},
	}
	s := NewSample(keystrokes, []string{"cat"}, []string{"cat", "dog"}, Stats{WPM: 12, Accuracy: 100})

	assert.Equal(t, Sample{WPM: 12, Accuracy: 100, Keystrokes: 6, ExpectedChars: 4, Backspaces: 1}, s)
}
