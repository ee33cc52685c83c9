package anticheat

import "errors"

// Plausibility rejections.
var (
	ErrWPMTooHigh     = errors.New("wpm exceeds human capability")
	ErrInvalidMetrics = errors.New("invalid test metrics")
	ErrKeystrokeRatio = errors.New("keystroke count does not match the typed text")
	ErrBackspaceSpam  = errors.New("excessive backspace usage detected")
)

const backspaceKey = "Backspace"

type PlausibilityLimits struct {
	MaxWPM             int
	MinKeystrokeRatio  float64
	MaxKeystrokeRatio  float64
	MaxBackspaceRatio  float64
	MinBackspaceSample int
}

func DefaultPlausibilityLimits() PlausibilityLimits {
	return PlausibilityLimits{
		MaxWPM:             300,
		MinKeystrokeRatio:  0.3,
		MaxKeystrokeRatio:  10.0,
		MaxBackspaceRatio:  0.8,
		MinBackspaceSample: 20,
	}
}

// Sample is what the plausibility gate looks at.
type Sample struct {
	WPM           int
	Accuracy      int
	Keystrokes    int
	ExpectedChars int
	Backspaces    int
}

// NewSample derives the gate inputs from a submission and its recomputed stats.
// Expected characters cover only the words the player reached.
func NewSample(keystrokes []Keystroke, typed, expected []string, s Stats) Sample {
	sample := Sample{WPM: s.WPM, Accuracy: s.Accuracy, Keystrokes: len(keystrokes)}

	n := min(len(typed), len(expected))
	for i := 0; i < n; i++ {
		sample.ExpectedChars += len([]rune(expected[i])) + 1
	}
	for _, k := range keystrokes {
		if k.Key == backspaceKey {
			sample.Backspaces++
		}
	}
	return sample
}

// CheckPlausibility bounds the recomputed metrics. Ratio checks need recorded
// keystrokes; without them only the metric bounds apply.
func CheckPlausibility(s Sample, lim PlausibilityLimits) error {
	if s.WPM > lim.MaxWPM {
		return ErrWPMTooHigh
	}
	if s.WPM < 0 || s.Accuracy < 0 || s.Accuracy > 100 {
		return ErrInvalidMetrics
	}

	if s.Keystrokes == 0 {
		return nil
	}

	if s.ExpectedChars > 0 {
		ratio := float64(s.Keystrokes) / float64(s.ExpectedChars)
		if ratio < lim.MinKeystrokeRatio || ratio > lim.MaxKeystrokeRatio {
			return ErrKeystrokeRatio
		}
	}

	if s.Keystrokes >= lim.MinBackspaceSample {
		if float64(s.Backspaces)/float64(s.Keystrokes) > lim.MaxBackspaceRatio {
			return ErrBackspaceSpam
		}
	}

	return nil
}
