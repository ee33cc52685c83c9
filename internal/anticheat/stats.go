package anticheat

import "math"

// Stats are the server-side metrics for a run. Client-reported values are
// never consulted.
type Stats struct {
	WPM            int
	Accuracy       int
	CorrectChars   int
	IncorrectChars int
}

// Recalculate scores typed against expected word by word over their common
// prefix. A fully correct word earns its length plus one for the space.
func Recalculate(typed, expected []string, durationSec int) Stats {
	n := min(len(typed), len(expected))

	var correct, incorrect int
	for i := 0; i < n; i++ {
		t, e := []rune(typed[i]), []rune(expected[i])
		if typed[i] == expected[i] {
			correct += len(e) + 1
			continue
		}

		shorter := min(len(t), len(e))
		matches := 0
		for j := 0; j < shorter; j++ {
			if t[j] == e[j] {
				matches++
			}
		}
		correct += matches
		incorrect += abs(len(t)-len(e)) + (shorter - matches) + 1
	}

	s := Stats{CorrectChars: correct, IncorrectChars: incorrect, Accuracy: 100}
	if durationSec > 0 {
		minutes := float64(durationSec) / 60
		s.WPM = int(math.Round(float64(correct) / 5 / minutes))
	}
	if total := correct + incorrect; total > 0 {
		s.Accuracy = int(math.Round(float64(correct) / float64(total) * 100))
	}
	return s
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
