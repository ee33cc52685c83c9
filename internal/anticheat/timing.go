// Package anticheat adjudicates submitted typing runs. Every check is a pure
// function of the submission; nothing here touches shared state.
package anticheat

import (
	"errors"
	"math"
	"sort"
)

// Keystroke is one input event as recorded by the client.
type Keystroke struct {
	Timestamp int64  `json:"timestamp"` // epoch ms
	Key       string `json:"key"`
	WordIndex int    `json:"wordIndex"`
	IsCorrect bool   `json:"isCorrect"`
}

// Timing rejections.
var (
	ErrTimelineBeforeStart = errors.New("keystroke timeline ends before the test started")
	ErrClockSkew           = errors.New("keystrokes recorded too long before the test started")
	ErrTestOverrun         = errors.New("keystrokes recorded after the test ended")
	ErrSessionExpired      = errors.New("test session expired or invalid")
	ErrTooManyPauses       = errors.New("too many long pauses during the test")
	ErrUniformTiming       = errors.New("keystroke timing is too uniform to be human")
	ErrIdleTiming          = errors.New("keystroke timing indicates an idle session")
	ErrKeystrokeRate       = errors.New("keystroke rate outside human range")
)

type TimingLimits struct {
	MaxLeadMs        int64   // last keystroke may precede start by at most this
	ClockSkewMs      int64   // first keystroke may precede start by at most this
	MinToleranceMs   int64   // floor of the overrun tolerance
	ToleranceRatio   float64 // overrun tolerance as a share of the test duration
	MinGapSample     int     // keystrokes needed before gap statistics apply
	MaxGapMs         int64
	LongGapMs        int64
	MaxLongGaps      int
	MinMeanGapMs     float64
	MaxMeanGapMs     float64
	MinKeysPerSecond float64
	MaxKeysPerSecond float64
}

func DefaultTimingLimits() TimingLimits {
	return TimingLimits{
		MaxLeadMs:        2_000,
		ClockSkewMs:      5_000,
		MinToleranceMs:   20_000,
		ToleranceRatio:   0.2,
		MinGapSample:     10,
		MaxGapMs:         30_000,
		LongGapMs:        10_000,
		MaxLongGaps:      3,
		MinMeanGapMs:     3,
		MaxMeanGapMs:     5_000,
		MinKeysPerSecond: 0.1,
		MaxKeysPerSecond: 100,
	}
}

// ValidateTiming checks the keystroke timeline against the claimed test
// window. Rules run in order and the first violation is returned.
func ValidateTiming(keystrokes []Keystroke, startMs int64, durationSec int, lim TimingLimits) error {
	if len(keystrokes) == 0 {
		return nil
	}

	ts := make([]int64, len(keystrokes))
	for i, k := range keystrokes {
		ts[i] = k.Timestamp
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	first, last := ts[0], ts[len(ts)-1]

	if last-startMs < -lim.MaxLeadMs {
		return ErrTimelineBeforeStart
	}

	durationMs := int64(durationSec) * 1000
	tolerance := lim.MinToleranceMs
	if t := int64(math.Round(float64(durationMs) * lim.ToleranceRatio)); t > tolerance {
		tolerance = t
	}

	if first < startMs-lim.ClockSkewMs {
		return ErrClockSkew
	}
	if last > startMs+durationMs+tolerance {
		return ErrTestOverrun
	}

	if len(ts) < lim.MinGapSample {
		return nil
	}

	var total int64
	longGaps := 0
	for i := 1; i < len(ts); i++ {
		gap := ts[i] - ts[i-1]
		if gap > lim.MaxGapMs {
			return ErrSessionExpired
		}
		if gap > lim.LongGapMs {
			longGaps++
		}
		total += gap
	}
	if longGaps > lim.MaxLongGaps {
		return ErrTooManyPauses
	}

	mean := float64(total) / float64(len(ts)-1)
	if mean < lim.MinMeanGapMs {
		return ErrUniformTiming
	}
	if mean > lim.MaxMeanGapMs {
		return ErrIdleTiming
	}

	if elapsed := last - first; elapsed > 0 {
		kps := float64(len(ts)) / (float64(elapsed) / 1000)
		if kps < lim.MinKeysPerSecond || kps > lim.MaxKeysPerSecond {
			return ErrKeystrokeRate
		}
	}

	return nil
}
