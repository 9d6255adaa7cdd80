package nlparse

import (
	"regexp"
	"strconv"
	"strings"

	"tablebook/internal/models"
)

// FallbackTime is returned when no usable hour can be read from the input.
var FallbackTime = models.NewTimeOfDay(19, 0)

var digitRun = regexp.MustCompile(`\d+`)

// Checked in order before any numeric parsing.
var naturalTimes = []struct {
	phrases []string
	time    models.TimeOfDay
}{
	{[]string{"evening", "dinner"}, models.NewTimeOfDay(19, 0)},
	{[]string{"lunch"}, models.NewTimeOfDay(12, 0)},
	{[]string{"afternoon"}, models.NewTimeOfDay(15, 0)},
}

var meridiemMarkers = []string{"p.m.", "a.m.", "p.m", "a.m", "pm", "am", "p m", "a m"}

// ParseTime reads a spoken or written time and rounds it to the nearest
// quarter hour. ok is false when the fallback time was substituted.
func ParseTime(input string) (models.TimeOfDay, bool) {
	s := strings.ToLower(strings.TrimSpace(input))

	for _, nt := range naturalTimes {
		if containsAny(s, nt.phrases...) {
			return nt.time, true
		}
	}

	isPM := containsAny(s, "p.m", "pm", "p m")
	isAM := containsAny(s, "a.m", "am", "a m")

	for _, marker := range meridiemMarkers {
		s = strings.ReplaceAll(s, marker, "")
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, " ", "")

	var hour, minute int
	if before, after, found := strings.Cut(s, ":"); found {
		h, err := strconv.Atoi(before)
		if err != nil {
			return FallbackTime, false
		}
		hour = h
		if m := digitRun.FindString(after); m != "" {
			if minute, err = strconv.Atoi(m); err != nil {
				return FallbackTime, false
			}
		}
	} else {
		h := digitRun.FindString(s)
		if h == "" {
			return FallbackTime, false
		}
		var err error
		if hour, err = strconv.Atoi(h); err != nil {
			return FallbackTime, false
		}
	}

	if isPM && hour < 12 {
		hour += 12
	} else if isAM && hour == 12 {
		hour = 0
	}

	rounded := roundToQuarter(minute)
	hour += rounded / 60
	rounded %= 60
	hour = ((hour % 24) + 24) % 24

	return models.NewTimeOfDay(hour, rounded), true
}

// RoundTimeToSlot normalizes input to a canonical "HH:MM" quarter-hour string.
// It never fails; unreadable input yields "19:00".
func RoundTimeToSlot(input string) string {
	t, _ := ParseTime(input)
	return t.String()
}

// roundToQuarter rounds a non-negative minute count to the nearest 15, ties up.
func roundToQuarter(minute int) int {
	return (minute*2 + 15) / 30 * 15
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
