package nlparse

import (
	"fmt"
	"time"

	"tablebook/internal/models"
)

// FormatDateForSpeech renders a date like "Friday, December 6th".
func FormatDateForSpeech(date time.Time) string {
	day := date.Day()
	return fmt.Sprintf("%s, %s %d%s", date.Weekday(), date.Month(), day, ordinalSuffix(day))
}

// FormatTimeForSpeech renders "19:00" as "7 PM" and "19:30" as "7:30 PM".
// Input that is not HH:MM is returned unchanged.
func FormatTimeForSpeech(hhmm string) string {
	t, err := models.ParseTimeOfDay(hhmm)
	if err != nil {
		return hhmm
	}

	hour, period := t.Hour(), "AM"
	switch {
	case hour == 0:
		hour = 12
	case hour == 12:
		period = "PM"
	case hour > 12:
		hour -= 12
		period = "PM"
	}

	if t.Minute() == 0 {
		return fmt.Sprintf("%d %s", hour, period)
	}
	return fmt.Sprintf("%d:%02d %s", hour, t.Minute(), period)
}

func ordinalSuffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
