package timeservice

import "fmt"

// Phrases are the user-facing fragments used by the formatters. Replace
// them to localize output.
type Phrases struct {
	HourOne         string
	HoursMany       string // %d
	MinuteOne       string
	MinutesMany     string // %d
	Separator       string
	LessThanMinute  string
	Overtime        string
	InvalidDuration string
	EndBeforeStart  string
	Today           string
	Unknown         string
	JustNow         string
	MinutesAgo      string // %d
	HoursAgo        string // %d
	DaysAgo         string // %d
	FutureCheckin   string
	TooLongCheckin  string // %.1f hours
}

func EnglishPhrases() Phrases {
	return Phrases{
		HourOne:         "1 hour",
		HoursMany:       "%d hours",
		MinuteOne:       "1 minute",
		MinutesMany:     "%d minutes",
		Separator:       " ",
		LessThanMinute:  "less than 1 minute",
		Overtime:        " (overtime)",
		InvalidDuration: "invalid duration",
		EndBeforeStart:  "end time is before start time",
		Today:           "Today",
		Unknown:         "unknown time",
		JustNow:         "just now",
		MinutesAgo:      "%d minutes ago",
		HoursAgo:        "%d hours ago",
		DaysAgo:         "%d days ago",
		FutureCheckin:   "check-in time is in the future, the device clock may be wrong",
		TooLongCheckin:  "checked in %.1f hours ago, longer than a plausible shift",
	}
}

func (p Phrases) hours(h int) string {
	if h == 1 {
		return p.HourOne
	}
	return fmt.Sprintf(p.HoursMany, h)
}

func (p Phrases) minutes(m int) string {
	if m == 1 {
		return p.MinuteOne
	}
	return fmt.Sprintf(p.MinutesMany, m)
}

func (p Phrases) duration(hours, mins int) string {
	switch {
	case hours > 0 && mins > 0:
		return p.hours(hours) + p.Separator + p.minutes(mins)
	case hours > 0:
		return p.hours(hours)
	case mins > 0:
		return p.minutes(mins)
	}
	return p.LessThanMinute
}
