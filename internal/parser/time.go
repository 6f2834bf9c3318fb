// Package parser turns free-text chat replies into ride fields.
package parser

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrUnrecognizedTime = errors.New("unrecognized time")
	ErrTimeNotInFuture  = errors.New("time is not in the future")
)

var (
	nowPattern      = regexp.MustCompile(`\bnow\b|immediate`)
	ordinalPattern  = regexp.MustCompile(`(\d)(st|nd|rd|th)\b`)
	meridiemPattern = regexp.MustCompile(`(\d)\s*([ap])\.?m\b\.?`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

var clockLayouts = []string{"3:04 PM", "15:04", "3 PM"}

// Tried in order; the first layout yielding a future instant wins.
var dateTimeLayouts = []struct {
	layout  string
	hasYear bool
}{
	{"January 2 2006, 3:04 PM", true},
	{"Jan 2 2006, 3:04 PM", true},
	{"January 2 2006 3:04 PM", true},
	{"Jan 2 2006 3:04 PM", true},
	{"1/2/2006 3:04 PM", true},
	{"2/1/2006 3:04 PM", true},
	{"2006-01-02 3:04 PM", true},
	{"2006-01-02 15:04", true},
	{"January 2, 3:04 PM", false},
	{"January 2 3:04 PM", false},
	{"Jan 2, 3:04 PM", false},
	{"Jan 2 3:04 PM", false},
	{"1/2 3:04 PM", false},
	{"2/1 3:04 PM", false},
}

// ParseTime interprets a departure time relative to now, in now's location.
func ParseTime(input string, now time.Time) (time.Time, error) {
	text := normalize(input)
	if text == "" {
		return time.Time{}, ErrUnrecognizedTime
	}

	if nowPattern.MatchString(text) {
		return now, nil
	}

	if rest, ok := cutKeyword(text, "today"); ok {
		t, err := onDay(rest, now, 0)
		if err != nil {
			return time.Time{}, err
		}
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}

	if rest, ok := cutKeyword(text, "tomorrow"); ok {
		return onDay(rest, now, 1)
	}

	parsedAny := false
	for _, l := range dateTimeLayouts {
		t, err := time.ParseInLocation(l.layout, text, now.Location())
		if err != nil {
			continue
		}
		parsedAny = true
		if !l.hasYear {
			t = time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		}
		if t.After(now) {
			return t, nil
		}
	}

	if parsedAny {
		return time.Time{}, ErrTimeNotInFuture
	}
	return time.Time{}, ErrUnrecognizedTime
}

func onDay(clock string, now time.Time, offsetDays int) (time.Time, error) {
	for _, layout := range clockLayouts {
		c, err := time.Parse(layout, clock)
		if err != nil {
			continue
		}
		day := now.AddDate(0, 0, offsetDays)
		return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, now.Location()), nil
	}
	return time.Time{}, ErrUnrecognizedTime
}

// cutKeyword removes the first occurrence of word.
func cutKeyword(text, word string) (string, bool) {
	before, after, found := strings.Cut(text, word)
	if !found {
		return "", false
	}
	return strings.TrimSpace(before + after), true
}

// normalize lowercases and collapses whitespace, drops ordinal suffixes and
// rewrites any am/pm marker as " AM"/" PM", the only form time layouts
// accept. Month names still parse since layout matching ignores case.
func normalize(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = spacePattern.ReplaceAllString(s, " ")
	s = ordinalPattern.ReplaceAllString(s, "$1")
	s = meridiemPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := meridiemPattern.FindStringSubmatch(m)
		return sub[1] + " " + strings.ToUpper(sub[2]) + "M"
	})
	return s
}
