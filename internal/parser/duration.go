package parser

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 480
)

var (
	ErrNoDuration         = errors.New("no duration found")
	ErrDurationOutOfRange = errors.New("duration must be between 15 and 480 minutes")
)

var (
	hourIndicator = regexp.MustCompile(`hour|hr`)
	decimalToken  = regexp.MustCompile(`\d*\.?\d+`)
	integerToken  = regexp.MustCompile(`\d+`)
)

// ParseDuration returns the ride length in minutes. Numbers are minutes
// unless the text mentions hours, in which case fractional hours are allowed.
func ParseDuration(input string) (int, error) {
	text := strings.ToLower(strings.TrimSpace(input))

	var minutes int
	if hourIndicator.MatchString(text) {
		tok := decimalToken.FindString(text)
		if tok == "" {
			return 0, ErrNoDuration
		}
		hours, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, ErrNoDuration
		}
		minutes = int(math.Round(hours * 60))
	} else {
		tok := integerToken.FindString(text)
		if tok == "" {
			return 0, ErrNoDuration
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return 0, ErrDurationOutOfRange
		}
		minutes = n
	}

	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return 0, ErrDurationOutOfRange
	}
	return minutes, nil
}
