package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var errEmptyDate = errors.New("empty date")

// Layout groups, tried in order. Month-first numeric layouts come before
// day-first ones unless DayFirst is set.
var (
	isoLayouts = []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006/1/2",
		"20060102",
	}
	mdyLayouts = []string{
		"1/2/2006",
		"1-2-2006",
	}
	dmyLayouts = []string{
		"2/1/2006",
		"2-1-2006",
		"2.1.2006",
	}
	textLayouts = []string{
		"02 Jan 2006",
		"2 Jan 2006",
		"02-Jan-2006",
		"2-Jan-2006",
		"02/Jan/2006",
		"2 January 2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"Jan 2 2006",
		"02 Jan 06",
		"02-Jan-06",
	}
	mdyShortLayouts = []string{
		"1/2/06",
		"1-2-06",
	}
	dmyShortLayouts = []string{
		"2/1/06",
		"2-1-06",
		"2.1.06",
	}
)

// DateParser tries a fixed, ordered list of layouts; the first match wins.
type DateParser struct {
	layouts []string
}

// NewDateParser builds the layout list. With dayFirst, day-first numeric
// layouts are tried before month-first ones.
func NewDateParser(dayFirst bool) *DateParser {
	first, second := mdyLayouts, dmyLayouts
	firstShort, secondShort := mdyShortLayouts, dmyShortLayouts
	if dayFirst {
		first, second = second, first
		firstShort, secondShort = secondShort, firstShort
	}

	var layouts []string
	layouts = append(layouts, isoLayouts...)
	layouts = append(layouts, first...)
	layouts = append(layouts, second...)
	layouts = append(layouts, textLayouts...)
	layouts = append(layouts, firstShort...)
	layouts = append(layouts, secondShort...)
	return &DateParser{layouts: layouts}
}

// Layouts returns the layouts in the order they are tried.
func (p *DateParser) Layouts() []string {
	return append([]string(nil), p.layouts...)
}

// Parse returns the date in s at midnight UTC.
func (p *DateParser) Parse(s string) (time.Time, error) {
	s = strings.TrimSuffix(collapseSpace(s), ".")
	if s == "" {
		return time.Time{}, errEmptyDate
	}
	for _, layout := range p.layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Like reports whether s parses as a date.
func (p *DateParser) Like(s string) bool {
	_, err := p.Parse(s)
	return err == nil
}
