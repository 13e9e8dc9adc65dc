package campaign

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// window is a same-day interval in minutes since midnight, start inclusive,
// end exclusive.
type window struct {
	start int
	end   int
}

// LegalHours is the per-weekday allow-list for placing calls. A weekday
// without windows means no calls that day; windows never span midnight.
type LegalHours struct {
	windows map[time.Weekday][]window
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseLegalHours turns the configured weekday map into a typed allow-list.
func ParseLegalHours(days map[string][]string) (*LegalHours, error) {
	lh := &LegalHours{windows: make(map[time.Weekday][]window, len(days))}
	for day, specs := range days {
		wd, ok := weekdayNames[strings.ToLower(day)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", day)
		}
		for _, spec := range specs {
			w, err := parseWindow(spec)
			if err != nil {
				return nil, fmt.Errorf("weekday %s: %w", day, err)
			}
			lh.windows[wd] = append(lh.windows[wd], w)
		}
	}
	return lh, nil
}

func parseWindow(spec string) (window, error) {
	from, to, ok := strings.Cut(spec, "-")
	if !ok {
		return window{}, fmt.Errorf("malformed window %q", spec)
	}
	start, err := parseClock(from)
	if err != nil {
		return window{}, fmt.Errorf("window %q: %w", spec, err)
	}
	end, err := parseClock(to)
	if err != nil {
		return window{}, fmt.Errorf("window %q: %w", spec, err)
	}
	if start >= end {
		return window{}, fmt.Errorf("window %q ends before it starts", spec)
	}
	return window{start: start, end: end}, nil
}

func parseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("bad hour %q", h)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("bad minute %q", m)
	}
	return hh*60 + mm, nil
}

// Allows reports whether t, in its own location, falls inside a calling
// window of its weekday.
func (lh *LegalHours) Allows(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	for _, w := range lh.windows[t.Weekday()] {
		if minute >= w.start && minute < w.end {
			return true
		}
	}
	return false
}
