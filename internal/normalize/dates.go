package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBadDate is wrapped by every ParseDate failure.
var ErrBadDate = errors.New("unparseable date")

// Providers send ISO days; the insurer sends timestamps with or without a
// zone. Slash dates are accepted year first only: "10/03/2025" is day first
// in Nepal and month first elsewhere, so it is rejected.
var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"Jan 2, 2006",
}

// ParseDate parses s in the first layout that fits.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrBadDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w %q", ErrBadDate, s)
}
