package row

import (
	"fmt"
	"strconv"
	"time"
)

// TagLen is the width of a timestamp tag: YYYYMMDDHHmmSS
const TagLen = 14

const tagLayout = "20060102150405"

// Clock returns current time. Tests use a frozen clock.
type Clock func() time.Time

// SystemClock is local wall-clock time
func SystemClock() time.Time {
	return time.Now()
}

// Tag formats t as 14 decimal digits using t's own location.
// Years outside 0..9999 can't be represented in fixed width, we clamp them
func Tag(t time.Time) string {
	y := t.Year()
	if y < 0 {
		y = 0
	} else if y > 9999 {
		y = 9999
	}
	var buf [TagLen]byte
	d := buf[:0]
	d = appendPadded(d, y, 4)
	d = appendPadded(d, int(t.Month()), 2)
	d = appendPadded(d, t.Day(), 2)
	d = appendPadded(d, t.Hour(), 2)
	d = appendPadded(d, t.Minute(), 2)
	d = appendPadded(d, t.Second(), 2)
	return string(d)
}

func appendPadded(d []byte, n int, width int) []byte {
	s := strconv.Itoa(n)
	for i := len(s); i < width; i++ {
		d = append(d, '0')
	}
	return append(d, s...)
}

// NowTag returns the tag for the current time of clock.
// nil clock means SystemClock
func NowTag(clock Clock) string {
	if clock == nil {
		clock = SystemClock
	}
	return Tag(clock())
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseTag parses a tag back into local time.
// Tags don't carry a zone so times around DST transitions are ambiguous
func ParseTag(s string) (time.Time, error) {
	if len(s) != TagLen || !isDigits(s) {
		return time.Time{}, fmt.Errorf("invalid timestamp tag '%s'", s)
	}
	return time.ParseInLocation(tagLayout, s, time.Local)
}
