package timeutil

import (
	"sync"
	"time"
	_ "time/tzdata"

	log "github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	loc = time.UTC
)

// SetLocation sets the store's local timezone. Unknown names keep UTC.
func SetLocation(name string) {
	l, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("timezone", name).Warn("[Time] Unknown timezone, using UTC")
		l = time.UTC
	}
	mu.Lock()
	loc = l
	mu.Unlock()
}

func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return loc
}

// Now returns the current time in the store timezone
func Now() time.Time {
	return time.Now().In(Location())
}

// ParseDate parses a YYYY-MM-DD date at midnight store time.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, Location())
}

// StartOfDay returns 00:00:00 of t's day in store time
func StartOfDay(t time.Time) time.Time {
	l := Location()
	lt := t.In(l)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, l)
}

// EndOfDay returns the last nanosecond of t's day in store time
func EndOfDay(t time.Time) time.Time {
	l := Location()
	lt := t.In(l)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 23, 59, 59, 999999999, l)
}

// Format formats t in store time
func Format(t time.Time, layout string) string {
	return t.In(Location()).Format(layout)
}

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02 Jan 2006, 03:04 PM"
)
