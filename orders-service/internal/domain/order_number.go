package domain

import (
	"fmt"
	"time"
)

const orderNumberPrefix = "ORD"

// FormatOrderNumber renders ORD + YYMMDD + a zero-padded four digit daily sequence.
// Sequences past 9999 widen instead of wrapping.
func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("%s%02d%02d%02d%04d", orderNumberPrefix, day.Year()%100, int(day.Month()), day.Day(), seq)
}

// OrderDay truncates t to the calendar day used to scope order sequences.
func OrderDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
