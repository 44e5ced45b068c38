package archive

import (
	"fmt"
	"time"
)

// fullStartDateLayout is the provider's compact UTC timestamp format.
const fullStartDateLayout = "200601021504"

// Today returns local midnight of now in loc.
func Today(loc *time.Location, now time.Time) time.Time {
	if loc == nil {
		loc = now.Location()
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DaysAgo reports how many whole calendar days ago date was, seen from
// today. The comparison happens in date's own timezone: today is projected
// into it first, then both are truncated to local midnight, so the result
// is a plain calendar difference and survives DST transitions. Negative
// means date lies in the future of today.
func DaysAgo(date, today time.Time) int {
	loc := date.Location()
	return civilDays(Today(loc, today)) - civilDays(Today(loc, date))
}

// DateBefore returns the calendar date n days before today in loc, at
// local midnight. Negative n moves forward.
func DateBefore(n int, loc *time.Location, today time.Time) time.Time {
	t := Today(loc, today)
	y, m, d := t.Date()
	return time.Date(y, m, d-n, 0, 0, 0, 0, loc)
}

// civilDays counts days since the epoch for t's calendar date, ignoring
// its timezone.
func civilDays(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// ParseFullStartDate parses the provider's 12-digit "fullstartdate" value.
//
// The raw value is the UTC moment at which the image became a given
// calendar date somewhere on Earth, not a plain instant. If the UTC hour
// is below 12 the rollover belongs to a zone west of UTC, so the offset is
// the negated time of day and the local date equals the UTC date. From
// hour 12 on, the rollover applies to the zone that reaches the next UTC
// midnight first: the offset is the forward gap to that midnight and the
// local date is the next midnight's date.
func ParseFullStartDate(raw string) (time.Time, error) {
	d, err := time.Parse(fullStartDateLayout, raw)
	if err != nil {
		return time.Time{}, &Error{
			Kind:    KindInvalidInput,
			Message: fmt.Sprintf("failed to parse full start date %q", raw),
			cause:   err,
		}
	}

	var offset int
	var y int
	var m time.Month
	var day int
	if d.Hour() < 12 {
		offset = -(d.Hour()*3600 + d.Minute()*60)
		y, m, day = d.Date()
	} else {
		next := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, time.UTC)
		offset = int(next.Sub(d).Seconds())
		y, m, day = next.Date()
	}

	return time.Date(y, m, day, 0, 0, 0, 0, time.FixedZone(OffsetName(offset), offset)), nil
}

// OffsetName renders a UTC offset in seconds as "+08:00" / "-07:00".
func OffsetName(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d:%02d", sign, seconds/3600, seconds%3600/60)
}

// DayRollStatus reports, for each timezone, whether its local calendar
// date at nowUTC has reached the date observed at the reference UTC
// offset. A zone exactly on the boundary counts as rolled. Pure function,
// no I/O; used to decide which markets of a batch have already crossed
// into the next publish cycle.
func DayRollStatus(zones []*time.Location, nowUTC time.Time, referenceOffsetSeconds int) map[string]bool {
	ref := time.FixedZone(OffsetName(referenceOffsetSeconds), referenceOffsetSeconds)
	refDays := civilDays(nowUTC.In(ref))
	status := make(map[string]bool, len(zones))
	for _, loc := range zones {
		status[loc.String()] = civilDays(nowUTC.In(loc)) >= refDays
	}
	return status
}
