package gtfs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dstTransitionSeconds provides the number of seconds of utc offset change
// later in the day after a midnight local time, for daylight saving
// transition days.
func dstTransitionSeconds(serviceDay time.Time) int {
	before := time.Date(serviceDay.Year(), serviceDay.Month(), serviceDay.Day(), 0, 0, 0, 0, serviceDay.Location())
	after := time.Date(serviceDay.Year(), serviceDay.Month(), serviceDay.Day(), 5, 0, 0, 0, serviceDay.Location())
	_, beforeOffset := before.Zone()
	_, afterOffset := after.Zone()
	return afterOffset - beforeOffset
}

// ScheduleTime produces the instant scheduleSeconds past the service day's
// midnight. Seconds above 24 hours continue the same service day past
// midnight instead of wrapping to a new calendar date, and daylight saving
// transitions are compensated so "08:00:00" is always 8am local time.
func ScheduleTime(serviceDay time.Time, scheduleSeconds int) time.Time {
	scheduleSeconds = scheduleSeconds - dstTransitionSeconds(serviceDay)
	return serviceDay.Add(time.Duration(scheduleSeconds) * time.Second)
}

// ServiceDay returns midnight of at's calendar date in at's location.
func ServiceDay(at time.Time) time.Time {
	return time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
}

// ParseScheduleSeconds parses a gtfs time of day string as seconds past the
// service day's midnight. Times are in HH:MM:SS format (H:MM:SS is also
// accepted) and values of 24:00:00 and above express post-midnight
// continuations of the service day, e.g. 25:35:00 for 1:35am the next day.
func ParseScheduleSeconds(gtfsTime string) (int, error) {
	parts := strings.Split(strings.TrimSpace(gtfsTime), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected HH:MM:SS gtfs time, got: %s", gtfsTime)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, err
	}
	return (hours * 60 * 60) + (minutes * 60) + seconds, nil
}

// ParseServiceDate parses a gtfs YYYYMMDD date string as midnight local time
// in location.
func ParseServiceDate(dateString string, location *time.Location) (time.Time, error) {
	const layout = "20060102"
	return time.ParseInLocation(layout, dateString, location)
}
