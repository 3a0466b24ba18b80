package predictor

import (
	"fmt"
	"time"
)

// OutOfRangeTimeError reports a requested time outside the predictable
// window. Carries the valid bounds for user display.
type OutOfRangeTimeError struct {
	Requested time.Time
	Min       time.Time
	Max       time.Time
}

func (e *OutOfRangeTimeError) Error() string {
	const dateFormat = "2006-01-02"
	return fmt.Sprintf("the date should not be earlier than %s or later than %s",
		e.Min.Format(dateFormat), e.Max.Format(dateFormat))
}

// NoArrivalFoundError reports that no scheduled arrival exists at the stop
// after the requested time for the requested route and direction.
type NoArrivalFoundError struct {
	RouteId   int
	Direction string
	StopId    int
	After     time.Time
}

func (e *NoArrivalFoundError) Error() string {
	return fmt.Sprintf("no arrivals after %v at stop %d on route %d direction %s",
		e.After, e.StopId, e.RouteId, e.Direction)
}

// NoActiveServiceError reports that no service calendar covers the requested
// day at all. A sub-case of "no arrivals after this time".
type NoActiveServiceError struct {
	On time.Time
}

func (e *NoActiveServiceError) Error() string {
	return fmt.Sprintf("no service calendar is active on %s", e.On.Format("2006-01-02"))
}

// MissingHistoricalDelayError reports a gap in the historical delay table.
// This is a data integrity failure, never silently defaulted.
type MissingHistoricalDelayError struct {
	RouteId int
	StopId  int
	Hour    int
}

func (e *MissingHistoricalDelayError) Error() string {
	return fmt.Sprintf("no historical average delay for route %d stop %d hour %d",
		e.RouteId, e.StopId, e.Hour)
}

// WeatherUnavailableError reports that the weather provider had no data for
// the resolved arrival hour.
type WeatherUnavailableError struct {
	Hour time.Time
}

func (e *WeatherUnavailableError) Error() string {
	return fmt.Sprintf("weather data unavailable for %v", e.Hour)
}
