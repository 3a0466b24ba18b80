// Package gtfs provides the in-memory schedule tables loaded from a gtfs feed
// snapshot, and the calendar and schedule time logic needed to resolve trips.
package gtfs

import (
	"fmt"
	"sort"
	"time"
)

// BusRouteType is the gtfs route_type value for bus routes.
const BusRouteType = 3

// Route contains data from a gtfs route definition in a routes.txt file.
// Only bus routes are kept in the Store.
type Route struct {
	RouteId   int    `json:"route_id"`
	LongName  string `json:"route_long_name"`
	Color     string `json:"route_color"`
	TextColor string `json:"route_text_color"`
	RouteType int    `json:"-"`
}

// Trip contains data from a gtfs trip definition in a trips.txt file
type Trip struct {
	TripId    int64  `json:"trip_id"`
	RouteId   int    `json:"route_id"`
	ServiceId string `json:"service_id"`
	Headsign  string `json:"trip_headsign"`
}

// StopTime contains a record from a gtfs stop_times.txt file.
// ArrivalSeconds and DepartureSeconds are seconds past the service day's
// midnight and may exceed 24 hours for trips continuing past midnight.
type StopTime struct {
	TripId           int64 `json:"trip_id"`
	StopSequence     int   `json:"stop_sequence"`
	StopId           int   `json:"stop_id"`
	ArrivalSeconds   int   `json:"arrival_time"`
	DepartureSeconds int   `json:"departure_time"`
}

// Stop contains a stop record from the stop cluster snapshot, a stops.txt
// joined against precomputed spatial clusters.
type Stop struct {
	StopId        int      `json:"stop_id"`
	Name          string   `json:"stop_name"`
	Lat           *float64 `json:"stop_lat"`
	Lon           *float64 `json:"stop_lon"`
	Cluster       float64  `json:"stop_cluster"`
	LocationGroup float64  `json:"location_group"`
}

// HasCoordinates reports whether both coordinates are present on the stop.
func (s *Stop) HasCoordinates() bool {
	return s != nil && s.Lat != nil && s.Lon != nil
}

// Calendar contains data from a record in a gtfs calendar.txt file.
// StartDate is the local midnight opening the service period and EndDate the
// local midnight after its last day, so the end date is inclusive through its
// full 24 hours.
type Calendar struct {
	ServiceId string
	Monday    int
	Tuesday   int
	Wednesday int
	Thursday  int
	Friday    int
	Saturday  int
	Sunday    int
	StartDate time.Time
	EndDate   time.Time
}

// weekdayFlag selects the day of week column matching weekday
func (c *Calendar) weekdayFlag(weekday time.Weekday) int {
	switch weekday {
	case time.Monday:
		return c.Monday
	case time.Tuesday:
		return c.Tuesday
	case time.Wednesday:
		return c.Wednesday
	case time.Thursday:
		return c.Thursday
	case time.Friday:
		return c.Friday
	case time.Saturday:
		return c.Saturday
	}
	return c.Sunday
}

// ActiveOn reports whether the calendar row is in service at local time at.
func (c *Calendar) ActiveOn(at time.Time) bool {
	if c.weekdayFlag(at.Weekday()) != 1 {
		return false
	}
	return !at.Before(c.StartDate) && at.Before(c.EndDate)
}

// Store holds all schedule tables for one feed snapshot. It is loaded once at
// process start and never written afterwards, so it is safe for concurrent
// readers without locking.
type Store struct {
	Location *time.Location

	routes       []Route
	routesById   map[int]*Route
	trips        map[int64]*Trip
	tripsByRoute map[int][]*Trip
	stopTimes    map[int64][]StopTime
	stops        map[int]*Stop
	calendars    []Calendar

	minServiceTime time.Time
}

// makeStore assembles a Store from loaded tables, indexing trips by route and
// ordering each trip's stop times by stop sequence.
func makeStore(location *time.Location,
	routes []Route,
	trips []Trip,
	stopTimes []StopTime,
	stops []Stop,
	calendars []Calendar) (*Store, error) {

	store := Store{
		Location:     location,
		routesById:   make(map[int]*Route),
		trips:        make(map[int64]*Trip),
		tripsByRoute: make(map[int][]*Trip),
		stopTimes:    make(map[int64][]StopTime),
		stops:        make(map[int]*Stop),
		calendars:    calendars,
	}

	for i := range routes {
		route := &routes[i]
		if route.RouteType != BusRouteType {
			continue
		}
		store.routes = append(store.routes, *route)
		store.routesById[route.RouteId] = route
	}
	sort.Slice(store.routes, func(i, j int) bool {
		return store.routes[i].RouteId < store.routes[j].RouteId
	})

	for i := range trips {
		trip := &trips[i]
		store.trips[trip.TripId] = trip
		store.tripsByRoute[trip.RouteId] = append(store.tripsByRoute[trip.RouteId], trip)
	}

	for _, stopTime := range stopTimes {
		store.stopTimes[stopTime.TripId] = append(store.stopTimes[stopTime.TripId], stopTime)
	}
	for tripId, tripStopTimes := range store.stopTimes {
		sort.Slice(tripStopTimes, func(i, j int) bool {
			return tripStopTimes[i].StopSequence < tripStopTimes[j].StopSequence
		})
		for i := 1; i < len(tripStopTimes); i++ {
			if tripStopTimes[i].StopSequence == tripStopTimes[i-1].StopSequence {
				return nil, fmt.Errorf("trip %d has duplicate stop_sequence %d",
					tripId, tripStopTimes[i].StopSequence)
			}
		}
	}

	for i := range stops {
		store.stops[stops[i].StopId] = &stops[i]
	}

	for _, calendar := range calendars {
		if calendar.EndDate.Before(calendar.StartDate) {
			return nil, fmt.Errorf("calendar service %s ends %v before it starts %v",
				calendar.ServiceId, calendar.EndDate, calendar.StartDate)
		}
		if store.minServiceTime.IsZero() || calendar.StartDate.Before(store.minServiceTime) {
			store.minServiceTime = calendar.StartDate
		}
	}

	return &store, nil
}

// ActiveServiceIds returns the distinct service ids whose calendar row covers
// the local time at. An empty result means no service runs that day.
func (s *Store) ActiveServiceIds(at time.Time) map[string]bool {
	serviceIds := make(map[string]bool)
	for i := range s.calendars {
		if s.calendars[i].ActiveOn(at) {
			serviceIds[s.calendars[i].ServiceId] = true
		}
	}
	return serviceIds
}

// BusRoutes returns all bus routes ordered by route id.
func (s *Store) BusRoutes() []Route {
	return s.routes
}

// Route retrieves the route with routeId or nil if not loaded.
func (s *Store) Route(routeId int) *Route {
	return s.routesById[routeId]
}

// Trip retrieves the trip with tripId or nil if not loaded.
func (s *Store) Trip(tripId int64) *Trip {
	return s.trips[tripId]
}

// TripsForRoute returns all trips on routeId in no particular order.
func (s *Store) TripsForRoute(routeId int) []*Trip {
	return s.tripsByRoute[routeId]
}

// Headsigns returns the distinct trip headsigns on routeId, sorted.
func (s *Store) Headsigns(routeId int) []string {
	seen := make(map[string]bool)
	var headsigns []string
	for _, trip := range s.tripsByRoute[routeId] {
		if !seen[trip.Headsign] {
			seen[trip.Headsign] = true
			headsigns = append(headsigns, trip.Headsign)
		}
	}
	sort.Strings(headsigns)
	return headsigns
}

// StopTimesForTrip returns the trip's stop times ordered by stop sequence.
func (s *Store) StopTimesForTrip(tripId int64) []StopTime {
	return s.stopTimes[tripId]
}

// Stop retrieves the stop with stopId or nil if not loaded.
func (s *Store) Stop(stopId int) *Stop {
	return s.stops[stopId]
}

// MinServiceTime is the earliest instant covered by any service calendar,
// the lower bound of the predictable window.
func (s *Store) MinServiceTime() time.Time {
	return s.minServiceTime
}
