package predictor

import (
	"sort"
	"time"

	"github.com/MtlTransitLabs/buscast/business/data/gtfs"
)

// ResolvedStop is one stop occurrence on a resolved trip: the scheduled stop
// time with its arrival instant and stop record.
type ResolvedStop struct {
	StopTime    gtfs.StopTime
	Stop        *gtfs.Stop
	ArrivalTime time.Time
}

// TripResolution is the complete result of resolving one route, direction,
// stop and reference time to the next scheduled arrival: the arrival itself,
// the whole ordered stop sequence of its trip, and the stop's hourly arrival
// frequency that service day.
type TripResolution struct {
	Trip            *gtfs.Trip
	NextArrivalTime time.Time
	Matched         ResolvedStop
	TripStops       []ResolvedStop
	ArrivalsPerHour int
}

// TotalStops is the number of stops on the full trip.
func (r *TripResolution) TotalStops() int {
	return len(r.TripStops)
}

// predecessorOfMatched returns the stop immediately before the matched stop
// in the trip's stop sequence, or nil when the matched stop opens the trip.
func (r *TripResolution) predecessorOfMatched() *ResolvedStop {
	for i := range r.TripStops {
		if r.TripStops[i].StopTime.StopSequence == r.Matched.StopTime.StopSequence {
			if i == 0 {
				return nil
			}
			return &r.TripStops[i-1]
		}
	}
	return nil
}

// stopArrival is a request-scoped working record: one scheduled arrival at
// the requested stop on the requested service day.
type stopArrival struct {
	trip        *gtfs.Trip
	stopTime    gtfs.StopTime
	arrivalTime time.Time
}

// ResolveTrip determines the next scheduled arrival at stopId on routeId in
// the direction named by directionToken, at or after referenceTime, and
// reconstructs that trip's full ordered stop sequence.
//
// The resolution is a pure function of the store and its inputs: active
// service calendars select the day's trips, gtfs schedule seconds are
// combined with the reference day's midnight so post-midnight times stay on
// the same service day, and the earliest arrival not before referenceTime
// wins.
func ResolveTrip(store *gtfs.Store,
	routeId int,
	directionToken string,
	stopId int,
	referenceTime time.Time) (*TripResolution, error) {

	referenceTime = referenceTime.In(store.Location)
	serviceIds := store.ActiveServiceIds(referenceTime)
	if len(serviceIds) == 0 {
		return nil, &NoActiveServiceError{On: referenceTime}
	}

	serviceDay := gtfs.ServiceDay(referenceTime)

	// every scheduled arrival at the requested stop that service day
	var arrivals []stopArrival
	for _, trip := range store.TripsForRoute(routeId) {
		if !serviceIds[trip.ServiceId] || trip.Headsign != directionToken {
			continue
		}
		for _, stopTime := range store.StopTimesForTrip(trip.TripId) {
			if stopTime.StopId != stopId {
				continue
			}
			arrivals = append(arrivals, stopArrival{
				trip:        trip,
				stopTime:    stopTime,
				arrivalTime: gtfs.ScheduleTime(serviceDay, stopTime.ArrivalSeconds),
			})
		}
	}
	sort.Slice(arrivals, func(i, j int) bool {
		return arrivals[i].arrivalTime.Before(arrivals[j].arrivalTime)
	})

	// hourly frequency signal over the whole service day
	arrivalsPerHour := make(map[time.Time]int)
	for _, arrival := range arrivals {
		arrivalsPerHour[arrival.arrivalTime.Truncate(time.Hour)]++
	}

	next := findNextArrival(arrivals, referenceTime)
	if next == nil {
		return nil, &NoArrivalFoundError{
			RouteId:   routeId,
			Direction: directionToken,
			StopId:    stopId,
			After:     referenceTime,
		}
	}

	resolution := TripResolution{
		Trip:            next.trip,
		NextArrivalTime: next.arrivalTime,
		ArrivalsPerHour: arrivalsPerHour[next.arrivalTime.Truncate(time.Hour)],
	}

	// reconstruct the entire trip the matched arrival belongs to
	for _, stopTime := range store.StopTimesForTrip(next.trip.TripId) {
		resolved := ResolvedStop{
			StopTime:    stopTime,
			Stop:        store.Stop(stopTime.StopId),
			ArrivalTime: gtfs.ScheduleTime(serviceDay, stopTime.ArrivalSeconds),
		}
		resolution.TripStops = append(resolution.TripStops, resolved)
		if stopTime.StopSequence == next.stopTime.StopSequence {
			resolution.Matched = resolved
		}
	}

	return &resolution, nil
}

// findNextArrival returns the earliest arrival at or after referenceTime, or
// nil when the day's schedule is exhausted.
func findNextArrival(arrivals []stopArrival, referenceTime time.Time) *stopArrival {
	for i := range arrivals {
		if !arrivals[i].arrivalTime.Before(referenceTime) {
			return &arrivals[i]
		}
	}
	return nil
}
