package predictor

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/MtlTransitLabs/buscast/business/data/history"
	"github.com/MtlTransitLabs/buscast/business/mlmodels"
)

// peakHours are the local hours counted as rush hour on weekdays.
var peakHours = map[int]bool{
	6: true, 7: true, 8: true, 9: true,
	15: true, 16: true, 17: true, 18: true,
}

// isMorning reports whether hour falls in the morning period.
func isMorning(hour int) bool {
	return hour >= 6 && hour < 12
}

// isEvening reports whether hour falls in the evening period.
func isEvening(hour int) bool {
	return hour >= 18 && hour < 24
}

// isPeakHour reports whether at falls inside a weekday rush hour window.
func isPeakHour(at time.Time) bool {
	if at.Weekday() == time.Saturday || at.Weekday() == time.Sunday {
		return false
	}
	return peakHours[at.Hour()]
}

// tripPhase classifies where along its trip the matched stop sits, by the
// fraction of stops already reached. The cutoffs are 0.33 and 0.67, the
// values the model was trained with, not exact thirds. Progress of 0.67 and
// above is the baseline phase and carries no indicator of its own.
func tripPhase(position int, totalStops int) (start float64, middle float64) {
	progress := float64(position) / float64(totalStops)
	switch {
	case progress < 0.33:
		return 1, 0
	case progress < 0.67:
		return 0, 1
	}
	return 0, 0
}

// frequencyBuckets classifies the stop's hourly arrival count. Five or more
// arrivals an hour is the baseline frequency and carries no indicator.
func frequencyBuckets(arrivalsPerHour int) (veryRare float64, rare float64, normal float64) {
	switch {
	case arrivalsPerHour <= 2:
		return 1, 0, 0
	case arrivalsPerHour <= 4:
		return 0, 1, 0
	case arrivalsPerHour <= 6:
		return 0, 0, 1
	}
	return 0, 0, 0
}

// directionIndicators one-hot encodes the direction. East is the baseline
// and carries no indicator of its own.
func directionIndicators(direction Direction) (south float64, north float64, west float64) {
	switch direction {
	case DirectionSouth:
		return 1, 0, 0
	case DirectionNorth:
		return 0, 1, 0
	case DirectionWest:
		return 0, 0, 1
	}
	return 0, 0, 0
}

// DeriveFeatures computes every trip derived feature of the model vector from
// a resolved trip: time of day indicators, trip geometry, frequency buckets,
// the historical average delay and a sampled schedule relationship. The
// weather attributes are left for the caller to merge before scoring.
//
// A historical delay gap is a hard error: the model was trained with the
// column always populated, so scoring without it would silently shift every
// prediction.
func DeriveFeatures(resolution *TripResolution,
	direction Direction,
	delays *history.AverageDelays,
	prior *mlmodels.ScheduleRelationshipPrior,
	rng *rand.Rand) (*mlmodels.FeatureVector, error) {

	if resolution.TotalStops() == 0 {
		return nil, fmt.Errorf("trip %d has no stop times", resolution.Trip.TripId)
	}
	if resolution.Matched.Stop == nil {
		return nil, fmt.Errorf("stop %d is not in the stop table", resolution.Matched.StopTime.StopId)
	}

	features := mlmodels.NewFeatureVector()
	arrival := resolution.NextArrivalTime

	south, north, west := directionIndicators(direction)
	trip := map[string]float64{
		"direction_South": south,
		"direction_North": north,
		"direction_West":  west,
	}

	trip["is_morning"] = boolFeature(isMorning(arrival.Hour()))
	trip["is_evening"] = boolFeature(isEvening(arrival.Hour()))
	trip["is_peak_hour"] = boolFeature(isPeakHour(arrival))

	matchedPosition := 0
	for i := range resolution.TripStops {
		if resolution.TripStops[i].StopTime.StopSequence == resolution.Matched.StopTime.StopSequence {
			matchedPosition = i + 1
		}
	}
	start, middle := tripPhase(matchedPosition, resolution.TotalStops())
	trip["trip_phase_start"] = start
	trip["trip_phase_middle"] = middle

	if predecessor := resolution.predecessorOfMatched(); predecessor != nil {
		trip["stop_distance"] = stopDistanceMeters(predecessor.Stop, resolution.Matched.Stop)
	} else {
		trip["stop_distance"] = 0
	}

	first := resolution.TripStops[0]
	last := resolution.TripStops[resolution.TotalStops()-1]
	trip["exp_trip_duration"] = float64(last.StopTime.ArrivalSeconds - first.StopTime.ArrivalSeconds)
	trip["route_bearing"] = routeBearingDegrees(first.Stop, last.Stop)

	delay, found := delays.Lookup(resolution.Trip.RouteId,
		resolution.Matched.StopTime.StopId, arrival.Hour())
	if !found {
		return nil, &MissingHistoricalDelayError{
			RouteId: resolution.Trip.RouteId,
			StopId:  resolution.Matched.StopTime.StopId,
			Hour:    arrival.Hour(),
		}
	}
	trip["hist_avg_delay"] = delay

	veryRare, rare, normal := frequencyBuckets(resolution.ArrivalsPerHour)
	trip["freq_very_rare"] = veryRare
	trip["freq_rare"] = rare
	trip["freq_normal"] = normal
	trip["arrivals_per_hour"] = float64(resolution.ArrivalsPerHour)

	trip["stop_cluster"] = resolution.Matched.Stop.Cluster
	trip["location_group"] = resolution.Matched.Stop.LocationGroup

	trip["schedule_relationship_Scheduled"] = prior.Sample(rng)

	if err := features.SetAll(trip); err != nil {
		return nil, err
	}
	return features, nil
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
