package predictor

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/MtlTransitLabs/buscast/business/mlmodels"
	"github.com/matryer/is"
)

func testPrior(t *testing.T) *mlmodels.ScheduleRelationshipPrior {
	t.Helper()
	prior, err := mlmodels.MakeScheduleRelationshipPrior(0.95, 0.05)
	if err != nil {
		t.Fatalf("unable to build prior: %v", err)
	}
	return prior
}

func deriveAt(t *testing.T, stopId int, reference time.Time, direction string) *mlmodels.FeatureVector {
	t.Helper()
	store := makeTestStore(t)
	resolution, err := ResolveTrip(store, 69, direction, stopId, reference)
	if err != nil {
		t.Fatalf("unable to resolve trip: %v", err)
	}
	features, err := DeriveFeatures(resolution, ParseDirection(direction),
		makeTestDelays(), testPrior(t), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("unable to derive features: %v", err)
	}
	return features
}

func featureValue(t *testing.T, features *mlmodels.FeatureVector, name string) float64 {
	t.Helper()
	value, err := features.Get(name)
	if err != nil {
		t.Fatalf("unable to read feature %s: %v", name, err)
	}
	return value
}

func TestDeriveFeaturesTimeOfDay(t *testing.T) {
	is := is.New(t)
	store := makeTestStore(t)
	location := store.Location

	// wednesday 08:20 arrival is morning rush
	weekday := deriveAt(t, 52, time.Date(2025, 4, 9, 8, 5, 0, 0, location), "Gouin Est")
	is.Equal(featureValue(t, weekday, "is_morning"), 1.0)
	is.Equal(featureValue(t, weekday, "is_evening"), 0.0)
	is.Equal(featureValue(t, weekday, "is_peak_hour"), 1.0)

	// saturday 10:00 arrival is morning but never rush
	saturday := deriveAt(t, 52, time.Date(2025, 4, 12, 9, 0, 0, 0, location), "Gouin Est")
	is.Equal(featureValue(t, saturday, "is_morning"), 1.0)
	is.Equal(featureValue(t, saturday, "is_peak_hour"), 0.0)
}

func TestDeriveFeaturesDirectionIndicators(t *testing.T) {
	is := is.New(t)
	location := testLocation(t)
	reference := time.Date(2025, 4, 9, 7, 30, 0, 0, location)

	// east is the baseline, no indicator set
	east := deriveAt(t, 52, reference, "Gouin Est")
	is.Equal(featureValue(t, east, "direction_North"), 0.0)
	is.Equal(featureValue(t, east, "direction_South"), 0.0)
	is.Equal(featureValue(t, east, "direction_West"), 0.0)

	west := deriveAt(t, 52, reference, "Gouin Ouest")
	is.Equal(featureValue(t, west, "direction_West"), 1.0)
	is.Equal(featureValue(t, west, "direction_North"), 0.0)
}

func TestDeriveFeaturesTripPhase(t *testing.T) {
	is := is.New(t)
	location := testLocation(t)
	reference := time.Date(2025, 4, 9, 7, 30, 0, 0, location)

	tests := []struct {
		name       string
		stopId     int
		wantStart  float64
		wantMiddle float64
	}{
		{"first stop opens the trip", 51, 1, 0},
		{"second stop is mid trip", 52, 0, 1},
		{"third stop enters the baseline phase", 53, 0, 0},
		{"last stop is the baseline phase", 54, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features := deriveAt(t, tt.stopId, reference, "Gouin Est")
			is.Equal(featureValue(t, features, "trip_phase_start"), tt.wantStart)
			is.Equal(featureValue(t, features, "trip_phase_middle"), tt.wantMiddle)
		})
	}
}

func TestTripPhaseBucketBoundaries(t *testing.T) {
	is := is.New(t)
	tests := []struct {
		name       string
		position   int
		totalStops int
		wantStart  float64
		wantMiddle float64
	}{
		{"progress just below the start cutoff", 32, 100, 1, 0},
		{"progress 0.33 is already mid trip", 33, 100, 0, 1},
		{"one third is mid trip", 1, 3, 0, 1},
		{"progress just below the middle cutoff", 66, 100, 0, 1},
		{"progress 0.67 is the baseline", 67, 100, 0, 0},
		{"final stop is the baseline", 100, 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, middle := tripPhase(tt.position, tt.totalStops)
			is.Equal(start, tt.wantStart)
			is.Equal(middle, tt.wantMiddle)
		})
	}
}

func TestDeriveFeaturesStopDistance(t *testing.T) {
	is := is.New(t)
	location := testLocation(t)
	reference := time.Date(2025, 4, 9, 7, 30, 0, 0, location)

	// a trip's first stop has no predecessor to measure from
	first := deriveAt(t, 51, reference, "Gouin Est")
	is.Equal(featureValue(t, first, "stop_distance"), 0.0)

	// stops 51 and 52 sit roughly 900 meters apart
	second := deriveAt(t, 52, reference, "Gouin Est")
	distance := featureValue(t, second, "stop_distance")
	is.True(distance > 800)
	is.True(distance < 1000)
}

func TestDeriveFeaturesTripGeometry(t *testing.T) {
	is := is.New(t)
	location := testLocation(t)
	reference := time.Date(2025, 4, 9, 8, 5, 0, 0, location)

	features := deriveAt(t, 52, reference, "Gouin Est")
	// trip 2002 runs 08:10 to 08:30
	is.Equal(featureValue(t, features, "exp_trip_duration"), 1200.0)

	// the fixture route heads northeast, and reversing the trip flips the
	// bearing by 180 degrees
	eastBearing := featureValue(t, features, "route_bearing")
	is.True(eastBearing > 50 && eastBearing < 56)

	westFeatures := deriveAt(t, 52, time.Date(2025, 4, 9, 7, 30, 0, 0, location), "Gouin Ouest")
	westBearing := featureValue(t, westFeatures, "route_bearing")
	is.True(westBearing >= 0 && westBearing < 360)
	diff := westBearing - eastBearing
	if diff < 0 {
		diff = -diff
	}
	is.True(diff > 178 && diff < 182)
}

func TestDeriveFeaturesFrequencyAndHistory(t *testing.T) {
	is := is.New(t)
	location := testLocation(t)
	reference := time.Date(2025, 4, 9, 8, 5, 0, 0, location)

	features := deriveAt(t, 52, reference, "Gouin Est")
	// three arrivals during hour 8 falls in the rare bucket
	is.Equal(featureValue(t, features, "arrivals_per_hour"), 3.0)
	is.Equal(featureValue(t, features, "freq_very_rare"), 0.0)
	is.Equal(featureValue(t, features, "freq_rare"), 1.0)
	is.Equal(featureValue(t, features, "freq_normal"), 0.0)

	is.Equal(featureValue(t, features, "hist_avg_delay"), 95.0)
	is.Equal(featureValue(t, features, "stop_cluster"), 4.0)
	is.Equal(featureValue(t, features, "location_group"), 4.0)
}

func TestDeriveFeaturesMissingHistoricalDelay(t *testing.T) {
	store := makeTestStore(t)
	// the late night trip reaches stop 53 at 01:40, an hour the delay
	// table has no entry for
	reference := time.Date(2025, 4, 9, 23, 0, 0, 0, store.Location)
	resolution, err := ResolveTrip(store, 69, "Gouin Est", 53, reference)
	if err != nil {
		t.Fatalf("unable to resolve trip: %v", err)
	}

	_, err = DeriveFeatures(resolution, DirectionEast, makeTestDelays(),
		testPrior(t), rand.New(rand.NewSource(1)))
	var missing *MissingHistoricalDelayError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingHistoricalDelayError, got %v", err)
	}
	if missing.StopId != 53 || missing.Hour != 1 {
		t.Errorf("error does not identify the gap: %+v", missing)
	}
}

func TestDeriveFeaturesDeterministicUnderSeed(t *testing.T) {
	is := is.New(t)
	store := makeTestStore(t)
	reference := time.Date(2025, 4, 9, 8, 5, 0, 0, store.Location)
	resolution, err := ResolveTrip(store, 69, "Gouin Est", 52, reference)
	is.NoErr(err)

	first, err := DeriveFeatures(resolution, DirectionEast, makeTestDelays(),
		testPrior(t), rand.New(rand.NewSource(42)))
	is.NoErr(err)
	second, err := DeriveFeatures(resolution, DirectionEast, makeTestDelays(),
		testPrior(t), rand.New(rand.NewSource(42)))
	is.NoErr(err)

	is.Equal(featureValue(t, first, "schedule_relationship_Scheduled"),
		featureValue(t, second, "schedule_relationship_Scheduled"))
}
