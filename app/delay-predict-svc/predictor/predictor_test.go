package predictor

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/MtlTransitLabs/buscast/business/data/weather"
	"github.com/matryer/is"
)

func makeTestPredictor(t *testing.T, scorer *stubScorer, weatherSvc weather.Service, now time.Time) *Predictor {
	t.Helper()
	p := MakePredictor(testLogger(), makeTestStore(t), makeTestDelays(),
		weatherSvc, scorer, testPrior(t), rand.New(rand.NewSource(1)), nil)
	p.now = func() time.Time { return now }
	return p
}

func TestPredictLateArrival(t *testing.T) {
	is := is.New(t)
	location := testLocation(t)
	now := time.Date(2025, 4, 9, 7, 0, 0, 0, location)
	scorer := &stubScorer{delaySeconds: 120}
	p := makeTestPredictor(t, scorer, makeStubWeather(), now)

	result, err := p.Predict(Request{
		RouteId:    69,
		Direction:  "Gouin Est",
		StopId:     52,
		ChosenTime: time.Date(2025, 4, 9, 8, 5, 0, 0, location),
	})
	is.NoErr(err)
	is.True(result.NextArrivalTime.Equal(time.Date(2025, 4, 9, 8, 20, 0, 0, location)))
	is.True(result.PredictedArrivalTime.Equal(time.Date(2025, 4, 9, 8, 22, 0, 0, location)))
	is.Equal(result.Status, StatusLate)
	is.Equal(result.PredictedDelaySeconds, 120.0)
	is.Equal(result.Direction, "Gouin East")
	is.Equal(result.Route.RouteId, 69)
	is.Equal(result.Stop.StopId, 52)
	// 95 seconds of average delay rounds to 2 minutes
	is.Equal(result.HistAvgDelayMinutes, 2)
	is.Equal(result.WeatherCondition, "Overcast")
	is.Equal(result.TemperatureCelsius, 11.5)

	// the scorer saw the full interaction matrix
	is.True(scorer.lastRow != nil)
	is.Equal(len(scorer.lastRow.Columns), 25)
}

func TestPredictArrivalStatuses(t *testing.T) {
	location := testLocation(t)
	now := time.Date(2025, 4, 9, 7, 0, 0, 0, location)
	tests := []struct {
		name         string
		delaySeconds float64
		want         string
	}{
		{"positive delay is late", 90, StatusLate},
		{"negative delay is early", -90, StatusEarly},
		{"seconds inside the minute are on time", 30, StatusOnTime},
		{"zero delay is on time", 0, StatusOnTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			p := makeTestPredictor(t, &stubScorer{delaySeconds: tt.delaySeconds},
				makeStubWeather(), now)
			result, err := p.Predict(Request{
				RouteId:    69,
				Direction:  "Gouin Est",
				StopId:     52,
				ChosenTime: time.Date(2025, 4, 9, 8, 5, 0, 0, location),
			})
			is.NoErr(err)
			is.Equal(result.Status, tt.want)
		})
	}
}

func TestPredictOutOfRangeTime(t *testing.T) {
	location := testLocation(t)
	now := time.Date(2025, 4, 9, 7, 0, 0, 0, location)
	p := makeTestPredictor(t, &stubScorer{}, makeStubWeather(), now)

	tests := []struct {
		name   string
		chosen time.Time
	}{
		{"before the first service calendar", time.Date(2025, 3, 1, 9, 0, 0, 0, location)},
		{"past the forecast horizon", now.Add(weather.ForecastHorizon + time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Predict(Request{
				RouteId:    69,
				Direction:  "Gouin Est",
				StopId:     52,
				ChosenTime: tt.chosen,
			})
			var outOfRange *OutOfRangeTimeError
			if !errors.As(err, &outOfRange) {
				t.Fatalf("expected OutOfRangeTimeError, got %v", err)
			}
		})
	}
}

func TestPredictWeatherUnavailable(t *testing.T) {
	location := testLocation(t)
	now := time.Date(2025, 4, 9, 7, 0, 0, 0, location)
	weatherSvc := &stubWeatherService{err: weather.ErrNoData}
	p := makeTestPredictor(t, &stubScorer{}, weatherSvc, now)

	_, err := p.Predict(Request{
		RouteId:    69,
		Direction:  "Gouin Est",
		StopId:     52,
		ChosenTime: time.Date(2025, 4, 9, 8, 5, 0, 0, location),
	})
	var unavailable *WeatherUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected WeatherUnavailableError, got %v", err)
	}
}

func TestPredictScorerFailure(t *testing.T) {
	location := testLocation(t)
	now := time.Date(2025, 4, 9, 7, 0, 0, 0, location)
	scorer := &stubScorer{err: errors.New("model runner offline")}
	p := makeTestPredictor(t, scorer, makeStubWeather(), now)

	_, err := p.Predict(Request{
		RouteId:    69,
		Direction:  "Gouin Est",
		StopId:     52,
		ChosenTime: time.Date(2025, 4, 9, 8, 5, 0, 0, location),
	})
	if err == nil {
		t.Fatalf("expected scorer failure to fail the prediction")
	}
}

// capturingPublisher records published results.
type capturingPublisher struct {
	published []*Result
}

func (p *capturingPublisher) PublishPrediction(result *Result) error {
	p.published = append(p.published, result)
	return nil
}

func TestPredictPublishesResult(t *testing.T) {
	is := is.New(t)
	location := testLocation(t)
	now := time.Date(2025, 4, 9, 7, 0, 0, 0, location)
	publisher := &capturingPublisher{}
	p := MakePredictor(testLogger(), makeTestStore(t), makeTestDelays(),
		makeStubWeather(), &stubScorer{delaySeconds: 60}, testPrior(t),
		rand.New(rand.NewSource(1)), publisher)
	p.now = func() time.Time { return now }

	result, err := p.Predict(Request{
		RouteId:    69,
		Direction:  "Gouin Est",
		StopId:     52,
		ChosenTime: time.Date(2025, 4, 9, 8, 5, 0, 0, location),
	})
	is.NoErr(err)
	is.Equal(len(publisher.published), 1)
	is.Equal(publisher.published[0], result)
}
