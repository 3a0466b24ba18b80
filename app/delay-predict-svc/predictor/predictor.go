// Package predictor resolves bus trips against the schedule store, derives
// model features for them, and produces delay predictions through the
// external model runner.
package predictor

import (
	"errors"
	"fmt"
	logger "log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/MtlTransitLabs/buscast/business/data/gtfs"
	"github.com/MtlTransitLabs/buscast/business/data/history"
	"github.com/MtlTransitLabs/buscast/business/data/weather"
	"github.com/MtlTransitLabs/buscast/business/mlmodels"
)

// Arrival statuses shown to riders, decided on minute rounded times.
const (
	StatusEarly  = "Early"
	StatusLate   = "Late"
	StatusOnTime = "On Time"
)

// Request identifies one prediction: a bus route, a direction headsign, a
// stop, and the time the rider intends to be there.
type Request struct {
	RouteId    int
	Direction  string
	StopId     int
	ChosenTime time.Time
}

// Result is one completed prediction.
type Result struct {
	Route                 *gtfs.Route `json:"route"`
	Direction             string      `json:"direction"`
	Stop                  *gtfs.Stop  `json:"stop"`
	NextArrivalTime       time.Time   `json:"next_arrival_time"`
	PredictedArrivalTime  time.Time   `json:"predicted_arrival_time"`
	PredictedDelaySeconds float64     `json:"predicted_delay_seconds"`
	Status                string      `json:"status"`
	HistAvgDelayMinutes   int         `json:"hist_avg_delay_minutes"`
	WeatherCondition      string      `json:"weather_condition"`
	TemperatureCelsius    float64     `json:"temperature_celsius"`
}

// Publisher receives completed predictions, for downstream consumers such as
// monitoring and model drift analysis.
type Publisher interface {
	PublishPrediction(result *Result) error
}

// Predictor wires the schedule store, historical delays, weather service and
// model scorer into the prediction operation. Safe for concurrent use.
type Predictor struct {
	log        *logger.Logger
	store      *gtfs.Store
	delays     *history.AverageDelays
	weatherSvc weather.Service
	scorer     mlmodels.Scorer
	prior      *mlmodels.ScheduleRelationshipPrior
	publisher  Publisher

	rngMutex sync.Mutex
	rng      *rand.Rand

	now func() time.Time
}

// MakePredictor builds a Predictor. publisher may be nil when no downstream
// consumer is configured, and rng is owned by the predictor afterwards.
func MakePredictor(log *logger.Logger,
	store *gtfs.Store,
	delays *history.AverageDelays,
	weatherSvc weather.Service,
	scorer mlmodels.Scorer,
	prior *mlmodels.ScheduleRelationshipPrior,
	rng *rand.Rand,
	publisher Publisher) *Predictor {

	return &Predictor{
		log:        log,
		store:      store,
		delays:     delays,
		weatherSvc: weatherSvc,
		scorer:     scorer,
		prior:      prior,
		publisher:  publisher,
		rng:        rng,
		now:        time.Now,
	}
}

// Window returns the predictable time range: from the start of the earliest
// service calendar to the forecast horizon of the weather provider.
func (p *Predictor) Window() (min time.Time, max time.Time) {
	return p.store.MinServiceTime(), p.now().Add(weather.ForecastHorizon)
}

// Predict resolves the request's next scheduled arrival and returns the model
// prediction for it.
func (p *Predictor) Predict(request Request) (*Result, error) {
	chosenTime := request.ChosenTime.In(p.store.Location)

	min, max := p.Window()
	if chosenTime.Before(min) || chosenTime.After(max) {
		return nil, &OutOfRangeTimeError{Requested: chosenTime, Min: min, Max: max}
	}

	resolution, err := ResolveTrip(p.store, request.RouteId, request.Direction,
		request.StopId, chosenTime)
	if err != nil {
		return nil, err
	}

	features, err := p.deriveFeatures(resolution, ParseDirection(request.Direction))
	if err != nil {
		return nil, err
	}

	observation, err := p.arrivalWeather(resolution.NextArrivalTime)
	if err != nil {
		return nil, err
	}
	if err = features.SetAll(observation.Features()); err != nil {
		return nil, err
	}

	row, err := mlmodels.BuildInputRow(features)
	if err != nil {
		return nil, err
	}
	delaySeconds, err := p.scorer.Score(row)
	if err != nil {
		return nil, fmt.Errorf("unable to score trip %d: %w", resolution.Trip.TripId, err)
	}

	histAvgDelay, err := features.Get("hist_avg_delay")
	if err != nil {
		return nil, err
	}

	predictedArrival := resolution.NextArrivalTime.Add(
		time.Duration(delaySeconds * float64(time.Second)))

	result := Result{
		Route:                 p.store.Route(request.RouteId),
		Direction:             TranslateHeadsign(request.Direction),
		Stop:                  resolution.Matched.Stop,
		NextArrivalTime:       resolution.NextArrivalTime,
		PredictedArrivalTime:  predictedArrival,
		PredictedDelaySeconds: delaySeconds,
		Status:                arrivalStatus(resolution.NextArrivalTime, predictedArrival),
		HistAvgDelayMinutes:   int(math.Round(histAvgDelay / 60)),
		WeatherCondition:      weather.ConditionText(observation.WeatherCode),
		TemperatureCelsius:    observation.Temperature,
	}

	p.log.Printf("predicted route %d direction %s stop %d arrival %v delay %.0fs status %s",
		request.RouteId, request.Direction, request.StopId,
		result.PredictedArrivalTime.Format(time.RFC3339), delaySeconds, result.Status)

	if p.publisher != nil {
		if err = p.publisher.PublishPrediction(&result); err != nil {
			p.log.Printf("unable to publish prediction: %v", err)
		}
	}

	return &result, nil
}

// deriveFeatures serializes access to the shared rng around the feature
// derivation's one stochastic draw.
func (p *Predictor) deriveFeatures(resolution *TripResolution, direction Direction) (*mlmodels.FeatureVector, error) {
	p.rngMutex.Lock()
	defer p.rngMutex.Unlock()
	return DeriveFeatures(resolution, direction, p.delays, p.prior, p.rng)
}

// arrivalWeather fetches the hourly observation covering the arrival, routing
// between the forecast and archive apis by how recent the hour is.
func (p *Predictor) arrivalWeather(arrival time.Time) (*weather.Observation, error) {
	hourUTC := arrival.UTC()
	observation, err := p.weatherSvc.HourlyObservation(hourUTC, weather.UseForecast(hourUTC, p.now()))
	if err != nil {
		if errors.Is(err, weather.ErrNoData) {
			return nil, &WeatherUnavailableError{Hour: hourUTC.Round(time.Hour)}
		}
		return nil, err
	}
	return observation, nil
}

// arrivalStatus compares the scheduled and predicted arrivals at minute
// precision, so second level jitter never flips an On Time arrival.
func arrivalStatus(scheduled time.Time, predicted time.Time) string {
	scheduled = scheduled.Truncate(time.Minute)
	predicted = predicted.Truncate(time.Minute)
	switch {
	case predicted.Before(scheduled):
		return StatusEarly
	case predicted.After(scheduled):
		return StatusLate
	}
	return StatusOnTime
}
