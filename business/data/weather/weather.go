// Package weather provides hourly weather observations and forecasts from
// the Open-Meteo apis for use as model features.
package weather

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MtlTransitLabs/buscast/foundation/httpclient"
)

const (
	archiveURL  = "https://archive-api.open-meteo.com/v1/archive"
	forecastURL = "https://api.open-meteo.com/v1/forecast"

	// ForecastHorizon is how far ahead the forecast api provides data.
	ForecastHorizon = 14 * 24 * time.Hour
	// ArchiveLag is how far behind "now" the archive becomes authoritative;
	// hours more recent than this must use the forecast api.
	ArchiveLag = 3 * 24 * time.Hour
)

// ErrNoData reports that the provider had no observation for the requested
// hour. Callers must fail the request rather than substitute defaults.
var ErrNoData = errors.New("no weather data for requested hour")

// Observation is one hourly weather record.
type Observation struct {
	Time             time.Time
	CloudCover       float64
	RelativeHumidity float64
	Temperature      float64
	WindDirection    float64
	WindSpeed        float64
	Precipitation    float64
	WeatherCode      int
}

// Features returns the observation as model feature values keyed the way the
// training data named them.
func (o *Observation) Features() map[string]float64 {
	return map[string]float64{
		"cloud_cover":          o.CloudCover,
		"relative_humidity_2m": o.RelativeHumidity,
		"temperature_2m":       o.Temperature,
		"wind_direction_10m":   o.WindDirection,
		"wind_speed_10m":       o.WindSpeed,
		"precipitation":        o.Precipitation,
	}
}

// Service supplies the hourly observation covering an instant. Historical
// mode reads archived observations, forecast mode predicted ones.
type Service interface {
	HourlyObservation(hourUTC time.Time, forecast bool) (*Observation, error)
}

// UseForecast reports whether the hour must be served by the forecast api
// rather than the archive, which lags ArchiveLag behind real time.
func UseForecast(hourUTC time.Time, now time.Time) bool {
	return hourUTC.After(now.Add(-ArchiveLag))
}

// OpenMeteoService implements Service against the Open-Meteo http apis.
type OpenMeteoService struct {
	latitude  float64
	longitude float64
	client    httpclient.Config
}

// NewOpenMeteoService builds an OpenMeteoService for one coordinate,
// typically the center of the transit agency's service area.
func NewOpenMeteoService(latitude float64, longitude float64, client httpclient.Config) *OpenMeteoService {
	return &OpenMeteoService{
		latitude:  latitude,
		longitude: longitude,
		client:    client,
	}
}

var hourlyAttributes = []string{
	"cloud_cover",
	"relative_humidity_2m",
	"temperature_2m",
	"wind_direction_10m",
	"wind_speed_10m",
	"precipitation",
	"weathercode",
}

// openMeteoResponse matches the relevant part of the Open-Meteo hourly
// response body: parallel arrays per attribute keyed under "hourly".
type openMeteoResponse struct {
	Hourly struct {
		Time             []string  `json:"time"`
		CloudCover       []float64 `json:"cloud_cover"`
		RelativeHumidity []float64 `json:"relative_humidity_2m"`
		Temperature      []float64 `json:"temperature_2m"`
		WindDirection    []float64 `json:"wind_direction_10m"`
		WindSpeed        []float64 `json:"wind_speed_10m"`
		Precipitation    []float64 `json:"precipitation"`
		WeatherCode      []float64 `json:"weathercode"`
	} `json:"hourly"`
}

// HourlyObservation fetches the observation covering hourUTC, rounded to the
// nearest hour. Returns ErrNoData if the provider response does not include
// that hour.
func (s *OpenMeteoService) HourlyObservation(hourUTC time.Time, forecast bool) (*Observation, error) {
	hourUTC = hourUTC.UTC().Round(time.Hour)
	requestURL := s.requestURL(hourUTC, forecast)

	var response openMeteoResponse
	if err := httpclient.GetJSON(requestURL, s.client, &response); err != nil {
		return nil, fmt.Errorf("weather fetch failed: %w", err)
	}
	return findHour(&response, hourUTC)
}

func (s *OpenMeteoService) requestURL(hourUTC time.Time, forecast bool) string {
	root := archiveURL
	if forecast {
		root = forecastURL
	}
	date := hourUTC.Format("2006-01-02")
	q := make(url.Values)
	q.Set("latitude", fmt.Sprintf("%g", s.latitude))
	q.Set("longitude", fmt.Sprintf("%g", s.longitude))
	q.Set("hourly", strings.Join(hourlyAttributes, ","))
	q.Set("start_date", date)
	q.Set("end_date", date)
	q.Set("timezone", "UTC")
	return root + "?" + q.Encode()
}

// findHour locates the requested hour in the response's parallel arrays.
func findHour(response *openMeteoResponse, hourUTC time.Time) (*Observation, error) {
	wanted := hourUTC.Format("2006-01-02T15:04")
	hourly := &response.Hourly
	for i, timeString := range hourly.Time {
		if timeString != wanted {
			continue
		}
		if len(hourly.CloudCover) <= i || len(hourly.RelativeHumidity) <= i ||
			len(hourly.Temperature) <= i || len(hourly.WindDirection) <= i ||
			len(hourly.WindSpeed) <= i || len(hourly.Precipitation) <= i ||
			len(hourly.WeatherCode) <= i {
			return nil, ErrNoData
		}
		return &Observation{
			Time:             hourUTC,
			CloudCover:       hourly.CloudCover[i],
			RelativeHumidity: hourly.RelativeHumidity[i],
			Temperature:      hourly.Temperature[i],
			WindDirection:    hourly.WindDirection[i],
			WindSpeed:        hourly.WindSpeed[i],
			Precipitation:    hourly.Precipitation[i],
			WeatherCode:      int(hourly.WeatherCode[i]),
		}, nil
	}
	return nil, ErrNoData
}
