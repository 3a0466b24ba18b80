package predictor

import (
	"io"
	logger "log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MtlTransitLabs/buscast/business/data/gtfs"
	"github.com/MtlTransitLabs/buscast/business/data/history"
	"github.com/MtlTransitLabs/buscast/business/data/weather"
	"github.com/MtlTransitLabs/buscast/business/mlmodels"
)

func testLogger() *logger.Logger {
	return logger.New(io.Discard, "TEST : ", 0)
}

func testLocation(t *testing.T) *time.Location {
	t.Helper()
	location, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("unable to load test timezone: %v", err)
	}
	return location
}

func writeFixtureFile(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("unable to write fixture %s: %v", name, err)
	}
	return path
}

// makeTestStore loads a small schedule snapshot: route 69 eastbound trips
// every 20 minutes through the morning, one westbound trip, one saturday
// trip, and one trip arriving past midnight.
func makeTestStore(t *testing.T) *gtfs.Store {
	t.Helper()
	dir := t.TempDir()

	routes := "route_id,route_long_name,route_type,route_color,route_text_color\n" +
		"69,Gouin,3,009EE0,000000\n" +
		"2,Orange Line,1,,\n"

	trips := "trip_id,route_id,service_id,trip_headsign\n" +
		"2001,69,weekday,Gouin Est\n" +
		"2002,69,weekday,Gouin Est\n" +
		"2003,69,weekday,Gouin Est\n" +
		"2004,69,weekday,Gouin Est\n" +
		"2005,69,weekday,Gouin Ouest\n" +
		"2006,69,saturday,Gouin Est\n" +
		"2007,69,weekday,Gouin Est\n"

	stopTimes := "trip_id,stop_sequence,stop_id,arrival_time,departure_time\n" +
		// eastbound trips visit stops 51..54, ten minutes to stop 52
		"2001,1,51,07:50:00,07:50:00\n" +
		"2001,2,52,08:00:00,08:00:00\n" +
		"2001,3,53,08:05:00,08:05:00\n" +
		"2001,4,54,08:10:00,08:10:00\n" +
		"2002,1,51,08:10:00,08:10:00\n" +
		"2002,2,52,08:20:00,08:20:00\n" +
		"2002,3,53,08:25:00,08:25:00\n" +
		"2002,4,54,08:30:00,08:30:00\n" +
		"2003,1,51,08:30:00,08:30:00\n" +
		"2003,2,52,08:40:00,08:40:00\n" +
		"2003,3,53,08:45:00,08:45:00\n" +
		"2003,4,54,08:50:00,08:50:00\n" +
		"2004,1,51,09:00:00,09:00:00\n" +
		"2004,2,52,09:10:00,09:10:00\n" +
		"2004,3,53,09:15:00,09:15:00\n" +
		"2004,4,54,09:20:00,09:20:00\n" +
		// westbound runs the stops in reverse
		"2005,1,54,07:55:00,07:55:00\n" +
		"2005,2,53,08:00:00,08:00:00\n" +
		"2005,3,52,08:05:00,08:05:00\n" +
		"2005,4,51,08:15:00,08:15:00\n" +
		"2006,1,51,09:50:00,09:50:00\n" +
		"2006,2,52,10:00:00,10:00:00\n" +
		"2006,3,53,10:05:00,10:05:00\n" +
		"2006,4,54,10:10:00,10:10:00\n" +
		// late night trip continues the service day past midnight
		"2007,1,51,25:25:00,25:25:00\n" +
		"2007,2,52,25:35:00,25:35:00\n" +
		"2007,3,53,25:40:00,25:40:00\n" +
		"2007,4,54,25:45:00,25:45:00\n"

	stops := "stop_id,stop_name,stop_lat,stop_lon,stop_cluster,location_group\n" +
		"51,Gouin / No 1,45.5500,-73.6600,4,4\n" +
		"52,Gouin / No 2,45.5560,-73.6520,4,4\n" +
		"53,Gouin / No 3,45.5620,-73.6440,5,5\n" +
		"54,Gouin / No 4,45.5680,-73.6360,5,5\n"

	calendar := "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
		"weekday,1,1,1,1,1,0,0,20250331,20250613\n" +
		"saturday,0,0,0,0,0,1,0,20250405,20250614\n"

	files := gtfs.FileSet{
		RoutesPath:    writeFixtureFile(t, dir, "routes.txt", routes),
		TripsPath:     writeFixtureFile(t, dir, "trips.txt", trips),
		StopTimesPath: writeFixtureFile(t, dir, "stop_times.txt", stopTimes),
		StopsPath:     writeFixtureFile(t, dir, "stops.txt", stops),
		CalendarPath:  writeFixtureFile(t, dir, "calendar.txt", calendar),
	}
	store, err := gtfs.LoadStore(testLogger(), files, testLocation(t))
	if err != nil {
		t.Fatalf("unable to load test store: %v", err)
	}
	return store
}

// makeTestDelays covers the daytime stop hours of the fixture schedule. Late
// night hours are deliberately absent for stops other than 52.
func makeTestDelays() *history.AverageDelays {
	return history.MakeAverageDelays(map[history.DelayKey]float64{
		{RouteId: 69, StopId: 51, Hour: 7}:  40,
		{RouteId: 69, StopId: 51, Hour: 8}:  50,
		{RouteId: 69, StopId: 52, Hour: 1}:  30,
		{RouteId: 69, StopId: 52, Hour: 8}:  95,
		{RouteId: 69, StopId: 52, Hour: 9}:  60,
		{RouteId: 69, StopId: 52, Hour: 10}: 45,
		{RouteId: 69, StopId: 53, Hour: 8}:  70,
		{RouteId: 69, StopId: 54, Hour: 8}:  80,
	})
}

// stubWeatherService returns one fixed observation for every hour, or err
// when set.
type stubWeatherService struct {
	observation weather.Observation
	err         error
}

func (s *stubWeatherService) HourlyObservation(hourUTC time.Time, _ bool) (*weather.Observation, error) {
	if s.err != nil {
		return nil, s.err
	}
	observation := s.observation
	observation.Time = hourUTC.Round(time.Hour)
	return &observation, nil
}

func makeStubWeather() *stubWeatherService {
	return &stubWeatherService{
		observation: weather.Observation{
			CloudCover:       40,
			RelativeHumidity: 70,
			Temperature:      11.5,
			WindDirection:    225,
			WindSpeed:        14,
			Precipitation:    0.2,
			WeatherCode:      3,
		},
	}
}

// stubScorer replies with a fixed delay, recording the last scored row.
type stubScorer struct {
	delaySeconds float64
	err          error
	lastRow      *mlmodels.InputRow
}

func (s *stubScorer) Score(row *mlmodels.InputRow) (float64, error) {
	s.lastRow = row
	if s.err != nil {
		return 0, s.err
	}
	return s.delaySeconds, nil
}
