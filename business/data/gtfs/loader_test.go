package gtfs

import (
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestReadTableRoutes(t *testing.T) {
	is := is.New(t)
	csv := "route_id,route_long_name,route_type,route_color,route_text_color\n" +
		"69,Gouin,3,009EE0,000000\n" +
		"2,Orange,1,,\n"
	routes, err := readTable(strings.NewReader(csv), buildRoute)
	is.NoErr(err)
	is.Equal(len(routes), 2)
	is.Equal(routes[0].RouteId, 69)
	is.Equal(routes[0].LongName, "Gouin")
	is.Equal(routes[0].Color, "009EE0")
	is.Equal(routes[1].RouteType, 1)
	is.Equal(routes[1].Color, "")
}

func TestReadTableHandlesBOM(t *testing.T) {
	is := is.New(t)
	csv := "\uFEFFroute_id,route_long_name,route_type\n69,Gouin,3\n"
	routes, err := readTable(strings.NewReader(csv), buildRoute)
	is.NoErr(err)
	is.Equal(routes[0].RouteId, 69)
}

func TestReadTableStopTimes(t *testing.T) {
	is := is.New(t)
	csv := "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"287654321,07:55:00,07:55:30,51,1\n" +
		"287654321,25:35:00,25:35:00,52,2\n"
	stopTimes, err := readTable(strings.NewReader(csv), buildStopTime)
	is.NoErr(err)
	is.Equal(len(stopTimes), 2)
	is.Equal(stopTimes[0].TripId, int64(287654321))
	is.Equal(stopTimes[0].ArrivalSeconds, 7*3600+55*60)
	is.Equal(stopTimes[0].DepartureSeconds, 7*3600+55*60+30)
	is.Equal(stopTimes[1].ArrivalSeconds, 25*3600+35*60)
}

func TestReadTableStopTimeBadTime(t *testing.T) {
	csv := "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"1,notatime,08:00:00,51,1\n"
	_, err := readTable(strings.NewReader(csv), buildStopTime)
	if err == nil {
		t.Errorf("expected malformed arrival_time to fail")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected error to cite line number, got: %v", err)
	}
}

func TestReadTableCalendar(t *testing.T) {
	is := is.New(t)
	location := testLocation(t)
	csv := "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
		"25J-H55N000S-81-S,1,1,1,1,1,0,0,20250331,20250615\n"
	calendars, err := readTable(strings.NewReader(csv), func(row *csvRow) (Calendar, error) {
		return buildCalendar(row, location)
	})
	is.NoErr(err)
	is.Equal(len(calendars), 1)
	calendar := calendars[0]
	is.Equal(calendar.ServiceId, "25J-H55N000S-81-S")
	is.Equal(calendar.Monday, 1)
	is.Equal(calendar.Saturday, 0)
	is.True(calendar.StartDate.Equal(time.Date(2025, 3, 31, 0, 0, 0, 0, location)))
	// end date covers its full day
	is.True(calendar.EndDate.Equal(time.Date(2025, 6, 16, 0, 0, 0, 0, location)))
}

func TestReadTableStopsWithClusters(t *testing.T) {
	is := is.New(t)
	csv := "stop_id,stop_name,stop_lat,stop_lon,stop_cluster,location_group\n" +
		"51,Gouin / De Lille,45.551,-73.662,4,4\n" +
		"52,Terminus sans position,,,2,2\n"
	stops, err := readTable(strings.NewReader(csv), buildStop)
	is.NoErr(err)
	is.Equal(len(stops), 2)
	is.True(stops[0].HasCoordinates())
	is.Equal(*stops[0].Lat, 45.551)
	is.Equal(stops[0].Cluster, 4.0)
	is.True(!stops[1].HasCoordinates())
}

func TestReadTableMissingColumn(t *testing.T) {
	csv := "trip_id,route_id,service_id\n1001,69,weekday\n"
	_, err := readTable(strings.NewReader(csv), buildTrip)
	if err == nil {
		t.Errorf("expected missing trip_headsign column to fail")
	}
}
