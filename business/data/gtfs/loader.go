package gtfs

import (
	"encoding/csv"
	"fmt"
	"io"
	logger "log"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// FileSet names the schedule snapshot files the Store is loaded from:
// four gtfs tables plus the derived stop cluster csv.
type FileSet struct {
	RoutesPath    string
	TripsPath     string
	StopTimesPath string
	CalendarPath  string
	StopsPath     string
}

// LoadStore reads the snapshot files in files and assembles the Store.
// Files are parsed concurrently, the store is assembled once all tables have
// loaded. Times in the store are local to location.
func LoadStore(log *logger.Logger, files FileSet, location *time.Location) (*Store, error) {
	start := time.Now()

	var routes []Route
	var trips []Trip
	var stopTimes []StopTime
	var stops []Stop
	var calendars []Calendar

	group := errgroup.Group{}
	group.Go(func() (err error) {
		routes, err = loadTable(files.RoutesPath, buildRoute)
		return err
	})
	group.Go(func() (err error) {
		trips, err = loadTable(files.TripsPath, buildTrip)
		return err
	})
	group.Go(func() (err error) {
		stopTimes, err = loadTable(files.StopTimesPath, buildStopTime)
		return err
	})
	group.Go(func() (err error) {
		stops, err = loadTable(files.StopsPath, buildStop)
		return err
	})
	group.Go(func() (err error) {
		calendars, err = loadTable(files.CalendarPath, func(row *csvRow) (Calendar, error) {
			return buildCalendar(row, location)
		})
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	store, err := makeStore(location, routes, trips, stopTimes, stops, calendars)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded schedule store: %d routes, %d trips, %d stops, %d calendars in %v",
		len(routes), len(trips), len(stops), len(calendars), time.Since(start))
	return store, nil
}

// loadTable opens the csv file at path and builds one record per row.
func loadTable[T any](path string, build func(row *csvRow) (T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	results, err := readTable(f, build)
	if err != nil {
		return nil, fmt.Errorf("in file %s: %w", path, err)
	}
	return results, nil
}

// readTable reads every csv row from r and builds records with build.
// Reading halts on the first row that fails to build.
func readTable[T any](r io.Reader, build func(row *csvRow) (T, error)) ([]T, error) {
	reader := csv.NewReader(r)
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read csv header: %w", err)
	}
	removeBOMIfPresent(headers)

	row := csvRow{headers: headers, line: 1}
	var results []T
	for {
		row.records, err = reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row.line++
		result, err := build(&row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func removeBOMIfPresent(headers []string) {
	if len(headers) < 1 || len(headers[0]) < 1 {
		return
	}
	runes := []rune(headers[0])
	if runes[0] == '\uFEFF' {
		headers[0] = string(runes[1:])
	}
}

// csvRow provides named column access to the current record of a csv file.
type csvRow struct {
	headers []string
	records []string
	line    int
}

// findValue retrieves the string value of the named column.
// returns nil if the column isn't present and optional is true
func (c *csvRow) findValue(name string, optional bool) (*string, error) {
	index := -1
	for i, header := range c.headers {
		if header == name {
			index = i
			break
		}
	}
	if index < 0 {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to find column: %s", name)
	}
	if len(c.records) <= index {
		return nil, fmt.Errorf("record too short for column %d named %s", index, name)
	}
	value := c.records[index]
	if len(value) == 0 {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("missing required value in column %s", name)
	}
	return &value, nil
}

func (c *csvRow) getString(name string) (string, error) {
	value, err := c.findValue(name, false)
	if err != nil {
		return "", err
	}
	return *value, nil
}

func (c *csvRow) getInt(name string) (int, error) {
	value, err := c.findValue(name, false)
	if err != nil {
		return 0, err
	}
	result, err := strconv.Atoi(*value)
	if err != nil {
		return 0, fmt.Errorf("unable to parse column %s: %v", name, err)
	}
	return result, nil
}

func (c *csvRow) getInt64(name string) (int64, error) {
	value, err := c.findValue(name, false)
	if err != nil {
		return 0, err
	}
	result, err := strconv.ParseInt(*value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse column %s: %v", name, err)
	}
	return result, nil
}

// getFloat64 retrieves the named column as a float64, or defaultValue when
// the column is absent or empty.
func (c *csvRow) getFloat64(name string, defaultValue float64) (float64, error) {
	pointer, err := c.getFloat64Pointer(name)
	if err != nil || pointer == nil {
		return defaultValue, err
	}
	return *pointer, nil
}

// getFloat64Pointer retrieves the named column as a float64 pointer.
// returns nil if the column is absent or empty.
func (c *csvRow) getFloat64Pointer(name string) (*float64, error) {
	value, err := c.findValue(name, true)
	if err != nil || value == nil {
		return nil, err
	}
	result, err := strconv.ParseFloat(*value, 64)
	if err != nil {
		return nil, fmt.Errorf("unable to parse column %s: %v", name, err)
	}
	return &result, nil
}

// getScheduleSeconds retrieves a gtfs time of day column as schedule seconds.
func (c *csvRow) getScheduleSeconds(name string) (int, error) {
	value, err := c.findValue(name, false)
	if err != nil {
		return 0, err
	}
	seconds, err := ParseScheduleSeconds(*value)
	if err != nil {
		return 0, fmt.Errorf("unable to parse column %s: %v", name, err)
	}
	return seconds, nil
}

func buildRoute(row *csvRow) (Route, error) {
	route := Route{}
	var err error
	if route.RouteId, err = row.getInt("route_id"); err != nil {
		return route, err
	}
	if route.LongName, err = row.getString("route_long_name"); err != nil {
		return route, err
	}
	if route.RouteType, err = row.getInt("route_type"); err != nil {
		return route, err
	}
	// colors are optional in the feed
	if color, err := row.findValue("route_color", true); err == nil && color != nil {
		route.Color = *color
	}
	if textColor, err := row.findValue("route_text_color", true); err == nil && textColor != nil {
		route.TextColor = *textColor
	}
	return route, nil
}

func buildTrip(row *csvRow) (Trip, error) {
	trip := Trip{}
	var err error
	if trip.TripId, err = row.getInt64("trip_id"); err != nil {
		return trip, err
	}
	if trip.RouteId, err = row.getInt("route_id"); err != nil {
		return trip, err
	}
	if trip.ServiceId, err = row.getString("service_id"); err != nil {
		return trip, err
	}
	if trip.Headsign, err = row.getString("trip_headsign"); err != nil {
		return trip, err
	}
	return trip, nil
}

func buildStopTime(row *csvRow) (StopTime, error) {
	stopTime := StopTime{}
	var err error
	if stopTime.TripId, err = row.getInt64("trip_id"); err != nil {
		return stopTime, err
	}
	if stopTime.StopSequence, err = row.getInt("stop_sequence"); err != nil {
		return stopTime, err
	}
	if stopTime.StopId, err = row.getInt("stop_id"); err != nil {
		return stopTime, err
	}
	if stopTime.ArrivalSeconds, err = row.getScheduleSeconds("arrival_time"); err != nil {
		return stopTime, err
	}
	if stopTime.DepartureSeconds, err = row.getScheduleSeconds("departure_time"); err != nil {
		return stopTime, err
	}
	return stopTime, nil
}

func buildStop(row *csvRow) (Stop, error) {
	stop := Stop{}
	var err error
	if stop.StopId, err = row.getInt("stop_id"); err != nil {
		return stop, err
	}
	if stop.Name, err = row.getString("stop_name"); err != nil {
		return stop, err
	}
	if stop.Lat, err = row.getFloat64Pointer("stop_lat"); err != nil {
		return stop, err
	}
	if stop.Lon, err = row.getFloat64Pointer("stop_lon"); err != nil {
		return stop, err
	}
	if stop.Cluster, err = row.getFloat64("stop_cluster", 0); err != nil {
		return stop, err
	}
	if stop.LocationGroup, err = row.getFloat64("location_group", stop.Cluster); err != nil {
		return stop, err
	}
	return stop, nil
}

func buildCalendar(row *csvRow, location *time.Location) (Calendar, error) {
	calendar := Calendar{}
	var err error
	if calendar.ServiceId, err = row.getString("service_id"); err != nil {
		return calendar, err
	}
	days := []struct {
		name string
		flag *int
	}{
		{"monday", &calendar.Monday},
		{"tuesday", &calendar.Tuesday},
		{"wednesday", &calendar.Wednesday},
		{"thursday", &calendar.Thursday},
		{"friday", &calendar.Friday},
		{"saturday", &calendar.Saturday},
		{"sunday", &calendar.Sunday},
	}
	for _, day := range days {
		if *day.flag, err = row.getInt(day.name); err != nil {
			return calendar, err
		}
	}
	startDate, err := row.getString("start_date")
	if err != nil {
		return calendar, err
	}
	if calendar.StartDate, err = ParseServiceDate(startDate, location); err != nil {
		return calendar, err
	}
	endDate, err := row.getString("end_date")
	if err != nil {
		return calendar, err
	}
	end, err := ParseServiceDate(endDate, location)
	if err != nil {
		return calendar, err
	}
	// the end date is in service through its full day
	calendar.EndDate = end.AddDate(0, 0, 1)
	return calendar, nil
}
