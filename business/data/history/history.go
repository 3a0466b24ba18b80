// Package history provides the historical average delay lookup table used as
// a model feature, and recording of observed delays that the table is
// aggregated from.
package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// DelayKey identifies one historical average delay value.
type DelayKey struct {
	RouteId int
	StopId  int
	Hour    int
}

// AverageDelays is a read-only lookup of average observed delay in seconds
// by route, stop and hour of day. A missing key is a data integrity gap, not
// a zero; callers must treat absence as an error.
type AverageDelays struct {
	byKey map[DelayKey]float64
}

// MakeAverageDelays builds the lookup from an already aggregated table.
func MakeAverageDelays(byKey map[DelayKey]float64) *AverageDelays {
	copied := make(map[DelayKey]float64, len(byKey))
	for key, delay := range byKey {
		copied[key] = delay
	}
	return &AverageDelays{byKey: copied}
}

// Lookup retrieves the average delay seconds for the key, and whether the
// key is present at all.
func (a *AverageDelays) Lookup(routeId int, stopId int, hour int) (float64, bool) {
	delay, present := a.byKey[DelayKey{RouteId: routeId, StopId: stopId, Hour: hour}]
	return delay, present
}

// Size returns the number of keys loaded.
func (a *AverageDelays) Size() int {
	return len(a.byKey)
}

// LoadAverageDelaysCSV reads the aggregated delay table from the csv file at
// path, with columns route_id, stop_id, hour, hist_avg_delay.
func LoadAverageDelaysCSV(path string) (*AverageDelays, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	delays, err := readAverageDelays(f)
	if err != nil {
		return nil, fmt.Errorf("in file %s: %w", path, err)
	}
	return delays, nil
}

func readAverageDelays(r io.Reader) (*AverageDelays, error) {
	reader := csv.NewReader(r)
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read csv header: %w", err)
	}
	columns := make(map[string]int)
	for i, header := range headers {
		columns[header] = i
	}
	for _, required := range []string{"route_id", "stop_id", "hour", "hist_avg_delay"} {
		if _, present := columns[required]; !present {
			return nil, fmt.Errorf("missing column %s", required)
		}
	}

	result := AverageDelays{byKey: make(map[DelayKey]float64)}
	line := 1
	for {
		records, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		key := DelayKey{}
		if key.RouteId, err = strconv.Atoi(records[columns["route_id"]]); err != nil {
			return nil, fmt.Errorf("line %d: bad route_id: %v", line, err)
		}
		if key.StopId, err = strconv.Atoi(records[columns["stop_id"]]); err != nil {
			return nil, fmt.Errorf("line %d: bad stop_id: %v", line, err)
		}
		if key.Hour, err = strconv.Atoi(records[columns["hour"]]); err != nil {
			return nil, fmt.Errorf("line %d: bad hour: %v", line, err)
		}
		delay, err := strconv.ParseFloat(records[columns["hist_avg_delay"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad hist_avg_delay: %v", line, err)
		}
		if _, present := result.byKey[key]; present {
			return nil, fmt.Errorf("line %d: duplicate key route %d stop %d hour %d",
				line, key.RouteId, key.StopId, key.Hour)
		}
		result.byKey[key] = delay
	}
	return &result, nil
}

// LoadAverageDelays aggregates the observed_delay table into an AverageDelays
// lookup. Observations flagged as holidays are excluded, holiday service does
// not represent a typical weekday or weekend.
func LoadAverageDelays(db *sqlx.DB) (*AverageDelays, error) {
	query := "select route_id, stop_id, hour, avg(delay_seconds) as hist_avg_delay " +
		"from observed_delay where holiday = false group by route_id, stop_id, hour"
	rows, err := db.Queryx(query)
	if err != nil {
		return nil, fmt.Errorf("unable to aggregate observed_delay table: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := AverageDelays{byKey: make(map[DelayKey]float64)}
	for rows.Next() {
		var row struct {
			RouteId      int     `db:"route_id"`
			StopId       int     `db:"stop_id"`
			Hour         int     `db:"hour"`
			HistAvgDelay float64 `db:"hist_avg_delay"`
		}
		if err = rows.StructScan(&row); err != nil {
			return nil, err
		}
		result.byKey[DelayKey{RouteId: row.RouteId, StopId: row.StopId, Hour: row.Hour}] = row.HistAvgDelay
	}
	return &result, rows.Err()
}

// ObservedDelay is one observed schedule deviation at a stop, recorded by the
// delay recorder from a gtfs-rt trip update.
type ObservedDelay struct {
	RouteId      int       `db:"route_id"`
	TripId       int64     `db:"trip_id"`
	StopId       int       `db:"stop_id"`
	Hour         int       `db:"hour"`
	DelaySeconds float64   `db:"delay_seconds"`
	Holiday      bool      `db:"holiday"`
	ObservedAt   time.Time `db:"observed_at"`
}

// RecordObservedDelays saves observed delays to the database in batch
func RecordObservedDelays(db *sqlx.DB, delays []*ObservedDelay) error {
	if len(delays) == 0 {
		return nil
	}
	statementString := "insert into observed_delay ( " +
		"route_id, " +
		"trip_id, " +
		"stop_id, " +
		"hour, " +
		"delay_seconds, " +
		"holiday, " +
		"observed_at) " +
		"values (" +
		":route_id, " +
		":trip_id, " +
		":stop_id, " +
		":hour, " +
		":delay_seconds, " +
		":holiday, " +
		":observed_at)"
	statementString = db.Rebind(statementString)
	_, err := db.NamedExec(statementString, delays)
	return err
}
