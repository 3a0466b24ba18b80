// Package recorder polls the transit agency's gtfs-rt trip update feed,
// measures each reported arrival against the schedule store, and records the
// observed delays that the historical average delay table is aggregated from.
package recorder

import (
	"fmt"
	logger "log"
	"strconv"
	"sync"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/MtlTransitLabs/buscast/business/data/gtfs"
	"github.com/MtlTransitLabs/buscast/business/data/history"
	"github.com/MtlTransitLabs/buscast/foundation/httpclient"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/protobuf/proto"
)

// apiKeyHeader carries the agency api key on feed requests.
const apiKeyHeader = "apiKey"

// Recorder polls one trip update feed and records observed delays.
type Recorder struct {
	log      *logger.Logger
	store    *gtfs.Store
	db       *sqlx.DB
	holidays *transitHolidayCalendar
	client   httpclient.Config
	feedURL  string
	apiKey   string
	metrics  *metrics

	now func() time.Time
}

// MakeRecorder builds a Recorder over the schedule in store, recording into
// db and registering its counters on registerer.
func MakeRecorder(log *logger.Logger,
	store *gtfs.Store,
	db *sqlx.DB,
	client httpclient.Config,
	feedURL string,
	apiKey string,
	registerer prometheus.Registerer) *Recorder {

	return &Recorder{
		log:      log,
		store:    store,
		db:       db,
		holidays: makeTransitHolidayCalendar(),
		client:   client,
		feedURL:  feedURL,
		apiKey:   apiKey,
		metrics:  makeMetrics(registerer),
		now:      time.Now,
	}
}

// RecordOnce polls the feed one time and records every observed delay it can
// match against the schedule. Returns the number of delays recorded.
func (r *Recorder) RecordOnce() (int, error) {
	r.metrics.pollsTotal.Inc()

	payload, err := httpclient.GetBytes(r.feedURL,
		map[string]string{apiKeyHeader: r.apiKey}, r.client)
	if err != nil {
		r.metrics.pollFailures.Inc()
		return 0, fmt.Errorf("unable to retrieve trip update feed: %w", err)
	}

	feedMessage := gtfsrt.FeedMessage{}
	if err = proto.Unmarshal(payload, &feedMessage); err != nil {
		r.metrics.pollFailures.Inc()
		return 0, fmt.Errorf("unable to unmarshal FeedMessage: %w", err)
	}

	delays := r.extractObservedDelays(&feedMessage)
	if err = history.RecordObservedDelays(r.db, delays); err != nil {
		return 0, fmt.Errorf("unable to record observed delays: %w", err)
	}
	r.metrics.delaysRecorded.Add(float64(len(delays)))
	return len(delays), nil
}

// extractObservedDelays walks the feed's trip updates and measures every
// arrival event it can match against a scheduled stop time. Updates for trips
// or stops the schedule store does not know are counted and skipped.
func (r *Recorder) extractObservedDelays(feedMessage *gtfsrt.FeedMessage) []*history.ObservedDelay {
	observedAt := r.now().In(r.store.Location)
	serviceDay := gtfs.ServiceDay(observedAt)

	var delays []*history.ObservedDelay
	for _, entity := range feedMessage.Entity {
		tripUpdate := entity.TripUpdate
		if tripUpdate == nil {
			continue
		}
		trip := r.feedTrip(tripUpdate)
		if trip == nil {
			r.metrics.delaysSkipped.Inc()
			continue
		}

		scheduled := scheduledArrivalsByStop(r.store, trip.TripId, serviceDay)
		for _, stopTimeUpdate := range tripUpdate.StopTimeUpdate {
			delay := r.observedDelay(trip, stopTimeUpdate, scheduled, observedAt)
			if delay == nil {
				r.metrics.delaysSkipped.Inc()
				continue
			}
			delays = append(delays, delay)
		}
	}
	return delays
}

// feedTrip resolves the trip a feed update refers to, or nil when the feed's
// trip id is absent, malformed, or not in the schedule.
func (r *Recorder) feedTrip(tripUpdate *gtfsrt.TripUpdate) *gtfs.Trip {
	if tripUpdate.Trip == nil || tripUpdate.Trip.TripId == nil {
		return nil
	}
	tripId, err := strconv.ParseInt(*tripUpdate.Trip.TripId, 10, 64)
	if err != nil {
		r.log.Printf("skipping trip update with malformed trip id %q", *tripUpdate.Trip.TripId)
		return nil
	}
	return r.store.Trip(tripId)
}

// observedDelay measures one stop time update against its scheduled arrival.
// The feed's own delay field wins when present, otherwise the delay is the
// difference between the reported and scheduled arrival instants.
func (r *Recorder) observedDelay(trip *gtfs.Trip,
	stopTimeUpdate *gtfsrt.TripUpdate_StopTimeUpdate,
	scheduled map[int]time.Time,
	observedAt time.Time) *history.ObservedDelay {

	if stopTimeUpdate.StopId == nil || stopTimeUpdate.Arrival == nil {
		return nil
	}
	stopId, err := strconv.Atoi(*stopTimeUpdate.StopId)
	if err != nil {
		return nil
	}
	scheduledArrival, present := scheduled[stopId]
	if !present {
		return nil
	}

	arrival := stopTimeUpdate.Arrival
	var delaySeconds float64
	switch {
	case arrival.Delay != nil:
		delaySeconds = float64(*arrival.Delay)
	case arrival.Time != nil:
		delaySeconds = float64(*arrival.Time - scheduledArrival.Unix())
	default:
		return nil
	}

	return &history.ObservedDelay{
		RouteId:      trip.RouteId,
		TripId:       trip.TripId,
		StopId:       stopId,
		Hour:         scheduledArrival.In(r.store.Location).Hour(),
		DelaySeconds: delaySeconds,
		Holiday:      r.holidays.isHoliday(observedAt),
		ObservedAt:   observedAt,
	}
}

// scheduledArrivalsByStop maps a trip's stop ids to their scheduled
// arrival instants on serviceDay.
func scheduledArrivalsByStop(store *gtfs.Store, tripId int64, serviceDay time.Time) map[int]time.Time {
	arrivals := make(map[int]time.Time)
	for _, stopTime := range store.StopTimesForTrip(tripId) {
		arrivals[stopTime.StopId] = gtfs.ScheduleTime(serviceDay, stopTime.ArrivalSeconds)
	}
	return arrivals
}

// RunRecordingLoop polls the feed every pollInterval until the shutdown
// signal arrives. Poll failures are logged and retried on the next tick.
func RunRecordingLoop(log *logger.Logger,
	wg *sync.WaitGroup,
	recorder *Recorder,
	pollInterval time.Duration,
	shutdownSignal chan bool) {

	wg.Add(1)
	defer wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	log.Printf("recording observed delays every %v", pollInterval)
	for {
		select {
		case <-ticker.C:
			recorded, err := recorder.RecordOnce()
			if err != nil {
				log.Printf("recording pass failed: %v", err)
				continue
			}
			log.Printf("recorded %d observed delays", recorded)
		case <-shutdownSignal:
			log.Printf("ending recording loop on shutdown signal")
			return
		}
	}
}
