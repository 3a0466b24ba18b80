package predictor

import (
	"context"
	"encoding/json"
	"errors"
	logger "log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MtlTransitLabs/buscast/business/data/gtfs"
	"github.com/gorilla/mux"
)

// chosenTimeLayout is the format html datetime-local inputs submit.
const chosenTimeLayout = "2006-01-02T15:04"

const noArrivalsMessage = "There are no arrivals after this time."

//routeListHandler serves the rider landing data: bus lines and the
//predictable time window.
type routeListHandler struct {
	log       *logger.Logger
	store     *gtfs.Store
	predictor *Predictor
}

//routeListResponse is the landing payload.
type routeListResponse struct {
	Routes  []gtfs.Route `json:"routes"`
	MinTime string       `json:"min_time"`
	MaxTime string       `json:"max_time"`
}

//ServeHTTP implements routeListHandler http.Handler interface
func (h *routeListHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	min, max := h.predictor.Window()
	writeJSON(h.log, w, &routeListResponse{
		Routes:  h.store.BusRoutes(),
		MinTime: min.Format(chosenTimeLayout),
		MaxTime: max.Format(chosenTimeLayout),
	})
}

//directionsHandler serves the directions available on one bus line.
type directionsHandler struct {
	log   *logger.Logger
	store *gtfs.Store
}

//directionOption pairs the headsign used on later requests with the
//translated label shown to riders.
type directionOption struct {
	Headsign string `json:"headsign"`
	Label    string `json:"label"`
}

//ServeHTTP implements directionsHandler http.Handler interface
func (h *directionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	routeId, ok := formInt(w, r, "bus_line")
	if !ok {
		return
	}
	options := make([]directionOption, 0)
	for _, headsign := range h.store.Headsigns(routeId) {
		options = append(options, directionOption{
			Headsign: headsign,
			Label:    TranslateHeadsign(headsign),
		})
	}
	writeJSON(h.log, w, options)
}

//stopsHandler serves the stops along one bus line direction.
type stopsHandler struct {
	log   *logger.Logger
	store *gtfs.Store
}

//ServeHTTP implements stopsHandler http.Handler interface
func (h *stopsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	routeId, ok := formInt(w, r, "bus_line")
	if !ok {
		return
	}
	direction := r.FormValue("direction")
	writeJSON(h.log, w, h.directionStops(routeId, direction))
}

//directionStops collects the distinct stops served by trips matching the
//direction headsign, ordered by stop id.
func (h *stopsHandler) directionStops(routeId int, direction string) []*gtfs.Stop {
	seen := make(map[int]bool)
	stops := make([]*gtfs.Stop, 0)
	for _, trip := range h.store.TripsForRoute(routeId) {
		if trip.Headsign != direction {
			continue
		}
		for _, stopTime := range h.store.StopTimesForTrip(trip.TripId) {
			if seen[stopTime.StopId] {
				continue
			}
			seen[stopTime.StopId] = true
			if stop := h.store.Stop(stopTime.StopId); stop != nil {
				stops = append(stops, stop)
			}
		}
	}
	sort.Slice(stops, func(i, j int) bool {
		return stops[i].StopId < stops[j].StopId
	})
	return stops
}

//predictHandler serves delay predictions.
type predictHandler struct {
	log       *logger.Logger
	store     *gtfs.Store
	predictor *Predictor
}

//ServeHTTP implements predictHandler http.Handler interface
func (h *predictHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	routeId, ok := formInt(w, r, "bus_line")
	if !ok {
		return
	}
	stopId, ok := formInt(w, r, "stop")
	if !ok {
		return
	}
	chosenTime, err := time.ParseInLocation(chosenTimeLayout,
		r.FormValue("chosen_time"), h.store.Location)
	if err != nil {
		http.Error(w, "invalid chosen_time", http.StatusBadRequest)
		return
	}

	result, err := h.predictor.Predict(Request{
		RouteId:    routeId,
		Direction:  r.FormValue("direction"),
		StopId:     stopId,
		ChosenTime: chosenTime,
	})
	if err != nil {
		h.writePredictionError(w, err)
		return
	}
	writeJSON(h.log, w, result)
}

//writePredictionError maps prediction failures onto http statuses. Range
//failures carry their message to the rider, resolution failures collapse to
//one rider message, everything else is internal.
func (h *predictHandler) writePredictionError(w http.ResponseWriter, err error) {
	var outOfRange *OutOfRangeTimeError
	if errors.As(err, &outOfRange) {
		http.Error(w, outOfRange.Error(), http.StatusBadRequest)
		return
	}
	var noArrival *NoArrivalFoundError
	var noService *NoActiveServiceError
	if errors.As(err, &noArrival) || errors.As(err, &noService) {
		http.Error(w, noArrivalsMessage, http.StatusNotFound)
		return
	}
	h.log.Printf("prediction failed: %v", err)
	http.Error(w, "Error serving request", http.StatusInternalServerError)
}

//formInt reads a required integer form value, replying 400 when absent or
//malformed.
func formInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(r.FormValue(name))
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return value, true
}

//writeJSON marshals payload onto the response.
func writeJSON(log *logger.Logger, w http.ResponseWriter, payload interface{}) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling response to json: error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(jsonData); err != nil {
		log.Printf("Error writing json response: %s", err)
	}
}

//createServer creates configured http.Server for responding to prediction
//requests
func createServer(log *logger.Logger,
	store *gtfs.Store,
	predictor *Predictor,
	httpPort int) *http.Server {

	r := mux.NewRouter()
	r.Handle("/", &routeListHandler{log: log, store: store, predictor: predictor}).Methods(http.MethodGet)
	r.Handle("/directions", &directionsHandler{log: log, store: store}).Methods(http.MethodPost)
	r.Handle("/stops", &stopsHandler{log: log, store: store}).Methods(http.MethodPost)
	r.Handle("/predict", &predictHandler{log: log, store: store, predictor: predictor}).Methods(http.MethodPost)
	srv := &http.Server{
		Addr: strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		// Good practice to set timeouts to avoid Slowloris attacks.
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}
	return srv
}

//RunWebService starts up the prediction web service, and terminates on
//shutdown signal
func RunWebService(log *logger.Logger,
	wg *sync.WaitGroup,
	store *gtfs.Store,
	predictor *Predictor,
	httpPort int,
	shutdownSignal chan bool,
) {
	wg.Add(1)
	defer wg.Done()
	srv := createServer(log, store, predictor, httpPort)
	log.Printf("Starting server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()
	<-shutdownSignal
	log.Printf("ending webservice on shutdown signal")
	shutdownCtx, serverCancelFunc := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer serverCancelFunc()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down webservice, error:%s", err)
	}
}
