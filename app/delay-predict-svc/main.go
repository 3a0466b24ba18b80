package main

import (
	"fmt"
	logger "log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/MtlTransitLabs/buscast/app/delay-predict-svc/predictor"
	"github.com/MtlTransitLabs/buscast/business/data/gtfs"
	"github.com/MtlTransitLabs/buscast/business/data/history"
	"github.com/MtlTransitLabs/buscast/business/data/weather"
	"github.com/MtlTransitLabs/buscast/business/mlmodels"
	"github.com/MtlTransitLabs/buscast/foundation/database"
	"github.com/MtlTransitLabs/buscast/foundation/httpclient"
	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "DELAY_PREDICT : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	_ = godotenv.Load()

	var cfg struct {
		conf.Version
		Args conf.Args
		Web  struct {
			Port int `conf:"default:8080"`
		}
		Schedule struct {
			RoutesPath    string `conf:"default:data/routes.txt"`
			TripsPath     string `conf:"default:data/trips.txt"`
			StopTimesPath string `conf:"default:data/stop_times.txt"`
			CalendarPath  string `conf:"default:data/calendar.txt"`
			StopsPath     string `conf:"default:data/stop_clusters.csv"`
			Timezone      string `conf:"default:America/Toronto"`
		}
		History struct {
			// when CsvPath is set the delay table is read from file instead
			// of the database
			CsvPath string
		}
		DB struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		Weather struct {
			Latitude  float64 `conf:"default:45.508888"`
			Longitude float64 `conf:"default:-73.561668"`
		}
		NATS struct {
			URL              string `conf:"default:nats://localhost:4222"`
			InferenceSubject string `conf:"default:buscast.inference.request"`
			PredictedSubject string `conf:"default:buscast.predictions"`
			TimeoutSeconds   int    `conf:"default:5"`
		}
		Model struct {
			ScheduledWeight    float64 `conf:"default:0.95"`
			NotScheduledWeight float64 `conf:"default:0.05"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Serve bus arrival delay predictions"
	const prefix = "PREDICT"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	// =========================================================================
	// Load schedule and delay tables

	location, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %s: %w", cfg.Schedule.Timezone, err)
	}
	store, err := gtfs.LoadStore(log, gtfs.FileSet{
		RoutesPath:    cfg.Schedule.RoutesPath,
		TripsPath:     cfg.Schedule.TripsPath,
		StopTimesPath: cfg.Schedule.StopTimesPath,
		CalendarPath:  cfg.Schedule.CalendarPath,
		StopsPath:     cfg.Schedule.StopsPath,
	}, location)
	if err != nil {
		return fmt.Errorf("loading schedule store: %w", err)
	}

	delays, err := loadDelays(log, cfg.History.CsvPath, database.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("loading historical delays: %w", err)
	}
	log.Printf("main: loaded %d historical delay keys", delays.Size())

	// =========================================================================
	// Start NATS

	log.Println("main: Initializing nats connection")
	natsConn, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("connecting to nats at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConn.Close()

	scorer := mlmodels.MakeNATSScorer(natsConn, cfg.NATS.InferenceSubject,
		time.Duration(cfg.NATS.TimeoutSeconds)*time.Second)
	var publisher predictor.Publisher
	if len(cfg.NATS.PredictedSubject) > 0 {
		publisher = predictor.MakeNATSPublisher(natsConn, cfg.NATS.PredictedSubject)
	}

	prior, err := mlmodels.MakeScheduleRelationshipPrior(
		cfg.Model.ScheduledWeight, cfg.Model.NotScheduledWeight)
	if err != nil {
		return fmt.Errorf("building schedule relationship prior: %w", err)
	}

	weatherSvc := weather.NewOpenMeteoService(cfg.Weather.Latitude, cfg.Weather.Longitude,
		httpclient.DefaultConfig())

	p := predictor.MakePredictor(log, store, delays, weatherSvc, scorer, prior,
		rand.New(rand.NewSource(time.Now().UnixNano())), publisher)

	// =========================================================================
	// Start web service

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	shutdownSignal := make(chan bool)
	go func() {
		sig := <-shutdown
		log.Printf("main: received %v, shutting down", sig)
		close(shutdownSignal)
	}()

	wg := sync.WaitGroup{}
	predictor.RunWebService(log, &wg, store, p, cfg.Web.Port, shutdownSignal)
	wg.Wait()
	return nil
}

// loadDelays reads the historical delay table from csv when a path is
// configured, otherwise aggregates it from the observed_delay table.
func loadDelays(log *logger.Logger, csvPath string, dbConfig database.Config) (*history.AverageDelays, error) {
	if len(csvPath) > 0 {
		log.Printf("main: loading historical delays from %s", csvPath)
		return history.LoadAverageDelaysCSV(csvPath)
	}

	log.Println("main: Initializing database support")
	db, err := database.Open(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()
	return history.LoadAverageDelays(db)
}
