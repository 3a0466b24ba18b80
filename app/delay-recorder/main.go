package main

import (
	"fmt"
	logger "log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/MtlTransitLabs/buscast/app/delay-recorder/recorder"
	"github.com/MtlTransitLabs/buscast/business/data/gtfs"
	"github.com/MtlTransitLabs/buscast/foundation/database"
	"github.com/MtlTransitLabs/buscast/foundation/httpclient"
	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "DELAY_RECORDER : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
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
		DB   struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		Schedule struct {
			RoutesPath    string `conf:"default:data/routes.txt"`
			TripsPath     string `conf:"default:data/trips.txt"`
			StopTimesPath string `conf:"default:data/stop_times.txt"`
			CalendarPath  string `conf:"default:data/calendar.txt"`
			StopsPath     string `conf:"default:data/stop_clusters.csv"`
			Timezone      string `conf:"default:America/Toronto"`
		}
		Feed struct {
			TripUpdatesUrl   string `conf:"default:https://api.stm.info/pub/od/gtfs-rt/ic/v2/tripUpdates"`
			ApiKey           string `conf:"noprint"`
			PollEverySeconds int    `conf:"default:30"`
		}
		Metrics struct {
			Port int `conf:"default:9090"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Record observed bus delays from the gtfs-rt trip update feed"
	const prefix = "RECORDER"
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
	// Start Database

	log.Println("main: Initializing database support")

	db, err := database.Open(database.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Printf("main: Database Stopping : %s", cfg.DB.Host)
		if err = db.Close(); err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()

	// =========================================================================
	// Load schedule

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

	// =========================================================================
	// Start recorder and metrics endpoint

	r := recorder.MakeRecorder(log, store, db, httpclient.DefaultConfig(),
		cfg.Feed.TripUpdatesUrl, cfg.Feed.ApiKey, prometheus.DefaultRegisterer)

	metricsServer := http.Server{
		Addr:    "0.0.0.0:" + strconv.Itoa(cfg.Metrics.Port),
		Handler: promhttp.Handler(),
	}
	go func() {
		log.Printf("main: serving metrics on port %d", cfg.Metrics.Port)
		if err := metricsServer.ListenAndServe(); err != nil {
			log.Printf("metrics server ended. %s", err)
		}
	}()
	defer func() {
		_ = metricsServer.Close()
	}()

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
	recorder.RunRecordingLoop(log, &wg, r,
		time.Duration(cfg.Feed.PollEverySeconds)*time.Second, shutdownSignal)
	wg.Wait()
	return nil
}
