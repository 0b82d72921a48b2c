package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mkazlausk/victron-scheduler/db"
	"github.com/mkazlausk/victron-scheduler/internal/api"
	"github.com/mkazlausk/victron-scheduler/internal/arduino"
	"github.com/mkazlausk/victron-scheduler/internal/config"
	"github.com/mkazlausk/victron-scheduler/internal/controllers/scheduler"
	"github.com/mkazlausk/victron-scheduler/internal/controllers/statepoller"
	"github.com/mkazlausk/victron-scheduler/internal/datadog"
	"github.com/mkazlausk/victron-scheduler/internal/env"
	"github.com/mkazlausk/victron-scheduler/internal/logging"
	"github.com/mkazlausk/victron-scheduler/internal/notifications"
	"github.com/mkazlausk/victron-scheduler/internal/prices"
	"github.com/mkazlausk/victron-scheduler/internal/state"
)

func main() {
	cfg := config.Load()
	env.Cfg = &cfg
	logging.Init(cfg.LogLevel)

	log.Info().
		Str("timezone", cfg.Timezone).
		Str("area", cfg.PriceArea).
		Float64("threshold", cfg.PriceThreshold).
		Msg("Starting Victron price scheduler")

	datadog.InitMetrics()
	notifications.Init()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create data directory")
	}
	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open history database")
	}
	defer dbConn.Close()

	link := arduino.New(cfg.SerialPort, cfg.BaudRate)
	defer link.Close()

	store := state.New()
	store.SetDevicePort(link.Port())

	feed := prices.NewClient(cfg.PriceFeedURL, cfg.PriceArea, cfg.Location,
		time.Duration(cfg.FetchTimeoutSecs)*time.Second)

	sched := scheduler.New(store, link, feed, dbConn, cfg.Location)

	statepoller.RunStatePoller(store, link)
	sched.Run()

	server := api.NewServer(store, link, sched, dbConn, &cfg)
	if err := server.Start(cfg.HTTPPort); err != nil {
		log.Fatal().Err(err).Msg("Web server exited")
	}
}
