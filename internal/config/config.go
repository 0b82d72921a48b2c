package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	ConfigFile string
	LogLevel   zerolog.Level

	SerialPort string `json:"serial_port"` // empty = auto-detect
	BaudRate   uint   `json:"baud_rate"`

	Timezone               string  `json:"timezone"`
	PriceArea              string  `json:"price_area"`
	PriceFeedURL           string  `json:"price_feed_url"`
	PriceThreshold         float64 `json:"price_threshold_eur_kwh"`
	FetchTimeoutSecs       int     `json:"fetch_timeout_seconds"`
	StatePollSeconds       int     `json:"state_poll_seconds"`
	ActuateIntervalSeconds int     `json:"actuate_interval_seconds"`

	HTTPPort int    `json:"http_port"`
	DBPath   string `json:"db_path"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	NtfyTopic string `json:"ntfy_topic"`

	// Resolved from Timezone during validation.
	Location *time.Location `json:"-"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to scheduler config file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/Vilnius"
	}
	if cfg.PriceArea == "" {
		cfg.PriceArea = "lt"
	}
	if cfg.PriceFeedURL == "" {
		cfg.PriceFeedURL = "https://dashboard.elering.ee/api/nps/price/csv"
	}
	if cfg.PriceThreshold == 0 {
		cfg.PriceThreshold = 0.20
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 15
	}
	if cfg.StatePollSeconds == 0 {
		cfg.StatePollSeconds = 10
	}
	if cfg.ActuateIntervalSeconds == 0 {
		cfg.ActuateIntervalSeconds = 55
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 5000
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "data/scheduler.db"
	}
	if cfg.DDNamespace == "" {
		cfg.DDNamespace = "victron_scheduler."
	}
}

func (cfg *Config) validate() {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		panic("Invalid timezone in config: " + err.Error())
	}
	cfg.Location = loc

	if cfg.PriceThreshold < 0 {
		panic(fmt.Sprintf("Price threshold must be non-negative, got %f", cfg.PriceThreshold))
	}
	if cfg.StatePollSeconds < 1 || cfg.ActuateIntervalSeconds < 1 {
		panic("Poll and actuate intervals must be at least 1 second")
	}
	// The actuator must wake at least once inside every wall-clock hour.
	if cfg.ActuateIntervalSeconds > 3600 {
		panic("Actuate interval cannot exceed one hour")
	}
}
