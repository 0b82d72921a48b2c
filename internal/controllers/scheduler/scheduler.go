package scheduler

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mkazlausk/victron-scheduler/db"
	"github.com/mkazlausk/victron-scheduler/internal/datadog"
	"github.com/mkazlausk/victron-scheduler/internal/env"
	"github.com/mkazlausk/victron-scheduler/internal/model"
	"github.com/mkazlausk/victron-scheduler/internal/notifications"
	"github.com/mkazlausk/victron-scheduler/internal/prices"
	"github.com/mkazlausk/victron-scheduler/internal/state"
)

// fetchAlertStreak is how many consecutive feed failures trigger a
// notification.
const fetchAlertStreak = 3

type ChargerLink interface {
	SetCharger(enabled bool) bool
}

type PriceFetcher interface {
	FetchDayPrices(date time.Time) ([]prices.HourPrice, error)
}

// Actuation is the decision for one hour boundary.
type Actuation struct {
	Send      bool
	ChargerOn bool
	Reason    string
}

// Scheduler drives the charger from the day-ahead price schedule. Each
// cycle it refreshes the schedule when stale, projects the current
// hour's price into the state store, and issues at most one charger
// command per wall-clock hour.
type Scheduler struct {
	store   *state.Store
	link    ChargerLink
	fetcher PriceFetcher
	dbConn  *sql.DB
	loc     *time.Location

	// lastHourApplied is the unix second of the hour start last acted
	// on; zero before the first cycle. Touched only by the loop
	// goroutine.
	lastHourApplied int64
	fetchFailures   int
}

func New(store *state.Store, link ChargerLink, fetcher PriceFetcher, dbConn *sql.DB, loc *time.Location) *Scheduler {
	return &Scheduler{
		store:   store,
		link:    link,
		fetcher: fetcher,
		dbConn:  dbConn,
		loc:     loc,
	}
}

func (s *Scheduler) Run() {
	go func() {
		log.Info().
			Float64("threshold", env.Cfg.PriceThreshold).
			Str("area", env.Cfg.PriceArea).
			Msg("Starting price scheduler")

		for {
			s.runCycle(time.Now().In(s.loc))
			time.Sleep(time.Duration(env.Cfg.ActuateIntervalSeconds) * time.Second)
		}
	}()
}

func (s *Scheduler) runCycle(now time.Time) {
	hourStart := truncateToHour(now)

	if s.store.ScheduleStale(now) {
		s.refreshSchedule(now)
	}

	if entry, ok := s.store.EntryFor(hourStart); ok {
		s.store.SetCurrentPrice(entry.Price, entry.HourStart)
		datadog.Gauge("price.current_eur_kwh", entry.Price, "component:schedule")
	}

	if s.lastHourApplied == hourStart.Unix() {
		return
	}

	// Mode and entry come out of one critical section; the serial
	// write below can block, so it runs with no lock held.
	mode, entry := s.store.ActuationView(hourStart)

	act := evaluateActuation(mode, entry)
	if act.Send {
		ok := s.link.SetCharger(act.ChargerOn)
		log.Info().
			Bool("charger_on", act.ChargerOn).
			Bool("ok", ok).
			Str("reason", act.Reason).
			Time("hour", hourStart).
			Msg("Applied hourly actuation")

		result := "ok"
		if !ok {
			result = "error"
			notifications.SendSoft("Charger command failed",
				fmt.Sprintf("Could not apply %s for hour %s", act.Reason, hourStart.Format("15:04")))
		}
		datadog.Count("actuations", 1, "component:scheduler", "result:"+result)
		s.recordActuation(now, act.ChargerOn, ok)
	} else {
		log.Info().Time("hour", hourStart).Str("reason", act.Reason).Msg("No actuation for this hour")
	}

	// A failed send is not retried until the next boundary; hammering a
	// flaky link every cycle would race with manual commands.
	s.lastHourApplied = hourStart.Unix()
}

func (s *Scheduler) refreshSchedule(now time.Time) {
	dayPrices, err := s.fetcher.FetchDayPrices(now)
	if err != nil {
		s.fetchFailures++
		log.Error().Err(err).Int("streak", s.fetchFailures).Msg("Schedule refresh failed, keeping prior schedule")
		datadog.Count("price.fetch_failures", 1, "component:feed")
		if s.fetchFailures == fetchAlertStreak {
			notifications.SendSoft("Price feed unreachable",
				fmt.Sprintf("%d consecutive fetch failures: %v", s.fetchFailures, err))
		}
		s.recordFetch(now, 0, err)
		return
	}
	s.fetchFailures = 0

	entries := prices.BuildSchedule(dayPrices, env.Cfg.PriceThreshold)
	s.store.ReplaceSchedule(dayStart(now), entries)
	s.recordFetch(now, len(entries), nil)

	var expensive []string
	for _, e := range entries {
		if e.Action == model.ActionChargeOff {
			expensive = append(expensive, e.HourStart.Format("15"))
		}
	}
	log.Info().
		Int("hours", len(entries)).
		Float64("threshold", env.Cfg.PriceThreshold).
		Str("expensive_hours", strings.Join(expensive, ",")).
		Msg("Loaded day schedule")
}

// RefreshNow fetches and replaces the schedule on demand, for the
// manual reload endpoint. Feed errors are surfaced to the caller.
func (s *Scheduler) RefreshNow() (int, error) {
	now := time.Now().In(s.loc)
	dayPrices, err := s.fetcher.FetchDayPrices(now)
	if err != nil {
		s.recordFetch(now, 0, err)
		return 0, err
	}
	entries := prices.BuildSchedule(dayPrices, env.Cfg.PriceThreshold)
	s.store.ReplaceSchedule(dayStart(now), entries)
	s.recordFetch(now, len(entries), nil)
	return len(entries), nil
}

func (s *Scheduler) recordActuation(at time.Time, value, ok bool) {
	if s.dbConn == nil {
		return
	}
	err := db.RecordActuation(s.dbConn, db.ActuationRecord{
		At: at, Source: "scheduler", Command: string(model.CommandCharger), Value: value, OK: ok,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to record actuation")
	}
}

func (s *Scheduler) recordFetch(at time.Time, hours int, fetchErr error) {
	if s.dbConn == nil {
		return
	}
	rec := db.FetchRecord{At: at, Day: at.Format("2006-01-02"), Hours: hours}
	if fetchErr != nil {
		rec.Error = fetchErr.Error()
	}
	if err := db.RecordFetch(s.dbConn, rec); err != nil {
		log.Warn().Err(err).Msg("Failed to record fetch")
	}
}

// evaluateActuation decides the command for one hour boundary. The
// force_grid override always charges, even with no schedule entry.
// Without an entry in schedule mode nothing is sent but the hour still
// counts as applied.
func evaluateActuation(mode model.OverrideMode, entry *model.ScheduleEntry) Actuation {
	if mode == model.OverrideForceGrid {
		return Actuation{Send: true, ChargerOn: true, Reason: "override force_grid"}
	}
	if entry == nil {
		return Actuation{Send: false, Reason: "no schedule entry"}
	}
	if entry.Action == model.ActionChargeOff {
		return Actuation{Send: true, ChargerOn: false, Reason: "price above threshold"}
	}
	return Actuation{Send: true, ChargerOn: true, Reason: "price at or below threshold"}
}

func truncateToHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
