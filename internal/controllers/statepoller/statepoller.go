package statepoller

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mkazlausk/victron-scheduler/internal/datadog"
	"github.com/mkazlausk/victron-scheduler/internal/env"
	"github.com/mkazlausk/victron-scheduler/internal/state"
)

type DeviceLink interface {
	QueryState() (inverter, charger *bool)
	Port() string
}

// RunStatePoller keeps the store's device flags fresh. Absent query
// results leave the prior stored values untouched; the refresh
// timestamp is stamped every cycle either way. The loop never
// terminates.
func RunStatePoller(store *state.Store, link DeviceLink) {
	go func() {
		log.Info().Int("interval_seconds", env.Cfg.StatePollSeconds).Msg("Starting device state poller")
		for {
			pollOnce(store, link, time.Now())
			time.Sleep(time.Duration(env.Cfg.StatePollSeconds) * time.Second)
		}
	}()
}

func pollOnce(store *state.Store, link DeviceLink, now time.Time) {
	inverter, charger := link.QueryState()

	store.SetDevicePort(link.Port())
	store.SetDeviceState(inverter, charger, now)

	if inverter == nil && charger == nil {
		log.Debug().Msg("Device state query got no reply")
		return
	}

	if inverter != nil {
		datadog.Gauge("device.inverter_enabled", boolToFloat(*inverter), "component:relay")
	}
	if charger != nil {
		datadog.Gauge("device.charger_enabled", boolToFloat(*charger), "component:relay")
	}
	log.Debug().
		Interface("inverter", inverter).
		Interface("charger", charger).
		Msg("Refreshed device state")
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
