package model

import "time"

type OverrideMode string

const (
	OverrideSchedule  OverrideMode = "schedule"
	OverrideForceGrid OverrideMode = "force_grid"
)

type Action string

const (
	ActionChargeOn  Action = "charge_on"
	ActionChargeOff Action = "charge_off"
)

type CommandKind string

const (
	CommandInverter CommandKind = "ON"
	CommandCharger  CommandKind = "CH"
	CommandBoth     CommandKind = "ALL"
)

// ScheduleEntry is one local-time hour slot of the active day.
type ScheduleEntry struct {
	HourStart time.Time `json:"hour_start"`
	Price     float64   `json:"price"`
	Action    Action    `json:"action"`
}

// RuntimeState is the last-known view of the device and scheduler,
// published to the HTTP layer. Device flags are nil until the first
// successful status query.
type RuntimeState struct {
	DevicePort       string       `json:"arduino_port"`
	InverterEnabled  *bool        `json:"inverterEnabled"`
	ChargerEnabled   *bool        `json:"chargerEnabled"`
	LastStateAt      *time.Time   `json:"last_state_at"`
	OverrideMode     OverrideMode `json:"override_mode"`
	CurrentPrice     *float64     `json:"current_price"`
	CurrentPriceTime *time.Time   `json:"current_price_time"`
}

func IsValidOverrideMode(m OverrideMode) bool {
	switch m {
	case OverrideSchedule, OverrideForceGrid:
		return true
	default:
		return false
	}
}

func IsValidCommandKind(k CommandKind) bool {
	switch k {
	case CommandInverter, CommandCharger, CommandBoth:
		return true
	default:
		return false
	}
}
