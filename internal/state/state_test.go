package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkazlausk/victron-scheduler/internal/model"
)

func TestNewDefaults(t *testing.T) {
	s := New()
	snap := s.Snapshot()

	assert.Equal(t, model.OverrideSchedule, snap.OverrideMode)
	assert.Nil(t, snap.InverterEnabled)
	assert.Nil(t, snap.ChargerEnabled)
	assert.Nil(t, snap.LastStateAt)
	assert.Nil(t, snap.CurrentPrice)
}

func TestSetDeviceStateLastKnownGood(t *testing.T) {
	s := New()
	on := true
	t0 := time.Now()

	s.SetDeviceState(&on, &on, t0)
	snap := s.Snapshot()
	require.NotNil(t, snap.InverterEnabled)
	require.NotNil(t, snap.ChargerEnabled)
	assert.True(t, *snap.InverterEnabled)
	assert.True(t, *snap.ChargerEnabled)

	// A failed query (nil flags) keeps prior values but stamps the time.
	t1 := t0.Add(10 * time.Second)
	s.SetDeviceState(nil, nil, t1)
	snap = s.Snapshot()
	require.NotNil(t, snap.InverterEnabled)
	assert.True(t, *snap.InverterEnabled)
	require.NotNil(t, snap.LastStateAt)
	assert.Equal(t, t1, *snap.LastStateAt)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	on := true
	s.SetDeviceState(&on, &on, time.Now())

	snap := s.Snapshot()
	*snap.InverterEnabled = false

	again := s.Snapshot()
	assert.True(t, *again.InverterEnabled)
}

func TestReplaceScheduleAndLookup(t *testing.T) {
	s := New()
	loc, err := time.LoadLocation("Europe/Vilnius")
	require.NoError(t, err)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, loc)
	entries := []model.ScheduleEntry{
		{HourStart: day.Add(9 * time.Hour), Price: 0.25, Action: model.ActionChargeOff},
		{HourStart: day.Add(8 * time.Hour), Price: 0.15, Action: model.ActionChargeOn},
	}
	s.ReplaceSchedule(day, entries)

	e, ok := s.EntryFor(day.Add(8 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, model.ActionChargeOn, e.Action)

	_, ok = s.EntryFor(day.Add(11 * time.Hour))
	assert.False(t, ok)

	snap := s.ScheduleSnapshot()
	require.Len(t, snap, 2)
	assert.True(t, snap[0].HourStart.Before(snap[1].HourStart))
}

func TestScheduleStale(t *testing.T) {
	s := New()
	loc, err := time.LoadLocation("Europe/Vilnius")
	require.NoError(t, err)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, loc)
	assert.True(t, s.ScheduleStale(day), "empty schedule is stale")

	s.ReplaceSchedule(day, []model.ScheduleEntry{
		{HourStart: day.Add(8 * time.Hour), Price: 0.1, Action: model.ActionChargeOn},
	})
	assert.False(t, s.ScheduleStale(day.Add(14*time.Hour)))
	assert.True(t, s.ScheduleStale(day.Add(25*time.Hour)), "next day is stale")
}

func TestActuationView(t *testing.T) {
	s := New()
	loc, err := time.LoadLocation("Europe/Vilnius")
	require.NoError(t, err)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, loc)
	hour := day.Add(9 * time.Hour)

	mode, entry := s.ActuationView(hour)
	assert.Equal(t, model.OverrideSchedule, mode)
	assert.Nil(t, entry)

	s.ReplaceSchedule(day, []model.ScheduleEntry{
		{HourStart: hour, Price: 0.25, Action: model.ActionChargeOff},
	})
	s.SetOverrideMode(model.OverrideForceGrid)

	mode, entry = s.ActuationView(hour)
	assert.Equal(t, model.OverrideForceGrid, mode)
	require.NotNil(t, entry)
	assert.Equal(t, model.ActionChargeOff, entry.Action)
}

func TestOverrideMode(t *testing.T) {
	s := New()
	assert.Equal(t, model.OverrideSchedule, s.OverrideMode())

	s.SetOverrideMode(model.OverrideForceGrid)
	assert.Equal(t, model.OverrideForceGrid, s.OverrideMode())
	assert.Equal(t, model.OverrideForceGrid, s.Snapshot().OverrideMode)
}
