package state

import (
	"sort"
	"sync"
	"time"

	"github.com/mkazlausk/victron-scheduler/internal/model"
)

// Store is the single synchronized source of truth shared by the poller
// loop, the actuator loop and the HTTP handlers. Reads hand out copies,
// never live references, and the schedule is only ever replaced
// wholesale under the lock. No I/O happens while the lock is held.
type Store struct {
	mu       sync.Mutex
	runtime  model.RuntimeState
	schedule map[int64]model.ScheduleEntry

	// scheduleDate is tracked explicitly so staleness is unambiguous
	// even when the feed returned zero rows just after midnight.
	scheduleDate time.Time
}

func New() *Store {
	return &Store{
		runtime:  model.RuntimeState{OverrideMode: model.OverrideSchedule},
		schedule: make(map[int64]model.ScheduleEntry),
	}
}

// Snapshot returns a deep copy of the runtime state.
func (s *Store) Snapshot() model.RuntimeState {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.runtime
	snap.InverterEnabled = copyBool(s.runtime.InverterEnabled)
	snap.ChargerEnabled = copyBool(s.runtime.ChargerEnabled)
	snap.LastStateAt = copyTime(s.runtime.LastStateAt)
	snap.CurrentPrice = copyFloat(s.runtime.CurrentPrice)
	snap.CurrentPriceTime = copyTime(s.runtime.CurrentPriceTime)
	return snap
}

func (s *Store) SetDevicePort(port string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtime.DevicePort = port
}

// SetDeviceState records a poll result. Nil flags mean the query got no
// usable reply, so the prior value is kept (last-known-good); the
// refresh timestamp is stamped regardless.
func (s *Store) SetDeviceState(inverter, charger *bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inverter != nil {
		s.runtime.InverterEnabled = copyBool(inverter)
	}
	if charger != nil {
		s.runtime.ChargerEnabled = copyBool(charger)
	}
	t := at
	s.runtime.LastStateAt = &t
}

func (s *Store) OverrideMode() model.OverrideMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runtime.OverrideMode
}

func (s *Store) SetOverrideMode(mode model.OverrideMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtime.OverrideMode = mode
}

func (s *Store) SetCurrentPrice(price float64, hourStart time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := price
	t := hourStart
	s.runtime.CurrentPrice = &p
	s.runtime.CurrentPriceTime = &t
}

// ReplaceSchedule swaps in a full day's schedule atomically.
func (s *Store) ReplaceSchedule(date time.Time, entries []model.ScheduleEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedule = make(map[int64]model.ScheduleEntry, len(entries))
	for _, e := range entries {
		s.schedule[e.HourStart.Unix()] = e
	}
	s.scheduleDate = date
}

// ScheduleStale reports whether the held schedule needs a refetch for
// the day containing now.
func (s *Store) ScheduleStale(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.schedule) == 0 {
		return true
	}
	sy, sm, sd := s.scheduleDate.Date()
	ny, nm, nd := now.Date()
	return sy != ny || sm != nm || sd != nd
}

// EntryFor looks up the schedule entry whose slot contains hourStart.
func (s *Store) EntryFor(hourStart time.Time) (model.ScheduleEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.schedule[hourStart.Unix()]
	return e, ok
}

// ActuationView reads the override mode and the hour's entry in one
// critical section, so the actuator decides on a consistent pair. The
// caller actuates after the lock is released.
func (s *Store) ActuationView(hourStart time.Time) (model.OverrideMode, *model.ScheduleEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.schedule[hourStart.Unix()]; ok {
		return s.runtime.OverrideMode, &e
	}
	return s.runtime.OverrideMode, nil
}

// ScheduleSnapshot returns the held entries sorted by hour.
func (s *Store) ScheduleSnapshot() []model.ScheduleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]model.ScheduleEntry, 0, len(s.schedule))
	for _, e := range s.schedule {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].HourStart.Before(entries[j].HourStart)
	})
	return entries
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
