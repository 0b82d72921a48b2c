package statepoller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkazlausk/victron-scheduler/internal/state"
)

type fakeLink struct {
	inverter *bool
	charger  *bool
	port     string
}

func (f *fakeLink) QueryState() (*bool, *bool) { return f.inverter, f.charger }
func (f *fakeLink) Port() string               { return f.port }

func TestPollOnceStoresReply(t *testing.T) {
	store := state.New()
	on, off := true, false
	link := &fakeLink{inverter: &on, charger: &off, port: "/dev/ttyACM0"}

	now := time.Now()
	pollOnce(store, link, now)

	snap := store.Snapshot()
	assert.Equal(t, "/dev/ttyACM0", snap.DevicePort)
	require.NotNil(t, snap.InverterEnabled)
	assert.True(t, *snap.InverterEnabled)
	require.NotNil(t, snap.ChargerEnabled)
	assert.False(t, *snap.ChargerEnabled)
	require.NotNil(t, snap.LastStateAt)
	assert.Equal(t, now, *snap.LastStateAt)
}

func TestPollOnceKeepsLastKnownGoodOnFailure(t *testing.T) {
	store := state.New()
	on := true
	link := &fakeLink{inverter: &on, charger: &on, port: "/dev/ttyACM0"}

	t0 := time.Now()
	pollOnce(store, link, t0)

	// link goes quiet: flags survive, timestamp still advances
	link.inverter = nil
	link.charger = nil
	t1 := t0.Add(10 * time.Second)
	pollOnce(store, link, t1)

	snap := store.Snapshot()
	require.NotNil(t, snap.InverterEnabled)
	assert.True(t, *snap.InverterEnabled)
	require.NotNil(t, snap.ChargerEnabled)
	assert.True(t, *snap.ChargerEnabled)
	require.NotNil(t, snap.LastStateAt)
	assert.Equal(t, t1, *snap.LastStateAt)
}

func TestPollOnceBeforeFirstReply(t *testing.T) {
	store := state.New()
	link := &fakeLink{port: ""}

	pollOnce(store, link, time.Now())

	snap := store.Snapshot()
	assert.Nil(t, snap.InverterEnabled)
	assert.Nil(t, snap.ChargerEnabled)
	require.NotNil(t, snap.LastStateAt)
}
