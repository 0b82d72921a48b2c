package prices

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkazlausk/victron-scheduler/internal/model"
)

func vilnius(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Vilnius")
	require.NoError(t, err)
	return loc
}

func TestBuildSchedule(t *testing.T) {
	loc := vilnius(t)
	day := func(h int) time.Time { return time.Date(2026, 9, 1, h, 0, 0, 0, loc) }

	prices := []HourPrice{
		{HourStart: day(8), Price: 0.15},
		{HourStart: day(9), Price: 0.25},
		{HourStart: day(10), Price: 0.20},
	}

	entries := BuildSchedule(prices, 0.20)
	require.Len(t, entries, 3)

	assert.Equal(t, model.ActionChargeOn, entries[0].Action)
	assert.Equal(t, 0.15, entries[0].Price)

	assert.Equal(t, model.ActionChargeOff, entries[1].Action)
	assert.Equal(t, 0.25, entries[1].Price)

	// price exactly at threshold keeps charging on
	assert.Equal(t, model.ActionChargeOn, entries[2].Action)
	assert.Equal(t, 0.20, entries[2].Price)
}

func TestBuildScheduleRoundsPrices(t *testing.T) {
	loc := vilnius(t)
	prices := []HourPrice{
		{HourStart: time.Date(2026, 9, 1, 0, 0, 0, 0, loc), Price: 0.123456789},
	}

	entries := BuildSchedule(prices, 1.0)
	require.Len(t, entries, 1)
	assert.Equal(t, 0.12346, entries[0].Price)
}

func TestBuildScheduleEmpty(t *testing.T) {
	assert.Empty(t, BuildSchedule(nil, 0.20))
}

const feedBody = "\"Ajatempel (UTC)\";\"Kuupäev (Eesti aeg)\";\"NPS Leedu\"\n" +
	"1756674000;\"01.09.2026 09:00\";\"250,00\"\n" +
	"1756670400;\"01.09.2026 08:00\";\"150,10\"\n" +
	"garbage row\n" +
	"1756677600;\"01.09.2026 10:00\";\"not a price\"\n" +
	"1756760400;\"02.09.2026 09:00\";\"99,00\"\n"

func TestFetchDayPrices(t *testing.T) {
	loc := vilnius(t)

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "lt", loc, 5*time.Second)
	out, err := c.FetchDayPrices(time.Date(2026, 9, 1, 14, 30, 0, 0, loc))
	require.NoError(t, err)

	// malformed rows skipped, next-day row filtered, result sorted ascending
	require.Len(t, out, 2)
	assert.Equal(t, time.Date(2026, 9, 1, 8, 0, 0, 0, loc), out[0].HourStart)
	assert.InDelta(t, 0.1501, out[0].Price, 1e-9)
	assert.Equal(t, time.Date(2026, 9, 1, 9, 0, 0, 0, loc), out[1].HourStart)
	assert.InDelta(t, 0.25, out[1].Price, 1e-9)

	assert.Contains(t, gotQuery, "fields=lt")
	assert.Contains(t, gotQuery, "start=")
	assert.Contains(t, gotQuery, "end=")
}

func TestFetchDayPricesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "lt", vilnius(t), 5*time.Second)
	_, err := c.FetchDayPrices(time.Date(2026, 9, 1, 0, 0, 0, 0, vilnius(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestFetchDayPricesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // force connection refused

	c := NewClient(srv.URL, "lt", vilnius(t), time.Second)
	_, err := c.FetchDayPrices(time.Date(2026, 9, 1, 0, 0, 0, 0, vilnius(t)))
	assert.Error(t, err)
}
