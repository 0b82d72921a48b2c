package prices

import (
	"encoding/csv"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mkazlausk/victron-scheduler/internal/model"
)

const feedTimestampLayout = "02.01.2006 15:04"

// HourPrice is one feed row: the local hour start and its day-ahead
// price in EUR/kWh.
type HourPrice struct {
	HourStart time.Time
	Price     float64
}

// Client fetches day-ahead prices from the Elering Nord Pool CSV feed.
type Client struct {
	baseURL string
	area    string
	loc     *time.Location
	http    *http.Client
}

func NewClient(baseURL, area string, loc *time.Location, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		area:    area,
		loc:     loc,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchDayPrices requests prices covering the given local calendar date
// and returns them sorted ascending. Malformed rows are skipped; rows
// outside the requested date are dropped. Network and HTTP failures are
// returned to the caller, unlike device-link failures.
func (c *Client) FetchDayPrices(date time.Time) ([]HourPrice, error) {
	y, m, d := date.In(c.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, c.loc)
	end := time.Date(y, m, d, 23, 59, 59, 0, c.loc)

	params := url.Values{}
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))
	params.Set("fields", c.area)

	resp, err := c.http.Get(c.baseURL + "?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("price feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	rdr := csv.NewReader(resp.Body)
	rdr.Comma = ';'
	rdr.FieldsPerRecord = -1
	rdr.LazyQuotes = true

	records, err := rdr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("price feed CSV malformed: %w", err)
	}

	out := make([]HourPrice, 0, 24)
	for _, rec := range records {
		if len(rec) < 3 {
			continue
		}
		ts, err := time.ParseInLocation(feedTimestampLayout, rec[1], c.loc)
		if err != nil {
			continue
		}
		eurMWh, err := strconv.ParseFloat(strings.ReplaceAll(rec[2], ",", "."), 64)
		if err != nil {
			continue
		}
		ty, tm, td := ts.Date()
		if ty != y || tm != m || td != d {
			continue
		}
		out = append(out, HourPrice{HourStart: ts, Price: eurMWh / 1000.0})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].HourStart.Before(out[j].HourStart) })

	log.Debug().
		Int("hours", len(out)).
		Str("date", start.Format("2006-01-02")).
		Msg("Fetched day-ahead prices")

	return out, nil
}

// BuildSchedule maps fetched prices to actuation decisions. A price
// strictly above the threshold means charging stays off for that hour;
// a price equal to the threshold keeps charging on.
func BuildSchedule(prices []HourPrice, threshold float64) []model.ScheduleEntry {
	entries := make([]model.ScheduleEntry, 0, len(prices))
	for _, p := range prices {
		action := model.ActionChargeOn
		if p.Price > threshold {
			action = model.ActionChargeOff
		}
		entries = append(entries, model.ScheduleEntry{
			HourStart: p.HourStart,
			Price:     math.Round(p.Price*1e5) / 1e5,
			Action:    action,
		})
	}
	return entries
}
