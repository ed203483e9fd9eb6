// Package timesync reconciles the device clock against a remote time source
// keyed by timezone. Clock trust is advisory: on any failure the engine
// falls back to the local clock and flags the sync as degraded, because
// legitimacy enforcement lives server-side.
package timesync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Clock is a derived wall clock: local time plus a fixed offset, rendered in
// a resolved timezone. The zero value is the unsynced local clock in UTC.
type Clock struct {
	Offset   time.Duration
	Location *time.Location
	Timezone string
	Degraded bool
	SyncedAt time.Time
}

// Now returns the corrected time in the clock's location.
func (c Clock) Now() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().Add(c.Offset).In(loc)
}

// Client fetches authoritative time for a timezone over HTTP. The endpoint
// is expected to answer GET <base>/<timezone> with a JSON body carrying a
// unix timestamp, the worldtimeapi.org response shape.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type timeResponse struct {
	UnixTime int64  `json:"unixtime"`
	Datetime string `json:"datetime"`
}

// FetchOffset returns serverTime - localTime for the given timezone.
func (c *Client) FetchOffset(ctx context.Context, timezone string) (time.Duration, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(timezone)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build time request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch remote time: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("remote time source returned status %d", resp.StatusCode)
	}

	var body timeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode remote time: %w", err)
	}
	if body.UnixTime == 0 {
		return 0, fmt.Errorf("remote time source returned no timestamp")
	}

	return time.Unix(body.UnixTime, 0).Sub(time.Now()), nil
}

// Sync builds a Clock for the timezone. The offset is computed once; the
// returned clock then ticks off the local clock. Failures degrade rather
// than error: the caller always gets a usable clock.
func (c *Client) Sync(ctx context.Context, timezone string) Clock {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
		timezone = "UTC"
	}

	clock := Clock{
		Location: loc,
		Timezone: timezone,
		SyncedAt: time.Now(),
	}

	offset, err := c.FetchOffset(ctx, timezone)
	if err != nil {
		clock.Degraded = true
		return clock
	}

	clock.Offset = offset
	return clock
}
