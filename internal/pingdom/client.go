package pingdom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guregu/null/v5"
)

const DefaultBaseURL = "https://api.pingdom.com/"

// ErrRequestFailed is returned when the checks endpoint cannot be reached,
// answers with a non-2xx status, or returns a body that does not decode.
var ErrRequestFailed = errors.New("pingdom request failed")

// StatusDown is the only status treated as down. Everything else, including
// "unconfirmed_down", "unknown" and "paused", counts as up.
const StatusDown = "down"

// Check is one monitored target as reported by the checks endpoint.
type Check struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Status           string   `json:"status"`
	Hostname         string   `json:"hostname,omitempty"`
	Type             string   `json:"type,omitempty"`
	LastErrorTime    null.Int `json:"lasterrortime"`
	LastTestTime     null.Int `json:"lasttesttime"`
	LastResponseTime null.Int `json:"lastresponsetime"`
}

func (c Check) Down() bool {
	return c.Status == StatusDown
}

// LastErrorAt is the time of the most recent failed test, null when the
// check never failed.
func (c Check) LastErrorAt() null.Time {
	return unixTime(c.LastErrorTime)
}

// LastTestAt is the time of the most recent test.
func (c Check) LastTestAt() null.Time {
	return unixTime(c.LastTestTime)
}

func unixTime(v null.Int) null.Time {
	if !v.Valid {
		return null.Time{}
	}
	return null.TimeFrom(time.Unix(v.Int64, 0).UTC())
}

type checksResponse struct {
	Checks []Check `json:"checks"`
}

// Client talks to the Pingdom 2.1 API.
type Client struct {
	AppKey   string
	User     string
	Password string
	BaseURL  string
	Client   *http.Client
}

func (c Client) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// Checks returns every check visible to the account.
func (c Client) Checks(ctx context.Context) ([]Check, error) {
	var resp checksResponse
	if err := c.get(ctx, "checks", &resp); err != nil {
		return nil, err
	}
	return resp.Checks, nil
}

func (c Client) get(ctx context.Context, path string, out any) error {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	endpoint, err := url.JoinPath(base, "api/2.1", path)
	if err != nil {
		return fmt.Errorf("joining pingdom URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating pingdom request: %w", err)
	}
	req.SetBasicAuth(c.User, c.Password)
	req.Header.Set("App-Key", c.AppKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pingdom-alert/1.0")

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: unexpected status %s: %s", ErrRequestFailed, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrRequestFailed, err)
	}
	return nil
}
