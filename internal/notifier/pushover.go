package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Pushover sends notifications via the pushover API. Alerts go out at
// emergency priority so the device keeps ringing until acknowledged.
type Pushover struct {
	Token    string
	User     string
	Endpoint string
	Client   *http.Client
}

func (p Pushover) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (p Pushover) Notify(ctx context.Context, message string) error {
	if p.Token == "" || p.User == "" {
		return fmt.Errorf("%w: pushover token and user are required", ErrDeliveryFailed)
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = "https://api.pushover.net/1/messages.json"
	}
	data := url.Values{}
	data.Set("token", p.Token)
	data.Set("user", p.User)
	data.Set("title", "Pingdom alert")
	data.Set("message", message)
	data.Set("priority", "2")
	data.Set("retry", "60")
	data.Set("expire", "3600")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: pushover returned status %s", ErrDeliveryFailed, resp.Status)
	}
	return nil
}
