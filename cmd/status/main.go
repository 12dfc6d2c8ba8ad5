package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guregu/null/v5"
)

type statusResponse struct {
	ObservedAt       time.Time    `json:"observed_at"`
	LastTickAt       *time.Time   `json:"last_tick_at,omitempty"`
	LastError        string       `json:"last_error,omitempty"`
	QuietHoursActive bool         `json:"quiet_hours_active"`
	Checks           []checkState `json:"checks"`
}

type checkState struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Hostname         string     `json:"hostname,omitempty"`
	Type             string     `json:"type,omitempty"`
	DownSince        time.Time  `json:"down_since"`
	DownFor          string     `json:"down_for"`
	LastAlert        *time.Time `json:"last_alert,omitempty"`
	AlertDue         bool       `json:"alert_due"`
	LastErrorTime    null.Time  `json:"last_error_time"`
	LastTestTime     null.Time  `json:"last_test_time"`
	LastResponseTime null.Int   `json:"last_response_time"`
}

func main() {
	statusURL := flag.String("url", envDefault("STATUS_URL", "http://127.0.0.1:8080/"), "Status endpoint URL")
	timeout := flag.Duration("timeout", envDuration("STATUS_TIMEOUT", 3*time.Second), "HTTP request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := fetchStatus(ctx, *statusURL)
	if err != nil {
		log.Fatalf("fetch status: %v", err)
	}

	printStatus(resp, os.Stdout)
}

func fetchStatus(ctx context.Context, url string) (statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return statusResponse{}, fmt.Errorf("build request: %w", err)
	}

	client := &http.Client{}
	res, err := client.Do(req)
	if err != nil {
		return statusResponse{}, fmt.Errorf("request status: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return statusResponse{}, fmt.Errorf("unexpected status %s: %s", res.Status, strings.TrimSpace(string(body)))
	}

	var status statusResponse
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return statusResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return status, nil
}

func printStatus(resp statusResponse, w io.Writer) {
	if resp.ObservedAt.IsZero() {
		resp.ObservedAt = time.Now()
	}
	fmt.Fprintf(w, "Observed at: %s\n", resp.ObservedAt.Format(time.RFC3339))
	if resp.LastTickAt != nil {
		fmt.Fprintf(w, "Last tick:   %s\n", resp.LastTickAt.Format(time.RFC3339))
	}
	if resp.LastError != "" {
		fmt.Fprintf(w, "Last error:  %s\n", resp.LastError)
	}
	if resp.QuietHoursActive {
		fmt.Fprintln(w, "Quiet hours are active; alerts are held back.")
	}

	if len(resp.Checks) == 0 {
		fmt.Fprintln(w, "All checks up.")
		return
	}

	fmt.Fprintln(w)

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tID\tNAME\tHOST\tDOWN SINCE\tDETAILS")
	for _, c := range resp.Checks {
		status, details := summarizeCheck(c)

		host := c.Hostname
		if host == "" {
			host = "-"
		}

		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", status, c.ID, c.Name, host, c.DownSince.UTC().Format(time.DateTime), details)
	}
	_ = tw.Flush()

	out := buf.String()
	if shouldColor(w) {
		out = colorizeStatuses(out)
	}

	fmt.Fprint(w, out)
	fmt.Fprintf(w, "\n%d check(s) down\n", len(resp.Checks))
}

func summarizeCheck(c checkState) (string, string) {
	details := fmt.Sprintf("down for %s", c.DownFor)
	if c.LastErrorTime.Valid {
		details += ", last error " + c.LastErrorTime.Time.UTC().Format(time.DateTime)
	}
	if c.LastResponseTime.Valid {
		details += fmt.Sprintf(", response %dms", c.LastResponseTime.Int64)
	}
	switch {
	case c.AlertDue:
		return "DUE", details + ", alert pending"
	case c.LastAlert != nil:
		return "ALERTED", fmt.Sprintf("%s, last alert %s", details, c.LastAlert.UTC().Format(time.DateTime))
	default:
		return "DOWN", details
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func shouldColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func colorizeStatuses(out string) string {
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, "STATUS") {
			continue
		}
		spaceIdx := strings.IndexByte(line, ' ')
		if spaceIdx <= 0 {
			continue
		}
		status := line[:spaceIdx]
		rest := line[spaceIdx:]

		switch status {
		case "DUE":
			status = fmt.Sprintf("\x1b[31m%s\x1b[0m", status)
		case "ALERTED":
			status = fmt.Sprintf("\x1b[35m%s\x1b[0m", status)
		case "DOWN":
			status = fmt.Sprintf("\x1b[33m%s\x1b[0m", status)
		}
		lines[i] = status + rest
	}
	return strings.Join(lines, "\n")
}
