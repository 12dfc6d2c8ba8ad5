package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchAndPrintStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"observed_at": "2019-01-01T00:30:00Z",
			"quiet_hours_active": false,
			"checks": [
				{"id": 1, "name": "web", "hostname": "web.example.com", "down_since": "2019-01-01T00:01:00Z", "down_for": "29m0s", "last_alert": "2019-01-01T00:16:00Z", "alert_due": false, "last_error_time": "2019-01-01T00:28:00Z", "last_test_time": "2019-01-01T00:29:00Z", "last_response_time": 1200},
				{"id": 2, "name": "api", "down_since": "2019-01-01T00:25:00Z", "down_for": "5m0s", "alert_due": false, "last_error_time": null, "last_test_time": null, "last_response_time": null}
			]
		}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	resp, err := fetchStatus(ctx, srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	var out bytes.Buffer
	printStatus(resp, &out)
	text := out.String()
	for _, want := range []string{"ALERTED", "web.example.com", "2019-01-01 00:01:00", "DOWN", "2 check(s) down", "last error 2019-01-01 00:28:00", "response 1200ms"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
	if resp.Checks[1].LastErrorTime.Valid || resp.Checks[1].LastResponseTime.Valid {
		t.Fatalf("expected null pingdom details for api, got %+v", resp.Checks[1])
	}
	if strings.Count(text, "last error") != 1 {
		t.Fatalf("expected last error only for web:\n%s", text)
	}
}

func TestPrintStatusAllUp(t *testing.T) {
	var out bytes.Buffer
	printStatus(statusResponse{ObservedAt: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)}, &out)
	if !strings.Contains(out.String(), "All checks up.") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestFetchStatusRejectsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := fetchStatus(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}
