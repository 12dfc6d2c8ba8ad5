package monitor

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/guregu/null/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

// Handler exposes the monitor state, a health probe and Prometheus metrics.
func (m *Monitor) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", m.handleStatus)
	r.Get("/healthz", m.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (m *Monitor) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m.status(m.clock.Now())); err != nil {
		m.logger.Error("encode status failed", "err", err)
	}
}

func (m *Monitor) handleHealth(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	healthy := m.lastTick.healthy(m.clock.Now(), m.cfg.Interval)
	m.mu.Unlock()

	if !healthy {
		http.Error(w, "no successful tick recently", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ok\n"))
}

func (m *Monitor) status(now time.Time) statusResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	resp := statusResponse{
		ObservedAt:       now,
		QuietHoursActive: m.cfg.QuietHours != nil && m.cfg.QuietHours.Includes(now),
		Checks:           m.snapshot(now),
	}
	if !m.lastTick.at.IsZero() {
		at := m.lastTick.at
		resp.LastTickAt = &at
	}
	if m.lastTick.err != nil {
		resp.LastError = m.lastTick.err.Error()
	}
	return resp
}

// snapshot must be called with m.mu held.
func (m *Monitor) snapshot(now time.Time) []checkState {
	out := make([]checkState, 0, len(m.downSince))
	for id, since := range m.downSince {
		d := downCheck{check: m.down[id], since: since}
		st := checkState{
			ID:               id,
			Name:             d.check.Name,
			Hostname:         d.check.Hostname,
			Type:             d.check.Type,
			DownSince:        since,
			DownFor:          d.downFor(now).Truncate(time.Second).String(),
			AlertDue:         d.downFor(now) >= m.cfg.AlertAfter,
			LastErrorTime:    d.check.LastErrorAt(),
			LastTestTime:     d.check.LastTestAt(),
			LastResponseTime: d.check.LastResponseTime,
		}
		if last, ok := m.alertedAt[id]; ok {
			st.LastAlert = &last
			if now.Sub(last) < m.cfg.AlertAgainAfter {
				st.AlertDue = false
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
