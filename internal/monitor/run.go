package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/venkytv/pingdom-alert/internal/metrics"
)

// Run ticks immediately and then every Interval until ctx is cancelled.
// A failed or panicking tick is logged and the loop carries on.
func (m *Monitor) Run(ctx context.Context) error {
	if m.source == nil {
		return errors.New("check source is required")
	}
	attrs := []any{
		"interval", m.cfg.Interval,
		"alert_after", m.cfg.AlertAfter,
		"alert_again_after", m.cfg.AlertAgainAfter,
	}
	if m.cfg.QuietHours != nil {
		attrs = append(attrs, "quiet_hours", m.cfg.QuietHours.String())
	}
	if m.cfg.Filter != nil {
		attrs = append(attrs, "ignore_name", m.cfg.Filter.String())
	}
	m.logger.Info("monitor starting", attrs...)

	if err := m.liveness.Ready(ctx); err != nil {
		m.logger.Warn("liveness ready signal failed", "err", err)
	}

	for {
		if err := m.safeTick(ctx); err != nil {
			m.logger.Error("tick failed, ignoring", "err", err)
		} else if err := m.liveness.Heartbeat(ctx); err != nil {
			m.logger.Warn("liveness heartbeat failed", "err", err)
		}

		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping")
			return nil
		case <-m.after(m.cfg.Interval):
		}
	}
}

func (m *Monitor) safeTick(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("tick panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("tick panicked: %v", r)
		}
		metrics.TickDuration.Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.Ticks.WithLabelValues(result).Inc()
		m.recordTick(err)
	}()
	return m.Tick(ctx)
}

func (m *Monitor) recordTick(err error) {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTick.at = now
	m.lastTick.err = err
	if err == nil {
		m.lastTick.lastSuccess = now
	}
}
