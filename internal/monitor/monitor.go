package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/venkytv/pingdom-alert/internal/filter"
	"github.com/venkytv/pingdom-alert/internal/liveness"
	"github.com/venkytv/pingdom-alert/internal/metrics"
	"github.com/venkytv/pingdom-alert/internal/notifier"
	"github.com/venkytv/pingdom-alert/internal/pingdom"
	"github.com/venkytv/pingdom-alert/internal/quiethours"
)

const (
	DefaultAlertAfter      = 15 * time.Minute
	DefaultAlertAgainAfter = 60 * time.Minute
	DefaultInterval        = 60 * time.Second
)

// CheckSource returns the current state of every monitored check.
type CheckSource interface {
	Checks(ctx context.Context) ([]pingdom.Check, error)
}

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type Config struct {
	AlertAfter      time.Duration
	AlertAgainAfter time.Duration
	Interval        time.Duration
	QuietHours      *quiethours.TimeRange
	Filter          *filter.NameFilter
	Clock           Clock
	Liveness        liveness.Signaler
	Debug           bool
	Logger          *slog.Logger
}

type Monitor struct {
	cfg      Config
	source   CheckSource
	notifier notifier.Notifier
	clock    Clock
	liveness liveness.Signaler
	logger   *slog.Logger
	after    func(time.Duration) <-chan time.Time

	mu        sync.Mutex
	downSince map[int64]time.Time
	alertedAt map[int64]time.Time
	down      map[int64]pingdom.Check
	lastTick  tickResult
}

// DefaultConfig returns the stock alert windows and poll interval.
func DefaultConfig() Config {
	return Config{
		AlertAfter:      DefaultAlertAfter,
		AlertAgainAfter: DefaultAlertAgainAfter,
		Interval:        DefaultInterval,
	}
}

// New builds a Monitor. Zero alert windows are honoured: AlertAfter 0 alerts
// on the first down tick and AlertAgainAfter 0 re-alerts on every tick. Only
// negative windows fall back to the defaults.
func New(source CheckSource, n notifier.Notifier, cfg Config) *Monitor {
	if cfg.AlertAfter < 0 {
		cfg.AlertAfter = DefaultAlertAfter
	}
	if cfg.AlertAgainAfter < 0 {
		cfg.AlertAgainAfter = DefaultAlertAgainAfter
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = ClockFunc(time.Now)
	}
	if cfg.Liveness == nil {
		cfg.Liveness = liveness.Nop{}
	}
	if n == nil {
		n = notifier.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
	}
	return &Monitor{
		cfg:       cfg,
		source:    source,
		notifier:  n,
		clock:     cfg.Clock,
		liveness:  cfg.Liveness,
		logger:    logger,
		after:     time.After,
		downSince: make(map[int64]time.Time),
		alertedAt: make(map[int64]time.Time),
		down:      make(map[int64]pingdom.Check),
	}
}

// Tick polls the check source once, updates down-streak bookkeeping and
// sends at most one batched notification. Errors from the source or the
// notifier are returned unhandled.
func (m *Monitor) Tick(ctx context.Context) error {
	checks, err := m.source.Checks(ctx)
	if err != nil {
		return fmt.Errorf("fetching checks: %w", err)
	}
	now := m.clock.Now()

	down := m.track(checks, now)
	metrics.ChecksDown.Set(float64(len(down)))
	m.logger.Info("polled checks", "checks", len(checks), "down", len(down))
	for _, d := range down {
		m.logger.Info("check down", d.logAttrs()...)
	}

	due := m.due(down, now)
	if len(due) == 0 {
		return nil
	}

	messages := make([]string, len(due))
	for i, d := range due {
		messages[i] = alertMessage(d.check.Name, d.since)
	}
	message := strings.Join(messages, " ")
	m.logger.Info("sending alerts", "count", len(due), "message", message)

	sendErr := m.notifier.Notify(ctx, message)

	// Recorded even when the send failed.
	m.recordAlerts(due, now)
	metrics.Alerts.Add(float64(len(due)))

	if sendErr != nil {
		metrics.NotifyFailures.Inc()
		return fmt.Errorf("sending %d alerts: %w", len(due), sendErr)
	}
	return nil
}

// track rebuilds the down-streak map from a fresh poll. Checks that are no
// longer down, or are filtered out, lose their streak immediately.
func (m *Monitor) track(checks []pingdom.Check, now time.Time) []downCheck {
	m.mu.Lock()
	defer m.mu.Unlock()

	downSince := make(map[int64]time.Time)
	current := make(map[int64]pingdom.Check)
	for _, c := range checks {
		if !c.Down() || m.cfg.Filter.Excludes(c.Name) {
			continue
		}
		since, ok := m.downSince[c.ID]
		if !ok {
			since = now
		}
		downSince[c.ID] = since
		current[c.ID] = c
	}
	m.downSince = downSince
	m.down = current

	return sortedDown(downSince, current)
}

// due picks the down checks that should be part of this tick's alert.
func (m *Monitor) due(down []downCheck, now time.Time) []downCheck {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []downCheck
	for _, d := range down {
		if now.Sub(d.since) < m.cfg.AlertAfter {
			continue
		}
		if last, ok := m.alertedAt[d.check.ID]; ok && now.Sub(last) < m.cfg.AlertAgainAfter {
			m.logger.Debug("alert suppressed, alerted recently", "check_id", d.check.ID, "last_alert", last)
			continue
		}
		if m.cfg.QuietHours != nil && m.cfg.QuietHours.Includes(now) {
			m.logger.Debug("alert suppressed by quiet hours", "check_id", d.check.ID, "quiet_hours", m.cfg.QuietHours.String())
			continue
		}
		out = append(out, d)
	}
	return out
}

func (m *Monitor) recordAlerts(due []downCheck, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range due {
		m.alertedAt[d.check.ID] = now
	}
}

func alertMessage(name string, since time.Time) string {
	return fmt.Sprintf("Check %s is down since %s UTC.", name, since.UTC().Format(time.DateTime))
}

func sortedDown(downSince map[int64]time.Time, checks map[int64]pingdom.Check) []downCheck {
	out := make([]downCheck, 0, len(downSince))
	for id, since := range downSince {
		out = append(out, downCheck{check: checks[id], since: since})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].check.ID < out[j].check.ID })
	return out
}
