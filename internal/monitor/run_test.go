package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/venkytv/pingdom-alert/internal/pingdom"
)

type scriptedSource struct {
	steps []func() ([]pingdom.Check, error)
	calls int
}

func (s *scriptedSource) Checks(context.Context) ([]pingdom.Check, error) {
	step := s.steps[s.calls%len(s.steps)]
	s.calls++
	return step()
}

type countingLiveness struct {
	ready, heartbeats int
	err               error
}

func (c *countingLiveness) Ready(context.Context) error {
	c.ready++
	return c.err
}

func (c *countingLiveness) Heartbeat(context.Context) error {
	c.heartbeats++
	return c.err
}

func TestRunSurvivesFailingTicks(t *testing.T) {
	source := &scriptedSource{steps: []func() ([]pingdom.Check, error){
		func() ([]pingdom.Check, error) { panic("unexpected payload") },
		func() ([]pingdom.Check, error) { return nil, errors.New("timeout") },
		func() ([]pingdom.Check, error) { return []pingdom.Check{{ID: 1, Name: "web", Status: "up"}}, nil },
	}}
	live := &countingLiveness{}
	m := New(source, nil, Config{
		Interval: time.Minute,
		Liveness: live,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sleeps []time.Duration
	m.after = func(d time.Duration) <-chan time.Time {
		sleeps = append(sleeps, d)
		if source.calls >= 3 {
			cancel()
			return nil
		}
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}

	if err := m.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if source.calls != 3 {
		t.Fatalf("expected 3 ticks, got %d", source.calls)
	}
	if live.ready != 1 {
		t.Fatalf("expected one ready signal, got %d", live.ready)
	}
	if live.heartbeats != 1 {
		t.Fatalf("expected a heartbeat only after the successful tick, got %d", live.heartbeats)
	}
	for _, d := range sleeps {
		if d != time.Minute {
			t.Fatalf("expected to sleep the configured interval, got %s", d)
		}
	}
}

func TestRunIgnoresLivenessFailures(t *testing.T) {
	source := &scriptedSource{steps: []func() ([]pingdom.Check, error){
		func() ([]pingdom.Check, error) { return nil, nil },
	}}
	live := &countingLiveness{err: errors.New("no supervisor")}
	m := New(source, nil, Config{
		Liveness: live,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	m.after = func(time.Duration) <-chan time.Time {
		if source.calls >= 2 {
			cancel()
			return nil
		}
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}

	if err := m.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if live.heartbeats != source.calls {
		t.Fatalf("expected a heartbeat attempt per tick, got %d for %d", live.heartbeats, source.calls)
	}
}

func TestSafeTickRecordsOutcome(t *testing.T) {
	clock := &fakeClock{now: t0}
	source := &fakeSource{err: errors.New("boom")}
	m := New(source, nil, Config{
		Clock:  clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if err := m.safeTick(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if m.lastTick.err == nil || !m.lastTick.lastSuccess.IsZero() {
		t.Fatalf("unexpected tick result %+v", m.lastTick)
	}

	source.err = nil
	clock.now = t0.Add(time.Minute)
	if err := m.safeTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !m.lastTick.lastSuccess.Equal(t0.Add(time.Minute)) || m.lastTick.err != nil {
		t.Fatalf("unexpected tick result %+v", m.lastTick)
	}
}
