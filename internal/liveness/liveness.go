// Package liveness reports process health to an external supervisor.
// Signals are a side channel: callers log failures and carry on.
package liveness

import (
	"context"
	"errors"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/venkytv/pingdom-alert/pkg/heartbeat"
)

type Signaler interface {
	// Ready is sent once after startup.
	Ready(ctx context.Context) error
	// Heartbeat is sent after every tick that completed without error.
	Heartbeat(ctx context.Context) error
}

// Nop discards all signals.
type Nop struct{}

func (Nop) Ready(context.Context) error     { return nil }
func (Nop) Heartbeat(context.Context) error { return nil }

// Multi fans signals out to every member and joins their errors.
type Multi []Signaler

func (m Multi) Ready(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Ready(ctx))
	}
	return errors.Join(errs...)
}

func (m Multi) Heartbeat(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Heartbeat(ctx))
	}
	return errors.Join(errs...)
}

var sdNotify = daemon.SdNotify

// Systemd speaks the sd_notify protocol. Outside systemd (no
// NOTIFY_SOCKET) every call is a silent no-op.
type Systemd struct{}

func (Systemd) Ready(context.Context) error {
	_, err := sdNotify(false, daemon.SdNotifyReady)
	return err
}

func (Systemd) Heartbeat(context.Context) error {
	_, err := sdNotify(false, daemon.SdNotifyWatchdog)
	return err
}

type publisher interface {
	Publish(ctx context.Context, msg heartbeat.Message) error
}

// NATS publishes liveness messages through a heartbeat publisher so a
// nats-heartbeat monitor can alert when this process goes quiet.
type NATS struct {
	pub      publisher
	service  string
	interval time.Duration
}

func NewNATS(pub *heartbeat.Publisher, service string, interval time.Duration) *NATS {
	return &NATS{pub: pub, service: service, interval: interval}
}

func (n *NATS) Ready(ctx context.Context) error {
	return n.publish(ctx, heartbeat.EventReady)
}

func (n *NATS) Heartbeat(ctx context.Context) error {
	return n.publish(ctx, heartbeat.EventHeartbeat)
}

func (n *NATS) publish(ctx context.Context, evt heartbeat.Event) error {
	return n.pub.Publish(ctx, heartbeat.Message{
		Service:     n.service,
		Event:       evt,
		Interval:    n.interval,
		Description: "pingdom alert monitor",
	})
}
