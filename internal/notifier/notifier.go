package notifier

import (
	"context"
	"errors"
)

// ErrDeliveryFailed is returned when a channel rejects or cannot carry a
// message. Callers do not retry; the next tick decides again.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Notifier delivers one composed alert message to a person.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Nop is a no-op notifier useful in tests.
type Nop struct{}

func (Nop) Notify(_ context.Context, _ string) error { return nil }
