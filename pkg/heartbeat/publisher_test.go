package heartbeat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

type recordingConn struct {
	msgs []*nats.Msg
	err  error
}

func (c *recordingConn) PublishMsg(m *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func TestApplyHostDefaultKeepsProvidedHost(t *testing.T) {
	original := hostname
	defer func() { hostname = original }()
	hostname = func() (string, error) { return "ignored-hostname", nil }

	got := applyHostDefault(Message{Host: "explicit"})
	if got.Host != "explicit" {
		t.Fatalf("expected host to remain explicit, got %q", got.Host)
	}
}

func TestApplyHostDefaultIgnoresHostnameErrors(t *testing.T) {
	original := hostname
	defer func() { hostname = original }()
	hostname = func() (string, error) { return "", errors.New("lookup failed") }

	got := applyHostDefault(Message{})
	if got.Host != "" {
		t.Fatalf("expected empty host when lookup fails, got %q", got.Host)
	}
}

func TestPublishUsesPrefixedSubject(t *testing.T) {
	original := hostname
	defer func() { hostname = original }()
	hostname = func() (string, error) { return "local-host", nil }

	conn := &recordingConn{}
	pub := NewPublisher(conn, "liveness.")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	err := pub.Publish(ctx, Message{
		Service:  "pingdom-alert",
		Event:    EventHeartbeat,
		Interval: time.Minute,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(conn.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(conn.msgs))
	}
	msg := conn.msgs[0]
	if msg.Subject != "liveness.pingdom-alert.heartbeat" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if msg.Header.Get("Deadline") == "" {
		t.Fatalf("expected deadline header to be set")
	}

	decoded, err := Unmarshal(msg.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Host != "local-host" {
		t.Fatalf("expected host local-host, got %q", decoded.Host)
	}
	if decoded.GeneratedAt.IsZero() {
		t.Fatalf("expected generated_at to default to now")
	}
}

func TestPublishRejectsUnknownEvent(t *testing.T) {
	conn := &recordingConn{}
	pub := NewPublisher(conn, "")

	err := pub.Publish(context.Background(), Message{
		Service:  "pingdom-alert",
		Event:    "stopping",
		Interval: time.Minute,
	})
	if err == nil {
		t.Fatalf("expected validation error for unknown event")
	}
	if len(conn.msgs) != 0 {
		t.Fatalf("expected nothing published, got %d", len(conn.msgs))
	}
}
