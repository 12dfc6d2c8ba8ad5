package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"gocloud.dev/pubsub"

	"github.com/venkytv/pingdom-alert/internal/config"
)

// unsetenv clears key for the test and restores it afterwards.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unsetenv %s: %v", key, err)
	}
}

func TestParseOptionsReadsDotenvBeforeFlagDefaults(t *testing.T) {
	unsetenv(t, "PINGDOM_ALERT_CONFIG")
	unsetenv(t, "DEBUG")
	dir := t.TempDir()
	dotenv := "PINGDOM_ALERT_CONFIG=/etc/pingdom-alert/alert.yaml\nDEBUG=true\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	opts, err := parseOptions(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.configPath != "/etc/pingdom-alert/alert.yaml" || !opts.debug {
		t.Fatalf("expected defaults from .env, got %+v", opts)
	}

	opts, err = parseOptions([]string{"-config", "other.yaml", "-once"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.configPath != "other.yaml" || !opts.once {
		t.Fatalf("expected flags to win over .env, got %+v", opts)
	}
}

func writeRunConfig(t *testing.T, pingdomURL, topic string) string {
	t.Helper()
	body := fmt.Sprintf(`
pingdom:
  app_key: k
  user: u
  password: p
  base_url: %s
notification:
  channel: pubsub
  topic_url: "mem://%s"
liveness:
  systemd: false
status:
  addr: ""
`, pingdomURL, topic)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunOnceReturnsExitCodes(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "unavailable", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"checks":[{"id":1,"name":"web","status":"up"}]}`))
	}))
	defer srv.Close()

	if code := run(options{configPath: writeRunConfig(t, srv.URL, "run-ok"), once: true}); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}

	status = http.StatusServiceUnavailable
	if code := run(options{configPath: writeRunConfig(t, srv.URL, "run-fail"), once: true}); code != 1 {
		t.Fatalf("expected exit code 1 for a failed tick, got %d", code)
	}
}

func TestRunReportsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("pingdom: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if code := run(options{configPath: path, once: true}); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestPubSubNotifierCloserShutsDownTopic(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notification.Channel = config.ChannelPubSub
	cfg.Notification.TopicURL = "mem://closer"

	ctx := context.Background()
	n, closeNotifier, err := newNotifier(ctx, cfg)
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	sub, err := pubsub.OpenSubscription(ctx, "mem://closer")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Shutdown(ctx)
	if err := n.Notify(ctx, "Check web is down since 2019-01-01 00:01:00 UTC."); err != nil {
		t.Fatalf("notify before close: %v", err)
	}
	closeNotifier()
	if err := n.Notify(ctx, "after close"); err == nil {
		t.Fatalf("expected notify to fail once the topic is shut down")
	}
}
