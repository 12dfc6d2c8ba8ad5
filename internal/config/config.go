package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"

	"github.com/venkytv/pingdom-alert/internal/filter"
	"github.com/venkytv/pingdom-alert/internal/quiethours"
)

// EnvPrefix prefixes every environment override, e.g.
// PINGDOM_ALERT_PINGDOM_APP_KEY.
const EnvPrefix = "PINGDOM_ALERT"

// ErrInvalid wraps every configuration problem. It is fatal at startup.
var ErrInvalid = errors.New("invalid configuration")

const (
	ChannelTwilio   = "twilio"
	ChannelPushover = "pushover"
	ChannelPubSub   = "pubsub"
)

// Fields carry no envconfig tags: a tag also enables an unprefixed
// fallback lookup, and keys like USER or TOKEN are set in most shells.
type Config struct {
	Pingdom      PingdomConfig      `yaml:"pingdom" split_words:"true"`
	Twilio       TwilioConfig       `yaml:"twilio" split_words:"true"`
	Notification NotificationConfig `yaml:"notification" split_words:"true"`
	Monitor      MonitorConfig      `yaml:"monitor" split_words:"true"`
	Liveness     LivenessConfig     `yaml:"liveness" split_words:"true"`
	Status       StatusConfig       `yaml:"status" split_words:"true"`
	Log          LogConfig          `yaml:"log" split_words:"true"`
}

type PingdomConfig struct {
	AppKey   string `yaml:"app_key" split_words:"true"`
	User     string `yaml:"user" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	BaseURL  string `yaml:"base_url" split_words:"true"`
}

type TwilioConfig struct {
	Account  string `yaml:"account" split_words:"true"`
	Token    string `yaml:"token" split_words:"true"`
	Language string `yaml:"language" split_words:"true"`
	Loop     int    `yaml:"loop" split_words:"true"`
}

type NotificationConfig struct {
	Channel       string `yaml:"channel" split_words:"true"`
	FromNumber    string `yaml:"from_number" split_words:"true"`
	ToNumber      string `yaml:"to_number" split_words:"true"`
	PushoverUser  string `yaml:"pushover_user" split_words:"true"`
	PushoverToken string `yaml:"pushover_token" split_words:"true"`
	TopicURL      string `yaml:"topic_url" split_words:"true"`
}

// MonitorConfig takes minutes for the alert windows and seconds for the
// poll interval.
type MonitorConfig struct {
	AlertAfter         float64 `yaml:"alert_after" split_words:"true"`
	AlertAgainAfter    float64 `yaml:"alert_again_after" split_words:"true"`
	Interval           float64 `yaml:"interval" split_words:"true"`
	QuietHours         string  `yaml:"quiet_hours" split_words:"true"`
	QuietHoursTimezone string  `yaml:"quiet_hours_timezone" split_words:"true"`
	IgnoreName         string  `yaml:"ignore_name" split_words:"true"`
}

type LivenessConfig struct {
	Systemd     *bool  `yaml:"systemd" split_words:"true"`
	NatsURL     string `yaml:"nats_url" split_words:"true"`
	NatsSubject string `yaml:"nats_subject" split_words:"true"`
}

type StatusConfig struct {
	Addr *string `yaml:"addr" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Config{Monitor: defaultMonitor()}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalid, path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// defaultMonitor is applied before the file and environment are read, so
// an explicit alert_after: 0 or alert_again_after: 0 is kept.
func defaultMonitor() MonitorConfig {
	return MonitorConfig{
		AlertAfter:      15,
		AlertAgainAfter: 60,
		Interval:        60,
	}
}

func (c *Config) applyDefaults() {
	if c.Notification.Channel == "" {
		c.Notification.Channel = ChannelTwilio
	}
	if c.Twilio.Language == "" {
		c.Twilio.Language = "en-AU"
	}
	if c.Twilio.Loop == 0 {
		c.Twilio.Loop = 10
	}
	if c.Liveness.Systemd == nil {
		on := true
		c.Liveness.Systemd = &on
	}
	if c.Liveness.NatsSubject == "" {
		c.Liveness.NatsSubject = "heartbeat."
	}
	if c.Status.Addr == nil {
		addr := "127.0.0.1:8080"
		c.Status.Addr = &addr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	missing := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, name+" is required")
		}
	}

	missing("pingdom.app_key", c.Pingdom.AppKey)
	missing("pingdom.user", c.Pingdom.User)
	missing("pingdom.password", c.Pingdom.Password)

	switch c.Notification.Channel {
	case ChannelTwilio:
		missing("twilio.account", c.Twilio.Account)
		missing("twilio.token", c.Twilio.Token)
		missing("notification.from_number", c.Notification.FromNumber)
		missing("notification.to_number", c.Notification.ToNumber)
	case ChannelPushover:
		missing("notification.pushover_user", c.Notification.PushoverUser)
		missing("notification.pushover_token", c.Notification.PushoverToken)
	case ChannelPubSub:
		missing("notification.topic_url", c.Notification.TopicURL)
	default:
		problems = append(problems, fmt.Sprintf("notification.channel %q is not one of twilio, pushover, pubsub", c.Notification.Channel))
	}

	if c.Monitor.AlertAfter < 0 {
		problems = append(problems, "monitor.alert_after must not be negative")
	}
	if c.Monitor.AlertAgainAfter < 0 {
		problems = append(problems, "monitor.alert_again_after must not be negative")
	}
	if c.Monitor.Interval <= 0 {
		problems = append(problems, "monitor.interval must be positive")
	}
	if c.Monitor.QuietHours != "" {
		if c.Monitor.QuietHoursTimezone == "" {
			problems = append(problems, "monitor.quiet_hours_timezone is required when quiet_hours is set")
		} else if _, err := c.QuietHours(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if _, err := c.NameFilter(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.LogLevel(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		problems = append(problems, fmt.Sprintf("log.format %q is not one of text, json", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) AlertAfter() time.Duration {
	return minutes(c.Monitor.AlertAfter)
}

func (c *Config) AlertAgainAfter() time.Duration {
	return minutes(c.Monitor.AlertAgainAfter)
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.Monitor.Interval * float64(time.Second))
}

// QuietHours returns nil when no quiet window is configured.
func (c *Config) QuietHours() (*quiethours.TimeRange, error) {
	if c.Monitor.QuietHours == "" {
		return nil, nil
	}
	r, err := quiethours.Parse(c.Monitor.QuietHours, c.Monitor.QuietHoursTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: monitor.quiet_hours: %w", ErrInvalid, err)
	}
	return r, nil
}

// NameFilter returns nil when no ignore pattern is configured.
func (c *Config) NameFilter() (*filter.NameFilter, error) {
	f, err := filter.New(c.Monitor.IgnoreName)
	if err != nil {
		return nil, fmt.Errorf("%w: monitor.ignore_name: %w", ErrInvalid, err)
	}
	return f, nil
}

func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	return level, nil
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
