package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	_ "gocloud.dev/pubsub/kafkapubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	_ "gocloud.dev/pubsub/natspubsub"
	_ "gocloud.dev/pubsub/rabbitpubsub"
	"golang.org/x/sync/errgroup"

	"github.com/venkytv/pingdom-alert/internal/config"
	"github.com/venkytv/pingdom-alert/internal/liveness"
	"github.com/venkytv/pingdom-alert/internal/metrics"
	"github.com/venkytv/pingdom-alert/internal/monitor"
	"github.com/venkytv/pingdom-alert/internal/notifier"
	"github.com/venkytv/pingdom-alert/internal/pingdom"
	"github.com/venkytv/pingdom-alert/pkg/heartbeat"
)

const serviceName = "pingdom-alert"

type options struct {
	configPath string
	debug      bool
	once       bool
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Print(err)
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// parseOptions loads .env first so it can supply the flag defaults.
func parseOptions(args []string) (options, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	var opts options
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", envDefault("PINGDOM_ALERT_CONFIG", "config.yaml"), "Path to the YAML configuration file")
	fs.BoolVar(&opts.debug, "debug", envBool("DEBUG", false), "Enable debug logging")
	fs.BoolVar(&opts.once, "once", false, "Run a single tick and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// run returns the process exit code once every deferred cleanup has run.
func run(opts options) int {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Printf("load config: %v", err)
		return 1
	}

	logger := newLogger(cfg, opts.debug)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notify, closeNotifier, err := newNotifier(ctx, cfg)
	if err != nil {
		logger.Error("notifier setup failed", "err", err)
		return 1
	}
	defer closeNotifier()

	signaler, closeLiveness := newLiveness(cfg, logger)
	defer closeLiveness()

	// Both were checked by config.Load.
	quiet, _ := cfg.QuietHours()
	nameFilter, _ := cfg.NameFilter()

	metrics.Init()

	source := pingdom.Client{
		AppKey:   cfg.Pingdom.AppKey,
		User:     cfg.Pingdom.User,
		Password: cfg.Pingdom.Password,
		BaseURL:  cfg.Pingdom.BaseURL,
	}
	m := monitor.New(source, notify, monitor.Config{
		AlertAfter:      cfg.AlertAfter(),
		AlertAgainAfter: cfg.AlertAgainAfter(),
		Interval:        cfg.Interval(),
		QuietHours:      quiet,
		Filter:          nameFilter,
		Liveness:        signaler,
		Debug:           opts.debug,
		Logger:          logger,
	})

	if opts.once {
		if err := m.Tick(ctx); err != nil {
			logger.Error("tick failed", "err", err)
			return 1
		}
		return 0
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.Run(gctx)
	})

	if addr := *cfg.Status.Addr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("status server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("monitor failed", "err", err)
		return 1
	}
	return 0
}

func newLogger(cfg *config.Config, debug bool) *slog.Logger {
	level, _ := cfg.LogLevel()
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func newNotifier(ctx context.Context, cfg *config.Config) (notifier.Notifier, func(), error) {
	noop := func() {}
	switch cfg.Notification.Channel {
	case config.ChannelPushover:
		return notifier.Pushover{
			User:  cfg.Notification.PushoverUser,
			Token: cfg.Notification.PushoverToken,
		}, noop, nil
	case config.ChannelPubSub:
		topic, err := notifier.OpenTopic(ctx, cfg.Notification.TopicURL)
		if err != nil {
			return nil, noop, err
		}
		return topic, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = topic.Shutdown(shutdownCtx)
		}, nil
	default:
		tw := notifier.NewTwilio(cfg.Twilio.Account, cfg.Twilio.Token, cfg.Notification.FromNumber, cfg.Notification.ToNumber)
		tw.Language = cfg.Twilio.Language
		tw.Loop = cfg.Twilio.Loop
		return tw, noop, nil
	}
}

func newLiveness(cfg *config.Config, logger *slog.Logger) (liveness.Signaler, func()) {
	var signalers liveness.Multi
	if *cfg.Liveness.Systemd {
		signalers = append(signalers, liveness.Systemd{})
	}

	closer := func() {}
	if cfg.Liveness.NatsURL != "" {
		nc, err := nats.Connect(
			cfg.Liveness.NatsURL,
			nats.Name(serviceName),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.RetryOnFailedConnect(true),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
		)
		if err != nil {
			logger.Warn("nats liveness disabled", "err", err)
		} else {
			pub := heartbeat.NewPublisher(nc, cfg.Liveness.NatsSubject)
			signalers = append(signalers, liveness.NewNATS(pub, serviceName, cfg.Interval()))
			closer = func() { _ = nc.Drain() }
		}
	}
	return signalers, closer
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || v == "true" || v == "TRUE" || v == "yes" || v == "on"
	}
	return fallback
}
