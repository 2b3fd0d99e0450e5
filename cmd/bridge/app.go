package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"brainbridge/internal/apiclient"
	"brainbridge/internal/booking"
	"brainbridge/internal/cache"
	"brainbridge/internal/catalog"
	"brainbridge/internal/config"
	"brainbridge/internal/ledger"
	"brainbridge/internal/metrics"
	"brainbridge/internal/notify"
	"brainbridge/internal/payment"
)

// app holds everything a command needs, built from the config.
type app struct {
	cfg      *config.Config
	logger   *zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	api      *apiclient.Client
	rdb      *redis.Client
	cache    *cache.Store
	ledger   *ledger.Ledger
	creds    *apiclient.Credentials
}

func loadApp(opts *rootOptions, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	logger := newLogger(cfg, stderr)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  m,
		creds:    &apiclient.Credentials{Token: cfg.Auth.Token},
	}
	if opts.token != "" {
		a.creds.Token = opts.token
	}

	apiOpts := []apiclient.Option{
		apiclient.WithTimeout(cfg.APITimeout()),
		apiclient.WithLogger(logger),
		apiclient.WithMetrics(m),
		apiclient.WithUserAgent("brainbridge/" + Version),
	}
	if cfg.API.RatePerSecond > 0 {
		apiOpts = append(apiOpts, apiclient.WithRateLimit(cfg.API.RatePerSecond, cfg.API.Burst))
	}
	a.api = apiclient.New(cfg.API.BaseURL, apiOpts...)

	if cfg.Redis.Address != "" {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.cache = cache.New(a.rdb, cfg.CacheTTL(), cache.WithPrefix(cfg.CachePrefix()), cache.WithLogger(logger))
	}

	return a, nil
}

func newLogger(cfg *config.Config, out io.Writer) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level))
	if err != nil || cfg.Logging.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Logging.Format == "json" {
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}
	logger = logger.Level(level).With().Timestamp().Logger()
	return &logger
}

// openLedger opens the attempt ledger once.
func (a *app) openLedger() (*ledger.Ledger, error) {
	if a.ledger != nil {
		return a.ledger, nil
	}
	l, err := ledger.Open(a.cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	a.ledger = l
	return l, nil
}

func (a *app) catalog() *catalog.Catalog {
	if a.cache == nil {
		return catalog.New(a.api, nil)
	}
	return catalog.New(a.api, a.cache)
}

// bookingService wires the handshake with every configured collaborator.
func (a *app) bookingService() (*booking.Service, error) {
	var collector booking.PaymentCollector
	if a.cfg.Payment.StripeSecretKey != "" {
		collector = payment.NewStripeCollector(payment.Config{
			SecretKey: a.cfg.Payment.StripeSecretKey,
			APIURL:    a.cfg.Payment.StripeAPIURL,
		}, a.logger)
	}

	var inv booking.Invalidator
	if a.cache != nil {
		inv = a.cache
	}

	svc := booking.NewService(a.api, collector, inv, a.logger)
	svc.UseMetrics(a.metrics)
	svc.UseLocation(a.cfg.Location())

	l, err := a.openLedger()
	if err != nil {
		return nil, err
	}
	svc.UseRecorder(l)

	if n := a.supportNotifier(); n != nil {
		svc.UseNotifier(n)
	}
	return svc, nil
}

func (a *app) supportNotifier() booking.SupportNotifier {
	sc := a.cfg.Support
	if sc.TelegramBotToken == "" || len(sc.ChatIDs) == 0 {
		return nil
	}
	bot, err := notify.NewBotSender(sc.TelegramBotToken)
	if err != nil {
		a.logger.Warn().Err(err).Msg("support notifications disabled")
		return nil
	}
	return notify.NewTelegramNotifier(bot, sc.ChatIDs, notify.DefaultRetryConfig(), a.logger)
}

func (a *app) Close() {
	if a.ledger != nil {
		_ = a.ledger.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
