package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	billinghttp "github.com/dmitrymomot/artshare/modules/billing"
	"github.com/dmitrymomot/artshare/pkg/config"
	"github.com/dmitrymomot/artshare/pkg/email"
	"github.com/dmitrymomot/artshare/pkg/environment"
	"github.com/dmitrymomot/artshare/pkg/events"
	"github.com/dmitrymomot/artshare/pkg/httpserver"
	"github.com/dmitrymomot/artshare/pkg/jwt"
	"github.com/dmitrymomot/artshare/pkg/logger"
	"github.com/dmitrymomot/artshare/pkg/notifications"
	"github.com/dmitrymomot/artshare/pkg/pg"
	"github.com/dmitrymomot/artshare/pkg/ratelimit"
	"github.com/dmitrymomot/artshare/pkg/redis"
	"github.com/dmitrymomot/artshare/pkg/registry"
	"github.com/dmitrymomot/artshare/svc/billing"
	"github.com/dmitrymomot/artshare/svc/checkout"
	"github.com/dmitrymomot/artshare/svc/entitlement"
	"github.com/dmitrymomot/artshare/svc/entitlement/pgstore"
	"github.com/dmitrymomot/artshare/svc/usage"
)

type serveConfig struct {
	PG       pg.Config
	Redis    redis.Config
	HTTP     httpserver.Config
	Billing  billing.Config
	Checkout checkout.Config
	Email    email.Config
	Events   events.Config
	JWT      jwt.Config
	Limits   ratelimit.Config
}

func (c *serveConfig) load() error {
	return errors.Join(
		config.Load(&c.PG),
		config.Load(&c.Redis),
		config.Load(&c.HTTP),
		config.Load(&c.Billing),
		config.Load(&c.Checkout),
		config.Load(&c.Email),
		config.Load(&c.Events),
		config.Load(&c.JWT),
		config.Load(&c.Limits),
	)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	app, err := loadAppConfig()
	if err != nil {
		return err
	}
	log := newLogger(app)
	logger.SetAsDefault(log)
	env := app.environment()
	ctx = environment.WithContext(ctx, env)

	var cfg serveConfig
	if err := cfg.load(); err != nil {
		return err
	}

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	store := pgstore.New(pool)

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := registry.New[entitlement.Notification](app.LiveBufferSize)
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		reg.Close()
	}()

	// Every instance subscribes to the fanout, so a webhook handled here
	// reaches streams held open by its peers.
	fanout := notifications.NewRedisFanout(rdb, notifications.NewLive(reg), notifications.WithFanoutLogger(log))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fanout.Run(ctx); err != nil && ctx.Err() == nil {
			log.ErrorContext(ctx, "notification fanout stopped", logger.Error(err))
		}
	}()

	sender, err := email.New(cfg.Email, env)
	if err != nil {
		return err
	}
	channels := []notifications.Channel{
		{Name: "live", Notifier: fanout},
		{Name: "email", Notifier: notifications.NewEmailNotifier(sender)},
	}

	if cfg.Events.Enabled() {
		conn, ch, err := events.Connect(ctx, cfg.Events)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()

		publisher, err := events.NewPublisher(ch, cfg.Events.Exchange)
		if err != nil {
			return err
		}
		channels = append(channels, notifications.Channel{Name: "amqp", Notifier: publisher})
	} else {
		log.InfoContext(ctx, "AMQP_URL not set, entitlement events are not published")
	}

	provider := billing.NewStripeProvider(cfg.Billing)
	entitlements := entitlement.NewService(store, provider,
		entitlement.WithLogger(log),
		entitlement.WithNotifier(notifications.NewMulti(channels, notifications.WithLogger(log))),
		entitlement.WithStaleEventGuard(app.RejectStaleEvents),
	)
	checkouts := checkout.NewService(cfg.Checkout, store, provider,
		checkout.WithLogger(log),
		checkout.WithSimulation(env, entitlements),
	)

	tokens, err := jwt.New(cfg.JWT)
	if err != nil {
		return err
	}

	checkoutLimiter, err := ratelimit.NewFixedWindow(ratelimit.NewRedisStore(rdb, "checkout"), cfg.Limits.CheckoutLimit, cfg.Limits.CheckoutWindow)
	if err != nil {
		return err
	}

	webhook := billing.NewWebhookHandler(cfg.Billing.WebhookSecret, entitlements,
		billing.WithDeduplicator(billing.NewRedisDeduplicator(rdb, cfg.Billing.DedupeTTL, cfg.Billing.LockTTL)),
		billing.WithWebhookLogger(log),
	)

	handler := newHandler(routes{
		env: env,
		log: log,
		checks: map[string]httpserver.Check{
			"postgres": pg.Healthcheck(pool),
			"redis":    redis.Healthcheck(rdb),
		},
		billing: billinghttp.RouterOptions{
			Checkout:     checkouts,
			Usage:        usage.NewService(store),
			Entitlements: store,
			Registry:     reg,
			Auth:         jwt.Middleware(tokens, jwt.BearerTokenExtractor),
			StreamAuth:   jwt.Middleware(tokens, jwt.BearerTokenExtractor, jwt.QueryTokenExtractor("token")),
			CheckoutLimit: ratelimit.Middleware(checkoutLimiter, ratelimit.ByUser,
				ratelimit.WithLogger(log)),
			Logger: log,
		},
		webhook: webhook,
	})

	log.InfoContext(ctx, "starting artshare",
		slog.String("version", Version),
		slog.Bool("simulation", !env.IsProduction()),
	)
	return httpserver.New(cfg.HTTP, httpserver.WithLogger(log)).Run(ctx, handler)
}
