package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	billinghttp "github.com/dmitrymomot/artshare/modules/billing"
	"github.com/dmitrymomot/artshare/pkg/environment"
	"github.com/dmitrymomot/artshare/pkg/httpserver"
	"github.com/dmitrymomot/artshare/pkg/metrics"
	"github.com/dmitrymomot/artshare/pkg/requestid"
)

type routes struct {
	env     environment.Environment
	log     *slog.Logger
	checks  map[string]httpserver.Check
	billing billinghttp.RouterOptions
	webhook http.Handler
}

func newHandler(rt routes) http.Handler {
	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		environment.Middleware(rt.env),
		middleware.Recoverer,
	)

	r.Get("/health", httpserver.HealthHandler(rt.log, rt.checks))
	r.Handle("/metrics", metrics.Handler())
	r.Mount("/billing", billinghttp.Router(rt.billing))
	r.Method(http.MethodPost, "/webhooks/stripe", rt.webhook)

	return r
}
