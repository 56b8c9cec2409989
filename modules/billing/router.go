// Package billing mounts the user-facing billing endpoints: checkout and
// portal sessions, the current entitlement, usage quotas and the live
// entitlement event stream.
package billing

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/artshare/handler"
	"github.com/dmitrymomot/artshare/pkg/clock"
	"github.com/dmitrymomot/artshare/pkg/registry"
	"github.com/dmitrymomot/artshare/svc/checkout"
	"github.com/dmitrymomot/artshare/svc/entitlement"
	"github.com/dmitrymomot/artshare/svc/usage"
)

// Checkout starts checkout or portal sessions.
type Checkout interface {
	Start(ctx context.Context, req checkout.Request) (*checkout.Session, error)
}

// Usage reads and records quota usage.
type Usage interface {
	Usage(ctx context.Context, userID string) ([]usage.Info, error)
	Consume(ctx context.Context, userID string, res entitlement.Resource, n int64) (usage.Info, error)
}

// Entitlements reads the stored entitlement and its plan.
type Entitlements interface {
	FindEntitlement(ctx context.Context, userID string) (*entitlement.Entitlement, error)
	FindPlan(ctx context.Context, planID string) (*entitlement.Plan, error)
}

// RouterOptions configures the billing router. Checkout, Usage and
// Entitlements are required. The events stream is mounted only when
// Registry is set.
type RouterOptions struct {
	Checkout     Checkout
	Usage        Usage
	Entitlements Entitlements
	Registry     *registry.Registry[entitlement.Notification]

	// Auth authenticates every route. StreamAuth, when set, replaces it on
	// the events stream, whose browser clients cannot send headers.
	Auth       func(http.Handler) http.Handler
	StreamAuth func(http.Handler) http.Handler

	// CheckoutLimit, when set, runs after Auth on POST /checkout.
	CheckoutLimit func(http.Handler) http.Handler

	Logger *slog.Logger
	Clock  clock.Clock
}

// Router returns the billing routes, meant to be mounted at /billing.
func Router(opts RouterOptions) chi.Router {
	if opts.Checkout == nil || opts.Usage == nil || opts.Entitlements == nil {
		panic("billing: checkout, usage and entitlements are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.StreamAuth == nil {
		opts.StreamAuth = opts.Auth
	}

	h := &handlers{
		checkout:     opts.Checkout,
		usage:        opts.Usage,
		entitlements: opts.Entitlements,
		registry:     opts.Registry,
		clock:        opts.Clock,
	}
	onError := handler.NewErrorHandler(opts.Logger)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}
		checkoutRoute := r
		if opts.CheckoutLimit != nil {
			checkoutRoute = r.With(opts.CheckoutLimit)
		}
		checkoutRoute.Post("/checkout", handler.Wrap(h.startCheckout,
			handler.WithBinders[handler.Context, checkoutRequest](jsonBody, validBody),
			handler.WithErrorHandler[handler.Context, checkoutRequest](onError),
		))
		r.Get("/entitlement", handler.Wrap(h.currentEntitlement,
			handler.WithErrorHandler[handler.Context, struct{}](onError),
		))
		r.Get("/usage", handler.Wrap(h.listUsage,
			handler.WithErrorHandler[handler.Context, struct{}](onError),
		))
		r.Post("/usage/{resource}", handler.Wrap(h.consumeUsage,
			handler.WithBinders[handler.Context, consumeRequest](resourceParam, jsonBody, validBody),
			handler.WithErrorHandler[handler.Context, consumeRequest](onError),
		))
	})

	if opts.Registry != nil {
		r.Group(func(r chi.Router) {
			if opts.StreamAuth != nil {
				r.Use(opts.StreamAuth)
			}
			r.Get("/events", handler.Wrap(h.events,
				handler.WithErrorHandler[handler.Context, struct{}](onError),
			))
		})
	}

	return r
}
