package billing

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/artshare/handler"
	"github.com/dmitrymomot/artshare/pkg/binder"
	"github.com/dmitrymomot/artshare/pkg/clock"
	"github.com/dmitrymomot/artshare/pkg/jwt"
	"github.com/dmitrymomot/artshare/pkg/registry"
	"github.com/dmitrymomot/artshare/svc/checkout"
	"github.com/dmitrymomot/artshare/svc/entitlement"
	"github.com/dmitrymomot/artshare/svc/usage"
)

var (
	jsonBody  = binder.JSON()
	validBody = binder.Validate()

	errPaymentRequired = handler.NewHTTPError(http.StatusPaymentRequired, "entitlement_required")
	errLimitExceeded   = handler.NewHTTPError(http.StatusTooManyRequests, "limit_exceeded")
)

type handlers struct {
	checkout     Checkout
	usage        Usage
	entitlements Entitlements
	registry     *registry.Registry[entitlement.Notification]
	clock        clock.Clock
}

type checkoutRequest struct {
	PriceID string `json:"price_id" validate:"required,startswith=price_"`
}

// startCheckout takes the user and email from the token only. A client
// supplied email could otherwise attach the caller to someone else's
// provider customer.
func (h *handlers) startCheckout(ctx handler.Context, req checkoutRequest) handler.Response {
	claims, ok := jwt.ClaimsFromContext(ctx)
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}

	sess, err := h.checkout.Start(ctx, checkout.Request{
		UserID:  claims.Subject,
		Email:   claims.Email,
		PriceID: req.PriceID,
	})
	if err != nil {
		return handler.JSONError(checkoutError(err))
	}
	return handler.JSON(sess)
}

func checkoutError(err error) error {
	switch {
	case errors.Is(err, checkout.ErrInvalidPrice):
		return errors.Join(handler.NewFieldError(handler.ErrBadRequest, "price_id", "is not an active recurring price"), err)
	case errors.Is(err, checkout.ErrMissingCustomerDetails):
		return errors.Join(handler.ErrBadRequest, err)
	case errors.Is(err, checkout.ErrUserNotFound):
		return errors.Join(handler.ErrNotFound, err)
	case errors.Is(err, checkout.ErrProviderError):
		return errors.Join(handler.ErrBadGateway, err)
	}
	return err
}

// entitlementView is the client-facing entitlement state.
type entitlementView struct {
	Active            bool                           `json:"active"`
	PlanID            string                         `json:"plan_id,omitempty"`
	PlanName          string                         `json:"plan_name,omitempty"`
	ExpiresAt         *time.Time                     `json:"expires_at,omitempty"`
	CycleStartedAt    *time.Time                     `json:"cycle_started_at,omitempty"`
	CancelAtPeriodEnd bool                           `json:"cancel_at_period_end,omitempty"`
	Quotas            map[entitlement.Resource]int64 `json:"quotas,omitempty"`
}

func (h *handlers) currentEntitlement(ctx handler.Context, _ struct{}) handler.Response {
	userID, ok := jwt.UserID(ctx)
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}
	view, err := h.view(ctx, userID)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(view)
}

// view returns {active:false} when there is no entitlement or it has lapsed.
func (h *handlers) view(ctx handler.Context, userID string) (entitlementView, error) {
	ent, err := h.entitlements.FindEntitlement(ctx, userID)
	if errors.Is(err, entitlement.ErrEntitlementNotFound) {
		return entitlementView{}, nil
	}
	if err != nil {
		return entitlementView{}, err
	}
	if !ent.IsActive(h.clock.Now()) {
		return entitlementView{}, nil
	}

	plan, err := h.entitlements.FindPlan(ctx, ent.PlanID)
	if err != nil {
		return entitlementView{}, err
	}
	return entitlementView{
		Active:            true,
		PlanID:            plan.ID,
		PlanName:          plan.Name,
		ExpiresAt:         &ent.ExpiresAt,
		CycleStartedAt:    &ent.CycleStartedAt,
		CancelAtPeriodEnd: ent.CancelAtPeriodEnd,
		Quotas:            plan.Quotas,
	}, nil
}

func (h *handlers) listUsage(ctx handler.Context, _ struct{}) handler.Response {
	userID, ok := jwt.UserID(ctx)
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}
	infos, err := h.usage.Usage(ctx, userID)
	if err != nil {
		return handler.JSONError(usageError(err))
	}
	return handler.JSON(infos)
}

type consumeRequest struct {
	Resource entitlement.Resource `json:"-"`
	Amount   int64                `json:"amount" validate:"gt=0"`
}

func resourceParam(r *http.Request, v any) error {
	v.(*consumeRequest).Resource = entitlement.Resource(chi.URLParam(r, "resource"))
	return nil
}

func (h *handlers) consumeUsage(ctx handler.Context, req consumeRequest) handler.Response {
	userID, ok := jwt.UserID(ctx)
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}
	info, err := h.usage.Consume(ctx, userID, req.Resource, req.Amount)
	if err != nil {
		return handler.JSONError(usageError(err))
	}
	return handler.JSON(info)
}

func usageError(err error) error {
	switch {
	case errors.Is(err, usage.ErrNoEntitlement), errors.Is(err, usage.ErrEntitlementExpired):
		return errors.Join(errPaymentRequired, err)
	case errors.Is(err, usage.ErrLimitExceeded):
		return errors.Join(errLimitExceeded, err)
	case errors.Is(err, usage.ErrInvalidResource):
		return errors.Join(handler.ErrNotFound, err)
	case errors.Is(err, usage.ErrInvalidAmount):
		return errors.Join(handler.ErrBadRequest, err)
	}
	return err
}
