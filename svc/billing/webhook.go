package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/artshare/pkg/logger"
	"github.com/dmitrymomot/artshare/pkg/metrics"
	"github.com/dmitrymomot/artshare/svc/entitlement"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

// Reconciler is the entitlement core as seen by the webhook.
type Reconciler interface {
	Reconcile(ctx context.Context, ev entitlement.Event) (entitlement.Result, error)
	ReconcileRenewal(ctx context.Context, inv entitlement.Invoice, d entitlement.Delivery) (entitlement.Result, error)
	ReconcileCancellation(ctx context.Context, sub entitlement.Subscription, d entitlement.Delivery) (entitlement.Result, error)
}

// WebhookHandler receives Stripe webhook deliveries.
type WebhookHandler struct {
	secret     string
	reconciler Reconciler
	dedupe     Deduplicator
	log        *slog.Logger
}

// WebhookOption configures a WebhookHandler.
type WebhookOption func(*WebhookHandler)

// WithDeduplicator skips event ids that were already processed.
func WithDeduplicator(d Deduplicator) WebhookOption {
	return func(h *WebhookHandler) { h.dedupe = d }
}

// WithWebhookLogger sets the handler logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(h *WebhookHandler) {
		if l != nil {
			h.log = l
		}
	}
}

// NewWebhookHandler creates a handler. Panics if reconciler is nil.
func NewWebhookHandler(secret string, reconciler Reconciler, opts ...WebhookOption) *WebhookHandler {
	if reconciler == nil {
		panic("billing: reconciler is required")
	}
	h := &WebhookHandler{
		secret:     secret,
		reconciler: reconciler,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(logger.Component("stripe_webhook"))
	return h
}

type webhookResponse struct {
	Received bool   `json:"received,omitempty"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ServeHTTP verifies the signature and dispatches the event.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	reply := func(code int, resp webhookResponse) {
		status = code
		writeJSON(w, code, resp, h.log)
	}

	if r.Method != http.MethodPost {
		reply(http.StatusMethodNotAllowed, webhookResponse{Error: "method not allowed"})
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		reply(http.StatusServiceUnavailable, webhookResponse{Error: "webhook secret not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		reply(http.StatusBadRequest, webhookResponse{Error: "failed to read request body"})
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		reply(http.StatusBadRequest, webhookResponse{Error: "missing Stripe signature"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		reply(http.StatusBadRequest, webhookResponse{Error: "invalid Stripe signature"})
		return
	}
	eventType = string(event.Type)

	ctx := r.Context()
	log := h.log.With(logger.EventID(event.ID), logger.EventType(eventType))

	run := func() error { return h.handleEvent(ctx, &event) }
	already := false
	if h.dedupe != nil {
		already, err = h.dedupe.Do(ctx, event.ID, run)
	} else {
		err = run()
	}

	switch {
	case errors.Is(err, ErrEventInFlight):
		log.WarnContext(ctx, "webhook event already in flight")
		reply(http.StatusConflict, webhookResponse{Error: "event is being processed, retry later"})
	case err != nil && IsNotFound(err):
		// Retrying cannot bring back an object Stripe no longer has.
		log.WarnContext(ctx, "webhook references a missing Stripe object", logger.Error(err))
		reply(http.StatusOK, webhookResponse{Received: true, Status: "ignored"})
	case err != nil:
		log.ErrorContext(ctx, "webhook processing failed", logger.Error(err))
		reply(http.StatusInternalServerError, webhookResponse{Error: "processing failed"})
	case already:
		metrics.WebhookDuplicatesTotal.Inc()
		log.InfoContext(ctx, "webhook event already processed")
		reply(http.StatusOK, webhookResponse{Received: true, Status: "duplicate"})
	default:
		reply(http.StatusOK, webhookResponse{Received: true, Status: "processed"})
	}
}

func (h *WebhookHandler) handleEvent(ctx context.Context, event *stripe.Event) error {
	d := entitlement.Delivery{EventID: event.ID, OccurredAt: unixTime(event.Created)}

	switch event.Type {
	case "checkout.session.completed":
		var sess checkoutSession
		if err := decode(event, &sess); err != nil {
			return h.skipMalformed(ctx, event, err)
		}
		if sess.Mode != "" && sess.Mode != string(stripe.CheckoutSessionModeSubscription) {
			h.log.InfoContext(ctx, "checkout session ignored: not a subscription",
				logger.EventID(event.ID), slog.String("mode", sess.Mode))
			return nil
		}
		_, err := h.reconciler.Reconcile(ctx, entitlement.Event{
			Source:         entitlement.SourceCheckoutCompleted,
			ID:             event.ID,
			CustomerID:     string(sess.Customer),
			SubscriptionID: string(sess.Subscription),
			UserRef:        sess.userRef(),
			OccurredAt:     d.OccurredAt,
		})
		return err

	case "invoice.paid", "invoice.payment_succeeded":
		var inv invoicePayload
		if err := decode(event, &inv); err != nil {
			return h.skipMalformed(ctx, event, err)
		}
		_, err := h.reconciler.ReconcileRenewal(ctx, inv.toInvoice(), d)
		return err

	case "customer.subscription.created", "customer.subscription.updated":
		var sub subscriptionPayload
		if err := decode(event, &sub); err != nil {
			return h.skipMalformed(ctx, event, err)
		}
		_, err := h.reconciler.Reconcile(ctx, entitlement.Event{
			Source:         entitlement.SourceSubscriptionUpdated,
			ID:             event.ID,
			CustomerID:     string(sub.Customer),
			SubscriptionID: sub.ID,
			UserRef:        sub.Metadata[entitlement.UserRefMetadataKey],
			OccurredAt:     d.OccurredAt,
		})
		return err

	case "customer.subscription.deleted":
		var sub subscriptionPayload
		if err := decode(event, &sub); err != nil {
			return h.skipMalformed(ctx, event, err)
		}
		_, err := h.reconciler.ReconcileCancellation(ctx, sub.toSubscription(), d)
		return err

	default:
		h.log.InfoContext(ctx, "webhook event ignored: unhandled type",
			logger.EventID(event.ID), logger.EventType(string(event.Type)))
		return nil
	}
}

// skipMalformed acknowledges a payload that cannot be decoded. Redelivery
// would carry the same bytes.
func (h *WebhookHandler) skipMalformed(ctx context.Context, event *stripe.Event, err error) error {
	h.log.WarnContext(ctx, "webhook event ignored: malformed payload",
		logger.EventID(event.ID), logger.EventType(string(event.Type)), logger.Error(err))
	return nil
}

func decode(event *stripe.Event, v any) error {
	if event.Data == nil {
		return ErrDecodeEvent
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return errors.Join(ErrDecodeEvent, err)
	}
	return nil
}

func writeJSON[T any](w http.ResponseWriter, status int, v T, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("encode webhook response", slog.Int("status", status), logger.Error(err))
	}
}
