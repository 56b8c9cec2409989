package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/artshare/pkg/clock"
	"github.com/dmitrymomot/artshare/pkg/logger"
	"github.com/dmitrymomot/artshare/pkg/metrics"
)

// SimulatedSubscriptionPrefix starts every synthetic subscription id.
const SimulatedSubscriptionPrefix = "sub_sim_"

// Service reconciles provider state into entitlements.
type Service struct {
	store       Store
	provider    Provider
	notifier    Notifier
	clock       clock.Clock
	log         *slog.Logger
	rejectStale bool
}

// NewService creates a Service. Panics if store or provider is nil.
func NewService(store Store, provider Provider, opts ...Option) *Service {
	if store == nil {
		panic("entitlement: store is required")
	}
	if provider == nil {
		panic("entitlement: provider is required")
	}

	s := &Service{
		store:    store,
		provider: provider,
		notifier: noopNotifier{},
		clock:    clock.System{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("entitlement"))

	return s
}

// Reconcile applies one event and reports what changed.
func (s *Service) Reconcile(ctx context.Context, ev Event) (res Result, err error) {
	defer s.observe(ctx, ev, time.Now(), &res, &err)

	log := s.log.With(
		logger.Source(string(ev.Source)),
		logger.EventID(ev.ID),
		logger.CustomerID(ev.CustomerID),
		logger.SubscriptionID(ev.SubscriptionID),
	)

	if ev.CustomerID == "" && ev.UserRef == "" {
		log.WarnContext(ctx, "event skipped: no customer id or user reference")
		return res, nil
	}
	if ev.SubscriptionID == "" && !ev.Simulated {
		log.WarnContext(ctx, "event skipped: no subscription id")
		return res, nil
	}

	user, err := s.resolveUser(ctx, ev.CustomerID, ev.UserRef)
	if err != nil {
		return res, err
	}
	if user == nil {
		log.WarnContext(ctx, "event skipped: user not resolvable", logger.UserID(ev.UserRef))
		return res, nil
	}
	res.User = user
	log = log.With(logger.UserID(user.ID))

	var sub *Subscription
	if ev.Simulated {
		if ev.SimulatedPriceID == "" {
			return res, ErrMissingPriceID
		}
		sub, err = s.simulatedSubscription(ctx, ev, user)
	} else {
		sub, err = s.fetchSubscription(ctx, ev.SubscriptionID)
	}
	if err != nil {
		return res, err
	}
	res.Subscription = sub

	cycleStart, cycleEnd, err := resolvePeriod(sub)
	if err != nil {
		return res, fmt.Errorf("%w: %s", err, sub.ID)
	}

	switch Classify(sub.Status) {
	case AccessEntitled:
		return s.activate(ctx, log, ev, user, sub, cycleStart, cycleEnd, res)
	case AccessRevoked:
		return s.deactivate(ctx, log, ev, user, res)
	default:
		log.InfoContext(ctx, "subscription status ignored", logger.Status(string(sub.Status)))
		return res, nil
	}
}

// resolveUser finds the user and backfills the customer id when the user
// has none yet. A nil user with a nil error means nobody matched.
func (s *Service) resolveUser(ctx context.Context, customerID, userRef string) (*User, error) {
	user, err := s.store.FindUserByProviderData(ctx, customerID, userRef)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrStoreError, err)
	}

	if user.ProviderCustomerID == "" && customerID != "" {
		if err := s.store.UpdateUserCustomerID(ctx, user.ID, customerID); err != nil {
			return nil, errors.Join(ErrStoreError, err)
		}
		user.ProviderCustomerID = customerID
	}
	return user, nil
}

func (s *Service) fetchSubscription(ctx context.Context, id string) (*Subscription, error) {
	sub, err := s.provider.RetrieveSubscription(ctx, id)
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}
	return sub, nil
}

// simulatedSubscription builds the subscription a real checkout of the
// event's price would have produced, starting now.
func (s *Service) simulatedSubscription(ctx context.Context, ev Event, user *User) (*Subscription, error) {
	price, err := s.provider.RetrievePrice(ctx, ev.SimulatedPriceID)
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	status := ev.Status
	if status == "" {
		status = StatusActive
	}
	id := ev.SubscriptionID
	if id == "" {
		id = SimulatedSubscriptionPrefix + uuid.NewString()
	}
	customerID := ev.CustomerID
	if customerID == "" {
		customerID = user.ProviderCustomerID
	}

	start := s.clock.Now()
	end := simulatedPeriodEnd(start, price.Interval)

	return &Subscription{
		ID:                 id,
		CustomerID:         customerID,
		Status:             status,
		Items:              []SubscriptionItem{{PriceID: price.ID, ProductID: price.ProductID}},
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	}, nil
}

func (s *Service) activate(ctx context.Context, log *slog.Logger, ev Event, user *User, sub *Subscription, cycleStart, cycleEnd time.Time, res Result) (Result, error) {
	productID := sub.ProductID()
	if productID == "" {
		return res, fmt.Errorf("%w: %s", ErrIncompleteSubscription, sub.ID)
	}

	plan, err := s.store.FindPlanByProviderProductID(ctx, productID)
	if errors.Is(err, ErrPlanNotFound) {
		return res, fmt.Errorf("%w: %s", ErrPlanNotFound, productID)
	}
	if err != nil {
		return res, errors.Join(ErrStoreError, err)
	}
	res.Plan = plan

	prev, err := s.findEntitlement(ctx, user.ID)
	if err != nil {
		return res, err
	}
	if s.isStale(ev, prev) {
		log.WarnContext(ctx, "stale event skipped", slog.Time("stored_event_at", prev.EventAt))
		res.Stale = true
		return res, nil
	}

	now := s.clock.Now()
	customerID := sub.CustomerID
	if customerID == "" {
		customerID = user.ProviderCustomerID
	}
	ent := Entitlement{
		UserID:                 user.ID,
		PlanID:                 plan.ID,
		ExpiresAt:              cycleEnd,
		CycleStartedAt:         cycleStart,
		ProviderSubscriptionID: sub.ID,
		ProviderPriceID:        sub.PriceID(),
		ProviderCustomerID:     customerID,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		EventAt:                eventTime(ev, now),
		UpdatedAt:              now,
	}
	if err := s.store.UpsertEntitlement(ctx, ent); err != nil {
		return res, errors.Join(ErrStoreError, err)
	}
	res.AccessUpdated = true

	if shouldResetUsage(resetInput{
		source:         ev.Source,
		simulated:      ev.Simulated,
		access:         AccessEntitled,
		previous:       prev,
		planID:         plan.ID,
		subscriptionID: sub.ID,
		cycleStart:     cycleStart,
	}) {
		if err := s.store.ResetUsageForCycle(ctx, user.ID, *plan, cycleStart, cycleEnd); err != nil {
			return res, errors.Join(ErrStoreError, err)
		}
		res.UsageReset = true
	}

	log.InfoContext(ctx, "entitlement activated",
		logger.PlanID(plan.ID),
		slog.Time("expires_at", cycleEnd),
		slog.Bool("usage_reset", res.UsageReset),
	)

	s.notify(ctx, user, Notification{
		Kind:              NotificationActivated,
		PlanID:            plan.ID,
		PlanName:          plan.Name,
		ExpiresAt:         &cycleEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		UsageReset:        res.UsageReset,
		Source:            ev.Source,
	})

	return res, nil
}

// deactivate removes the entitlement and usage of user whatever subscription
// the stored row points at.
func (s *Service) deactivate(ctx context.Context, log *slog.Logger, ev Event, user *User, res Result) (Result, error) {
	prev, err := s.findEntitlement(ctx, user.ID)
	if err != nil {
		return res, err
	}
	if s.isStale(ev, prev) {
		log.WarnContext(ctx, "stale event skipped", slog.Time("stored_event_at", prev.EventAt))
		res.Stale = true
		return res, nil
	}

	if err := s.store.DeleteEntitlementAndUsage(ctx, user.ID); err != nil {
		return res, errors.Join(ErrStoreError, err)
	}
	res.AccessUpdated = true

	log.InfoContext(ctx, "entitlement revoked")
	s.notify(ctx, user, Notification{Kind: NotificationRevoked, Source: ev.Source})

	return res, nil
}

func (s *Service) findEntitlement(ctx context.Context, userID string) (*Entitlement, error) {
	ent, err := s.store.FindEntitlement(ctx, userID)
	if errors.Is(err, ErrEntitlementNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrStoreError, err)
	}
	return ent, nil
}

func (s *Service) isStale(ev Event, prev *Entitlement) bool {
	if !s.rejectStale || prev == nil || ev.OccurredAt.IsZero() || prev.EventAt.IsZero() {
		return false
	}
	return ev.OccurredAt.Before(prev.EventAt)
}

func (s *Service) notify(ctx context.Context, user *User, n Notification) {
	n.UserID = user.ID
	n.Email = user.Email
	if n.OccurredAt.IsZero() {
		n.OccurredAt = s.clock.Now()
	}
	if err := s.notifier.SendToUser(ctx, user.ID, n); err != nil {
		s.log.WarnContext(ctx, "notification failed",
			logger.UserID(user.ID),
			logger.Event(string(n.Kind)),
			logger.Error(err),
		)
	}
}

// observe logs failures and records the outcome of every reconciliation.
// It never changes the returned values.
func (s *Service) observe(ctx context.Context, ev Event, started time.Time, res *Result, err *error) {
	source := ev.Source
	if ev.Simulated {
		source = SourceSimulated
	}

	outcome := "noop"
	switch {
	case *err != nil:
		outcome = "error"
		s.log.ErrorContext(ctx, "reconciliation failed",
			logger.Source(string(source)),
			logger.EventID(ev.ID),
			logger.SubscriptionID(ev.SubscriptionID),
			logger.Duration(time.Since(started)),
			logger.Error(*err),
		)
	case res.Stale:
		outcome = "stale"
	case res.AccessUpdated && res.Plan != nil:
		outcome = "activated"
	case res.AccessUpdated:
		outcome = "revoked"
	}

	metrics.ReconcileTotal.WithLabelValues(string(source), outcome).Inc()
	if res.UsageReset {
		metrics.UsageResetsTotal.WithLabelValues(string(source)).Inc()
	}
}

func eventTime(ev Event, now time.Time) time.Time {
	if ev.OccurredAt.IsZero() {
		return now
	}
	return ev.OccurredAt.UTC()
}
