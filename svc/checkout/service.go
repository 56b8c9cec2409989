package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/artshare/pkg/clock"
	"github.com/dmitrymomot/artshare/pkg/environment"
	"github.com/dmitrymomot/artshare/pkg/logger"
	"github.com/dmitrymomot/artshare/pkg/metrics"
	"github.com/dmitrymomot/artshare/svc/entitlement"
)

const simulationTimeout = 30 * time.Second

// Service creates checkout and portal sessions.
type Service struct {
	cfg        Config
	store      Store
	provider   Provider
	reconciler Reconciler
	clock      clock.Clock
	log        *slog.Logger

	simulate  bool
	afterFunc func(d time.Duration, f func())
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSimulation enables simulated activations through r. It is ignored in
// production.
func WithSimulation(env environment.Environment, r Reconciler) Option {
	return func(s *Service) {
		if r == nil || env.IsProduction() {
			return
		}
		s.simulate = true
		s.reconciler = r
	}
}

// NewService creates a Service. Panics if store or provider is nil.
func NewService(cfg Config, store Store, provider Provider, opts ...Option) *Service {
	if store == nil {
		panic("checkout: store is required")
	}
	if provider == nil {
		panic("checkout: provider is required")
	}

	s := &Service{
		cfg:      cfg,
		store:    store,
		provider: provider,
		clock:    clock.System{},
		log:      slog.Default(),
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("checkout"))

	return s
}

// Start returns a portal session for users with an active entitlement and a
// checkout session for everyone else.
func (s *Service) Start(ctx context.Context, req Request) (*Session, error) {
	if req.Email == "" && req.UserID == "" {
		return nil, ErrMissingCustomerDetails
	}

	var user *entitlement.User
	if req.UserID != "" {
		u, err := s.store.FindUserByProviderData(ctx, "", req.UserID)
		if errors.Is(err, entitlement.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		if err != nil {
			return nil, errors.Join(ErrStoreError, err)
		}
		user = u
	}

	// A known user is matched to provider customers by the stored email only.
	email := req.Email
	if user != nil && user.Email != "" {
		email = user.Email
	}

	customerID, err := s.resolveCustomer(ctx, user, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if user, err = s.userByCustomer(ctx, customerID); err != nil {
			return nil, err
		}
	}
	userID := req.UserID
	if user != nil {
		userID = user.ID
	}
	log := s.log.With(logger.CustomerID(customerID), logger.UserID(userID))

	if user != nil {
		active, err := s.hasActiveEntitlement(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if active {
			sess, err := s.provider.CreateBillingPortalSession(ctx, customerID, s.cfg.PortalReturnURL)
			if err != nil {
				return nil, errors.Join(ErrProviderError, err)
			}
			sess.Kind = KindPortal
			metrics.CheckoutSessionsTotal.WithLabelValues(string(KindPortal)).Inc()
			log.InfoContext(ctx, "portal session created")
			return sess, nil
		}
	}

	if err := s.validatePrice(ctx, req.PriceID); err != nil {
		return nil, err
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID: customerID,
		UserID:     userID,
		PriceID:    req.PriceID,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}
	sess.Kind = KindCheckout
	metrics.CheckoutSessionsTotal.WithLabelValues(string(KindCheckout)).Inc()
	log.InfoContext(ctx, "checkout session created", logger.PriceID(req.PriceID))

	if s.simulate {
		s.scheduleSimulation(customerID, userID, req.PriceID)
	}

	return sess, nil
}

// resolveCustomer returns the user's stored customer id, an existing
// customer with the same email, or a newly created one. The result is
// saved on the user.
func (s *Service) resolveCustomer(ctx context.Context, user *entitlement.User, email string) (string, error) {
	if user != nil && user.ProviderCustomerID != "" {
		return user.ProviderCustomerID, nil
	}
	if email == "" {
		return "", ErrMissingCustomerDetails
	}

	ids, err := s.provider.ListCustomersByEmail(ctx, email)
	if err != nil {
		return "", errors.Join(ErrProviderError, err)
	}

	var customerID string
	if len(ids) > 0 {
		customerID = ids[0]
	} else {
		userID := ""
		if user != nil {
			userID = user.ID
		}
		customerID, err = s.provider.CreateCustomer(ctx, email, userID)
		if err != nil {
			return "", errors.Join(ErrProviderError, err)
		}
	}

	if user != nil {
		if err := s.store.UpdateUserCustomerID(ctx, user.ID, customerID); err != nil {
			return "", errors.Join(ErrStoreError, err)
		}
		user.ProviderCustomerID = customerID
	}
	return customerID, nil
}

// userByCustomer finds the user already linked to customerID. Email-only
// requests use it to reach the entitlement check.
func (s *Service) userByCustomer(ctx context.Context, customerID string) (*entitlement.User, error) {
	u, err := s.store.FindUserByProviderData(ctx, customerID, "")
	if errors.Is(err, entitlement.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrStoreError, err)
	}
	return u, nil
}

func (s *Service) hasActiveEntitlement(ctx context.Context, userID string) (bool, error) {
	ent, err := s.store.FindEntitlement(ctx, userID)
	if errors.Is(err, entitlement.ErrEntitlementNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Join(ErrStoreError, err)
	}
	return ent.IsActive(s.clock.Now()) && !ent.CancelAtPeriodEnd, nil
}

func (s *Service) validatePrice(ctx context.Context, priceID string) error {
	if priceID == "" {
		return ErrInvalidPrice
	}
	price, err := s.provider.RetrievePrice(ctx, priceID)
	if err != nil {
		return errors.Join(ErrInvalidPrice, err)
	}
	if !price.Recurring {
		return ErrInvalidPrice
	}
	return nil
}

// scheduleSimulation reconciles a synthetic subscription for priceID after
// the configured delay. It runs detached from the request: failures are
// logged and counted, never returned.
func (s *Service) scheduleSimulation(customerID, userID, priceID string) {
	subID := entitlement.SimulatedSubscriptionPrefix + uuid.NewString()
	metrics.SimulationsTotal.WithLabelValues("scheduled").Inc()

	s.afterFunc(s.cfg.SimulationDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), simulationTimeout)
		defer cancel()

		res, err := s.reconciler.Reconcile(ctx, entitlement.Event{
			Source:           entitlement.SourceSimulated,
			ID:               "evt_sim_" + uuid.NewString(),
			CustomerID:       customerID,
			SubscriptionID:   subID,
			UserRef:          userID,
			OccurredAt:       s.clock.Now(),
			Simulated:        true,
			SimulatedPriceID: priceID,
		})
		if err != nil {
			metrics.SimulationsTotal.WithLabelValues("failed").Inc()
			s.log.ErrorContext(ctx, "simulated activation failed",
				logger.SubscriptionID(subID),
				logger.PriceID(priceID),
				logger.Error(err),
			)
			return
		}
		if !res.AccessUpdated {
			metrics.SimulationsTotal.WithLabelValues("noop").Inc()
			s.log.WarnContext(ctx, "simulated activation changed nothing", logger.SubscriptionID(subID))
			return
		}
		metrics.SimulationsTotal.WithLabelValues("succeeded").Inc()
		s.log.InfoContext(ctx, "simulated activation applied", logger.SubscriptionID(subID))
	})
}
