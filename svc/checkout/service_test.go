package checkout_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/artshare/pkg/clock"
	"github.com/dmitrymomot/artshare/pkg/environment"
	"github.com/dmitrymomot/artshare/pkg/logger"
	"github.com/dmitrymomot/artshare/pkg/metrics"
	"github.com/dmitrymomot/artshare/svc/checkout"
	"github.com/dmitrymomot/artshare/svc/entitlement"
)

var now = time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

var cfg = checkout.Config{
	SuccessURL:      "https://art.example.com/billing/success",
	CancelURL:       "https://art.example.com/billing/cancel",
	PortalReturnURL: "https://art.example.com/settings",
	SimulationDelay: 3 * time.Second,
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) RetrieveSubscription(ctx context.Context, id string) (*entitlement.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Subscription), args.Error(1)
}

func (m *MockProvider) RetrievePrice(ctx context.Context, id string) (*entitlement.Price, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Price), args.Error(1)
}

func (m *MockProvider) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	args := m.Called(ctx, email, userID)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) ListCustomersByEmail(ctx context.Context, email string) ([]string, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, p checkout.CheckoutParams) (*checkout.Session, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Session), args.Error(1)
}

func (m *MockProvider) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*checkout.Session, error) {
	args := m.Called(ctx, customerID, returnURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Session), args.Error(1)
}

type recordingReconciler struct {
	events []entitlement.Event
	err    error
	noop   bool
}

func (r *recordingReconciler) Reconcile(_ context.Context, ev entitlement.Event) (entitlement.Result, error) {
	r.events = append(r.events, ev)
	return entitlement.Result{AccessUpdated: !r.noop}, r.err
}

var monthly = &entitlement.Price{ID: "price_basic", ProductID: "prod_basic", Recurring: true, Interval: entitlement.IntervalMonth}

func newStore(t *testing.T, u entitlement.User) *entitlement.MemoryStore {
	t.Helper()
	store := entitlement.NewMemoryStore()
	store.AddUser(u)
	return store
}

func newService(store checkout.Store, p checkout.Provider, opts ...checkout.Option) *checkout.Service {
	opts = append([]checkout.Option{
		checkout.WithLogger(logger.Discard()),
		checkout.WithClock(clock.NewMock(now)),
	}, opts...)
	return checkout.NewService(cfg, store, p, opts...)
}

func TestStart_Checkout(t *testing.T) {
	t.Parallel()

	t.Run("creates customer and checkout session", func(t *testing.T) {
		t.Parallel()

		store := newStore(t, entitlement.User{ID: "u1", Email: "u1@example.com"})
		p := &MockProvider{}
		p.On("ListCustomersByEmail", mock.Anything, "u1@example.com").Return([]string{}, nil)
		p.On("CreateCustomer", mock.Anything, "u1@example.com", "u1").Return("cus_new", nil)
		p.On("RetrievePrice", mock.Anything, "price_basic").Return(monthly, nil)
		p.On("CreateCheckoutSession", mock.Anything, checkout.CheckoutParams{
			CustomerID: "cus_new",
			UserID:     "u1",
			PriceID:    "price_basic",
			SuccessURL: cfg.SuccessURL,
			CancelURL:  cfg.CancelURL,
		}).Return(&checkout.Session{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}, nil)

		sess, err := newService(store, p).Start(context.Background(), checkout.Request{UserID: "u1", PriceID: "price_basic"})
		require.NoError(t, err)
		assert.Equal(t, checkout.KindCheckout, sess.Kind)
		assert.Equal(t, "cs_1", sess.ID)

		u, err := store.FindUserByProviderData(context.Background(), "cus_new", "")
		require.NoError(t, err)
		assert.Equal(t, "u1", u.ID)
		p.AssertExpectations(t)
	})

	t.Run("reuses customer found by email", func(t *testing.T) {
		t.Parallel()

		store := newStore(t, entitlement.User{ID: "u1"})
		p := &MockProvider{}
		p.On("ListCustomersByEmail", mock.Anything, "other@example.com").Return([]string{"cus_old"}, nil)
		p.On("RetrievePrice", mock.Anything, "price_basic").Return(monthly, nil)
		p.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(cp checkout.CheckoutParams) bool {
			return cp.CustomerID == "cus_old"
		})).Return(&checkout.Session{ID: "cs_2"}, nil)

		_, err := newService(store, p).Start(context.Background(), checkout.Request{
			UserID: "u1", Email: "other@example.com", PriceID: "price_basic",
		})
		require.NoError(t, err)
		p.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stored email wins over request email", func(t *testing.T) {
		t.Parallel()

		store := newStore(t, entitlement.User{ID: "u1", Email: "u1@example.com"})
		p := &MockProvider{}
		p.On("ListCustomersByEmail", mock.Anything, "u1@example.com").Return([]string{"cus_own"}, nil)
		p.On("RetrievePrice", mock.Anything, "price_basic").Return(monthly, nil)
		p.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(cp checkout.CheckoutParams) bool {
			return cp.CustomerID == "cus_own"
		})).Return(&checkout.Session{ID: "cs_own"}, nil)

		_, err := newService(store, p).Start(context.Background(), checkout.Request{
			UserID: "u1", Email: "victim@example.com", PriceID: "price_basic",
		})
		require.NoError(t, err)
		p.AssertNotCalled(t, "ListCustomersByEmail", mock.Anything, "victim@example.com")
		p.AssertExpectations(t)
	})

	t.Run("stored customer id skips lookup", func(t *testing.T) {
		t.Parallel()

		store := newStore(t, entitlement.User{ID: "u1", ProviderCustomerID: "cus_1"})
		p := &MockProvider{}
		p.On("RetrievePrice", mock.Anything, "price_basic").Return(monthly, nil)
		p.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(&checkout.Session{ID: "cs_3"}, nil)

		_, err := newService(store, p).Start(context.Background(), checkout.Request{UserID: "u1", PriceID: "price_basic"})
		require.NoError(t, err)
		p.AssertNotCalled(t, "ListCustomersByEmail", mock.Anything, mock.Anything)
	})

	t.Run("cancel pending entitlement gets checkout", func(t *testing.T) {
		t.Parallel()

		store := newStore(t, entitlement.User{ID: "u1", ProviderCustomerID: "cus_1"})
		require.NoError(t, store.UpsertEntitlement(context.Background(), entitlement.Entitlement{
			UserID: "u1", PlanID: "basic", ExpiresAt: now.AddDate(0, 0, 10), CancelAtPeriodEnd: true,
		}))
		p := &MockProvider{}
		p.On("RetrievePrice", mock.Anything, "price_basic").Return(monthly, nil)
		p.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(&checkout.Session{ID: "cs_4"}, nil)

		sess, err := newService(store, p).Start(context.Background(), checkout.Request{UserID: "u1", PriceID: "price_basic"})
		require.NoError(t, err)
		assert.Equal(t, checkout.KindCheckout, sess.Kind)
	})
}

func TestStart_Portal(t *testing.T) {
	t.Parallel()

	t.Run("active user", func(t *testing.T) {
		t.Parallel()

		store := newStore(t, entitlement.User{ID: "u1", ProviderCustomerID: "cus_1"})
		require.NoError(t, store.UpsertEntitlement(context.Background(), entitlement.Entitlement{
			UserID: "u1", PlanID: "basic", ExpiresAt: now.AddDate(0, 0, 10),
		}))
		p := &MockProvider{}
		p.On("CreateBillingPortalSession", mock.Anything, "cus_1", cfg.PortalReturnURL).
			Return(&checkout.Session{ID: "bps_1", URL: "https://billing.stripe.com/p/1"}, nil)

		sess, err := newService(store, p).Start(context.Background(), checkout.Request{UserID: "u1", PriceID: "price_pro"})
		require.NoError(t, err)
		assert.Equal(t, checkout.KindPortal, sess.Kind)
		p.AssertNotCalled(t, "RetrievePrice", mock.Anything, mock.Anything)
	})

	t.Run("email only request reaches the entitlement check", func(t *testing.T) {
		t.Parallel()

		store := newStore(t, entitlement.User{ID: "u1", Email: "u1@example.com", ProviderCustomerID: "cus_1"})
		require.NoError(t, store.UpsertEntitlement(context.Background(), entitlement.Entitlement{
			UserID: "u1", PlanID: "basic", ExpiresAt: now.AddDate(0, 0, 10),
		}))
		p := &MockProvider{}
		p.On("ListCustomersByEmail", mock.Anything, "u1@example.com").Return([]string{"cus_1"}, nil)
		p.On("CreateBillingPortalSession", mock.Anything, "cus_1", cfg.PortalReturnURL).
			Return(&checkout.Session{ID: "bps_2"}, nil)

		sess, err := newService(store, p).Start(context.Background(), checkout.Request{Email: "u1@example.com", PriceID: "price_pro"})
		require.NoError(t, err)
		assert.Equal(t, checkout.KindPortal, sess.Kind)
		p.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
		p.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("email only request for unknown customer gets checkout", func(t *testing.T) {
		t.Parallel()

		p := &MockProvider{}
		p.On("ListCustomersByEmail", mock.Anything, "new@example.com").Return([]string{}, nil)
		p.On("CreateCustomer", mock.Anything, "new@example.com", "").Return("cus_new", nil)
		p.On("RetrievePrice", mock.Anything, "price_basic").Return(monthly, nil)
		p.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(&checkout.Session{ID: "cs_5"}, nil)

		sess, err := newService(entitlement.NewMemoryStore(), p).Start(context.Background(), checkout.Request{Email: "new@example.com", PriceID: "price_basic"})
		require.NoError(t, err)
		assert.Equal(t, checkout.KindCheckout, sess.Kind)
		p.AssertExpectations(t)
	})
}

func TestStart_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing details", func(t *testing.T) {
		t.Parallel()
		_, err := newService(entitlement.NewMemoryStore(), &MockProvider{}).Start(context.Background(), checkout.Request{PriceID: "price_basic"})
		assert.ErrorIs(t, err, checkout.ErrMissingCustomerDetails)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()
		_, err := newService(entitlement.NewMemoryStore(), &MockProvider{}).Start(context.Background(), checkout.Request{UserID: "ghost"})
		assert.ErrorIs(t, err, checkout.ErrUserNotFound)
	})

	t.Run("price lookup fails", func(t *testing.T) {
		t.Parallel()
		p := &MockProvider{}
		p.On("RetrievePrice", mock.Anything, "price_bad").Return(nil, errors.New("no such price"))

		_, err := newService(newStore(t, entitlement.User{ID: "u1", ProviderCustomerID: "cus_1"}), p).
			Start(context.Background(), checkout.Request{UserID: "u1", PriceID: "price_bad"})
		assert.ErrorIs(t, err, checkout.ErrInvalidPrice)
	})

	t.Run("one-time price", func(t *testing.T) {
		t.Parallel()
		p := &MockProvider{}
		p.On("RetrievePrice", mock.Anything, "price_once").Return(&entitlement.Price{ID: "price_once", ProductID: "prod_x"}, nil)

		_, err := newService(newStore(t, entitlement.User{ID: "u1", ProviderCustomerID: "cus_1"}), p).
			Start(context.Background(), checkout.Request{UserID: "u1", PriceID: "price_once"})
		assert.ErrorIs(t, err, checkout.ErrInvalidPrice)
	})

	t.Run("empty price", func(t *testing.T) {
		t.Parallel()
		_, err := newService(newStore(t, entitlement.User{ID: "u1", ProviderCustomerID: "cus_1"}), &MockProvider{}).
			Start(context.Background(), checkout.Request{UserID: "u1"})
		assert.ErrorIs(t, err, checkout.ErrInvalidPrice)
	})
}

func TestStart_Simulation(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T, env environment.Environment, r *recordingReconciler) (*checkout.Service, *[]time.Duration) {
		t.Helper()
		p := &MockProvider{}
		p.On("RetrievePrice", mock.Anything, "price_basic").Return(monthly, nil)
		p.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(&checkout.Session{ID: "cs_sim"}, nil)

		svc := newService(newStore(t, entitlement.User{ID: "u1", ProviderCustomerID: "cus_1"}), p,
			checkout.WithSimulation(env, r))
		delays := &[]time.Duration{}
		svc.RunTimersImmediately(delays)
		return svc, delays
	}

	t.Run("development reconciles a synthetic subscription", func(t *testing.T) {
		t.Parallel()

		r := &recordingReconciler{}
		svc, delays := setup(t, environment.Development, r)

		_, err := svc.Start(context.Background(), checkout.Request{UserID: "u1", PriceID: "price_basic"})
		require.NoError(t, err)
		require.Len(t, r.events, 1)

		ev := r.events[0]
		assert.True(t, ev.Simulated)
		assert.Equal(t, "price_basic", ev.SimulatedPriceID)
		assert.Equal(t, "u1", ev.UserRef)
		assert.Equal(t, "cus_1", ev.CustomerID)
		assert.True(t, strings.HasPrefix(ev.SubscriptionID, entitlement.SimulatedSubscriptionPrefix))
		assert.Equal(t, []time.Duration{cfg.SimulationDelay}, *delays)
	})

	t.Run("failure never reaches the caller", func(t *testing.T) {
		t.Parallel()

		r := &recordingReconciler{err: errors.New("plan missing")}
		svc, _ := setup(t, environment.Staging, r)

		sess, err := svc.Start(context.Background(), checkout.Request{UserID: "u1", PriceID: "price_basic"})
		require.NoError(t, err)
		assert.Equal(t, "cs_sim", sess.ID)
		assert.Len(t, r.events, 1)
	})

	t.Run("no-op activation is counted separately", func(t *testing.T) {
		t.Parallel()

		noop := testutil.ToFloat64(metrics.SimulationsTotal.WithLabelValues("noop"))

		r := &recordingReconciler{noop: true}
		svc, _ := setup(t, environment.Development, r)

		_, err := svc.Start(context.Background(), checkout.Request{UserID: "u1", PriceID: "price_basic"})
		require.NoError(t, err)
		require.Len(t, r.events, 1)
		assert.Equal(t, noop+1, testutil.ToFloat64(metrics.SimulationsTotal.WithLabelValues("noop")))
	})

	t.Run("production never simulates", func(t *testing.T) {
		t.Parallel()

		r := &recordingReconciler{}
		svc, delays := setup(t, environment.Production, r)

		_, err := svc.Start(context.Background(), checkout.Request{UserID: "u1", PriceID: "price_basic"})
		require.NoError(t, err)
		assert.Empty(t, r.events)
		assert.Empty(t, *delays)
	})
}
