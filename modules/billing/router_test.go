package billing_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/artshare/modules/billing"
	"github.com/dmitrymomot/artshare/pkg/clock"
	"github.com/dmitrymomot/artshare/pkg/jwt"
	"github.com/dmitrymomot/artshare/pkg/logger"
	"github.com/dmitrymomot/artshare/pkg/ratelimit"
	"github.com/dmitrymomot/artshare/pkg/registry"
	"github.com/dmitrymomot/artshare/svc/checkout"
	"github.com/dmitrymomot/artshare/svc/entitlement"
	"github.com/dmitrymomot/artshare/svc/usage"
)

var (
	now   = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	start = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	basicPlan = entitlement.Plan{
		ID:                "basic",
		Name:              "Basic",
		ProviderProductID: "prod_basic",
		Quotas:            map[entitlement.Resource]int64{"uploads": 2, "blogs": entitlement.Unlimited},
	}
)

type MockCheckout struct {
	mock.Mock
}

func (m *MockCheckout) Start(ctx context.Context, req checkout.Request) (*checkout.Session, error) {
	args := m.Called(ctx, req)
	if s, ok := args.Get(0).(*checkout.Session); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type fixture struct {
	server   *httptest.Server
	store    *entitlement.MemoryStore
	checkout *MockCheckout
	registry *registry.Registry[entitlement.Notification]
	tokens   *jwt.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokens, err := jwt.New(jwt.Config{SigningKey: "billing-test-key", Issuer: "artshare"})
	require.NoError(t, err)

	store := entitlement.NewMemoryStore()
	store.AddUser(entitlement.User{ID: "u1", Email: "u1@example.com"})
	store.AddUser(entitlement.User{ID: "u2", Email: "u2@example.com"})
	store.PutPlans(basicPlan)

	clk := clock.NewMock(now)
	limiter, err := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(clk), 2, time.Minute, ratelimit.WithClock(clk))
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		checkout: &MockCheckout{},
		registry: registry.New[entitlement.Notification](4),
		tokens:   tokens,
	}
	r := billing.Router(billing.RouterOptions{
		Checkout:     f.checkout,
		Usage:        usage.NewService(store, usage.WithClock(clk)),
		Entitlements: store,
		Registry:     f.registry,
		Auth:         jwt.Middleware(tokens),
		StreamAuth:   jwt.Middleware(tokens, jwt.BearerTokenExtractor, jwt.QueryTokenExtractor("token")),
		CheckoutLimit: ratelimit.Middleware(limiter, ratelimit.ByUser,
			ratelimit.WithLogger(logger.Discard())),
		Logger: logger.Discard(),
		Clock:        clk,
	})
	f.server = httptest.NewServer(r)
	t.Cleanup(func() {
		f.server.Close()
		f.registry.Close()
		f.checkout.AssertExpectations(t)
	})
	return f
}

func (f *fixture) activate(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.UpsertEntitlement(ctx, entitlement.Entitlement{
		UserID:         userID,
		PlanID:         basicPlan.ID,
		ExpiresAt:      end,
		CycleStartedAt: start,
	}))
	require.NoError(t, f.store.ResetUsageForCycle(ctx, userID, basicPlan, start, end))
}

func (f *fixture) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := f.tokens.Generate(userID, userID+"@example.com", time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, userID, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+f.token(t, userID))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	t.Run("returns the session for the authenticated user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.checkout.On("Start", mock.Anything, checkout.Request{UserID: "u1", Email: "u1@example.com", PriceID: "price_basic"}).
			Return(&checkout.Session{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1", Kind: checkout.KindCheckout}, nil).Once()

		status, body := f.do(t, http.MethodPost, "/checkout", "u1", `{"price_id":"price_basic"}`)

		assert.Equal(t, http.StatusOK, status)
		data := body["data"].(map[string]any)
		assert.Equal(t, "cs_1", data["id"])
		assert.Equal(t, "checkout", data["kind"])
	})

	t.Run("email comes from the token only", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		status, body := f.do(t, http.MethodPost, "/checkout", "u1", `{"price_id":"price_basic","email":"victim@studio.test"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "bad_request", errorCode(body))
		f.checkout.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
	})

	tests := []struct {
		name       string
		body       string
		startErr   error
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{name: "missing price", body: `{}`, wantStatus: http.StatusUnprocessableEntity, wantCode: "validation_error"},
		{name: "malformed body", body: `{"price_id":`, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "invalid price", body: `{"price_id":"price_onetime"}`, startErr: checkout.ErrInvalidPrice, wantStatus: http.StatusBadRequest, wantCode: "bad_request", wantField: "price_id"},
		{name: "missing customer details", body: `{"price_id":"price_basic"}`, startErr: checkout.ErrMissingCustomerDetails, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "unknown user", body: `{"price_id":"price_basic"}`, startErr: checkout.ErrUserNotFound, wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "provider down", body: `{"price_id":"price_basic"}`, startErr: checkout.ErrProviderError, wantStatus: http.StatusBadGateway, wantCode: "bad_gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			if tt.startErr != nil {
				f.checkout.On("Start", mock.Anything, mock.Anything).Return(nil, tt.startErr).Once()
			}

			status, body := f.do(t, http.MethodPost, "/checkout", "u1", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, errorCode(body))
			if tt.wantField != "" {
				e, _ := body["error"].(map[string]any)
				details, _ := e["details"].(map[string]any)
				assert.Contains(t, details, tt.wantField)
			}
		})
	}

	t.Run("is rate limited per user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.checkout.On("Start", mock.Anything, mock.Anything).
			Return(&checkout.Session{ID: "cs_1", Kind: checkout.KindCheckout}, nil).Times(3)

		for range 2 {
			status, _ := f.do(t, http.MethodPost, "/checkout", "u1", `{"price_id":"price_basic"}`)
			require.Equal(t, http.StatusOK, status)
		}
		status, body := f.do(t, http.MethodPost, "/checkout", "u1", `{"price_id":"price_basic"}`)
		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, "too_many_requests", errorCode(body))

		status, _ = f.do(t, http.MethodPost, "/checkout", "u2", `{"price_id":"price_basic"}`)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("requires a token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		status, _ := f.do(t, http.MethodPost, "/checkout", "", `{"price_id":"price_basic"}`)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestEntitlement(t *testing.T) {
	t.Parallel()

	t.Run("active", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.activate(t, "u1")

		status, body := f.do(t, http.MethodGet, "/entitlement", "u1", "")
		require.Equal(t, http.StatusOK, status)
		data := body["data"].(map[string]any)
		assert.Equal(t, true, data["active"])
		assert.Equal(t, "basic", data["plan_id"])
		assert.Equal(t, "Basic", data["plan_name"])
		assert.Equal(t, "2025-04-01T00:00:00Z", data["expires_at"])
	})

	t.Run("none", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		status, body := f.do(t, http.MethodGet, "/entitlement", "u2", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{"active": false}, body["data"])
	})
}

func TestUsage(t *testing.T) {
	t.Parallel()

	t.Run("lists quotas", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.activate(t, "u1")

		status, body := f.do(t, http.MethodGet, "/usage", "u1", "")
		require.Equal(t, http.StatusOK, status)
		items := body["data"].([]any)
		require.Len(t, items, 2)
		assert.Equal(t, "blogs", items[0].(map[string]any)["resource"])
		assert.Equal(t, float64(entitlement.Unlimited), items[0].(map[string]any)["limit"])
	})

	t.Run("consume until the limit", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.activate(t, "u1")

		status, body := f.do(t, http.MethodPost, "/usage/uploads", "u1", `{"amount":2}`)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(2), body["data"].(map[string]any)["used"])

		status, body = f.do(t, http.MethodPost, "/usage/uploads", "u1", `{"amount":1}`)
		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, "limit_exceeded", errorCode(body))
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.activate(t, "u1")

		status, body := f.do(t, http.MethodPost, "/usage/videos", "u1", `{"amount":1}`)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "not_found", errorCode(body))

		status, _ = f.do(t, http.MethodPost, "/usage/uploads", "u1", `{"amount":0}`)
		assert.Equal(t, http.StatusUnprocessableEntity, status)

		status, body = f.do(t, http.MethodGet, "/usage", "u2", "")
		assert.Equal(t, http.StatusPaymentRequired, status)
		assert.Equal(t, "entitlement_required", errorCode(body))
	})
}

func TestEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/events?token="+f.token(t, "u1"), nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		t.Helper()
		for lines.Scan() {
			if line := lines.Text(); strings.HasPrefix(line, "data: signals ") {
				return line
			}
		}
		t.Fatal("stream ended")
		return ""
	}

	assert.Contains(t, next(), `"active":false`)

	require.Eventually(t, func() bool { return len(f.registry.Lookup("u1")) == 1 }, time.Second, 10*time.Millisecond)
	f.activate(t, "u1")
	f.registry.Send("u1", entitlement.Notification{Kind: entitlement.NotificationActivated, UserID: "u1", PlanID: "basic"})

	update := next()
	assert.Contains(t, update, `"active":true`)
	assert.Contains(t, update, `"kind":"entitlement.activated"`)

	cancel()
	assert.Eventually(t, func() bool { return len(f.registry.Lookup("u1")) == 0 }, time.Second, 10*time.Millisecond)
}

func TestEvents_RequiresEventStream(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	status, _ := f.do(t, http.MethodGet, "/events", "u1", "")
	assert.Equal(t, http.StatusNotAcceptable, status)
}
