package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billinghttp "github.com/dmitrymomot/artshare/modules/billing"
	"github.com/dmitrymomot/artshare/pkg/environment"
	"github.com/dmitrymomot/artshare/pkg/httpserver"
	"github.com/dmitrymomot/artshare/pkg/jwt"
	"github.com/dmitrymomot/artshare/pkg/logger"
	"github.com/dmitrymomot/artshare/svc/checkout"
	"github.com/dmitrymomot/artshare/svc/entitlement"
	"github.com/dmitrymomot/artshare/svc/usage"
)

type checkoutFunc func(ctx context.Context, req checkout.Request) (*checkout.Session, error)

func (f checkoutFunc) Start(ctx context.Context, req checkout.Request) (*checkout.Session, error) {
	return f(ctx, req)
}

func TestRootCommand(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "plans", "version"}, names)

	plansCmd, _, err := root.Find([]string{"plans", "sync"})
	require.NoError(t, err)
	assert.Equal(t, "sync", plansCmd.Name())
	assert.NotNil(t, plansCmd.Flags().Lookup("file"))
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "artshare "+Version)
}

func TestMigrateCommand_RejectsUnknownDirection(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"migrate"}, {"migrate", "sideways"}, {"migrate", "up", "down"}} {
		root := newRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs(args)
		assert.Error(t, root.Execute(), "args %v", args)
	}
}

func TestAppConfig_Environment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, environment.Production, appConfig{Env: "prod"}.environment())
	assert.Equal(t, environment.Development, appConfig{}.environment())
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	log := newLogger(appConfig{Env: "production", LogLevel: "warn"})
	assert.False(t, log.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, log.Enabled(context.Background(), slog.LevelWarn))

	assert.Panics(t, func() { newLogger(appConfig{LogFormat: "xml"}) })
}

func newTestHandler(t *testing.T, checkErr error) (http.Handler, *jwt.Service) {
	t.Helper()

	tokens, err := jwt.New(jwt.Config{SigningKey: "test-signing-key", Issuer: "artshare"})
	require.NoError(t, err)

	store := entitlement.NewMemoryStore()
	log := logger.Discard()

	h := newHandler(routes{
		env: environment.Development,
		log: log,
		checks: map[string]httpserver.Check{
			"postgres": func(context.Context) error { return checkErr },
		},
		billing: billinghttp.RouterOptions{
			Checkout: checkoutFunc(func(context.Context, checkout.Request) (*checkout.Session, error) {
				return nil, errors.New("not used")
			}),
			Usage:        usage.NewService(store),
			Entitlements: store,
			Auth:         jwt.Middleware(tokens, jwt.BearerTokenExtractor),
			Logger:       log,
		},
		webhook: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})
	return h, tokens
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("failing check", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t, errors.New("down"))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, []any{"postgres"}, body["failed"])
	})
}

func TestHandler_Routes(t *testing.T) {
	t.Parallel()
	h, tokens := newTestHandler(t, nil)

	t.Run("metrics", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("billing requires a token", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/billing/entitlement", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("billing with a token", func(t *testing.T) {
		t.Parallel()
		token, err := tokens.Generate("u1", "u1@example.com", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/billing/entitlement", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"active":false`)
	})

	t.Run("webhook accepts POST only", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
