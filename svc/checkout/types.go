package checkout

import (
	"context"
	"time"

	"github.com/dmitrymomot/artshare/svc/entitlement"
)

// Provider is the billing provider as seen by checkout.
type Provider interface {
	entitlement.Provider
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	ListCustomersByEmail(ctx context.Context, email string) ([]string, error)
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error)
	CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*Session, error)
}

// Store is the storage checkout reads and writes.
type Store interface {
	FindUserByProviderData(ctx context.Context, customerID, userID string) (*entitlement.User, error)
	UpdateUserCustomerID(ctx context.Context, userID, customerID string) error
	FindEntitlement(ctx context.Context, userID string) (*entitlement.Entitlement, error)
}

// Reconciler applies simulated activations.
type Reconciler interface {
	Reconcile(ctx context.Context, ev entitlement.Event) (entitlement.Result, error)
}

// Request asks for a billing session. Either UserID or Email must be set.
type Request struct {
	UserID  string
	Email   string
	PriceID string
}

// SessionKind tells the client where the session URL leads.
type SessionKind string

const (
	KindCheckout SessionKind = "checkout"
	KindPortal   SessionKind = "portal"
)

// Session is a provider-hosted page the client is redirected to.
type Session struct {
	ID        string      `json:"id"`
	URL       string      `json:"url"`
	Kind      SessionKind `json:"kind"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// CheckoutParams describes a subscription checkout.
type CheckoutParams struct {
	CustomerID string
	UserID     string
	PriceID    string
	SuccessURL string
	CancelURL  string
}
