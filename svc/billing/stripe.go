package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/subscription"

	"github.com/dmitrymomot/artshare/svc/checkout"
	"github.com/dmitrymomot/artshare/svc/entitlement"
)

type customerIterator interface {
	Next() bool
	Customer() *stripe.Customer
	Err() error
}

// StripeProvider talks to the Stripe API. It holds no business logic.
type StripeProvider struct {
	getSubscription       func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	getPrice              func(id string, params *stripe.PriceParams) (*stripe.Price, error)
	createCustomer        func(params *stripe.CustomerParams) (*stripe.Customer, error)
	listCustomers         func(params *stripe.CustomerListParams) customerIterator
	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	createPortalSession   func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

var (
	_ entitlement.Provider = (*StripeProvider)(nil)
	_ checkout.Provider    = (*StripeProvider)(nil)
)

// NewStripeProvider sets the global Stripe key and returns a provider.
func NewStripeProvider(cfg Config) *StripeProvider {
	stripe.Key = strings.TrimSpace(cfg.SecretKey)

	return &StripeProvider{
		getSubscription: subscription.Get,
		getPrice:        price.Get,
		createCustomer:  customer.New,
		listCustomers: func(params *stripe.CustomerListParams) customerIterator {
			return customer.List(params)
		},
		createCheckoutSession: stripesession.New,
		createPortalSession:   portalsession.New,
	}
}

// RetrieveSubscription fetches a subscription with its latest invoice, which
// carries the fallback billing period.
func (p *StripeProvider) RetrieveSubscription(ctx context.Context, id string) (*entitlement.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("latest_invoice")

	sub, err := p.getSubscription(id, params)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrEmptyResponse
	}
	return toSubscription(sub), nil
}

func (p *StripeProvider) RetrievePrice(ctx context.Context, id string) (*entitlement.Price, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx

	pr, err := p.getPrice(id, params)
	if err != nil {
		return nil, err
	}
	if pr == nil {
		return nil, ErrEmptyResponse
	}
	return toPrice(pr), nil
}

// CreateCustomer creates a customer tagged with the internal user id.
func (p *StripeProvider) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	if userID != "" {
		params.AddMetadata(entitlement.UserRefMetadataKey, userID)
	}

	c, err := p.createCustomer(params)
	if err != nil {
		return "", err
	}
	if c == nil || c.ID == "" {
		return "", ErrEmptyResponse
	}
	return c.ID, nil
}

// ListCustomersByEmail returns the ids of customers registered with email.
func (p *StripeProvider) ListCustomersByEmail(ctx context.Context, email string) ([]string, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(10)

	it := p.listCustomers(params)
	var ids []string
	for it.Next() {
		if c := it.Customer(); c != nil && c.ID != "" {
			ids = append(ids, c.ID)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// CreateCheckoutSession starts a subscription checkout. The user id travels
// as client reference and in the subscription metadata so that later events
// resolve the user even before the customer id is linked.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, cp checkout.CheckoutParams) (*checkout.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(cp.CustomerID),
		SuccessURL: stripe.String(cp.SuccessURL),
		CancelURL:  stripe.String(cp.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(cp.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	if cp.UserID != "" {
		params.ClientReferenceID = stripe.String(cp.UserID)
		params.AddMetadata(entitlement.UserRefMetadataKey, cp.UserID)
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{entitlement.UserRefMetadataKey: cp.UserID},
		}
	}

	sess, err := p.createCheckoutSession(params)
	if err != nil {
		return nil, err
	}
	if sess == nil || strings.TrimSpace(sess.URL) == "" {
		return nil, ErrEmptyResponse
	}

	out := &checkout.Session{ID: sess.ID, URL: sess.URL}
	if sess.ExpiresAt > 0 {
		exp := time.Unix(sess.ExpiresAt, 0).UTC()
		out.ExpiresAt = &exp
	}
	return out, nil
}

func (p *StripeProvider) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*checkout.Session, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := p.createPortalSession(params)
	if err != nil {
		return nil, err
	}
	if sess == nil || strings.TrimSpace(sess.URL) == "" {
		return nil, ErrEmptyResponse
	}
	return &checkout.Session{ID: sess.ID, URL: sess.URL}, nil
}

func toSubscription(s *stripe.Subscription) *entitlement.Subscription {
	out := &entitlement.Subscription{
		ID:                s.ID,
		Status:            entitlement.Status(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}

	if s.Items != nil {
		for _, it := range s.Items.Data {
			if it == nil || it.Price == nil {
				continue
			}
			item := entitlement.SubscriptionItem{PriceID: it.Price.ID}
			if it.Price.Product != nil {
				item.ProductID = it.Price.Product.ID
			}
			out.Items = append(out.Items, item)

			// The billing period lives on the items; the first one wins.
			if out.CurrentPeriodStart == nil && it.CurrentPeriodStart > 0 && it.CurrentPeriodEnd > 0 {
				start := time.Unix(it.CurrentPeriodStart, 0).UTC()
				end := time.Unix(it.CurrentPeriodEnd, 0).UTC()
				out.CurrentPeriodStart, out.CurrentPeriodEnd = &start, &end
			}
		}
	}

	if s.LatestInvoice != nil {
		out.LatestInvoice = toInvoice(s.LatestInvoice)
	}
	return out
}

func toInvoice(inv *stripe.Invoice) *entitlement.Invoice {
	out := &entitlement.Invoice{ID: inv.ID}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		details := inv.Parent.SubscriptionDetails
		if details.Subscription != nil {
			out.SubscriptionID = details.Subscription.ID
		}
		out.UserRef = details.Metadata[entitlement.UserRefMetadataKey]
	}
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line == nil || line.Period == nil {
				continue
			}
			out.Lines = append(out.Lines, entitlement.InvoiceLine{
				PeriodStart: unixTime(line.Period.Start),
				PeriodEnd:   unixTime(line.Period.End),
			})
		}
	}
	return out
}

func toPrice(p *stripe.Price) *entitlement.Price {
	out := &entitlement.Price{ID: p.ID}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		out.Recurring = true
		out.Interval = entitlement.Interval(p.Recurring.Interval)
		out.IntervalCount = p.Recurring.IntervalCount
	}
	return out
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// IsNotFound reports whether err is a Stripe resource_missing error.
func IsNotFound(err error) bool {
	var serr *stripe.Error
	return errors.As(err, &serr) && serr.Code == stripe.ErrorCodeResourceMissing
}
