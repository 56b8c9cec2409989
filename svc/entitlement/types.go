package entitlement

import "time"

// Resource names a metered quota, e.g. "uploads" or "storage_mb".
type Resource string

// Unlimited marks a quota without an upper bound.
const Unlimited int64 = -1

// Plan maps one provider product to an internal plan and its quotas.
type Plan struct {
	ID                string             `json:"id" yaml:"id"`
	Name              string             `json:"name" yaml:"name"`
	ProviderProductID string             `json:"provider_product_id" yaml:"provider_product_id"`
	Quotas            map[Resource]int64 `json:"quotas" yaml:"quotas"`
}

// User is the part of the identity record the billing code reads.
type User struct {
	ID                 string
	Email              string
	ProviderCustomerID string
}

// Entitlement is the current paid-access grant of a user.
// There is at most one per user.
type Entitlement struct {
	UserID                 string    `json:"user_id"`
	PlanID                 string    `json:"plan_id"`
	ExpiresAt              time.Time `json:"expires_at"`
	CycleStartedAt         time.Time `json:"cycle_started_at"`
	ProviderSubscriptionID string    `json:"provider_subscription_id"`
	ProviderPriceID        string    `json:"provider_price_id"`
	ProviderCustomerID     string    `json:"provider_customer_id"`
	CancelAtPeriodEnd      bool      `json:"cancel_at_period_end"`
	// EventAt is the provider timestamp of the event that produced this row.
	EventAt   time.Time `json:"event_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the entitlement grants access at now.
func (e *Entitlement) IsActive(now time.Time) bool {
	return e != nil && e.ExpiresAt.After(now)
}

// UsageCounter is one metered resource of a user inside a billing cycle.
type UsageCounter struct {
	UserID     string    `json:"user_id"`
	PlanID     string    `json:"plan_id"`
	Resource   Resource  `json:"resource"`
	Used       int64     `json:"used"`
	CycleStart time.Time `json:"cycle_start"`
	CycleEnd   time.Time `json:"cycle_end"`
}

// Status is the provider-reported subscription status.
type Status string

const (
	StatusActive            Status = "active"
	StatusTrialing          Status = "trialing"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusPastDue           Status = "past_due"
	StatusPaused            Status = "paused"
)

// Interval is a recurring price interval.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// SubscriptionItem is one priced line of a subscription.
type SubscriptionItem struct {
	PriceID   string
	ProductID string
}

// Subscription is the canonical subscription object as returned by the provider.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             Status
	CancelAtPeriodEnd  bool
	Items              []SubscriptionItem
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	LatestInvoice      *Invoice
	Metadata           map[string]string
}

// PriceID returns the price of the first item.
func (s *Subscription) PriceID() string {
	if s == nil || len(s.Items) == 0 {
		return ""
	}
	return s.Items[0].PriceID
}

// ProductID returns the product of the first item.
func (s *Subscription) ProductID() string {
	if s == nil || len(s.Items) == 0 {
		return ""
	}
	return s.Items[0].ProductID
}

// InvoiceLine carries the service period billed by one invoice line.
type InvoiceLine struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Invoice is the subset of a provider invoice used for renewals and period fallback.
type Invoice struct {
	ID             string
	SubscriptionID string
	CustomerID     string
	UserRef        string
	Lines          []InvoiceLine
}

// Price is a provider price.
type Price struct {
	ID            string
	ProductID     string
	Recurring     bool
	Interval      Interval
	IntervalCount int64
}

// Source tells which notification triggered a reconciliation.
type Source string

const (
	SourceCheckoutCompleted   Source = "checkout_completed"
	SourceInvoicePaid         Source = "invoice_paid"
	SourceSubscriptionUpdated Source = "subscription_updated"
	SourceSubscriptionDeleted Source = "subscription_deleted"
	SourceSimulated           Source = "simulated"
)

// Event is a normalized provider notification or a simulated activation.
type Event struct {
	Source Source
	// ID is the provider event id, used for logging and deduplication.
	ID             string
	CustomerID     string
	SubscriptionID string
	// UserRef is the internal user id carried in checkout metadata or the
	// client reference.
	UserRef string
	// Status overrides the default "active" status of a simulated activation.
	Status     Status
	OccurredAt time.Time

	Simulated        bool
	SimulatedPriceID string
}

// Delivery describes the provider notification that carried an invoice or
// subscription to one of the wrappers.
type Delivery struct {
	EventID    string
	OccurredAt time.Time
}

// Result reports what a reconciliation did.
// AccessUpdated false with a nil error means the event was a no-op.
type Result struct {
	User          *User
	Plan          *Plan
	Subscription  *Subscription
	AccessUpdated bool
	UsageReset    bool
	// Stale is set when the event was older than the stored entitlement and
	// stale-event rejection is enabled.
	Stale bool
}
