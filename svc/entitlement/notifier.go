package entitlement

import (
	"context"
	"time"
)

// NotificationKind names the entitlement change being announced.
type NotificationKind string

const (
	NotificationActivated NotificationKind = "entitlement.activated"
	NotificationRevoked   NotificationKind = "entitlement.revoked"
)

// Notification describes an entitlement change for one user.
type Notification struct {
	Kind              NotificationKind `json:"kind"`
	UserID            string           `json:"user_id"`
	Email             string           `json:"-"`
	PlanID            string           `json:"plan_id,omitempty"`
	PlanName          string           `json:"plan_name,omitempty"`
	ExpiresAt         *time.Time       `json:"expires_at,omitempty"`
	CancelAtPeriodEnd bool             `json:"cancel_at_period_end,omitempty"`
	UsageReset        bool             `json:"usage_reset,omitempty"`
	Source            Source           `json:"source"`
	OccurredAt        time.Time        `json:"occurred_at"`
}

// Notifier delivers entitlement changes to a user. Delivery is best effort:
// the reconciliation outcome does not depend on it.
type Notifier interface {
	SendToUser(ctx context.Context, userID string, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID string, n Notification) error

func (f NotifierFunc) SendToUser(ctx context.Context, userID string, n Notification) error {
	return f(ctx, userID, n)
}

type noopNotifier struct{}

func (noopNotifier) SendToUser(context.Context, string, Notification) error { return nil }
