package entitlement

import (
	"context"
	"time"
)

// Store persists users' billing links, entitlements and usage counters.
//
// Lookups return ErrUserNotFound, ErrPlanNotFound or ErrEntitlementNotFound
// when nothing matches. UpsertEntitlement must be atomic per user id, and
// DeleteEntitlementAndUsage must remove both in one transaction.
type Store interface {
	// FindUserByProviderData looks up by customer id first and falls back to
	// the internal user id. Either argument may be empty.
	FindUserByProviderData(ctx context.Context, customerID, userID string) (*User, error)
	UpdateUserCustomerID(ctx context.Context, userID, customerID string) error

	FindPlanByProviderProductID(ctx context.Context, productID string) (*Plan, error)

	FindEntitlement(ctx context.Context, userID string) (*Entitlement, error)
	UpsertEntitlement(ctx context.Context, e Entitlement) error

	// ResetUsageForCycle replaces the user's counters with zeroed counters
	// for every quota of plan, bound to [cycleStart, cycleEnd).
	ResetUsageForCycle(ctx context.Context, userID string, plan Plan, cycleStart, cycleEnd time.Time) error

	DeleteEntitlementAndUsage(ctx context.Context, userID string) error
	// DeleteEntitlementBySubscriptionID removes the row holding the
	// subscription and returns the id of the user it belonged to.
	DeleteEntitlementBySubscriptionID(ctx context.Context, subscriptionID string) (string, error)
}
