package entitlement

import "context"

// Provider fetches canonical billing objects. Implementations carry no
// business logic.
type Provider interface {
	// RetrieveSubscription returns the subscription with its items, period
	// and latest invoice lines.
	RetrieveSubscription(ctx context.Context, id string) (*Subscription, error)
	RetrievePrice(ctx context.Context, id string) (*Price, error)
}
