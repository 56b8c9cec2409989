package entitlement

import (
	"context"
	"regexp"

	"github.com/dmitrymomot/artshare/pkg/logger"
)

var (
	subscriptionIDPattern = regexp.MustCompile(`^sub_[A-Za-z0-9_]+$`)
	customerIDPattern     = regexp.MustCompile(`^cus_[A-Za-z0-9_]+$`)
)

// ValidSubscriptionID reports whether id follows the provider's sub_ prefix convention.
func ValidSubscriptionID(id string) bool { return subscriptionIDPattern.MatchString(id) }

// ValidCustomerID reports whether id follows the provider's cus_ prefix convention.
func ValidCustomerID(id string) bool { return customerIDPattern.MatchString(id) }

// ReconcileRenewal handles a paid invoice. Invoices that are not tied to a
// well-formed subscription and customer are logged and ignored.
func (s *Service) ReconcileRenewal(ctx context.Context, inv Invoice, d Delivery) (Result, error) {
	if !ValidSubscriptionID(inv.SubscriptionID) || !ValidCustomerID(inv.CustomerID) {
		s.log.InfoContext(ctx, "invoice skipped: not tied to a subscription",
			logger.EventID(d.EventID),
			logger.SubscriptionID(inv.SubscriptionID),
			logger.CustomerID(inv.CustomerID),
		)
		return Result{}, nil
	}

	return s.Reconcile(ctx, Event{
		Source:         SourceInvoicePaid,
		ID:             d.EventID,
		CustomerID:     inv.CustomerID,
		SubscriptionID: inv.SubscriptionID,
		UserRef:        inv.UserRef,
		OccurredAt:     d.OccurredAt,
	})
}
