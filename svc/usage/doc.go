// Package usage enforces plan quotas over the current billing cycle.
//
// Counters are created by the entitlement reconciler when a new cycle starts
// and incremented here as users create content. A quota of
// entitlement.Unlimited never blocks.
//
//	svc := usage.NewService(store)
//	if _, err := svc.Consume(ctx, userID, "uploads", 1); errors.Is(err, usage.ErrLimitExceeded) {
//		// reject the upload
//	}
package usage
