package entitlement

import "time"

// resetInput holds what the reset decision looks at.
type resetInput struct {
	source         Source
	simulated      bool
	access         Access
	previous       *Entitlement
	planID         string
	subscriptionID string
	cycleStart     time.Time
}

// shouldResetUsage decides whether the activation starts a new usage cycle.
// Any one of these is enough:
//
//  1. a simulated activation;
//  2. a completed checkout, unless the stored entitlement already holds the
//     same subscription and cycle (a redelivered checkout);
//  3. a paid invoice when there is no previous entitlement or the cycle
//     starts at or after the previous expiry;
//  4. a subscription update when there is no previous entitlement, the plan
//     changed, or the cycle starts at or after the previous expiry.
//
// Everything else keeps the counters, which is what makes replays harmless.
func shouldResetUsage(in resetInput) bool {
	if in.access != AccessEntitled {
		return false
	}

	prev := in.previous
	newCycle := prev == nil || !in.cycleStart.Before(prev.ExpiresAt)

	switch {
	case in.simulated:
		return true
	case in.source == SourceCheckoutCompleted:
		return !sameCycle(prev, in.subscriptionID, in.cycleStart)
	case in.source == SourceInvoicePaid:
		return newCycle
	case in.source == SourceSubscriptionUpdated:
		return newCycle || prev.PlanID != in.planID
	default:
		return false
	}
}

func sameCycle(prev *Entitlement, subscriptionID string, cycleStart time.Time) bool {
	return prev != nil &&
		prev.ProviderSubscriptionID == subscriptionID &&
		prev.CycleStartedAt.Equal(cycleStart)
}
