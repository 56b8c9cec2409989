package entitlement

import "time"

// resolvePeriod picks the billing period of a real subscription: its own
// period fields first, then the first line of its latest invoice.
func resolvePeriod(sub *Subscription) (start, end time.Time, err error) {
	if sub.CurrentPeriodStart != nil && sub.CurrentPeriodEnd != nil &&
		!sub.CurrentPeriodStart.IsZero() && !sub.CurrentPeriodEnd.IsZero() {
		return sub.CurrentPeriodStart.UTC(), sub.CurrentPeriodEnd.UTC(), nil
	}

	if inv := sub.LatestInvoice; inv != nil && len(inv.Lines) > 0 {
		line := inv.Lines[0]
		if !line.PeriodStart.IsZero() && !line.PeriodEnd.IsZero() {
			return line.PeriodStart.UTC(), line.PeriodEnd.UTC(), nil
		}
	}

	return time.Time{}, time.Time{}, ErrIncompletePeriod
}

// simulatedPeriodEnd is start plus one billing interval: a year for annual
// prices, a month otherwise.
func simulatedPeriodEnd(start time.Time, interval Interval) time.Time {
	if interval == IntervalYear {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
