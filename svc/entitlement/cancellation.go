package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/artshare/pkg/logger"
)

// UserRefMetadataKey is the subscription and checkout metadata key holding
// the internal user id.
const UserRefMetadataKey = "user_id"

// ReconcileCancellation handles a deleted subscription.
//
// When the user resolves, the entitlement and usage are removed for that
// user. When it does not (for example the user row is already gone), the
// entitlement is removed by subscription id and its usage follows. Finding
// nothing at all is not an error.
func (s *Service) ReconcileCancellation(ctx context.Context, sub Subscription, d Delivery) (res Result, err error) {
	ev := Event{
		Source:         SourceSubscriptionDeleted,
		ID:             d.EventID,
		CustomerID:     sub.CustomerID,
		SubscriptionID: sub.ID,
		UserRef:        sub.Metadata[UserRefMetadataKey],
		OccurredAt:     d.OccurredAt,
	}
	defer s.observe(ctx, ev, time.Now(), &res, &err)

	log := s.log.With(
		logger.Source(string(ev.Source)),
		logger.EventID(ev.ID),
		logger.SubscriptionID(sub.ID),
		logger.CustomerID(sub.CustomerID),
	)
	if sub.ID == "" {
		log.WarnContext(ctx, "cancellation skipped: no subscription id")
		return res, nil
	}
	res.Subscription = &sub

	if ev.CustomerID != "" || ev.UserRef != "" {
		user, err := s.resolveUser(ctx, ev.CustomerID, ev.UserRef)
		if err != nil {
			return res, err
		}
		if user != nil {
			res.User = user
			return s.deactivate(ctx, log.With(logger.UserID(user.ID)), ev, user, res)
		}
	}

	userID, err := s.store.DeleteEntitlementBySubscriptionID(ctx, sub.ID)
	if errors.Is(err, ErrEntitlementNotFound) {
		log.InfoContext(ctx, "cancellation skipped: no user and no entitlement for subscription")
		return res, nil
	}
	if err != nil {
		return res, errors.Join(ErrStoreError, err)
	}

	if err := s.store.DeleteEntitlementAndUsage(ctx, userID); err != nil {
		return res, errors.Join(ErrStoreError, err)
	}
	res.User = &User{ID: userID}
	res.AccessUpdated = true

	log.InfoContext(ctx, "entitlement revoked by subscription id", logger.UserID(userID))
	s.notify(ctx, res.User, Notification{Kind: NotificationRevoked, Source: ev.Source})

	return res, nil
}
