package notifications

import (
	"context"

	"github.com/dmitrymomot/artshare/pkg/registry"
	"github.com/dmitrymomot/artshare/svc/entitlement"
)

// Live pushes notifications to the user's connections on this instance.
type Live struct {
	reg *registry.Registry[entitlement.Notification]
}

// NewLive creates a live notifier over reg.
func NewLive(reg *registry.Registry[entitlement.Notification]) *Live {
	if reg == nil {
		panic("notifications: registry is required")
	}
	return &Live{reg: reg}
}

// SendToUser hands n to every registered connection of userID. Having no
// connection is not an error.
func (l *Live) SendToUser(_ context.Context, userID string, n entitlement.Notification) error {
	l.reg.Send(userID, n)
	return nil
}
