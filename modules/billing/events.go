package billing

import (
	"github.com/dmitrymomot/artshare/handler"
	"github.com/dmitrymomot/artshare/pkg/jwt"
	"github.com/dmitrymomot/artshare/svc/entitlement"
)

// signals is the datastar signal payload pushed on the events stream.
type signals struct {
	Billing entitlementView           `json:"billing"`
	Event   *entitlement.Notification `json:"billingEvent,omitempty"`
}

// events streams the user's entitlement state: once on connect and again
// after every change delivered to this connection. The connection is
// registered for the lifetime of the request.
func (h *handlers) events(ctx handler.Context, _ struct{}) handler.Response {
	userID, ok := jwt.UserID(ctx)
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}

	return handler.SSE(func(s handler.Stream) error {
		conn, release := h.registry.Register(s, userID)
		defer release()

		view, err := h.view(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.PatchSignals(signals{Billing: view}); err != nil {
			return nil
		}

		for {
			select {
			case <-s.Done():
				return nil
			case n, ok := <-conn.C():
				if !ok {
					return nil
				}
				view, err := h.view(ctx, userID)
				if err != nil {
					return err
				}
				if err := s.PatchSignals(signals{Billing: view, Event: &n}); err != nil {
					return nil
				}
			}
		}
	})
}
