package notifications

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/artshare/pkg/logger"
	"github.com/dmitrymomot/artshare/pkg/metrics"
	"github.com/dmitrymomot/artshare/svc/entitlement"
)

// Channel is a named delivery target. The name labels logs and metrics.
type Channel struct {
	Name     string
	Notifier entitlement.Notifier
}

// Multi delivers to every configured channel in order.
type Multi struct {
	channels []Channel
	logger   *slog.Logger
}

// MultiOption configures a Multi.
type MultiOption func(*Multi)

// WithLogger sets the logger for failed deliveries.
func WithLogger(l *slog.Logger) MultiOption {
	return func(m *Multi) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMulti creates a notifier over channels. Channels with a nil notifier are skipped.
func NewMulti(channels []Channel, opts ...MultiOption) *Multi {
	m := &Multi{logger: slog.Default()}
	for _, c := range channels {
		if c.Notifier != nil {
			m.channels = append(m.channels, c)
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SendToUser delivers n through every channel. A failing channel is logged
// and the remaining channels still run. It always returns nil.
func (m *Multi) SendToUser(ctx context.Context, userID string, n entitlement.Notification) error {
	for _, c := range m.channels {
		if err := c.Notifier.SendToUser(ctx, userID, n); err != nil {
			metrics.NotificationsTotal.WithLabelValues(c.Name, "failed").Inc()
			m.logger.LogAttrs(ctx, slog.LevelError, "failed to deliver notification",
				logger.UserID(userID),
				logger.Event(string(n.Kind)),
				slog.String("channel", c.Name),
				logger.Error(err),
			)
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(c.Name, "delivered").Inc()
	}
	return nil
}
