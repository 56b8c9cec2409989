package entitlement

import (
	"log/slog"

	"github.com/dmitrymomot/artshare/pkg/clock"
)

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithNotifier sets the notifier that receives activation and revocation notices.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithStaleEventGuard makes the service skip events whose provider timestamp
// is older than the one stored on the current entitlement. Off by default:
// without it the last delivered event wins.
func WithStaleEventGuard(enabled bool) Option {
	return func(s *Service) { s.rejectStale = enabled }
}
