package events

import (
	"context"
	"errors"
	"time"

	"github.com/streadway/amqp"
)

// Config holds the broker settings. An empty URL disables publishing.
type Config struct {
	URL            string        `env:"AMQP_URL"`
	Exchange       string        `env:"AMQP_EXCHANGE" envDefault:"artshare.billing"`
	ConnectRetries int           `env:"AMQP_CONNECT_RETRIES" envDefault:"5"`
	RetryDelay     time.Duration `env:"AMQP_RETRY_DELAY" envDefault:"2s"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.URL != "" }

var ErrBrokerUnavailable = errors.New("events: broker unavailable")

// Connect dials the broker with retries and opens a channel.
// Closing the returned connection closes the channel too.
func Connect(ctx context.Context, cfg Config) (*amqp.Connection, *amqp.Channel, error) {
	var lastErr error
	for range max(cfg.ConnectRetries, 1) {
		conn, err := amqp.Dial(cfg.URL)
		if err == nil {
			ch, err := conn.Channel()
			if err != nil {
				_ = conn.Close()
				return nil, nil, errors.Join(ErrBrokerUnavailable, err)
			}
			return conn, ch, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, nil, errors.Join(ErrBrokerUnavailable, ctx.Err())
		case <-time.After(cfg.RetryDelay):
		}
	}
	return nil, nil, errors.Join(ErrBrokerUnavailable, lastErr)
}
