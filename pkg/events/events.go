// Package events publishes entitlement changes to an AMQP exchange so other
// services (gallery quotas, analytics, mailers) can react to them.
//
// Messages are persistent JSON. The routing key is the notification kind:
// entitlement.activated or entitlement.revoked.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/dmitrymomot/artshare/svc/entitlement"
)

var (
	ErrFailedToDeclare = errors.New("events: failed to declare exchange")
	ErrFailedToPublish = errors.New("events: failed to publish")
)

// Channel is the subset of *amqp.Channel used by the publisher.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Message is the body published for every entitlement change.
type Message struct {
	ID           string                   `json:"id"`
	Kind         string                   `json:"kind"`
	UserID       string                   `json:"user_id"`
	PublishedAt  time.Time                `json:"published_at"`
	Notification entitlement.Notification `json:"notification"`
}

// Publisher sends entitlement changes to a direct exchange.
type Publisher struct {
	ch       Channel
	exchange string
	now      func() time.Time
}

// NewPublisher declares a durable direct exchange and returns a publisher bound to it.
func NewPublisher(ch Channel, exchange string) (*Publisher, error) {
	if ch == nil {
		panic("events: channel is required")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return nil, errors.Join(ErrFailedToDeclare, err)
	}
	return &Publisher{ch: ch, exchange: exchange, now: time.Now}, nil
}

// SendToUser publishes n with its kind as the routing key.
func (p *Publisher) SendToUser(ctx context.Context, userID string, n entitlement.Notification) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrFailedToPublish, err)
	}

	body, err := json.Marshal(Message{
		ID:           uuid.NewString(),
		Kind:         string(n.Kind),
		UserID:       userID,
		PublishedAt:  p.now().UTC(),
		Notification: n,
	})
	if err != nil {
		return errors.Join(ErrFailedToPublish, err)
	}

	err = p.ch.Publish(p.exchange, string(n.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	})
	if err != nil {
		return errors.Join(ErrFailedToPublish, err)
	}
	return nil
}
