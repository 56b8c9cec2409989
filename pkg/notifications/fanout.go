package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/artshare/pkg/logger"
	"github.com/dmitrymomot/artshare/svc/entitlement"
)

// DefaultFanoutChannel is the Pub/Sub channel used when none is configured.
const DefaultFanoutChannel = "artshare:entitlement:notifications"

var (
	ErrFailedToPublish = errors.New("notifications: failed to publish")
	ErrFailedToDecode  = errors.New("notifications: failed to decode fanout message")
)

// PubSub is the subset of redis.UniversalClient used by RedisFanout.
type PubSub interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type envelope struct {
	UserID       string                   `json:"user_id"`
	Notification entitlement.Notification `json:"notification"`
}

// RedisFanout broadcasts notifications to every instance. SendToUser publishes;
// Run subscribes and delivers received messages to the local notifier.
type RedisFanout struct {
	client  PubSub
	local   entitlement.Notifier
	channel string
	logger  *slog.Logger
}

// FanoutOption configures a RedisFanout.
type FanoutOption func(*RedisFanout)

// WithChannel overrides the Pub/Sub channel name.
func WithChannel(name string) FanoutOption {
	return func(f *RedisFanout) {
		if name != "" {
			f.channel = name
		}
	}
}

// WithFanoutLogger sets the logger for the subscriber loop.
func WithFanoutLogger(l *slog.Logger) FanoutOption {
	return func(f *RedisFanout) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewRedisFanout creates a fanout that delivers received messages to local.
func NewRedisFanout(client PubSub, local entitlement.Notifier, opts ...FanoutOption) *RedisFanout {
	if client == nil {
		panic("notifications: redis client is required")
	}
	if local == nil {
		panic("notifications: local notifier is required")
	}
	f := &RedisFanout{
		client:  client,
		local:   local,
		channel: DefaultFanoutChannel,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SendToUser publishes n for userID to all instances, including this one.
func (f *RedisFanout) SendToUser(ctx context.Context, userID string, n entitlement.Notification) error {
	payload, err := json.Marshal(envelope{UserID: userID, Notification: n})
	if err != nil {
		return errors.Join(ErrFailedToPublish, err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return errors.Join(ErrFailedToPublish, err)
	}
	return nil
}

// Run subscribes to the channel and delivers messages until ctx is done.
func (f *RedisFanout) Run(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	f.logger.InfoContext(ctx, "notification fanout subscribed", slog.String("channel", f.channel))

	f.consume(ctx, sub.Channel())
	return nil
}

func (f *RedisFanout) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := f.deliver(ctx, msg.Payload); err != nil {
				f.logger.WarnContext(ctx, "fanout delivery failed", logger.Error(err))
			}
		}
	}
}

func (f *RedisFanout) deliver(ctx context.Context, payload string) error {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return errors.Join(ErrFailedToDecode, err)
	}
	if env.UserID == "" {
		return ErrFailedToDecode
	}
	return f.local.SendToUser(ctx, env.UserID, env.Notification)
}
