package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the internal user identifier. Empty ids produce an empty Attr.
func UserID(id string) slog.Attr {
	return nonEmpty("user_id", id)
}

// CustomerID records the billing provider customer id.
func CustomerID(id string) slog.Attr {
	return nonEmpty("customer_id", id)
}

// SubscriptionID records the billing provider subscription id.
func SubscriptionID(id string) slog.Attr {
	return nonEmpty("subscription_id", id)
}

// PriceID records the billing provider price id.
func PriceID(id string) slog.Attr {
	return nonEmpty("price_id", id)
}

// PlanID records the internal plan id.
func PlanID(id string) slog.Attr {
	return nonEmpty("plan_id", id)
}

// EventID records the provider event id.
func EventID(id string) slog.Attr {
	return nonEmpty("event_id", id)
}

// EventType records the provider event type under the key "event_type".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// Source records where a reconciliation request came from
// (checkout_completed, invoice_paid, ...).
func Source(source string) slog.Attr {
	return slog.String("source", source)
}

// Status records a subscription status.
func Status(status string) slog.Attr {
	return slog.String("status", status)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	return nonEmpty("request_id", id)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records a domain event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

func nonEmpty(key, value string) slog.Attr {
	if value == "" {
		return slog.Attr{}
	}
	return slog.String(key, value)
}
