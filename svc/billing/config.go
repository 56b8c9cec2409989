package billing

import "time"

// Config holds Stripe credentials and webhook settings.
type Config struct {
	SecretKey     string        `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET,required"`
	DedupeTTL     time.Duration `env:"EVENT_DEDUPE_TTL" envDefault:"72h"`
	LockTTL       time.Duration `env:"EVENT_LOCK_TTL" envDefault:"10m"`
}
