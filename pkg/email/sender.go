package email

import (
	"github.com/dmitrymomot/artshare/pkg/clock"
	"github.com/dmitrymomot/artshare/pkg/environment"
)

// New picks the sender for env. Production always uses Postmark and fails
// on incomplete configuration. Other environments fall back to a DevSender
// when the Postmark tokens are not set.
func New(cfg Config, env environment.Environment) (Sender, error) {
	if err := validateIdentity(cfg); err != nil {
		return nil, err
	}
	if !env.IsProduction() && !cfg.hasPostmarkTokens() {
		return NewDevSender(cfg.DevDir, clock.System{}), nil
	}
	return NewPostmarkSender(cfg)
}
