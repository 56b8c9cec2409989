package checkout

import "time"

// Config holds the redirect targets and simulation settings.
type Config struct {
	SuccessURL      string        `env:"CHECKOUT_SUCCESS_URL,required"`
	CancelURL       string        `env:"CHECKOUT_CANCEL_URL,required"`
	PortalReturnURL string        `env:"PORTAL_RETURN_URL,required"`
	SimulationDelay time.Duration `env:"BILLING_SIMULATION_DELAY" envDefault:"5s"`
}
