package main

import (
	"log/slog"

	"github.com/dmitrymomot/artshare/pkg/config"
	"github.com/dmitrymomot/artshare/pkg/environment"
	"github.com/dmitrymomot/artshare/pkg/logger"
	"github.com/dmitrymomot/artshare/pkg/requestid"
)

const serviceName = "artshare"

type appConfig struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
	PlansFile string `env:"PLANS_FILE" envDefault:"plans.yaml"`

	RejectStaleEvents bool `env:"BILLING_REJECT_STALE_EVENTS" envDefault:"false"`
	LiveBufferSize    int  `env:"LIVE_BUFFER_SIZE" envDefault:"16"`
}

func (c appConfig) environment() environment.Environment {
	return environment.Parse(c.Env)
}

func loadAppConfig() (appConfig, error) {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return appConfig{}, err
	}
	return cfg, nil
}

// newLogger applies the environment defaults first so LOG_LEVEL and
// LOG_FORMAT can override them.
func newLogger(cfg appConfig) *slog.Logger {
	env := cfg.environment()
	return logger.New(
		logger.WithEnvironment(env.String(), serviceName),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithFormat(logger.Format(cfg.LogFormat)),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
}
