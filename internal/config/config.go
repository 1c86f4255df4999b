// Package config loads daemon configuration from the environment.
package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full daemon configuration, read from PESABRIDGE_* variables.
type Config struct {
	HTTPPort        int    `envconfig:"HTTP_PORT" default:"7002"`
	DataDir         string `envconfig:"DATA_DIR" default:"./data"`
	SeedFile        string `envconfig:"SEED_FILE"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	WebhookSecret   string `envconfig:"WEBHOOK_SECRET"`
	EventBuffer     int    `envconfig:"EVENT_BUFFER" default:"16"`
	ProviderBaseURL string `envconfig:"PROVIDER_BASE_URL"`
	ProviderSandbox string `envconfig:"PROVIDER_SANDBOX_URL"`
	ProviderAPIKey  string `envconfig:"PROVIDER_API_KEY"`
	ProviderStubbed bool   `envconfig:"PROVIDER_STUBBED" default:"false"`
}

// Load reads an optional .env file, then the environment. A missing .env is
// not an error; explicit environment always wins.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("pesabridge", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
