package appconfig

import (
	"errors"

	"quota/modules/db/postgres"
	"quota/modules/db/redis"
	httpquota "quota/modules/middleware/quota"
	"quota/modules/quota"
	"quota/modules/telemetry"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env string `env:"ENV" envDefault:"dev"`

	// --- core infra ----
	// Store selects the counter backend: redis | postgres | memory.
	Store    string          `env:"QUOTA_STORE" envDefault:"redis"`
	Redis    redis.Config    `envPrefix:"REDIS_"`
	Postgres postgres.Config `envPrefix:"POSTGRES_"`

	// --- quota policy ----
	Quota quota.Config     `envPrefix:"QUOTA_"`
	HTTP  httpquota.Config `envPrefix:"QUOTA_HTTP_"`

	// --- api key identity ----
	// Secret for HMAC hashing; empty disables API-key profiles.
	APIKeySecret string `env:"API_KEY_SECRET"`
	// Hashed key -> profile name, e.g. "abc123=conservative,def456=default".
	APIKeyProfiles map[string]string `env:"API_KEY_PROFILES" envSeparator:"," envKeyValSeparator:"="`

	// --- otel ----
	// since it has special naming conventions, we do not use prefix here
	Otel telemetry.Config
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(c *Config) error {
	switch c.Store {
	case "redis", "postgres", "memory":
	default:
		return errors.New("appconfig: QUOTA_STORE must be redis, postgres or memory")
	}
	if len(c.APIKeyProfiles) > 0 && c.APIKeySecret == "" {
		return errors.New("appconfig: API_KEY_PROFILES set without API_KEY_SECRET")
	}
	return nil
}
