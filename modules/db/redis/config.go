package redis

import "time"

// Config describes how to reach the Redis that holds quota buckets.
//
// URL is a standard Redis URI, for example:
//
//   - Single:  redis://:password@localhost:6379/0
//   - TLS:     rediss://:password@my-redis.example.com:6379/0
//   - Cluster: redis://:password@host1:6379/0?addr=host2:6379&addr=host3:6379
//
// Cluster vs single is auto-detected by rueidis from the URL.
type Config struct {
	// Required: Redis connection URL (redis:// or rediss://).
	URL string `env:"URL" envDefault:"redis://:redis@localhost:6379/0"`

	// Optional: client name visible in CLIENT LIST, etc.
	ClientName string `env:"CLIENT_NAME"`

	// SkipTLSVerify disables TLS certificate verification. Only use this
	// in trusted environments with non-standard certificates.
	SkipTLSVerify bool `env:"SKIP_TLS_VERIFY"`

	// Quota counters are write-heavy and never benefit from
	// server-assisted client-side caching, so it is off by default.
	DisableCache bool `env:"DISABLE_CACHE" envDefault:"true"`

	// Leave zero to keep the rueidis default.
	ConnWriteTimeout time.Duration `env:"CONN_WRITE_TIMEOUT"`

	// Enable OpenTelemetry command instrumentation via rueidisotel.
	EnableOtel bool `env:"ENABLE_OTEL"`
}
