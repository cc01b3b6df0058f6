package quota

// Config is the env-facing surface of the HTTP quota layer.
type Config struct {
	// Header carrying an API key; a request with a valid key is tracked
	// under the profile configured for that key.
	APIKeyHeader string `env:"API_KEY_HEADER" envDefault:"x-api-key"`

	// Process-local burst brake, applied before any backing-store
	// round trip.
	BurstBrake     bool    `env:"BURST_BRAKE" envDefault:"true"`
	BurstPerSecond float64 `env:"BURST_PER_SECOND" envDefault:"50"`
	Burst          int     `env:"BURST" envDefault:"100"`
}
