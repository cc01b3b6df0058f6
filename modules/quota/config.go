package quota

import (
	"fmt"
	"time"
)

// Limits describes the windows of both tiers for one profile. Window
// slices are kept in ascending duration order: the evaluator reports
// the first violated window, so the shortest (most granular) one wins
// when several are exceeded at once.
type Limits struct {
	Global []Window
	Client []Window
}

// DefaultLimits is the standard profile: global 500/hour and 5000/day,
// per-client 10/minute and 50/hour.
func DefaultLimits() Limits {
	return Limits{
		Global: []Window{
			{Name: WindowHour, Duration: time.Hour, Limit: 500},
			{Name: WindowDay, Duration: 24 * time.Hour, Limit: 5000},
		},
		Client: []Window{
			{Name: WindowMinute, Duration: time.Minute, Limit: 10},
			{Name: WindowHour, Duration: time.Hour, Limit: 50},
		},
	}
}

// ConservativeLimits is the tighter profile used when spend must be
// kept on a short leash: global 50/hour and 200/day, per-client
// 3/minute and 10/hour.
func ConservativeLimits() Limits {
	return Limits{
		Global: []Window{
			{Name: WindowHour, Duration: time.Hour, Limit: 50},
			{Name: WindowDay, Duration: 24 * time.Hour, Limit: 200},
		},
		Client: []Window{
			{Name: WindowMinute, Duration: time.Minute, Limit: 3},
			{Name: WindowHour, Duration: time.Hour, Limit: 10},
		},
	}
}

// Config is the env-facing surface for overriding the standard window
// limits. Zero values keep the profile defaults.
type Config struct {
	// Profile selects the baseline: "default" or "conservative".
	Profile string `env:"PROFILE" envDefault:"default"`

	GlobalHourlyLimit int64 `env:"GLOBAL_HOURLY_LIMIT"`
	GlobalDailyLimit  int64 `env:"GLOBAL_DAILY_LIMIT"`
	ClientMinuteLimit int64 `env:"CLIENT_MINUTE_LIMIT"`
	ClientHourlyLimit int64 `env:"CLIENT_HOURLY_LIMIT"`
}

// Build resolves the configured profile plus overrides into Limits.
func (c Config) Build() (Limits, error) {
	var l Limits
	switch c.Profile {
	case "", "default":
		l = DefaultLimits()
	case "conservative":
		l = ConservativeLimits()
	default:
		return Limits{}, fmt.Errorf("quota config: unknown profile %q", c.Profile)
	}

	override := func(ws []Window, name string, limit int64) {
		if limit <= 0 {
			return
		}
		for i := range ws {
			if ws[i].Name == name {
				ws[i].Limit = limit
			}
		}
	}
	override(l.Global, WindowHour, c.GlobalHourlyLimit)
	override(l.Global, WindowDay, c.GlobalDailyLimit)
	override(l.Client, WindowMinute, c.ClientMinuteLimit)
	override(l.Client, WindowHour, c.ClientHourlyLimit)

	return l, nil
}
