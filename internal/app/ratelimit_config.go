package app

import (
	"strings"

	"github.com/charlesng35/inkpost/internal/ratelimit"
)

// PolicyTable returns the built-in policy table with configured overrides applied.
func (c RateLimitConfig) PolicyTable() ([]ratelimit.Policy, error) {
	if len(c.Policies) == 0 {
		return ratelimit.DefaultPolicies(), nil
	}

	overrides := make(map[string]ratelimit.Override, len(c.Policies))
	for name, o := range c.Policies {
		// viper lower-cases keys; policy names are lower-case already
		overrides[strings.ToLower(strings.TrimSpace(name))] = ratelimit.Override{
			Capacity: o.Capacity,
			Window:   o.Window,
		}
	}
	return ratelimit.ApplyOverrides(ratelimit.DefaultPolicies(), overrides)
}
