package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// Policy names used by the HTTP layer.
const (
	PolicyComment            = "comment"
	PolicyLogin              = "login"
	PolicyRegister           = "register"
	PolicyPasswordReset      = "password_reset"
	PolicyResendVerification = "resend_verification"
	PolicyLegacyComment      = "legacy_comment"
)

// Policy describes the admission rule for one action class: at most Capacity events per Window
// for every identity under KeyPrefix.
type Policy struct {
	Name      string
	Capacity  int
	Window    time.Duration
	KeyPrefix string
}

// Key returns the counter key for identity.
func (p Policy) Key(identity string) string {
	return p.KeyPrefix + ":" + identity
}

func (p Policy) validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("ratelimit: policy name is required")
	case p.Capacity <= 0:
		return fmt.Errorf("ratelimit: policy %q capacity must be positive", p.Name)
	case p.Window <= 0:
		return fmt.Errorf("ratelimit: policy %q window must be positive", p.Name)
	case strings.TrimSpace(p.KeyPrefix) == "":
		return fmt.Errorf("ratelimit: policy %q key prefix is required", p.Name)
	}
	return nil
}

// DefaultPolicies returns the built-in policy table.
func DefaultPolicies() []Policy {
	return []Policy{
		{Name: PolicyComment, Capacity: 2, Window: time.Minute, KeyPrefix: "ratelimit:comment"},
		{Name: PolicyLogin, Capacity: 5, Window: 15 * time.Minute, KeyPrefix: "ratelimit:login"},
		{Name: PolicyRegister, Capacity: 3, Window: time.Hour, KeyPrefix: "ratelimit:register"},
		{Name: PolicyPasswordReset, Capacity: 3, Window: time.Hour, KeyPrefix: "ratelimit:password-reset"},
		{Name: PolicyResendVerification, Capacity: 1, Window: 4 * time.Minute, KeyPrefix: "ratelimit:resend-verification"},
		{Name: PolicyLegacyComment, Capacity: 5, Window: time.Minute, KeyPrefix: "ratelimit:legacy-comment"},
	}
}

// Override adjusts capacity and window of a named policy. Zero values keep the default.
type Override struct {
	Capacity int
	Window   time.Duration
}

// ApplyOverrides returns a copy of policies with overrides applied by policy name.
// Overrides for unknown names are reported as an error.
func ApplyOverrides(policies []Policy, overrides map[string]Override) ([]Policy, error) {
	out := make([]Policy, len(policies))
	copy(out, policies)

	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.Name] = i
	}

	for name, override := range overrides {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
		}
		if override.Capacity > 0 {
			out[i].Capacity = override.Capacity
		}
		if override.Window > 0 {
			out[i].Window = override.Window
		}
	}
	return out, nil
}

// LongestWindow returns the largest Window in policies.
func LongestWindow(policies []Policy) time.Duration {
	var longest time.Duration
	for _, p := range policies {
		if p.Window > longest {
			longest = p.Window
		}
	}
	return longest
}
