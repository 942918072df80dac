package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecisionWaitSeconds(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	cases := []struct {
		name    string
		resetAt time.Time
		want    int
	}{
		{name: "past", resetAt: now.Add(-time.Second), want: 0},
		{name: "now", resetAt: now, want: 0},
		{name: "fraction rounds up", resetAt: now.Add(1500 * time.Millisecond), want: 2},
		{name: "exact", resetAt: now.Add(42 * time.Second), want: 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Decision{ResetAt: tc.resetAt}.WaitSeconds(now))
		})
	}
}

func TestIdentity(t *testing.T) {
	require.Equal(t, "1.2.3.4:alice@example.com", Identity("1.2.3.4", "  Alice@Example.com "))
	require.Equal(t, "1.2.3.4", Identity("1.2.3.4", ""))
	require.Equal(t, "127.0.0.1", Identity("", ""))
	require.Equal(t, "127.0.0.1:bob@example.com", Identity(" ", "bob@example.com"))
}
