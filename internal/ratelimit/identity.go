package ratelimit

import "strings"

const fallbackIP = "127.0.0.1"

// Identity derives the limiter identity from a client address and an optional email.
func Identity(ip, email string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = fallbackIP
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ip
	}
	return ip + ":" + email
}
