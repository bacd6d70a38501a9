// Package stockapi provides a client for the upstream stock ranking API.
package stockapi

import "time"

// DefaultExchange is the overseas exchange queried when none is configured.
const DefaultExchange = "NAS"

// Config holds configuration for the ranking API client.
type Config struct {
	BaseURL  string        // Base URL for the API (e.g., "http://localhost:8000")
	Token    string        // Optional bearer token
	Exchange string        // Overseas exchange code sent as "excd"
	Limit    int           // Max entries kept from a response; 0 keeps all
	Timeout  time.Duration // HTTP request timeout
}

func (c Config) exchange() string {
	if c.Exchange == "" {
		return DefaultExchange
	}
	return c.Exchange
}
