package scraper

import "time"

// Config is fixed at construction and never mutated afterwards.
type Config struct {
	BaseURL string
	// Timeout bounds each outbound call, not the whole retry sequence.
	Timeout time.Duration
	// MaxRetries is the total number of attempts per logical request.
	MaxRetries     int
	RetryBaseDelay time.Duration
	// RateLimit is the minimum spacing between two requests of one fetcher.
	RateLimit time.Duration
	Headers   map[string]string
}

func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
		RateLimit:      time.Second,
		Headers:        GetHeaderProfile(StrategyBrowser).Headers(),
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryBaseDelay < 0 {
		c.RetryBaseDelay = 0
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if len(c.Headers) == 0 {
		c.Headers = d.Headers
	} else {
		h := make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			h[k] = v
		}
		c.Headers = h
	}
	return c
}
