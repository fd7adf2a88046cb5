package api

import "time"

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	Version           string
	AllowedOrigins    []string        // CORS and WebSocket allowed origins (empty = allow all)
	RateLimitRequests int             // Requests per minute per client IP (0 = disabled)
	RateLimitBurst    int             // Burst size
	ShutdownTimeout   time.Duration   // Grace period for in-flight requests
	WebSocket         WebSocketConfig // Invoke bridge limits
}

// WebSocketConfig holds limits for invoke bridge connections.
type WebSocketConfig struct {
	// MaxMessageRate is the maximum number of messages per second per client.
	MaxMessageRate int

	// MaxMessageSize is the maximum message size in bytes.
	MaxMessageSize int64
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            1420,
		Version:         "dev",
		RateLimitBurst:  10,
		ShutdownTimeout: 5 * time.Second,
		WebSocket: WebSocketConfig{
			MaxMessageRate: 20,
			MaxMessageSize: 16 << 10,
		},
	}
}
