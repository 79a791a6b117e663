// Package constants provides shared constants used across the codebase.
package constants

import "time"

// HTTP constants
const (
	// MaxRequestSize is the maximum accepted request body in bytes (16MB)
	MaxRequestSize = 16 << 20

	// RequestTimeout bounds a single API request; analysis of ten frames by a
	// remote vision model can take a while
	RequestTimeout = 2 * time.Minute

	// ClientTimeout is the default timeout for the backend REST client
	ClientTimeout = 3 * time.Minute
)

// Classifier constants
const (
	// MQTTResponseTimeout is how long the MQTT classifier waits for a worker reply
	MQTTResponseTimeout = 30 * time.Second

	// MaxClassifierRetries is the number of attempts a vision model gets to return valid JSON
	MaxClassifierRetries = 3
)
