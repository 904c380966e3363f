package feedsim

import "time"

// Config holds configuration for the simulator process.
type Config struct {
	Addr           string        // Listen address
	FailureRate    float64       // Fraction of requests answered with 503, 0..1
	Latency        time.Duration // Artificial delay before each response
	UnknownPlayers []string      // Names answered with 404
	Verbose        bool          // Log every request
}
