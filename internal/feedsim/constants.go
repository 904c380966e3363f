package feedsim

import "time"

// Server timeouts.
const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// DefaultAddr is where the simulator listens by default.
const DefaultAddr = ":9181"
