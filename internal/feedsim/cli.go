package feedsim

import "os"

// ShowHelp prints usage information for the feed simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Skillwatch Feed Simulator
=========================

Serves a local stand-in for the public scoreboard feed so the tracker can run
offline. Experience grows with wall time; the same player name always starts
from the same profile.

Usage:
  go run ./cmd/feedsim [options]

Options:
  -addr string
        Listen address (default ":9181")
  -failure-rate float
        Fraction of requests answered with 503 (default 0)
  -latency duration
        Artificial delay before each response (default 0)
  -unknown string
        Comma separated player names answered with 404
  -verbose
        Log every request
  -help
        Show this help message

Point the tracker at it with:
  SKILLWATCH_FEED_URL=http://localhost:9181/index_lite.ws
`)
}
