package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/okian/skillwatch/internal/feedsim"
	"github.com/okian/skillwatch/pkg/logger"
)

func main() {
	var (
		addr        = flag.String("addr", feedsim.DefaultAddr, "Listen address")
		failureRate = flag.Float64("failure-rate", 0, "Fraction of requests answered with 503")
		latency     = flag.Duration("latency", 0, "Artificial delay before each response")
		unknown     = flag.String("unknown", "", "Comma separated player names answered with 404")
		verbose     = flag.Bool("verbose", false, "Log every request")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		feedsim.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &feedsim.Config{
		Addr:           *addr,
		FailureRate:    *failureRate,
		Latency:        *latency,
		UnknownPlayers: splitNames(*unknown),
		Verbose:        *verbose,
	}

	if err := feedsim.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "feed simulator failed", logger.Error(err))
		os.Exit(1)
	}
}

func splitNames(s string) []string {
	var out []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
