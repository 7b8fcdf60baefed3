package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/hogu/internal/replay"
)

// Default configuration constants.
const (
	defaultMatches     = 5
	defaultExchanges   = 10
	defaultRate        = 500
	defaultTimeout     = 10 * time.Second
	defaultSettle      = 10 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		target    = flag.String("target", "127.0.0.1:6000", "UDP address of the ingestion loop")
		apiURL    = flag.String("api", "http://localhost:9080", "Base URL of the command API; empty skips verification")
		matches   = flag.Int("matches", defaultMatches, "Number of generated matches")
		exchanges = flag.Int("exchanges", defaultExchanges, "Scoring exchanges per round")
		rate      = flag.Int("rate", defaultRate, "Datagrams per second, 0 for unpaced")
		seed      = flag.Uint64("seed", 1, "Generator seed")
		input     = flag.String("input", "", "File of raw datagrams, one per line, instead of generated matches")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle    = flag.Duration("settle", defaultSettle, "How long to wait for persistence to catch up")
		start     = flag.Bool("start", false, "Start ingestion through the API before sending")
		logFile   = flag.String("log", "", "Also write log output to this file")
		verbose   = flag.Bool("verbose", false, "Log every datagram")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		replay.ShowHelp()
		return
	}

	closer, err := replay.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &replay.Config{
		Target:    *target,
		APIURL:    *apiURL,
		Matches:   *matches,
		Exchanges: *exchanges,
		Rate:      *rate,
		Seed:      *seed,
		Input:     *input,
		Timeout:   *timeout,
		Settle:    *settle,
		Start:     *start,
		Verbose:   *verbose,
	}

	if _, err := replay.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Replay failed: " + err.Error() + "\n")
		closer.Close()
		os.Exit(1)
	}
}
