package replay

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/okian/hogu/pkg/logger"
)

// Run executes a complete replay: optional API preflight, generation or file
// load, sending, and counter verification.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("replay")

	log.Info(ctx, "starting replay",
		logger.String("target", cfg.Target),
		logger.String("api", cfg.APIURL),
		logger.Int("matches", cfg.Matches),
		logger.Int("rate", cfg.Rate),
		logger.String("input", cfg.Input),
	)

	var (
		client *HTTPClient
		before Status
	)
	if cfg.APIURL != "" {
		client = newHTTPClient(cfg.APIURL, cfg.Timeout)
		if err := client.Health(ctx); err != nil {
			return stats, fmt.Errorf("service health check failed: %w", err)
		}
		if cfg.Start {
			if err := client.StartIngestion(ctx); err != nil {
				log.Warn(ctx, "start ingestion", logger.Error(err))
			}
		}
		st, err := client.Status(ctx)
		if err != nil {
			return stats, fmt.Errorf("baseline status: %w", err)
		}
		before = st
	}

	payloads, err := load(cfg)
	if err != nil {
		return stats, err
	}
	stats.Generated = len(payloads)

	sender, err := Dial(cfg.Target, cfg.Rate, cfg.Verbose)
	if err != nil {
		return stats, err
	}
	defer sender.Close()
	if err := sender.Send(ctx, payloads, stats); err != nil {
		return stats, fmt.Errorf("send: %w", err)
	}

	if client != nil {
		after, err := waitSettled(ctx, client, before, stats.Sent, cfg.Settle)
		if err != nil {
			return stats, err
		}
		if err := Verify(before, after, stats.Sent); err != nil {
			return stats, err
		}
		log.Info(ctx, "counters verified",
			logger.Uint64("received", after.Received-before.Received),
			logger.Uint64("persisted", after.Persisted-before.Persisted),
			logger.Uint64("unknown", after.Unknown-before.Unknown),
		)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// load returns the payloads to send, from cfg.Input when set.
func load(cfg *Config) ([]string, error) {
	if cfg.Input == "" {
		return NewGenerator(cfg.Seed, cfg.Exchanges).Matches(cfg.Matches), nil
	}
	f, err := os.Open(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return out, nil
}

// waitSettled polls the status until every sent datagram is accounted for or
// the settle window passes. It returns the last snapshot either way.
func waitSettled(ctx context.Context, client *HTTPClient, before Status, sent int, window time.Duration) (Status, error) {
	deadline := time.Now().Add(window)
	for {
		now, err := client.Status(ctx)
		if err != nil {
			return now, fmt.Errorf("poll status: %w", err)
		}
		if settled(before, now, sent) || time.Now().After(deadline) {
			return now, nil
		}
		select {
		case <-ctx.Done():
			return now, ctx.Err()
		case <-time.After(settlePollInterval):
		}
	}
}

// displayFinalStats logs the final replay statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, perSecond float64
	if stats.Generated > 0 {
		successRate = float64(stats.Sent) / float64(stats.Generated) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Sent) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("sent", stats.Sent),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("datagramsPerSecond", perSecond),
	)
}
