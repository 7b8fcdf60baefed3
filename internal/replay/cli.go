package replay

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/hogu/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging writes log output to the console and, when logFile is set, to
// that file as well.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w, closer = io.MultiWriter(os.Stdout, f), f
	}
	if err := logger.InitWith(w, logger.FormatText); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "info"
	if verbose {
		level = "debug"
	}
	_ = logger.SetLevelString(level)
	return closer, nil
}

// ShowHelp prints usage information for the replay tool.
func ShowHelp() {
	os.Stdout.WriteString(`pss-replay
==========

Replays PSS scoring datagrams against a hogu instance and verifies that every
datagram was received and persisted.

Usage:
  pss-replay [options]

Options:
  -target string
        UDP address of the ingestion loop (default "127.0.0.1:6000")
  -api string
        Base URL of the command API; empty skips verification (default "http://localhost:9080")
  -matches int
        Number of generated matches (default 5)
  -exchanges int
        Scoring exchanges per round (default 10)
  -rate int
        Datagrams per second, 0 for unpaced (default 500)
  -seed uint
        Generator seed (default 1)
  -input string
        File of raw datagrams, one per line, instead of generated matches
  -settle duration
        How long to wait for persistence to catch up (default 10s)
  -start
        Start ingestion through the API before sending
  -log string
        Also write log output to this file
  -verbose
        Log every datagram

Examples:
  pss-replay -matches 20 -rate 0
  pss-replay -input captured.txt -api ""
`)
}
