package replay

import "time"

// Config holds configuration for a replay run.
type Config struct {
	Target    string        // UDP address datagrams are sent to
	APIURL    string        // Base URL of the command API; empty skips verification
	Matches   int           // Number of generated matches
	Exchanges int           // Scoring exchanges per round
	Rate      int           // Datagrams per second; 0 sends as fast as possible
	Seed      uint64        // Generator seed
	Input     string        // Optional file of raw datagrams, one per line
	Timeout   time.Duration // HTTP request timeout
	Settle    time.Duration // How long to wait for persistence to catch up
	Start     bool          // Start ingestion through the API before sending
	Verbose   bool          // Log every datagram
}

// Stats holds replay statistics.
type Stats struct {
	Generated int
	Sent      int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Status mirrors the counters of GET /api/status used for verification.
type Status struct {
	Ingestion  string `json:"ingestion"`
	Received   uint64 `json:"received"`
	Published  uint64 `json:"published"`
	Persisted  uint64 `json:"persisted"`
	Failed     uint64 `json:"failed"`
	Unknown    uint64 `json:"unknown"`
	QueueDepth int    `json:"queue_depth"`
}
