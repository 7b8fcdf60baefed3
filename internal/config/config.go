// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - All functions accept context.Context as the first parameter.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP command API listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// UDPAddr is the bind address for scoring-system datagrams.
	UDPAddr string `koanf:"udp_addr"`

	// UDPInterface, when set, binds to the first IPv4 address of this interface
	// using the port from UDPAddr.
	UDPInterface string `koanf:"udp_interface"`

	// UDPReadBuffer sets the socket receive buffer in bytes.
	UDPReadBuffer int `koanf:"udp_read_buffer"`

	// AutoStart starts the ingestion loop on boot.
	AutoStart bool `koanf:"auto_start"`

	// ProtocolVersion is the PSS protocol version events are validated against.
	ProtocolVersion string `koanf:"protocol_version"`

	// DBDriver is sqlite or postgres.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is the driver-specific data source name.
	DBDSN string `koanf:"db_dsn"`

	// PoolSize is the number of pooled store connections.
	PoolSize int `koanf:"pool_size"`

	// PoolAcquireTimeoutMS bounds waiting for a pooled connection.
	PoolAcquireTimeoutMS int `koanf:"pool_acquire_timeout_ms"`

	// PoolIdleTimeoutS closes connections idle for longer than this.
	PoolIdleTimeoutS int `koanf:"pool_idle_timeout_s"`

	// PoolHealthCheckS pings connections idle for longer than this before reuse.
	PoolHealthCheckS int `koanf:"pool_health_check_s"`

	// WorkerCount sets the number of persistence workers.
	WorkerCount int `koanf:"worker_count"`

	// EventQueueSize bounds each persistence worker queue.
	EventQueueSize int `koanf:"queue_size"`

	// RetryAttempts and RetryInitialMS configure persistence backoff.
	RetryAttempts  int `koanf:"retry_attempts"`
	RetryInitialMS int `koanf:"retry_initial_ms"`

	// DrainTimeoutS bounds in-flight persistence on stop.
	DrainTimeoutS int `koanf:"drain_timeout_s"`

	// CorrelationWindowMS and CorrelationCapacity configure hit-level correlation.
	CorrelationWindowMS int `koanf:"correlation_window_ms"`
	CorrelationCapacity int `koanf:"correlation_capacity"`

	// BusBufferSize is the default per-subscriber queue size.
	BusBufferSize int `koanf:"bus_buffer_size"`

	// StatusIntervalMS is the cadence of status snapshots on the bus.
	StatusIntervalMS int `koanf:"status_interval_ms"`

	// ArchiveAfterDays enables background archival of events older than this.
	// Zero disables the archiver.
	ArchiveAfterDays int `koanf:"archive_after_days"`

	// ArchiveIntervalM is the background archival cadence in minutes.
	ArchiveIntervalM int `koanf:"archive_interval_m"`

	// OverlayEnabled exposes the websocket overlay relay at /ws.
	OverlayEnabled bool `koanf:"overlay_enabled"`

	// AMQPURL enables the AMQP relay when set.
	AMQPURL string `koanf:"amqp_url"`

	// AMQPExchange is the fanout exchange events are republished to.
	AMQPExchange string `koanf:"amqp_exchange"`

	// CORSOrigins lists origins allowed to call the command API.
	CORSOrigins []string `koanf:"cors_origins"`

	// MetricsNamespace and MetricsSubsystem prefix every Prometheus series.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsLabels are constant labels added to every series, e.g. the
	// court a node serves. From env: HOGU_METRICS_LABELS=court=1,venue=a.
	MetricsLabels map[string]string `koanf:"metrics_labels"`

	// MetricsRefreshS is the system metrics refresh cadence in seconds.
	MetricsRefreshS int `koanf:"metrics_refresh_s"`
}

// New creates a Config with defaults. Context is accepted first to satisfy the
// project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		UDPAddr:              "0.0.0.0:6000",
		UDPReadBuffer:        2 * 1024 * 1024,
		ProtocolVersion:      "2.3",
		DBDriver:             "sqlite",
		DBDSN:                "hogu.db",
		PoolSize:             10,
		PoolAcquireTimeoutMS: 5000,
		PoolIdleTimeoutS:     300,
		PoolHealthCheckS:     30,
		WorkerCount:          runtime.NumCPU(),
		EventQueueSize:       50_000,
		RetryAttempts:        3,
		RetryInitialMS:       50,
		DrainTimeoutS:        10,
		CorrelationWindowMS:  5000,
		CorrelationCapacity:  10,
		BusBufferSize:        1024,
		StatusIntervalMS:     1000,
		ArchiveAfterDays:     0,
		ArchiveIntervalM:     60,
		OverlayEnabled:       true,
		AMQPExchange:         "hogu.events",
		CORSOrigins:          []string{"*"},
		MetricsNamespace:     "hogu",
		MetricsSubsystem:     "pss",
		MetricsRefreshS:      10,
	}
}

// PoolAcquireTimeout returns the pool acquisition bound.
func (c *Config) PoolAcquireTimeout() time.Duration {
	return time.Duration(c.PoolAcquireTimeoutMS) * time.Millisecond
}

// PoolIdleTimeout returns the idle connection expiry.
func (c *Config) PoolIdleTimeout() time.Duration {
	return time.Duration(c.PoolIdleTimeoutS) * time.Second
}

// PoolHealthCheck returns the idle threshold after which connections are pinged.
func (c *Config) PoolHealthCheck() time.Duration {
	return time.Duration(c.PoolHealthCheckS) * time.Second
}

// DrainTimeout returns the persistence drain window.
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutS) * time.Second
}

// CorrelationWindow returns the hit-level correlation window.
func (c *Config) CorrelationWindow() time.Duration {
	return time.Duration(c.CorrelationWindowMS) * time.Millisecond
}

// StatusInterval returns the status snapshot cadence.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.StatusIntervalMS) * time.Millisecond
}

// ArchiveInterval returns the background archival cadence.
func (c *Config) ArchiveInterval() time.Duration {
	return time.Duration(c.ArchiveIntervalM) * time.Minute
}

// RetryInitialDelay returns the first persistence backoff delay.
func (c *Config) RetryInitialDelay() time.Duration {
	return time.Duration(c.RetryInitialMS) * time.Millisecond
}

// MetricsRefresh returns the system metrics refresh cadence.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshS) * time.Second
}
