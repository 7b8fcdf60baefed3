package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/okian/hogu/internal/adapters/http/api"
	"github.com/okian/hogu/internal/adapters/http/overlay"
	"github.com/okian/hogu/internal/adapters/http/swagger"
	"github.com/okian/hogu/internal/adapters/mq/amqprelay"
	"github.com/okian/hogu/internal/adapters/mq/bus"
	service "github.com/okian/hogu/internal/app"
	"github.com/okian/hogu/internal/config"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/pkg/logger"
	"github.com/okian/hogu/pkg/retry"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline, the command API and the live relays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx)
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

// serveOptions maps configuration onto service options.
func serveOptions(cfg *config.Config, codec *protocol.Codec, b *bus.Bus) []service.Option {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.RetryAttempts
	rc.InitialDelay = cfg.RetryInitialDelay()

	return []service.Option{
		service.WithLogger(logger.Named("service")),
		service.WithCodec(codec),
		service.WithBus(b),
		service.WithUDPAddr(cfg.UDPAddr),
		service.WithUDPInterface(cfg.UDPInterface),
		service.WithReadBuffer(cfg.UDPReadBuffer),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithRetry(rc),
		service.WithDrainTimeout(cfg.DrainTimeout()),
		service.WithStatusInterval(cfg.StatusInterval()),
		service.WithCorrelation(cfg.CorrelationCapacity, cfg.CorrelationWindow()),
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Named("serve")

	codec := protocol.New(protocol.WithVersion(cfg.ProtocolVersion))
	store, err := openStore(ctx, cfg, codec)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	svc := service.New(store, serveOptions(cfg, codec, bus.New())...)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("start service: %w", err)
	}
	if cfg.AutoStart {
		if err := svc.StartIngestion(ctx); err != nil {
			log.Error(ctx, "auto start ingestion failed", logger.Error(err))
		}
	}

	go startSystemMetricsUpdater(ctx)

	if cfg.ArchiveAfterDays > 0 {
		go store.RunArchiver(ctx, cfg.ArchiveInterval(), cfg.ArchiveAfterDays)
	}

	relay, err := startRelay(ctx, cfg, svc)
	if err != nil {
		log.Warn(ctx, "amqp relay disabled", logger.Error(err))
	}

	router := mux.NewRouter()
	swagger.Register(ctx, router)
	apiServer := api.NewServer(svc, api.WithAllowedOrigins(cfg.CORSOrigins...))
	apiServer.Register(router)
	if cfg.OverlayEnabled {
		router.Handle("/ws", overlay.New(svc,
			overlay.WithBufferSize(cfg.BusBufferSize),
			overlay.WithAllowedOrigins(cfg.CORSOrigins...),
		))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.CORS(router),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a server failure
	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service stop", logger.Error(err))
	}
	if relay != nil {
		if err := relay.Close(); err != nil {
			log.Warn(ctx, "amqp close", logger.Error(err))
		}
	}
	log.Info(ctx, "stopped")
	return runErr
}

// startRelay connects the optional AMQP relay. It returns nil, nil when no
// broker is configured.
func startRelay(ctx context.Context, cfg *config.Config, svc *service.Service) (*amqprelay.Connection, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	conn, err := amqprelay.Dial(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, err
	}
	sub, err := svc.Subscribe("amqp", cfg.BusBufferSize)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	go amqprelay.New(conn.Channel(), cfg.AMQPExchange).Run(ctx, sub)
	return conn, nil
}
