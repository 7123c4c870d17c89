// subscriber keeps one iTick WebSocket subscription alive and logs every
// frame it receives. Usage: go run ./cmd/subscriber --config configs/subscriber.example.yaml
//
// The token is read from stream.token, stream.token_file, or ITICK_API_KEY.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/itick-stream/internal/api"
	"github.com/rickgao/itick-stream/internal/auth"
	"github.com/rickgao/itick-stream/internal/config"
	"github.com/rickgao/itick-stream/internal/connection"
	"github.com/rickgao/itick-stream/internal/logging"
	"github.com/rickgao/itick-stream/internal/metrics"
	"github.com/rickgao/itick-stream/internal/poller"
	"github.com/rickgao/itick-stream/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (empty = defaults)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger, closer, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	logger.Info("starting subscriber",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	creds, err := auth.LoadCredentials(cfg.Stream.Token, cfg.Stream.TokenFile)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}
	logger.Info("credentials loaded", "source", creds.Source, "token", creds.Redacted())

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, creds, logger); err != nil {
		logger.Error("subscriber failed", "error", err)
		closer.Close()
		os.Exit(1)
	}

	logger.Info("subscriber stopped")
}

// run starts the session and its companions and blocks until ctx is done
// or one of them fails.
func run(ctx context.Context, cfg *config.Config, creds *auth.Credentials, logger *slog.Logger) error {
	collector := metrics.NewCollector(cfg.Stream.Symbol)

	session, err := connection.NewSession(
		sessionConfig(cfg, creds.Token),
		connection.WithLogger(logger),
		connection.WithObserver(collector),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	collector.WatchQueue(session.QueueStats)

	g, gctx := errgroup.WithContext(ctx)

	session.Start(gctx)
	g.Go(func() error {
		select {
		case <-session.Done():
			if gctx.Err() == nil {
				logger.Error("session halted",
					"attempts", session.Attempts(),
					"limit", cfg.Stream.ReconnectLimit,
				)
			}
		case <-gctx.Done():
		}
		return nil
	})

	if cfg.Metrics.IsEnabled() {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           newMux(cfg.Metrics.Path, collector, session, cfg.Stream.ReconnectLimit),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting metrics server",
				"port", cfg.Metrics.Port,
				"metrics_path", cfg.Metrics.Path,
				"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.REST.PollInterval > 0 {
		p := newPoller(cfg, creds, collector, logger)
		if err := p.Start(gctx); err != nil {
			return fmt.Errorf("start poller: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			return p.Stop(stopCtx)
		})
	}

	logger.Info("subscriber running",
		"url", cfg.Stream.URL,
		"symbol", cfg.Stream.Symbol,
		"types", []string(cfg.Stream.Types),
	)

	return g.Wait()
}

// sessionConfig maps the file config onto the session's settings.
func sessionConfig(cfg *config.Config, token string) connection.SessionConfig {
	s := cfg.Stream
	return connection.SessionConfig{
		URL:               s.URL,
		Token:             token,
		Symbol:            s.Symbol,
		Types:             []string(s.Types),
		ReconnectLimit:    s.ReconnectLimit,
		ReconnectDelay:    s.ReconnectDelay,
		HeartbeatInterval: s.HeartbeatInterval,
		Location:          logging.LoadLocation(cfg.Logging.Timezone),
		Client: connection.ClientConfig{
			URL:              s.URL,
			UserAgent:        version.UserAgent(),
			HandshakeTimeout: s.HandshakeTimeout,
			PingInterval:     s.PingInterval,
			PingTimeout:      s.PingTimeout,
			WriteTimeout:     s.WriteTimeout,
			BufferSize:       s.BufferSize,
		},
	}
}

func newPoller(cfg *config.Config, creds *auth.Credentials, collector *metrics.Collector, logger *slog.Logger) *poller.Poller {
	client := api.NewClient(cfg.REST.BaseURL, creds.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.REST.Timeout),
		api.WithRetries(cfg.REST.MaxRetries, time.Second),
		api.WithUserAgent(version.UserAgent()),
	)

	logged := poller.LogHandler(logger)
	handler := poller.SnapshotHandlerFunc(func(s poller.Snapshot) error {
		err := logged.HandleSnapshot(s)
		collector.SnapshotFetched(err == nil)
		return err
	})

	pcfg := poller.DefaultConfig()
	pcfg.Interval = cfg.REST.PollInterval
	pcfg.Timeout = cfg.REST.Timeout
	pcfg.Instruments = []api.Instrument{{
		Category: cfg.REST.Category,
		Region:   cfg.REST.Region,
		Code:     cfg.REST.Code,
	}}

	return poller.New(pcfg, client, handler, logger)
}
