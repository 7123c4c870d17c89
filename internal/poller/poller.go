package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/itick-stream/internal/api"
)

// Kind selects which snapshot endpoint is polled.
type Kind string

const (
	KindTick  Kind = "tick"
	KindQuote Kind = "quote"
	KindDepth Kind = "depth"
)

// Snapshot is one fetched REST payload.
type Snapshot struct {
	Instrument api.Instrument
	Kind       Kind
	Data       json.RawMessage
	FetchedAt  time.Time
}

// SnapshotHandler receives fetched snapshots.
type SnapshotHandler interface {
	HandleSnapshot(snapshot Snapshot) error
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(Snapshot) error

func (f SnapshotHandlerFunc) HandleSnapshot(s Snapshot) error {
	return f(s)
}

// LogHandler logs each snapshot at info level with its raw payload.
func LogHandler(logger *slog.Logger) SnapshotHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return SnapshotHandlerFunc(func(s Snapshot) error {
		logger.Info("rest snapshot",
			"kind", s.Kind,
			"region", s.Instrument.Region,
			"code", s.Instrument.Code,
			"data", string(s.Data),
		)
		return nil
	})
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration    // Poll interval
	Concurrency int              // Max concurrent requests (default: 4)
	Timeout     time.Duration    // Per-request timeout (default: 10s)
	Kind        Kind             // Endpoint to poll (default: tick)
	Instruments []api.Instrument // What to poll
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		Concurrency: 4,
		Timeout:     10 * time.Second,
		Kind:        KindTick,
	}
}

// Poller periodically fetches REST snapshots.
type Poller struct {
	cfg     Config
	client  *api.Client
	handler SnapshotHandler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles atomic.Int64
}

// New creates a new Poller.
func New(cfg Config, client *api.Client, handler SnapshotHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if handler == nil {
		handler = LogHandler(logger)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Kind == "" {
		cfg.Kind = KindTick
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		handler: handler,
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	if p.cfg.Interval <= 0 {
		return fmt.Errorf("poll interval must be > 0, got %v", p.cfg.Interval)
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("snapshot poller started",
		"interval", p.cfg.Interval,
		"instruments", len(p.cfg.Instruments),
		"kind", p.cfg.Kind,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("snapshot poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cycles returns how many poll cycles have completed.
func (p *Poller) Cycles() int64 {
	return p.cycles.Load()
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll fetches every instrument concurrently.
func (p *Poller) pollAll() {
	defer p.cycles.Add(1)
	start := time.Now()

	if len(p.cfg.Instruments) == 0 {
		p.logger.Debug("no instruments to poll")
		return
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, failed atomic.Int64

	for _, in := range p.cfg.Instruments {
		wg.Add(1)
		go func(in api.Instrument) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			if err := p.poll(in); err != nil {
				p.logger.Warn("failed to poll snapshot",
					"region", in.Region,
					"code", in.Code,
					"err", err,
				)
				failed.Add(1)
				return
			}

			fetched.Add(1)
		}(in)
	}

	wg.Wait()

	p.logger.Info("poll cycle complete",
		"instruments", len(p.cfg.Instruments),
		"fetched", fetched.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}

// poll fetches and handles one instrument's snapshot.
func (p *Poller) poll(in api.Instrument) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	var (
		resp *api.Response
		err  error
	)
	switch p.cfg.Kind {
	case KindQuote:
		resp, err = p.client.GetQuote(ctx, in)
	case KindDepth:
		resp, err = p.client.GetDepth(ctx, in)
	default:
		resp, err = p.client.GetTick(ctx, in)
	}
	if err != nil {
		return err
	}

	return p.handler.HandleSnapshot(Snapshot{
		Instrument: in,
		Kind:       p.cfg.Kind,
		Data:       resp.Data,
		FetchedAt:  time.Now(),
	})
}
