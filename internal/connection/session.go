package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/itick-stream/internal/protocol"
	"github.com/rickgao/itick-stream/internal/queue"
)

// ReceivedAtLayout formats the capture time of inbound frames.
const ReceivedAtLayout = "2006-01-02 15:04:05.000"

type eventKind int

const (
	eventStart eventKind = iota
	eventRetry
	eventDialFailed
	eventOpened
	eventMessage
	eventErrored
	eventClosed
	eventHeartbeat
)

// event is one input to the state machine. gen ties transport events to
// the connection that produced them.
type event struct {
	kind eventKind
	gen  uint64
	msg  TimestampedMessage
	err  error
}

// Observer receives lifecycle notifications from the event loop. Calls are
// made synchronously from the loop goroutine and must not block.
type Observer interface {
	StatusChanged(status Status)
	AttemptsChanged(attempts int)
	DialStarted()
	Opened()
	Disconnected()
	ReconnectScheduled(next ReconnectAttempt)
	MessageReceived(size int)
	SendFailed(action protocol.Action)
	LimitReached()
}

type nopObserver struct{}

func (nopObserver) StatusChanged(Status)                {}
func (nopObserver) AttemptsChanged(int)                 {}
func (nopObserver) DialStarted()                        {}
func (nopObserver) Opened()                             {}
func (nopObserver) Disconnected()                       {}
func (nopObserver) ReconnectScheduled(ReconnectAttempt) {}
func (nopObserver) MessageReceived(int)                 {}
func (nopObserver) SendFailed(protocol.Action)          {}
func (nopObserver) LimitReached()                       {}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClientFactory replaces the WebSocket transport.
func WithClientFactory(f ClientFactory) SessionOption {
	return func(s *Session) {
		if f != nil {
			s.factory = f
		}
	}
}

// WithPolicy replaces the fixed-delay reconnection policy.
func WithPolicy(p ReconnectPolicy) SessionOption {
	return func(s *Session) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithObserver attaches a lifecycle observer such as a metrics collector.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// Session is one logical subscriber: it connects, authenticates,
// subscribes, streams, and reconnects until its attempt budget is spent.
type Session struct {
	cfg      SessionConfig
	types    string // wire form of cfg.Types
	logger   *slog.Logger
	factory  ClientFactory
	policy   ReconnectPolicy
	observer Observer

	// afterFunc schedules f after d and returns a stop function.
	afterFunc func(d time.Duration, f func()) func() bool
	now       func() time.Time

	events    *queue.Queue[event]
	startOnce sync.Once
	done      chan struct{}

	// Owned by the event loop goroutine.
	ctx           context.Context
	status        Status
	attempts      int
	client        Client
	gen           uint64
	retrying      bool
	cancelRetry   func() bool
	stopHeartbeat chan struct{}
	halted        bool

	// Read-only mirrors for other goroutines.
	statusView   atomic.Int32
	attemptsView atomic.Int64
}

// NewSession creates a session. Nothing happens on the network until Start.
func NewSession(cfg SessionConfig, opts ...SessionOption) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = DefaultLocation()
	}
	cfg.Client.URL = cfg.URL

	s := &Session{
		cfg:      cfg,
		types:    protocol.JoinTypes(cfg.Types),
		logger:   slog.Default(),
		factory:  NewClient,
		policy:   FixedPolicy{Delay: cfg.ReconnectDelay, Limit: cfg.ReconnectLimit},
		observer: nopObserver{},
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		now:    time.Now,
		events: queue.New[event](64),
		done:   make(chan struct{}),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("symbol", cfg.Symbol)

	return s, nil
}

// DefaultLocation returns Asia/Shanghai, or a fixed UTC+8 zone when the
// tz database is unavailable.
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// Start requests a connection. It returns immediately; the dial and any
// retry delay run asynchronously. Calling Start while a connection is live
// or a dial/retry is already pending has no effect, and after the attempt
// limit is spent Start does nothing. The first ctx passed governs the
// session's lifetime: cancelling it closes the transport and stops the loop.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ctx = ctx
		go s.run()
		go func() {
			select {
			case <-ctx.Done():
				s.events.Close()
			case <-s.done:
			}
		}()
	})
	s.post(event{kind: eventStart})
}

// Status returns the current lifecycle status.
func (s *Session) Status() Status {
	return Status(s.statusView.Load())
}

// Attempts returns the current reconnect attempt counter.
func (s *Session) Attempts() int {
	return int(s.attemptsView.Load())
}

// QueueStats reports the event queue counters.
func (s *Session) QueueStats() queue.Stats {
	return s.events.Stats()
}

// Done is closed when the session stops for good: the attempt limit was
// reached or the Start context was cancelled.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) post(ev event) bool {
	return s.events.Push(ev)
}

// run is the event loop. Nothing else touches loop-owned fields.
func (s *Session) run() {
	defer close(s.done)
	defer s.shutdown()

	for {
		ev, ok := s.events.Pop()
		if !ok || s.ctx.Err() != nil {
			return
		}
		s.handle(ev)
		if s.halted {
			return
		}
	}
}

// handle applies one event to the state machine.
func (s *Session) handle(ev event) {
	switch ev.kind {
	case eventStart:
		if s.retrying {
			s.logger.Debug("start ignored, reconnect already scheduled")
			return
		}
		s.connect()

	case eventRetry:
		s.retrying = false
		s.cancelRetry = nil
		s.connect()

	case eventHeartbeat:
		if ev.gen == s.gen {
			s.sendHeartbeat()
		}

	default:
		if ev.gen != s.gen {
			// Late event from a transport we already released.
			return
		}
		switch ev.kind {
		case eventDialFailed:
			s.onDialFailed(ev.err)
		case eventOpened:
			s.onOpen()
		case eventMessage:
			s.onMessage(ev.msg)
		case eventErrored:
			s.onError(ev.err)
		case eventClosed:
			s.onClose()
		}
	}
}

// connect creates a new transport unless one is already active.
func (s *Session) connect() {
	if s.halted {
		return
	}
	if s.client != nil || s.status != StatusDisconnected {
		s.logger.Debug("connect ignored, transport already active", "status", s.status)
		return
	}

	s.gen++
	gen := s.gen
	logger := s.logger.With("conn_id", uuid.NewString())

	c := s.factory(s.cfg.Client, logger)
	s.client = c
	s.setStatus(StatusConnecting)
	s.observer.DialStarted()

	logger.Info("connecting to stream", "url", s.cfg.URL, "attempt", s.attempts)

	go s.dial(gen, c)
}

// dial runs off the loop. It reports the outcome and then forwards the
// connection's frames in order until the transport closes.
func (s *Session) dial(gen uint64, c Client) {
	if err := c.Connect(s.ctx); err != nil {
		s.post(event{kind: eventDialFailed, gen: gen, err: err})
		return
	}
	s.post(event{kind: eventOpened, gen: gen})
	s.pump(gen, c)
}

func (s *Session) pump(gen uint64, c Client) {
	msgs, errs := c.Messages(), c.Errors()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				for {
					select {
					case err := <-errs:
						s.post(event{kind: eventErrored, gen: gen, err: err})
					default:
						s.post(event{kind: eventClosed, gen: gen})
						return
					}
				}
			}
			s.post(event{kind: eventMessage, gen: gen, msg: msg})
		case err := <-errs:
			s.post(event{kind: eventErrored, gen: gen, err: err})
		}
	}
}

func (s *Session) onDialFailed(err error) {
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		connErr = &ConnectionError{URL: s.cfg.URL, Err: err}
	}
	s.logger.Error("connection failed", "error", connErr)

	s.releaseClient()
	s.setStatus(StatusDisconnected)
	s.scheduleReconnect()
}

// onOpen runs once per successful connection. Both handshake sends are
// best-effort: neither failure stops the other or the session.
func (s *Session) onOpen() {
	s.setStatus(StatusConnected)
	s.setAttempts(0)
	s.observer.Opened()
	s.logger.Info("connected to stream", "url", s.cfg.URL)

	s.setStatus(StatusAuthenticating)
	if err := s.send(protocol.BuildAuthMessage(s.cfg.Token)); err != nil {
		s.logger.Error("failed to send authentication", "error", err)
	} else {
		s.logger.Info("sent authentication request")
	}

	if err := s.send(protocol.BuildSubscribeMessage(s.cfg.Symbol, s.types)); err != nil {
		s.logger.Error("failed to send subscription", "error", err)
	} else {
		s.logger.Info("subscribed to market data", "types", s.types)
	}

	s.setStatus(StatusSubscribed)
	s.startHeartbeat()
}

func (s *Session) onMessage(msg TimestampedMessage) {
	s.observer.MessageReceived(len(msg.Data))
	s.logger.Info("received data",
		"received_at", msg.ReceivedAt.In(s.cfg.Location).Format(ReceivedAtLayout),
		"data", string(msg.Data),
	)
}

// onError is informational. The transport always closes after an error,
// and that close drives reconnection.
func (s *Session) onError(err error) {
	s.logger.Error("websocket error", "error", &ConnectionError{URL: s.cfg.URL, Err: err})
	if s.status != StatusDisconnected {
		s.setStatus(StatusClosing)
	}
}

func (s *Session) onClose() {
	if s.status == StatusDisconnected {
		s.logger.Debug("duplicate close ignored")
		return
	}
	s.logger.Warn("stream connection closed")
	s.observer.Disconnected()

	s.releaseClient()
	s.setStatus(StatusDisconnected)
	s.scheduleReconnect()
}

// scheduleReconnect consults the policy and arms the retry timer.
func (s *Session) scheduleReconnect() {
	next, ok := s.policy.Next(s.attempts)
	if !ok {
		s.setAttempts(next.Attempt)
		err := &LimitExceededError{Attempts: s.attempts, Limit: next.Limit}
		s.logger.Error("reconnect limit reached, giving up", "error", err)
		s.observer.LimitReached()
		s.halted = true
		return
	}

	s.setAttempts(next.Attempt)
	s.observer.ReconnectScheduled(next)
	s.logger.Info("attempting reconnection",
		"attempt", next.Attempt,
		"limit", next.Limit,
		"delay", next.Delay,
	)

	s.retrying = true
	s.cancelRetry = s.afterFunc(next.Delay, func() {
		s.post(event{kind: eventRetry})
	})
}

func (s *Session) send(msg protocol.ControlMessage) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.observer.SendFailed(msg.Action)
		return &SendError{Action: string(msg.Action), Err: err}
	}
	if s.client == nil {
		s.observer.SendFailed(msg.Action)
		return &SendError{Action: string(msg.Action), Err: ErrNotConnected}
	}
	if err := s.client.Send(data); err != nil {
		s.observer.SendFailed(msg.Action)
		return &SendError{Action: string(msg.Action), Err: err}
	}
	return nil
}

func (s *Session) startHeartbeat() {
	if s.cfg.HeartbeatInterval <= 0 {
		return
	}
	stop := make(chan struct{})
	s.stopHeartbeat = stop
	gen := s.gen
	interval := s.cfg.HeartbeatInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !s.post(event{kind: eventHeartbeat, gen: gen}) {
					return
				}
			}
		}
	}()
}

func (s *Session) sendHeartbeat() {
	if s.status != StatusSubscribed {
		return
	}
	if err := s.send(protocol.BuildPingMessage(s.now())); err != nil {
		s.logger.Warn("failed to send heartbeat", "error", err)
	}
}

// releaseClient drops the current transport so a new one can be created.
func (s *Session) releaseClient() {
	if s.stopHeartbeat != nil {
		close(s.stopHeartbeat)
		s.stopHeartbeat = nil
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Debug("close transport", "error", err)
		}
		s.client = nil
	}
}

// shutdown runs when the loop exits.
func (s *Session) shutdown() {
	s.events.Close()
	if s.cancelRetry != nil {
		s.cancelRetry()
		s.cancelRetry = nil
	}
	if s.client != nil {
		s.setStatus(StatusClosing)
	}
	s.releaseClient()
	s.setStatus(StatusDisconnected)

	if s.halted {
		s.logger.Error("session stopped permanently, restart required", "attempts", s.attempts)
	} else {
		s.logger.Info("session stopped")
	}
}

func (s *Session) setStatus(st Status) {
	if s.status == st {
		return
	}
	s.status = st
	s.statusView.Store(int32(st))
	s.observer.StatusChanged(st)
}

func (s *Session) setAttempts(n int) {
	s.attempts = n
	s.attemptsView.Store(int64(n))
	s.observer.AttemptsChanged(n)
}
