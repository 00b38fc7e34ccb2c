// Package session owns the lifecycle of one logical WebSocket
// connection: the state machine driven by user commands and transport
// events, and the liveness timers that inject automatic pings and
// reconnects. Exactly one connection is live per Session; transitions
// are serialized behind a mutex, and every asynchronous completion
// (dial result, read loop, timer firing) carries a generation counter
// so events from a superseded attempt can never act on a stale state.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wsling/wsling/pkg/traffic"
	"github.com/wsling/wsling/pkg/transport"
)

// releaseTimeout bounds the teardown of connections that lost the race
// with a cancel or a newer attempt.
const releaseTimeout = 2 * time.Second

// Renderer resolves template placeholders in outbound text and URLs.
// template.Renderer satisfies this interface.
type Renderer interface {
	Render(s, context string) string
}

// StateChange describes one transition, delivered to Config.OnState.
// Err is set when entering Failed.
type StateChange struct {
	From State
	To   State
	Err  error
}

// Config wires a Session to its collaborators.
type Config struct {
	// Dialer opens transport connections. Required.
	Dialer transport.Dialer

	// Renderer resolves template placeholders. Optional; when nil the
	// template toggles in Options are ignored.
	Renderer Renderer

	// Feed receives every inbound frame and every attempted outbound
	// frame for the host's log view. Outbound records are emitted when
	// the write is attempted, before the transport reports success, so
	// a frame whose write fails still appears on the feed alongside
	// the Failed transition. Optional; a default-sized feed is created
	// when nil.
	Feed *traffic.Feed

	// Logger receives operational events. Optional; defaults to a
	// no-op logger.
	Logger *slog.Logger

	// OnState is invoked after every state transition, in transition
	// order. Optional. It runs on session goroutines with internal
	// locks held: it must return promptly and must not call back into
	// the Session.
	OnState func(StateChange)
}

// Session drives one logical connection.
type Session struct {
	dialer   transport.Dialer
	renderer Renderer
	feed     *traffic.Feed
	log      *slog.Logger
	onState  func(StateChange)

	mu         sync.Mutex
	state      State
	opts       Options // snapshot taken by Connect
	url        string  // endpoint after template rendering
	conn       transport.Conn
	err        error // last transport error
	gen        uint64
	cancelDial context.CancelFunc
	stopPing   chan struct{}
	reconnect  *time.Timer
	delay      time.Duration // next reconnect delay
}

// New creates a Session in the Idle state.
func New(cfg Config) (*Session, error) {
	if cfg.Dialer == nil {
		return nil, errors.New("session: dialer is required")
	}

	feed := cfg.Feed
	if feed == nil {
		feed = traffic.NewFeed(0)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Session{
		dialer:   cfg.Dialer,
		renderer: cfg.Renderer,
		feed:     feed,
		log:      log,
		onState:  cfg.OnState,
	}, nil
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Err returns the transport error that caused the last entry into
// Failed, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Feed returns the traffic feed frames are emitted on.
func (s *Session) Feed() *traffic.Feed {
	return s.feed
}

// Options returns the snapshot taken by the last Connect.
func (s *Session) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opts
}

// Connect starts a dial attempt with a snapshot of opts and returns as
// soon as the attempt is in flight; the Open (or Failed) transition is
// reported through OnState. Valid from Idle, Closed, and Failed; a
// Connect while Connecting or Open returns ErrAlreadyActive and leaves
// the existing attempt untouched. Reconnect backoff is reset.
//
// ctx bounds this dial attempt only. Automatic reconnect attempts run
// detached from it.
func (s *Session) Connect(ctx context.Context, opts Options) error {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Connecting, Open:
		return ErrAlreadyActive
	case Closing:
		return ErrInvalidState
	}

	s.stopReconnectLocked()

	url := opts.URL
	if opts.TemplateURL && s.renderer != nil {
		url = s.renderer.Render(url, opts.Context)
	}

	s.opts = opts
	s.url = url
	s.err = nil
	s.delay = opts.ReconnectDelay

	s.startDialLocked(ctx)

	return nil
}

// Send renders text through the template renderer when enabled and
// writes it as a text frame. Valid only while Open: in any other state
// it returns ErrInvalidState without queueing anything. The outbound
// record hits the feed when the write is attempted; a transport write
// failure moves the session to Failed with the record already emitted.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.state != Open {
		s.mu.Unlock()
		return ErrInvalidState
	}

	payload := text
	if s.opts.TemplateData && s.renderer != nil {
		payload = s.renderer.Render(text, s.opts.Context)
	}

	gen := s.gen
	conn := s.conn
	s.feed.Emit(traffic.Outbound, traffic.KindText, []byte(payload))
	s.mu.Unlock()

	if err := conn.Write(ctx, transport.Frame{Data: []byte(payload)}); err != nil {
		s.transportFailed(gen, err)
		return fmt.Errorf("session: send: %w", err)
	}

	return nil
}

// SendBinary writes data as a binary frame. Binary payloads are never
// template-rendered.
func (s *Session) SendBinary(ctx context.Context, data []byte) error {
	s.mu.Lock()
	if s.state != Open {
		s.mu.Unlock()
		return ErrInvalidState
	}

	gen := s.gen
	conn := s.conn
	s.feed.Emit(traffic.Outbound, traffic.KindBinary, data)
	s.mu.Unlock()

	if err := conn.Write(ctx, transport.Frame{Binary: true, Data: data}); err != nil {
		s.transportFailed(gen, err)
		return fmt.Errorf("session: send: %w", err)
	}

	return nil
}

// Ping sends a protocol ping and returns the round-trip time to the
// peer's pong. Valid only while Open. A transport failure moves the
// session to Failed.
func (s *Session) Ping(ctx context.Context) (time.Duration, error) {
	s.mu.Lock()
	if s.state != Open {
		s.mu.Unlock()
		return 0, ErrInvalidState
	}

	gen := s.gen
	conn := s.conn
	s.feed.Emit(traffic.Outbound, traffic.KindPing, nil)
	s.mu.Unlock()

	rtt, err := conn.Ping(ctx)
	if err != nil {
		s.transportFailed(gen, err)
		return 0, fmt.Errorf("session: ping: %w", err)
	}

	s.log.Debug("pong received", "rtt", rtt)

	return rtt, nil
}

// Disconnect ends the current connection attempt or connection.
//
//   - While Connecting, the in-flight dial is cancelled and the session
//     rests at Closed; no Open transition will occur for that attempt.
//   - While Open, a close handshake runs, bounded by CloseTimeout, and
//     the session rests at Closed.
//   - While Failed, the pending reconnect timer (if any) is cancelled
//     and the session rests at Closed.
//
// In any other state Disconnect returns ErrInvalidState.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()

	switch s.state {
	case Connecting:
		s.gen++
		if s.cancelDial != nil {
			s.cancelDial()
			s.cancelDial = nil
		}
		s.setStateLocked(Closed)
		s.mu.Unlock()
		return nil

	case Failed:
		s.gen++
		s.stopReconnectLocked()
		s.setStateLocked(Closed)
		s.mu.Unlock()
		return nil

	case Open:
		s.gen++
		gen := s.gen
		s.stopPingLocked()
		conn := s.conn
		s.conn = nil
		timeout := s.opts.CloseTimeout
		s.setStateLocked(Closing)
		s.mu.Unlock()

		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := conn.Close(cctx)

		s.mu.Lock()
		// A Close that ran during the handshake supersedes this
		// disconnect; its Idle reset stands.
		if gen == s.gen {
			s.setStateLocked(Closed)
		}
		s.mu.Unlock()

		if err != nil {
			return fmt.Errorf("session: close: %w", err)
		}
		return nil

	default:
		s.mu.Unlock()
		return ErrInvalidState
	}
}

// Close tears the session down regardless of state and resets it to
// Idle. Meant for host shutdown; safe to call repeatedly.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	s.stopReconnectLocked()
	s.stopPingLocked()
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	conn := s.conn
	s.conn = nil
	s.err = nil
	if s.state != Idle {
		s.setStateLocked(Idle)
	}
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, DefaultCloseTimeout)
	defer cancel()
	if err := conn.Close(cctx); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}

	return nil
}

// setStateLocked applies a transition and reports it. Callers hold mu.
func (s *Session) setStateLocked(to State) {
	from := s.state
	s.state = to

	s.log.Info("state transition", "from", from, "to", to)

	if s.onState != nil {
		change := StateChange{From: from, To: to}
		if to == Failed {
			change.Err = s.err
		}
		s.onState(change)
	}
}

// startDialLocked moves to Connecting and launches the dial goroutine.
// Callers hold mu.
func (s *Session) startDialLocked(parent context.Context) {
	s.gen++
	gen := s.gen

	dctx, cancel := context.WithTimeout(parent, s.opts.DialTimeout)
	s.cancelDial = cancel

	url := s.url
	header := s.opts.header()
	sslVerify := s.opts.SSLVerify

	s.setStateLocked(Connecting)
	s.log.Info("connecting", "url", url)

	go func() {
		conn, err := s.dialer.Dial(dctx, url, header, sslVerify)
		if err != nil {
			s.transportFailed(gen, err)
			return
		}
		s.dialDone(gen, conn)
	}()
}

// dialDone handles a successful dial. Attempts superseded by a
// Disconnect or a newer Connect release the connection and stop.
func (s *Session) dialDone(gen uint64, conn transport.Conn) {
	s.mu.Lock()
	if gen != s.gen || s.state != Connecting {
		s.mu.Unlock()
		releaseConn(conn)
		return
	}

	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}

	s.conn = conn
	s.delay = s.opts.ReconnectDelay // successful open resets backoff

	s.setStateLocked(Open)

	s.startReadLoopLocked()
	if s.opts.AutoPing {
		s.startPingLocked()
	}
	s.mu.Unlock()
}

// transportFailed records a dial, read, write, or ping failure and
// moves the session to Failed, scheduling a reconnect when enabled.
// Events from superseded attempts are dropped.
func (s *Session) transportFailed(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}

	s.gen++
	s.stopPingLocked()
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	conn := s.conn
	s.conn = nil
	s.err = err

	if code, ok := transport.CloseCode(err); ok {
		s.log.Info("closed by peer", "code", code)
	} else {
		s.log.Warn("transport failure", "error", err)
	}

	s.setStateLocked(Failed)

	if s.opts.AutoReconnect {
		s.scheduleReconnectLocked()
	}
	s.mu.Unlock()

	if conn != nil {
		releaseConn(conn)
	}
}

// startReadLoopLocked launches the inbound pump for the current
// connection. Callers hold mu with state Open.
func (s *Session) startReadLoopLocked() {
	gen := s.gen
	conn := s.conn

	go func() {
		for {
			f, err := conn.Read(context.Background())
			if err != nil {
				s.transportFailed(gen, err)
				return
			}

			s.mu.Lock()
			if gen != s.gen {
				s.mu.Unlock()
				return
			}
			kind := traffic.KindText
			if f.Binary {
				kind = traffic.KindBinary
			}
			s.feed.Emit(traffic.Inbound, kind, f.Data)
			s.mu.Unlock()
		}
	}()
}

// startPingLocked launches the auto-ping timer. Callers hold mu with
// state Open. The timer is cancelled the moment the session leaves
// Open; a tick that loses that race is discarded by the generation
// check before any frame is sent.
func (s *Session) startPingLocked() {
	stop := make(chan struct{})
	s.stopPing = stop
	gen := s.gen
	interval := s.opts.PingInterval

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-stop:
				return
			case <-t.C:
			}

			s.mu.Lock()
			stale := gen != s.gen
			s.mu.Unlock()
			if stale {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), interval)
			_, err := s.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}()
}

// stopPingLocked cancels the auto-ping timer. Callers hold mu.
func (s *Session) stopPingLocked() {
	if s.stopPing != nil {
		close(s.stopPing)
		s.stopPing = nil
	}
}

// scheduleReconnectLocked arms the reconnect timer with the current
// backoff delay and grows the delay for the next failure. Callers hold
// mu with state Failed.
func (s *Session) scheduleReconnectLocked() {
	delay := s.delay

	s.delay *= 2
	if s.delay > s.opts.MaxReconnectDelay {
		s.delay = s.opts.MaxReconnectDelay
	}

	gen := s.gen
	s.reconnect = time.AfterFunc(delay, func() {
		s.reconnectFired(gen)
	})

	s.log.Info("reconnect scheduled", "delay", delay)
}

// stopReconnectLocked cancels a pending reconnect timer. Callers hold
// mu.
func (s *Session) stopReconnectLocked() {
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
}

// reconnectFired retries the connect with the snapshot taken by the
// original Connect. Firings that lost the race with a Disconnect or a
// manual Connect are discarded.
func (s *Session) reconnectFired(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.state != Failed {
		return
	}

	s.reconnect = nil
	s.startDialLocked(context.Background())
}

// releaseConn tears down a connection nothing is tracking anymore.
func releaseConn(conn transport.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	_ = conn.Close(ctx)
}
