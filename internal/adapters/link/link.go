// Package link connects the relay to a device over TCP. Both directions
// carry JSON objects, one per line:
//
//	relay  -> device  {"type":"send","seq":1,"fields":{"172":"Headline"}}
//	device -> relay   {"type":"ack","seq":1}
//	device -> relay   {"type":"nack","seq":1,"error":"busy"}
//	device -> relay   {"type":"ready"}
//	device -> relay   {"type":"message","fields":{"173":1}}
//	device -> relay   {"type":"config_opened"}
//	device -> relay   {"type":"config_closed","response":"%7B...%7D"}
//
// Only one device session is live at a time.
package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/feedrelay/internal/domain"
	"github.com/bft-labs/feedrelay/internal/ports"
	"github.com/bft-labs/feedrelay/pkg/log"
)

// Modes.
const (
	ModeListen = "listen"
	ModeDial   = "dial"
)

// DefaultAckTimeout bounds the wait for a device acknowledgement.
const DefaultAckTimeout = 5 * time.Second

// Config contains link settings.
type Config struct {
	// Mode is ModeListen (accept devices) or ModeDial (connect to a device)
	Mode string

	// Addr is the listen or dial address, host:port
	Addr string

	AckTimeout     time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Mode != ModeListen && c.Mode != ModeDial {
		return fmt.Errorf("%w: link mode %q must be %q or %q", domain.ErrInvalidConfig, c.Mode, ModeListen, ModeDial)
	}
	if c.Addr == "" {
		return fmt.Errorf("%w: link address is required", domain.ErrInvalidConfig)
	}
	return nil
}

// Link implements ports.Link over a JSON-lines TCP session.
type Link struct {
	config Config
	logger log.Logger

	seq atomic.Uint64

	mu       sync.Mutex
	sess     *session
	listener net.Listener
	ready    chan struct{}
}

// New creates a link. Call Run to start accepting or dialing.
func New(config Config, logger log.Logger) *Link {
	if config.AckTimeout <= 0 {
		config.AckTimeout = DefaultAckTimeout
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Link{
		config: config,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Send implements ports.Link. Without a connected device done receives
// domain.ErrNoPeer.
func (l *Link) Send(ctx context.Context, fields domain.Fields, done func(error)) {
	if err := ctx.Err(); err != nil {
		go done(err)
		return
	}
	s := l.current()
	if s == nil {
		go done(domain.ErrNoPeer)
		return
	}
	s.send(l.seq.Add(1), fields, l.config.AckTimeout, done)
}

// Connected reports whether a device session is live.
func (l *Link) Connected() bool {
	return l.current() != nil
}

// Ready is closed once a listening link is bound, or a dialing link starts.
func (l *Link) Ready() <-chan struct{} {
	return l.ready
}

// Addr returns the bound listen address, or nil.
func (l *Link) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Run serves device sessions until ctx is canceled, handing inbound events
// to d.
func (l *Link) Run(ctx context.Context, d ports.Dispatcher) error {
	if err := l.config.Validate(); err != nil {
		return err
	}
	defer l.drop(nil)

	if l.config.Mode == ModeDial {
		return l.runDial(ctx, d)
	}
	return l.runListen(ctx, d)
}

func (l *Link) runListen(ctx context.Context, d ports.Dispatcher) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.config.Addr, err)
	}
	l.mu.Lock()
	l.listener = ln
	l.mu.Unlock()
	close(l.ready)
	l.logger.Info("link listening", log.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			l.logger.Warn("accept failed", log.Err(err))
			continue
		}
		s := newSession(conn)
		l.attach(s)
		go l.serve(ctx, s, d)
	}
}

func (l *Link) runDial(ctx context.Context, d ports.Dispatcher) error {
	close(l.ready)
	bo := newBackoff(l.config.BackoffInitial, l.config.BackoffMax)
	var dialer net.Dialer

	for {
		conn, err := dialer.DialContext(ctx, "tcp", l.config.Addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Warn("dial failed", log.String("addr", l.config.Addr), log.Err(err))
			if bo.Wait(ctx) != nil {
				return nil
			}
			continue
		}
		bo.Reset()

		s := newSession(conn)
		l.attach(s)
		l.serve(ctx, s, d)
		if ctx.Err() != nil {
			return nil
		}
		if bo.Wait(ctx) != nil {
			return nil
		}
	}
}

// attach makes s the live session, ending the previous one.
func (l *Link) attach(s *session) {
	l.mu.Lock()
	old := l.sess
	l.sess = s
	l.mu.Unlock()

	if old != nil {
		l.logger.Info("device session replaced", log.String("session", old.id))
		old.close()
	}
	l.logger.Info("device connected",
		log.String("session", s.id),
		log.String("remote", s.conn.RemoteAddr().String()))
}

// drop ends s, or the live session when s is nil.
func (l *Link) drop(s *session) {
	l.mu.Lock()
	if s == nil {
		s = l.sess
	}
	if l.sess == s {
		l.sess = nil
	}
	l.mu.Unlock()

	if s != nil {
		s.close()
	}
}

func (l *Link) current() *session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sess
}

// serve reads from s until it ends.
func (l *Link) serve(ctx context.Context, s *session, d ports.Dispatcher) {
	go func() {
		select {
		case <-ctx.Done():
			s.close()
		case <-s.done:
		}
	}()

	logger := log.With(l.logger, log.String("session", s.id))
	err := s.read(func(m wireMessage) {
		ev, ok := m.event()
		if !ok {
			logger.Warn("unknown message type", log.String("type", m.Type))
			return
		}
		d.Dispatch(ev)
	}, func(err error) {
		logger.Warn("invalid message", log.Err(err))
	})

	l.drop(s)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn("device session failed", log.Err(err))
		return
	}
	logger.Info("device disconnected")
}
