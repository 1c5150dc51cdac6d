package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Versifine/passthru/internal/resolve"
)

// ErrServerClosed is returned by Listen after Terminate.
var ErrServerClosed = errors.New("proxy: server closed")

const defaultRetryInterval = time.Second

type Config struct {
	ListenHost string
	ListenPort int
	RemoteHost string
	RemotePort int

	// BufferSize caps each relay chunk. Zero means DefaultBufferSize.
	BufferSize int
	// RetryInterval is the delay after a failed dial. Zero means one second.
	RetryInterval time.Duration
	// RetryMaxInterval above RetryInterval turns the fixed delay into an
	// exponential one capped at this value.
	RetryMaxInterval time.Duration
	NoDelay          bool
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithResolver(r *resolve.Resolver) Option {
	return func(s *Server) {
		if r != nil {
			s.resolver = r
		}
	}
}

func WithRegistry(r *Registry) Option {
	return func(s *Server) {
		if r != nil {
			s.registry = r
		}
	}
}

type Server struct {
	cfg      Config
	logger   *slog.Logger
	resolver *resolve.Resolver
	registry *Registry
	dialer   net.Dialer

	// ctx is cancelled by Terminate; dials and retry waits observe it.
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	stop    sync.Once

	mu       sync.Mutex
	listener net.Listener

	wg    sync.WaitGroup
	stats counters
}

func NewServer(cfg Config, opts ...Option) *Server {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.RetryMaxInterval < cfg.RetryInterval {
		cfg.RetryMaxInterval = cfg.RetryInterval
	}
	s := &Server{
		cfg:      cfg,
		logger:   slog.Default(),
		resolver: resolve.New(),
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running.Store(true)
	return s
}

// Start binds and serves. Like Serve, it returns nil after Terminate, even
// when Terminate wins the race with the bind.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		if errors.Is(err, ErrServerClosed) {
			return nil
		}
		return err
	}
	return s.Serve(ctx)
}

// Listen resolves the local address and binds it.
func (s *Server) Listen() error {
	addr, err := s.resolver.ResolveHostPort(s.ctx, s.cfg.ListenHost, s.cfg.ListenPort)
	if err != nil {
		return fmt.Errorf("listen address: %w", err)
	}
	s.logger.Info("Starting relay server", "listenAddr", addr, "hostAddr", s.remoteAddr())

	var lc net.ListenConfig
	ln, err := lc.Listen(s.ctx, "tcp", addr)
	if err != nil {
		if !s.running.Load() {
			return ErrServerClosed
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		_ = ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.logger.Info("Listening", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts clients until the listener fails or the server is
// terminated, then waits for every session to finish. It returns nil when the
// stop was intentional.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("proxy: Serve called before Listen")
	}

	stopWatch := context.AfterFunc(ctx, s.Terminate)
	defer stopWatch()

	for {
		conn, err := ln.Accept()
		if err != nil {
			intentional := !s.running.Load() || ctx.Err() != nil
			s.Terminate()
			s.wg.Wait()
			if intentional {
				st := s.Stats()
				s.logger.Info("Relay server stopped",
					"sessions", st.SessionsAccepted,
					"dials", st.DialAttempts,
					"dialFailures", st.DialFailures,
				)
				return nil
			}
			s.logger.Error("Error accepting connection", "error", err)
			return fmt.Errorf("accept: %w", err)
		}

		client, err := s.registry.Track(conn, RoleClient)
		if err != nil {
			continue
		}
		s.stats.sessionsAccepted.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.supervise(client)
		}()
	}
}

// Terminate stops accepting, cancels pending dials and retry waits, and shuts
// down every tracked socket so blocked relays return. It is idempotent.
func (s *Server) Terminate() {
	s.stop.Do(func() {
		s.running.Store(false)
		s.cancel()

		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()
		if ln != nil {
			_ = ln.Close()
		}

		n := s.registry.CloseAll()
		s.logger.Info("Shutting down relay server", "socketsClosed", n)
	})
}

// Running is false once Terminate has been called.
func (s *Server) Running() bool {
	return s.running.Load()
}

func (s *Server) remoteAddr() string {
	return net.JoinHostPort(s.cfg.RemoteHost, strconv.Itoa(s.cfg.RemotePort))
}

func (s *Server) setNoDelay(c *Conn) {
	if !s.cfg.NoDelay {
		return
	}
	// Disable Nagle's algorithm for lower latency on interactive sessions
	if tcpConn, ok := c.Conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
}
