package proxy

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
)

// ErrRegistryClosed is returned by Track once CloseAll has run.
var ErrRegistryClosed = errors.New("socket registry closed")

// Role tells client sockets from host sockets in logs and stats.
type Role string

const (
	RoleClient Role = "client"
	RoleHost   Role = "host"
)

// Conn is a tracked socket. Connected turns false once the socket is closed
// from either the owner or the registry.
type Conn struct {
	net.Conn
	role   Role
	remote string
	closed atomic.Bool
}

func (c *Conn) Role() Role {
	return c.role
}

// Endpoint is the remote address captured when the socket was tracked.
func (c *Conn) Endpoint() string {
	return c.remote
}

func (c *Conn) Connected() bool {
	return !c.closed.Load()
}

// Close is safe to call more than once; only the first call reaches the socket.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.Conn.Close()
}

// CloseWrite half-closes the socket so the peer reads EOF while this side can
// still read. Sockets without half-close support are closed outright.
func (c *Conn) CloseWrite() error {
	if c.closed.Load() {
		return nil
	}
	if hc, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return hc.CloseWrite()
	}
	return c.Close()
}

// Shutdown stops both directions before closing so that a peer blocked in
// Read sees EOF and a local reader blocked in Read returns at once.
func (c *Conn) Shutdown() error {
	if c.closed.Swap(true) {
		return nil
	}
	if tc, ok := c.Conn.(*net.TCPConn); ok {
		_ = tc.CloseRead()
		_ = tc.CloseWrite()
	}
	return c.Conn.Close()
}

// Registry records every socket the server opens so that one sweep can tear
// them all down. Entries are never removed; closed ones stay in place.
type Registry struct {
	mu     sync.Mutex
	conns  []*Conn
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Track wraps conn and records it. After CloseAll the socket is shut down
// immediately and ErrRegistryClosed is returned along with the wrapper.
func (r *Registry) Track(conn net.Conn, role Role) (*Conn, error) {
	c := &Conn{Conn: conn, role: role}
	if addr := conn.RemoteAddr(); addr != nil {
		c.remote = addr.String()
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = c.Shutdown()
		return c, ErrRegistryClosed
	}
	r.conns = append(r.conns, c)
	r.mu.Unlock()
	return c, nil
}

// Len is the number of sockets ever tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll shuts down every tracked socket that is still connected and
// returns how many it closed. Later calls close nothing and return 0.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0
	}
	r.closed = true
	conns := r.conns
	r.mu.Unlock()

	n := 0
	for _, c := range conns {
		if !c.Connected() {
			continue
		}
		if c.Shutdown() == nil {
			n++
		}
	}
	return n
}
