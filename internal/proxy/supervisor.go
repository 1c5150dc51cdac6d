package proxy

import (
	"bufio"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/jpillora/sizestr"
)

type direction string

const (
	upstream   direction = "C->H"
	downstream direction = "H->C"
)

type relayDone struct {
	dir direction
	res RelayResult
}

// stoppedBy names the socket that ended the relay.
func (d relayDone) stoppedBy() Role {
	srcRole, dstRole := RoleClient, RoleHost
	if d.dir == downstream {
		srcRole, dstRole = RoleHost, RoleClient
	}
	if d.res.Closed == EndpointDestination {
		return dstRole
	}
	return srcRole
}

// clientHalfClosed is true when the client sent EOF on its write side. The
// client may still want the rest of the host's output.
func (d relayDone) clientHalfClosed() bool {
	return d.dir == upstream && d.res.Closed == EndpointSource && d.res.Err == nil
}

// session is one accepted client. The client socket lives for the whole
// session; host sockets come and go.
type session struct {
	id     string
	client *Conn
	// reader buffers client bytes so the retry wait can peek without
	// consuming them. Only one goroutine uses it at a time.
	reader *bufio.Reader
	logger *slog.Logger
}

// supervise keeps client paired with a live host connection, redialing
// whenever the host side drops, until the client leaves or the server stops.
func (s *Server) supervise(client *Conn) {
	sess := &session{
		id:     uuid.NewString(),
		client: client,
		reader: bufio.NewReaderSize(client, s.cfg.BufferSize),
	}
	sess.logger = s.logger.With("session", sess.id, "client", client.Endpoint())

	s.stats.sessionsActive.Add(1)
	defer s.stats.sessionsActive.Add(-1)
	defer client.Close()

	s.setNoDelay(client)
	sess.logger.Info("New client")

	b := &backoff.Backoff{Min: s.cfg.RetryInterval, Max: s.cfg.RetryMaxInterval}
	for s.running.Load() && client.Connected() {
		host, err := s.dialHost(sess)
		if err != nil {
			if !s.running.Load() {
				break
			}
			wait := b.Duration()
			sess.logger.Warn("Connect to host failed",
				"host", s.remoteAddr(),
				"attempt", int(b.Attempt()),
				"retryIn", wait,
				"error", err,
			)
			if !s.waitClient(sess, wait) {
				break
			}
			continue
		}
		b.Reset()
		if clientGone := s.pair(sess, host); clientGone {
			break
		}
	}
	sess.logger.Info("Client session ended")
}

func (s *Server) dialHost(sess *session) (*Conn, error) {
	s.stats.dialAttempts.Add(1)
	sess.logger.Info("Connecting to host", "host", s.remoteAddr())

	addr, err := s.resolver.ResolveHostPort(s.ctx, s.cfg.RemoteHost, s.cfg.RemotePort)
	if err != nil {
		s.stats.dialFailures.Add(1)
		return nil, err
	}
	conn, err := s.dialer.DialContext(s.ctx, "tcp", addr)
	if err != nil {
		s.stats.dialFailures.Add(1)
		return nil, err
	}
	host, err := s.registry.Track(conn, RoleHost)
	if err != nil {
		return nil, err
	}
	s.setNoDelay(host)
	return host, nil
}

// waitClient sits out a retry delay while watching the client. It returns
// false if the client hung up or the server is stopping. Bytes the client
// sends meanwhile stay buffered for the next host.
func (s *Server) waitClient(sess *session, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	if err := sess.client.SetReadDeadline(deadline); err != nil {
		return false
	}
	_, err := sess.reader.Peek(1)
	_ = sess.client.SetReadDeadline(time.Time{})

	switch {
	case err == nil:
		t := time.NewTimer(time.Until(deadline))
		defer t.Stop()
		select {
		case <-s.ctx.Done():
			return false
		case <-t.C:
			return true
		}
	case errors.Is(err, os.ErrDeadlineExceeded):
		return s.running.Load()
	default:
		sess.logger.Debug("Client closed while host unavailable", "error", err)
		return false
	}
}

// pair relays between the session's client and host until one side stops.
// It reports whether the client is gone; otherwise the client socket is left
// ready for the next host. A client half-close ends the session only after
// the host has finished replying.
func (s *Server) pair(sess *session, host *Conn) (clientGone bool) {
	lg := sess.logger.With("host", host.Endpoint())
	lg.Info("Connected to host")

	s.stats.pairingsActive.Add(1)
	defer s.stats.pairingsActive.Add(-1)

	done := make(chan relayDone, 2)
	go func() {
		res := Relay(host, sess.reader, make([]byte, s.cfg.BufferSize))
		s.stats.bytesUpstream.Add(res.Bytes)
		done <- relayDone{dir: upstream, res: res}
	}()
	go func() {
		res := Relay(sess.client, host, make([]byte, s.cfg.BufferSize))
		s.stats.bytesDownstream.Add(res.Bytes)
		done <- relayDone{dir: downstream, res: res}
	}()

	first := <-done
	logRelayDone(lg, first)
	if first.clientHalfClosed() {
		// The client is done sending but may still be reading. Pass the EOF on
		// and keep relaying the host's reply until the host finishes.
		if err := host.CloseWrite(); err != nil {
			lg.Debug("Half-close host failed", "error", err)
		}
		second := <-done
		logRelayDone(lg, second)
		_ = host.Close()
		lg.Info("Client finished sending, session done",
			"sent", sizestr.ToString(first.res.Bytes),
			"received", sizestr.ToString(second.res.Bytes),
		)
		return true
	}
	clientGone = first.stoppedBy() == RoleClient

	_ = host.Close()
	if clientGone {
		_ = sess.client.Close()
	} else {
		// Unblock the client read without closing the client.
		_ = sess.client.SetReadDeadline(time.Now())
	}

	second := <-done
	logRelayDone(lg, second)
	if !clientGone && second.stoppedBy() == RoleClient && !errors.Is(second.res.Err, os.ErrDeadlineExceeded) {
		clientGone = true
	}
	_ = sess.client.SetReadDeadline(time.Time{})

	up, down := first.res.Bytes, second.res.Bytes
	if first.dir == downstream {
		up, down = down, up
	}
	if clientGone {
		lg.Info("Client disconnected", "sent", sizestr.ToString(up), "received", sizestr.ToString(down))
	} else {
		lg.Info("Host disconnected, reconnecting", "sent", sizestr.ToString(up), "received", sizestr.ToString(down))
	}
	return clientGone
}

func logRelayDone(lg *slog.Logger, d relayDone) {
	attrs := []any{
		"dir", string(d.dir),
		"bytes", sizestr.ToString(d.res.Bytes),
	}
	switch {
	case errors.Is(d.res.Err, os.ErrDeadlineExceeded):
		attrs = append(attrs, "interrupted", true)
	case d.res.Err != nil:
		attrs = append(attrs, "disconnected", string(d.stoppedBy()), "error", d.res.Err)
	default:
		attrs = append(attrs, "disconnected", string(d.stoppedBy()))
	}
	lg.Debug("Relay stopped", attrs...)
}
