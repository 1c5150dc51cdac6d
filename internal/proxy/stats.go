package proxy

import "sync/atomic"

// Stats is a point-in-time snapshot of server activity.
type Stats struct {
	SessionsAccepted int64
	SessionsActive   int64
	PairingsActive   int64
	DialAttempts     int64
	DialFailures     int64
	BytesUpstream    int64 // client -> host
	BytesDownstream  int64 // host -> client
	SocketsTracked   int
}

type counters struct {
	sessionsAccepted atomic.Int64
	sessionsActive   atomic.Int64
	pairingsActive   atomic.Int64
	dialAttempts     atomic.Int64
	dialFailures     atomic.Int64
	bytesUpstream    atomic.Int64
	bytesDownstream  atomic.Int64
}

func (s *Server) Stats() Stats {
	return Stats{
		SessionsAccepted: s.stats.sessionsAccepted.Load(),
		SessionsActive:   s.stats.sessionsActive.Load(),
		PairingsActive:   s.stats.pairingsActive.Load(),
		DialAttempts:     s.stats.dialAttempts.Load(),
		DialFailures:     s.stats.dialFailures.Load(),
		BytesUpstream:    s.stats.bytesUpstream.Load(),
		BytesDownstream:  s.stats.bytesDownstream.Load(),
		SocketsTracked:   s.registry.Len(),
	}
}
