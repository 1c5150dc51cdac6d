// Package proxy 负责 TCP 连接管理与双向转发
// 这是核心管道模块：监听、按客户端重连上游、逐块复制字节、统一关闭
package proxy

import (
	"errors"
	"io"
)

// DefaultBufferSize is the largest chunk a relay holds in flight.
const DefaultBufferSize = 4096

// Endpoint names the side of a relay that stopped it.
type Endpoint int

const (
	EndpointNone Endpoint = iota
	EndpointSource
	EndpointDestination
)

func (e Endpoint) String() string {
	switch e {
	case EndpointSource:
		return "source"
	case EndpointDestination:
		return "destination"
	default:
		return "none"
	}
}

// RelayResult describes how a relay ended. Err is nil when the source
// closed gracefully.
type RelayResult struct {
	Bytes  int64
	Closed Endpoint
	Err    error
}

// Relay copies src to dst one chunk at a time until src reaches EOF or either
// side fails. Chunks are written whole and in order; at most len(buf) bytes
// are in flight.
func Relay(dst io.Writer, src io.Reader, buf []byte) RelayResult {
	var res RelayResult
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			res.Bytes += int64(w)
			if werr == nil && w != n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				res.Closed = EndpointDestination
				res.Err = werr
				return res
			}
		}
		if rerr != nil {
			res.Closed = EndpointSource
			if !errors.Is(rerr, io.EOF) {
				res.Err = rerr
			}
			return res
		}
	}
}
