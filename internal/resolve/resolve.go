// Package resolve turns host names into dialable IP addresses.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNoAddress is wrapped by ResolutionError when a lookup succeeds but returns nothing.
var ErrNoAddress = errors.New("no addresses found")

// ResolutionError reports a failed host lookup.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// LookupFunc matches net.Resolver.LookupIPAddr.
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

type Resolver struct {
	lookup LookupFunc
}

// New returns a Resolver backed by net.DefaultResolver.
func New() *Resolver {
	return &Resolver{lookup: net.DefaultResolver.LookupIPAddr}
}

// NewWithLookup returns a Resolver that uses lookup instead of DNS.
func NewWithLookup(lookup LookupFunc) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the first address host resolves to. There is no caching
// and no retry; callers retry at their own pace.
func (r *Resolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := r.lookup(ctx, host)
	if err != nil {
		return nil, &ResolutionError{Host: host, Err: err}
	}
	if len(addrs) == 0 {
		return nil, &ResolutionError{Host: host, Err: ErrNoAddress}
	}
	return addrs[0].IP, nil
}

// ResolveHostPort resolves host and joins the result with port.
func (r *Resolver) ResolveHostPort(ctx context.Context, host string, port int) (string, error) {
	ip, err := r.Resolve(ctx, host)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(ip.String(), fmt.Sprint(port)), nil
}
