// Package resolver turns device hostnames into addresses.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrNotResolvable is returned for any lookup failure, including empty input.
var ErrNotResolvable = errors.New("hostname could not be resolved")

const defaultTimeout = 5 * time.Second

// LookupFunc matches (*net.Resolver).LookupIPAddr.
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// Resolver performs single DNS lookups with a bounded wait.
type Resolver struct {
	lookup  LookupFunc
	timeout time.Duration
}

// New creates a Resolver backed by the system resolver.
func New(timeout time.Duration) *Resolver {
	return NewWithLookup(net.DefaultResolver.LookupIPAddr, timeout)
}

// NewWithLookup creates a Resolver with a custom lookup function.
func NewWithLookup(lookup LookupFunc, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Resolver{lookup: lookup, timeout: timeout}
}

// Resolve returns the first IPv4 address of hostname, or its first address
// when it has no IPv4 one. Literal addresses are returned as-is.
func (r *Resolver) Resolve(ctx context.Context, hostname string) (string, error) {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return "", fmt.Errorf("%w: hostname is required", ErrNotResolvable)
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return ip.String(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	addrs, err := r.lookup(ctx, hostname)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotResolvable, hostname, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("%w: %s: no addresses", ErrNotResolvable, hostname)
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return addrs[0].IP.String(), nil
}
