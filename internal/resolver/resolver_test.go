package resolver

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticLookup(table map[string][]string) LookupFunc {
	return func(_ context.Context, host string) ([]net.IPAddr, error) {
		ips, ok := table[host]
		if !ok {
			return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
		}
		out := make([]net.IPAddr, 0, len(ips))
		for _, s := range ips {
			out = append(out, net.IPAddr{IP: net.ParseIP(s)})
		}
		return out, nil
	}
}

func TestResolve(t *testing.T) {
	r := NewWithLookup(staticLookup(map[string][]string{
		"core-sw1.example.net": {"2001:db8::10", "192.0.2.10"},
		"v6only.example.net":   {"2001:db8::20"},
		"empty.example.net":    {},
	}), time.Second)
	ctx := context.Background()

	ip, err := r.Resolve(ctx, "core-sw1.example.net")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", ip, "IPv4 is preferred")

	ip, err = r.Resolve(ctx, "v6only.example.net")
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::20", ip)

	ip, err = r.Resolve(ctx, " 198.51.100.7 ")
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", ip)

	for _, host := range []string{"", "   ", "missing.example.net", "empty.example.net"} {
		_, err := r.Resolve(ctx, host)
		assert.ErrorIs(t, err, ErrNotResolvable, host)
	}
}

func TestResolveTimeout(t *testing.T) {
	r := NewWithLookup(func(ctx context.Context, _ string) ([]net.IPAddr, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, 10*time.Millisecond)

	_, err := r.Resolve(context.Background(), "slow.example.net")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotResolvable))
}

func TestResolveLocalhost(t *testing.T) {
	ip, err := New(2*time.Second).Resolve(context.Background(), "localhost")
	if err != nil {
		t.Skipf("system resolver unavailable: %v", err)
	}
	assert.NotEmpty(t, ip)
}
