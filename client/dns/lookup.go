package dns

import (
	"context"
	"maps"
	"net"

	"github.com/pkg/errors"
)

var ErrDomainNotFound = errors.New("domain not found")

// Lookuper resolves a hostname into its addresses.
type Lookuper interface {
	LookupIP(ctx context.Context, host string) ([]net.IP, error)
}

type netLookuper struct {
	resolver *net.Resolver
}

// NewNetLookuper wraps the resolver from the standard library. A nil resolver stands for
// net.DefaultResolver.
func NewNetLookuper(resolver *net.Resolver) Lookuper {
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	return netLookuper{resolver: resolver}
}

func (n netLookuper) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	return n.resolver.LookupIP(ctx, "ip", host)
}

type mapLookuper struct {
	set map[string][]net.IP
}

var _ Lookuper = (*mapLookuper)(nil)

// NewMapLookuper returns a lookuper serving a fixed set of domains.
func NewMapLookuper(set map[string][]net.IP) *mapLookuper {
	if set == nil {
		set = make(map[string][]net.IP)
	}

	return &mapLookuper{set: maps.Clone(set)}
}

func (m *mapLookuper) LookupIP(_ context.Context, host string) ([]net.IP, error) {
	addrs, ok := m.set[host]
	if !ok {
		return nil, ErrDomainNotFound
	}

	return addrs, nil
}
