package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolver derives and caches host identities. An address resolves once per
// process; later cycles get the cached identity so the ID stays stable even
// if the host stops answering.
type Resolver struct {
	prober     Prober
	arp        ARPTable
	lookupAddr func(ctx context.Context, addr string) ([]string, error)
	localMAC   func() (string, error)
	logger     *zap.Logger

	mu    sync.Mutex
	cache map[string]Identity
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithProber overrides the reachability prober.
func WithProber(p Prober) ResolverOption {
	return func(r *Resolver) { r.prober = p }
}

// WithARPTable overrides the ARP table reader.
func WithARPTable(t ARPTable) ResolverOption {
	return func(r *Resolver) { r.arp = t }
}

// WithLookupAddr overrides the reverse DNS lookup.
func WithLookupAddr(fn func(ctx context.Context, addr string) ([]string, error)) ResolverOption {
	return func(r *Resolver) { r.lookupAddr = fn }
}

// WithLocalMAC overrides how the agent's own MAC is found for loopback hosts.
func WithLocalMAC(fn func() (string, error)) ResolverOption {
	return func(r *Resolver) { r.localMAC = fn }
}

// NewResolver creates a Resolver using ICMP, the system ARP table and the
// default DNS resolver unless overridden.
func NewResolver(prober Prober, logger *zap.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		prober:     prober,
		arp:        SystemARPTable{},
		lookupAddr: net.DefaultResolver.LookupAddr,
		localMAC:   firstHardwareAddr,
		logger:     logger,
		cache:      make(map[string]Identity),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the identity of ip. The returned error is informational
// (ErrUnreachable or ErrUnsupportedAgent); the identity is always usable.
func (r *Resolver) Resolve(ctx context.Context, ip string) (Identity, error) {
	r.mu.Lock()
	id, ok := r.cache[ip]
	r.mu.Unlock()
	if ok {
		return id, nil
	}

	mac, macErr := r.resolveMAC(ctx, ip)
	if macErr != nil {
		if ctx.Err() != nil {
			// Do not pin a derived ID because of a shutdown.
			return Identity{ID: DeriveID(ip), Name: ""}, macErr
		}
		r.logger.Warn("could not resolve hardware address, using derived id",
			zap.String("host", ip),
			zap.Error(macErr),
		)
		mac = DeriveID(ip)
	}

	id = Identity{ID: mac, Name: r.resolveName(ctx, ip)}

	r.mu.Lock()
	if cached, ok := r.cache[ip]; ok {
		id = cached
	} else {
		r.cache[ip] = id
	}
	r.mu.Unlock()

	return id, macErr
}

// Forget drops the cached identity for ip.
func (r *Resolver) Forget(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, ip)
}

func (r *Resolver) resolveMAC(ctx context.Context, ip string) (string, error) {
	if isLoopback(ip) {
		mac, err := r.localMAC()
		if err != nil {
			return "", err
		}
		return compactMAC(mac), nil
	}

	if r.prober != nil {
		if err := r.prober.Probe(ctx, ip); err != nil {
			// The ARP entry may still be fresh from earlier traffic.
			r.logger.Debug("reachability probe failed", zap.String("host", ip), zap.Error(err))
		}
	}

	mac, err := r.arp.Lookup(ctx, ip)
	if err != nil {
		if errors.Is(err, ErrUnsupportedAgent) || errors.Is(err, ErrUnreachable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return compactMAC(mac), nil
}

func (r *Resolver) resolveName(ctx context.Context, ip string) string {
	if r.lookupAddr == nil {
		return ""
	}
	names, err := r.lookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}

// DeriveID returns a deterministic MAC-like token for an address whose real
// hardware address is unknown: the first 12 hex digits of a UUIDv5 of the IP.
func DeriveID(ip string) string {
	u := uuid.NewSHA1(uuid.NameSpaceURL, []byte("hwmeter://host/"+ip))
	return strings.ReplaceAll(u.String(), "-", "")[:12]
}

func isLoopback(ip string) bool {
	if ip == "localhost" {
		return true
	}
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}

// compactMAC turns AA:BB:CC:DD:EE:FF into aabbccddeeff.
func compactMAC(mac string) string {
	mac = strings.ToLower(mac)
	mac = strings.ReplaceAll(mac, ":", "")
	return strings.ReplaceAll(mac, "-", "")
}

// firstHardwareAddr returns the MAC of the first up, non-loopback interface.
// Hosts without one fall back to an ID derived from the hostname.
func firstHardwareAddr() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) == 6 {
			return iface.HardwareAddr.String(), nil
		}
	}
	name, err := os.Hostname()
	if err != nil {
		name = "localhost"
	}
	return DeriveID(name), nil
}
